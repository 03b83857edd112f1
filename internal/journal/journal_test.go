package journal

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"sensor_gateway/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournal_EmptyLast(t *testing.T) {
	j := openTemp(t)
	f, err := j.Last()
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestJournal_RecordAndReadBack(t *testing.T) {
	j := openTemp(t)
	at := time.Date(2025, 3, 1, 12, 0, 0, 123, time.UTC)

	require.NoError(t, j.Record(models.Fault{
		BootID:     "boot-1",
		OccurredAt: at,
		Class:      "unclassified",
		Remedy:     "soft_reload",
		Delay:      10 * time.Second,
		Message:    "boom",
		Stack:      "goroutine 1 [running]:",
	}))
	require.NoError(t, j.Record(models.Fault{Class: "transient_transport_failure", Message: "EOF"}))

	last, err := j.Last()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "EOF", last.Message)
	assert.NotEmpty(t, last.ID)
	assert.False(t, last.OccurredAt.IsZero())

	all, err := j.List(0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	first := all[1]
	assert.Equal(t, "boot-1", first.BootID)
	assert.True(t, at.Equal(first.OccurredAt))
	assert.Equal(t, 10*time.Second, first.Delay)
	assert.Equal(t, "goroutine 1 [running]:", first.Stack)
}

func TestJournal_RetentionDropsOldest(t *testing.T) {
	j := openTemp(t)
	j.retention = 3

	for i := 0; i < 5; i++ {
		require.NoError(t, j.Record(models.Fault{Message: fmt.Sprintf("f%d", i)}))
	}
	all, err := j.List(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "f4", all[0].Message)
	assert.Equal(t, "f2", all[2].Message)
}

func TestJournal_RetentionHoldsAcrossManyRecords(t *testing.T) {
	j := openTemp(t)
	j.retention = 3

	for i := 0; i < 10; i++ {
		require.NoError(t, j.Record(models.Fault{Message: fmt.Sprintf("f%d", i)}))
		all, err := j.List(0)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(all), 3, "after record %d", i)
	}
	all, err := j.List(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"f9", "f8", "f7"}, []string{all[0].Message, all[1].Message, all[2].Message})
}

func TestJournal_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Record(models.Fault{Message: "before reboot"}))
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()
	last, err := j.Last()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "before reboot", last.Message)
}

func TestJournal_ListLimit(t *testing.T) {
	j := openTemp(t)
	for i := 0; i < 4; i++ {
		require.NoError(t, j.Record(models.Fault{Message: fmt.Sprintf("f%d", i)}))
	}
	got, err := j.List(2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "f3", got[0].Message)
}
