package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"sensor_gateway/internal/config"
	"sensor_gateway/internal/journal"
	"sensor_gateway/internal/logger"
	"sensor_gateway/internal/models"
	"sensor_gateway/internal/radio"
	"sensor_gateway/internal/recovery"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedActions struct {
	calls []string
}

func (r *recordedActions) HardReset() error {
	r.calls = append(r.calls, "hard_reset")
	return nil
}

func (r *recordedActions) SoftReload() error {
	r.calls = append(r.calls, "soft_reload")
	return nil
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		LogLevel: "error",
		Radio:    config.Radio{Driver: config.DriverRFM69, FrequencyMHz: 915},
		DB:       config.DB{Path: filepath.Join(dir, "gateway.db")},
		Journal:  config.Journal{Path: filepath.Join(dir, "faults.db")},
	}
}

// supervise runs app under a policy that records cooldowns instead of
// sleeping and never exits the test binary.
func supervise(t *testing.T, app *gatewayApp) (recovery.Decision, *recordedActions, []time.Duration, []int) {
	t.Helper()
	var (
		actions = &recordedActions{}
		slept   []time.Duration
		exits   []int
	)
	policy := recovery.NewPolicy(actions, nil, app.log,
		recovery.WithJournal(app, app.bootID),
		recovery.WithSleep(func(d time.Duration) { slept = append(slept, d) }),
		recovery.WithExit(func(code int) { exits = append(exits, code) }),
	)
	policy.BeforeRestart(app.Close)

	d, handled := policy.Supervise(context.Background(), app.Run)
	require.True(t, handled)
	return d, actions, slept, exits
}

func TestGatewayApp_RadioOpenFailureGetsCooldownAndReload(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	app := newGatewayApp(cfg, logger.Nop(), "boot-7")
	app.openRadio = func(*config.Config) (radio.Transport, *radio.Stub, error) {
		return nil, nil, errors.New("rfm69: version register reads 0x00")
	}

	d, actions, slept, exits := supervise(t, app)

	assert.Equal(t, recovery.SoftReload, d.Remedy)
	assert.Equal(t, []time.Duration{recovery.DefaultSoftReloadDelay}, slept)
	assert.Equal(t, []string{"soft_reload"}, actions.calls)
	assert.Empty(t, exits)

	// storage opened before the radio is released by the restart hook
	require.NotNil(t, app.sqlDB)
	assert.Error(t, app.sqlDB.Ping())

	fj, err := journal.Open(cfg.Journal.Path)
	require.NoError(t, err)
	defer func() { _ = fj.Close() }()
	last, err := fj.Last()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "boot-7", last.BootID)
	assert.Equal(t, recovery.SoftReload.String(), last.Remedy)
	assert.Contains(t, last.Message, "open rfm69 radio")
	assert.Contains(t, last.Message, "version register")
}

func TestGatewayApp_UnopenableJournalStillSupervised(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Journal.Path = filepath.Join(t.TempDir(), "missing", "faults.db")
	app := newGatewayApp(cfg, logger.Nop(), "boot-8")
	app.openRadio = func(*config.Config) (radio.Transport, *radio.Stub, error) {
		t.Fatal("radio must not be opened before storage")
		return nil, nil, nil
	}

	d, actions, slept, _ := supervise(t, app)

	assert.Equal(t, recovery.SoftReload, d.Remedy)
	assert.Equal(t, []time.Duration{recovery.DefaultSoftReloadDelay}, slept)
	assert.Equal(t, []string{"soft_reload"}, actions.calls)
	assert.Nil(t, app.sqlDB)
}

func TestGatewayApp_RecordBeforeRun(t *testing.T) {
	app := newGatewayApp(testConfig(t.TempDir()), logger.Nop(), "boot-9")
	assert.ErrorIs(t, app.Record(models.Fault{Message: "early"}), errJournalNotOpen)
	assert.NoError(t, app.Close(context.Background()))
}
