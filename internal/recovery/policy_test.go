package recovery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"sensor_gateway/internal/faults"
	"sensor_gateway/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeActions struct {
	calls     []string
	hardErr   error
	reloadErr error
}

func (f *fakeActions) HardReset() error {
	f.calls = append(f.calls, "hard_reset")
	return f.hardErr
}

func (f *fakeActions) SoftReload() error {
	f.calls = append(f.calls, "soft_reload")
	return f.reloadErr
}

type fakeJournal struct {
	records []models.Fault
}

func (f *fakeJournal) Record(r models.Fault) error {
	f.records = append(f.records, r)
	return nil
}

type harness struct {
	policy  *Policy
	actions *fakeActions
	journal *fakeJournal
	console *bytes.Buffer
	slept   []time.Duration
	exits   []int
	events  []string
}

func newHarness() *harness {
	h := &harness{actions: &fakeActions{}, journal: &fakeJournal{}, console: &bytes.Buffer{}}
	h.policy = NewPolicy(h.actions, h.console, nil,
		WithJournal(h.journal, "boot-1"),
		WithSleep(func(d time.Duration) {
			h.slept = append(h.slept, d)
			h.events = append(h.events, "sleep")
		}),
		WithExit(func(code int) { h.exits = append(h.exits, code) }),
		WithClock(func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }),
	)
	h.policy.BeforeRestart(func(ctx context.Context) error {
		h.events = append(h.events, "hook")
		return nil
	})
	return h
}

func TestDecide(t *testing.T) {
	p := NewPolicy(&fakeActions{}, nil, nil)
	cases := []struct {
		name string
		err  error
		want Decision
	}{
		{"connection", faults.Connection("mqtt connect", errors.New("refused")),
			Decision{Class: faults.TransientTransportFailure, Remedy: HardReset, Delay: 15 * time.Second}},
		{"memory", faults.ResourceExhausted("heap over limit"),
			Decision{Class: faults.ResourceExhaustion, Remedy: HardReset, Delay: 15 * time.Second}},
		{"generic", errors.New("boom"),
			Decision{Class: faults.Unclassified, Remedy: SoftReload, Delay: 10 * time.Second}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, p.Decide(tc.err))
		})
	}
}

func TestHandle_ConnectionFailureHardResets(t *testing.T) {
	h := newHarness()

	d := h.policy.Handle(faults.Connection("wifi", errors.New("link down")))

	assert.Equal(t, HardReset, d.Remedy)
	assert.Equal(t, []time.Duration{15 * time.Second}, h.slept)
	assert.Equal(t, []string{"hard_reset"}, h.actions.calls)
	assert.Equal(t, []string{"sleep", "hook"}, h.events)
	assert.Empty(t, h.exits)
	assert.Contains(t, h.console.String(), "Performing hard reset in 15s")

	require.Len(t, h.journal.records, 1)
	rec := h.journal.records[0]
	assert.Equal(t, "boot-1", rec.BootID)
	assert.Equal(t, "transient_transport_failure", rec.Class)
	assert.Equal(t, "hard_reset", rec.Remedy)
	assert.Empty(t, rec.Stack)
}

func TestHandle_GenericFailureSoftReloadsWithTrace(t *testing.T) {
	h := newHarness()

	d := h.policy.Handle(fmt.Errorf("process packet: %w", errors.New("bad state")))

	assert.Equal(t, SoftReload, d.Remedy)
	assert.Equal(t, []time.Duration{10 * time.Second}, h.slept)
	assert.Equal(t, []string{"soft_reload"}, h.actions.calls)
	out := h.console.String()
	assert.Contains(t, out, "Code stopped by unhandled failure:")
	assert.Contains(t, out, "caused by: bad state")
	assert.Contains(t, out, "Performing a soft reload in 10s")
	require.Len(t, h.journal.records, 1)
	assert.NotEmpty(t, h.journal.records[0].Stack)
}

func TestHandle_HardResetFailureFallsBackToReload(t *testing.T) {
	h := newHarness()
	h.actions.hardErr = errors.New("operation not permitted")

	h.policy.Handle(faults.ResourceExhausted("heap"))

	assert.Equal(t, []string{"hard_reset", "soft_reload"}, h.actions.calls)
	assert.Empty(t, h.exits)
}

func TestHandle_AllRemediesFailExits(t *testing.T) {
	h := newHarness()
	h.actions.hardErr = errors.New("eperm")
	h.actions.reloadErr = errors.New("enoent")

	h.policy.Handle(faults.Connection("broker", nil))

	assert.Equal(t, []int{1}, h.exits)
}

func TestSupervise_RecoversPanicAsUnclassified(t *testing.T) {
	h := newHarness()

	d, handled := h.policy.Supervise(context.Background(), func(context.Context) error {
		var m map[string]int
		m["x"] = 1
		return nil
	})

	require.True(t, handled)
	assert.Equal(t, faults.Unclassified, d.Class)
	assert.Contains(t, h.console.String(), "panic: assignment to entry in nil map")
	assert.Contains(t, h.console.String(), "goroutine")
}

func TestSupervise_PanicWithConnectionErrorHardResets(t *testing.T) {
	h := newHarness()

	d, handled := h.policy.Supervise(context.Background(), func(context.Context) error {
		panic(faults.Connection("socket", nil))
	})

	require.True(t, handled)
	assert.Equal(t, HardReset, d.Remedy)
}

func TestSupervise_NilResultDoesNothing(t *testing.T) {
	h := newHarness()

	_, handled := h.policy.Supervise(context.Background(), func(context.Context) error { return nil })

	assert.False(t, handled)
	assert.Empty(t, h.actions.calls)
	assert.Empty(t, h.slept)
}

func TestRemedyString(t *testing.T) {
	assert.Equal(t, "hard_reset", HardReset.String())
	assert.Equal(t, "soft_reload", SoftReload.String())
	assert.Equal(t, "none", Remedy(0).String())
}
