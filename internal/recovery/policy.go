// Package recovery is the terminal fault handler of the gateway process.
// It classifies the failure that ended the supervised region and restarts
// either the whole device or just the process after a cooldown.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"sensor_gateway/internal/faults"
	"sensor_gateway/internal/logger"
	"sensor_gateway/internal/models"
)

// Default cooldowns. They bound the restart rate when a fault recurs.
const (
	DefaultHardResetDelay  = 15 * time.Second
	DefaultSoftReloadDelay = 10 * time.Second

	hookTimeout = 5 * time.Second
)

// Remedy is the restart action chosen for a fault.
type Remedy int

const (
	HardReset Remedy = iota + 1
	SoftReload
)

func (r Remedy) String() string {
	switch r {
	case HardReset:
		return "hard_reset"
	case SoftReload:
		return "soft_reload"
	default:
		return "none"
	}
}

// Decision is the outcome of classifying a fault.
type Decision struct {
	Class  faults.Class
	Remedy Remedy
	Delay  time.Duration
}

// Actions performs the restarts. On a real device neither call returns on success.
type Actions interface {
	HardReset() error
	SoftReload() error
}

// Recorder persists the fault before the restart.
type Recorder interface {
	Record(f models.Fault) error
}

// Hook releases a resource before the restart.
type Hook func(ctx context.Context) error

// PanicError is a panic recovered from the supervised region.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Unwrap exposes a panicked error value to classification.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// Policy maps faults to remedies.
type Policy struct {
	hardResetDelay  time.Duration
	softReloadDelay time.Duration

	actions Actions
	console io.Writer
	log     *logger.Logger
	journal Recorder
	bootID  string
	hooks   []Hook

	sleep func(time.Duration)
	exit  func(int)
	now   func() time.Time
}

// Option customises a Policy.
type Option func(*Policy)

// WithDelays overrides the cooldowns.
func WithDelays(hardReset, softReload time.Duration) Option {
	return func(p *Policy) {
		p.hardResetDelay = hardReset
		p.softReloadDelay = softReload
	}
}

// WithJournal records every handled fault under bootID.
func WithJournal(r Recorder, bootID string) Option {
	return func(p *Policy) {
		p.journal = r
		p.bootID = bootID
	}
}

// WithSleep replaces time.Sleep for the cooldown.
func WithSleep(sleep func(time.Duration)) Option {
	return func(p *Policy) { p.sleep = sleep }
}

// WithExit replaces os.Exit for the last-resort exit.
func WithExit(exit func(int)) Option {
	return func(p *Policy) { p.exit = exit }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Policy) { p.now = now }
}

// NewPolicy builds a Policy writing its fault dump to console.
func NewPolicy(actions Actions, console io.Writer, log *logger.Logger, opts ...Option) *Policy {
	p := &Policy{
		hardResetDelay:  DefaultHardResetDelay,
		softReloadDelay: DefaultSoftReloadDelay,
		actions:         actions,
		console:         console,
		log:             log,
		sleep:           time.Sleep,
		exit:            os.Exit,
		now:             time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// BeforeRestart registers a hook run after the cooldown, right before the remedy.
func (p *Policy) BeforeRestart(h Hook) {
	p.hooks = append(p.hooks, h)
}

// Decide classifies err and picks the remedy.
func (p *Policy) Decide(err error) Decision {
	class := faults.Classify(err)
	switch class {
	case faults.TransientTransportFailure, faults.ResourceExhaustion:
		return Decision{Class: class, Remedy: HardReset, Delay: p.hardResetDelay}
	default:
		return Decision{Class: class, Remedy: SoftReload, Delay: p.softReloadDelay}
	}
}

// Supervise runs region and handles whatever failure ends it, including a
// panic. It returns false without acting when region returns nil.
func (p *Policy) Supervise(ctx context.Context, region func(ctx context.Context) error) (Decision, bool) {
	err := runGuarded(ctx, region)
	if err == nil {
		return Decision{}, false
	}
	return p.Handle(err), true
}

func runGuarded(ctx context.Context, region func(ctx context.Context) error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v, Stack: debug.Stack()}
		}
	}()
	return region(ctx)
}

// Handle dumps the fault, records it, waits out the cooldown and applies
// the remedy. On a device the remedy replaces the process, so Handle
// returning means the actions or the exit function were substituted.
func (p *Policy) Handle(err error) Decision {
	d := p.Decide(err)
	trace := ""
	if d.Class == faults.Unclassified {
		trace = formatTrace(err)
	}
	p.dump(err, d, trace)
	p.record(err, d, trace)

	p.sleep(d.Delay)
	p.runHooks()

	if d.Remedy == HardReset {
		rerr := p.actions.HardReset()
		if rerr == nil {
			return d
		}
		p.logError("hard reset failed, falling back to soft reload", rerr)
	}
	rerr := p.actions.SoftReload()
	if rerr == nil {
		return d
	}
	p.logError("soft reload failed, exiting", rerr)
	p.exit(1)
	return d
}

func (p *Policy) dump(err error, d Decision, trace string) {
	if p.console == nil {
		return
	}
	if d.Class == faults.Unclassified {
		fmt.Fprintln(p.console, "Code stopped by unhandled failure:")
		fmt.Fprintln(p.console, trace)
		fmt.Fprintf(p.console, "Performing a soft reload in %s\n", d.Delay)
		return
	}
	fmt.Fprintf(p.console, "Got %s: %v\n", d.Class, err)
	fmt.Fprintf(p.console, "Performing hard reset in %s\n", d.Delay)
}

func (p *Policy) record(err error, d Decision, trace string) {
	if p.journal == nil {
		return
	}
	f := models.Fault{
		BootID:     p.bootID,
		OccurredAt: p.now().UTC(),
		Class:      d.Class.String(),
		Remedy:     d.Remedy.String(),
		Delay:      d.Delay,
		Message:    err.Error(),
		Stack:      trace,
	}
	p.logError("record fault", p.journal.Record(f))
}

func (p *Policy) runHooks() {
	for _, h := range p.hooks {
		ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
		p.logError("pre-restart hook", h(ctx))
		cancel()
	}
}

func (p *Policy) logError(msg string, err error) {
	if err == nil || p.log == nil {
		return
	}
	p.log.Errorw(msg, "err", err)
}

// formatTrace renders a panic stack, or the wrap chain of a returned error.
func formatTrace(err error) string {
	var pe *PanicError
	if errors.As(err, &pe) {
		return fmt.Sprintf("%v\n%s", pe, strings.TrimRight(string(pe.Stack), "\n"))
	}
	var sb strings.Builder
	sb.WriteString(err.Error())
	depth := 1
	for cur := errors.Unwrap(err); cur != nil; cur = errors.Unwrap(cur) {
		fmt.Fprintf(&sb, "\n%s caused by: %s", strings.Repeat("  ", depth), cur.Error())
		depth++
	}
	return sb.String()
}
