// Package indicator drives the packet activity light.
package indicator

import (
	"fmt"
	"time"

	"sensor_gateway/internal/durationstate"
	"sensor_gateway/internal/logger"
)

// DefaultPulse is the minimum visible on-time per received packet.
const DefaultPulse = 300 * time.Millisecond

const (
	stateOn  = "on"
	stateOff = "off"
)

// Output is a binary signal such as an LED.
type Output interface {
	Set(on bool) error
}

// Activity blinks the output once per received packet. Packets arriving
// faster than the pulse width keep the output lit continuously.
//
// When disabled every call is a no-op and the output is never written.
type Activity struct {
	out     Output
	enabled bool
	pulseMs int64
	on      bool
	state   *durationstate.State[string]
}

// New builds an Activity indicator. A nil clock means time.Now.
func New(out Output, enabled bool, pulse time.Duration, now func() time.Time, log *logger.Logger) *Activity {
	if pulse <= 0 {
		pulse = DefaultPulse
	}
	return &Activity{
		out:     out,
		enabled: enabled,
		pulseMs: int64(pulse / time.Millisecond),
		state:   durationstate.New[string](now, log),
	}
}

// OnPacketReceived lights the output if it is not already lit.
func (a *Activity) OnPacketReceived() error {
	if !a.enabled || a.on {
		return nil
	}
	if err := a.out.Set(true); err != nil {
		return fmt.Errorf("indicator on: %w", err)
	}
	a.on = true
	a.state.Update(stateOn)
	return nil
}

// OnIdleTick turns the output off once it has been lit longer than the pulse width.
func (a *Activity) OnIdleTick() error {
	if !a.enabled || !a.on {
		return nil
	}
	if a.state.Update(stateOn) <= a.pulseMs {
		return nil
	}
	if err := a.out.Set(false); err != nil {
		return fmt.Errorf("indicator off: %w", err)
	}
	a.on = false
	a.state.Update(stateOff)
	return nil
}

// Lit reports the last value written to the output.
func (a *Activity) Lit() bool {
	return a.on
}

// Enabled reports whether the indicator drives its output.
func (a *Activity) Enabled() bool {
	return a.enabled
}
