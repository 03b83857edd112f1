// Package durationstate tracks how long a value has stayed unchanged.
package durationstate

import (
	"time"

	"sensor_gateway/internal/logger"
)

// State accumulates the time, in whole milliseconds, that the same value
// has been observed across consecutive Update calls. Each call floors the
// elapsed time independently, so sub-millisecond remainders are lost.
//
// A State is owned by a single component and is not safe for concurrent use.
type State[T comparable] struct {
	current    T
	set        bool
	durationMs int64
	stamp      time.Time

	now func() time.Time
	log *logger.Logger
}

// New returns an empty State. A nil clock means time.Now; a nil logger disables tracing.
func New[T comparable](now func() time.Time, log *logger.Logger) *State[T] {
	if now == nil {
		now = time.Now
	}
	return &State[T]{now: now, stamp: now(), log: log}
}

// Update records an observation of v and returns how long, in
// milliseconds, v has been the current value.
func (s *State[T]) Update(v T) int64 {
	t := s.now()
	if s.set {
		if s.current == v {
			s.durationMs += int64(t.Sub(s.stamp) / time.Millisecond)
			if s.log != nil {
				s.log.Debugf("state '%v' preserved (for %d msec)", v, s.durationMs)
			}
		} else {
			if s.log != nil {
				s.log.Debugf("state changed %v -> %v", s.current, v)
			}
			s.durationMs = 0
		}
	}
	s.current = v
	s.set = true
	s.stamp = t
	return s.durationMs
}

// Reset forgets the current value. The observation stamp is left as is.
func (s *State[T]) Reset() {
	var zero T
	s.current = zero
	s.set = false
	s.durationMs = 0
}

// Current returns the tracked value, if any.
func (s *State[T]) Current() (T, bool) {
	return s.current, s.set
}

// Duration returns the accumulated milliseconds without observing a new value.
func (s *State[T]) Duration() int64 {
	return s.durationMs
}
