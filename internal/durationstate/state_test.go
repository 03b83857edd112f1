package durationstate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestUpdate_FirstObservationReturnsZero(t *testing.T) {
	clk := newClock()
	s := New[string](clk.now, nil)

	clk.advance(5 * time.Second)
	assert.Equal(t, int64(0), s.Update("on"))

	v, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "on", v)
}

func TestUpdate_AccumulatesWhileUnchanged(t *testing.T) {
	clk := newClock()
	s := New[string](clk.now, nil)

	s.Update("on")
	var last int64
	for i := 0; i < 5; i++ {
		clk.advance(120 * time.Millisecond)
		got := s.Update("on")
		assert.GreaterOrEqual(t, got, last)
		last = got
	}
	assert.Equal(t, int64(600), last)
}

func TestUpdate_ChangeResetsToZero(t *testing.T) {
	clk := newClock()
	s := New[string](clk.now, nil)

	s.Update("on")
	clk.advance(time.Second)
	require.Equal(t, int64(1000), s.Update("on"))

	clk.advance(time.Second)
	assert.Equal(t, int64(0), s.Update("off"))

	clk.advance(250 * time.Millisecond)
	assert.Equal(t, int64(250), s.Update("off"))
}

func TestUpdate_FloorsEachInterval(t *testing.T) {
	clk := newClock()
	s := New[int](clk.now, nil)

	s.Update(1)
	for i := 0; i < 10; i++ {
		clk.advance(1500 * time.Microsecond)
		s.Update(1)
	}
	// ten 1.5ms intervals floor to 1ms each
	assert.Equal(t, int64(10), s.Duration())
}

func TestReset_NextUpdateReturnsZero(t *testing.T) {
	clk := newClock()
	s := New[string](clk.now, nil)

	s.Update("on")
	clk.advance(3 * time.Second)
	require.Equal(t, int64(3000), s.Update("on"))

	s.Reset()
	_, ok := s.Current()
	assert.False(t, ok)
	assert.Equal(t, int64(0), s.Duration())

	clk.advance(time.Second)
	assert.Equal(t, int64(0), s.Update("on"))
}
