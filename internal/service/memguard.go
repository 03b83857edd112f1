package service

import (
	"runtime"
	"time"

	"sensor_gateway/internal/faults"
)

const memGuardInterval = 10 * time.Second

// memGuard turns heap growth past a fixed limit into a resource
// exhaustion fault, since the Go runtime aborts on allocation failure
// instead of returning an error.
type memGuard struct {
	limit    uint64
	interval time.Duration
	now      func() time.Time
	read     func(*runtime.MemStats)
	last     time.Time
}

// newMemGuard returns nil when limitMB is not positive.
func newMemGuard(limitMB int) *memGuard {
	if limitMB <= 0 {
		return nil
	}
	return &memGuard{
		limit:    uint64(limitMB) << 20,
		interval: memGuardInterval,
		now:      time.Now,
		read:     runtime.ReadMemStats,
	}
}

func (m *memGuard) check() error {
	if m == nil {
		return nil
	}
	now := m.now()
	if !m.last.IsZero() && now.Sub(m.last) < m.interval {
		return nil
	}
	m.last = now

	var ms runtime.MemStats
	m.read(&ms)
	if ms.HeapInuse > m.limit {
		return faults.ResourceExhausted("heap in use %d MiB exceeds limit %d MiB", ms.HeapInuse>>20, m.limit>>20)
	}
	return nil
}
