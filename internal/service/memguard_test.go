package service

import (
	"runtime"
	"testing"
	"time"

	"sensor_gateway/internal/faults"
)

func TestNewMemGuard_DisabledWithoutLimit(t *testing.T) {
	if g := newMemGuard(0); g != nil {
		t.Fatalf("expected nil guard for zero limit")
	}
	var g *memGuard
	if err := g.check(); err != nil {
		t.Fatalf("nil guard must pass, got %v", err)
	}
}

func TestMemGuard_SamplesAtMostOncePerInterval(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	heap := uint64(10 << 20)
	reads := 0

	g := newMemGuard(16)
	g.now = func() time.Time { return now }
	g.read = func(ms *runtime.MemStats) {
		reads++
		ms.HeapInuse = heap
	}

	if err := g.check(); err != nil {
		t.Fatalf("under limit: %v", err)
	}

	heap = 32 << 20
	now = now.Add(memGuardInterval / 2)
	if err := g.check(); err != nil {
		t.Fatalf("must not sample inside the interval: %v", err)
	}
	if reads != 1 {
		t.Fatalf("expected 1 read, got %d", reads)
	}

	now = now.Add(memGuardInterval)
	err := g.check()
	if faults.Classify(err) != faults.ResourceExhaustion {
		t.Fatalf("expected resource exhaustion, got %v", err)
	}
	if reads != 2 {
		t.Fatalf("expected 2 reads, got %d", reads)
	}
}
