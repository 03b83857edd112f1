package server

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestNormalizeAddr(t *testing.T) {
	cases := map[string]string{
		"":      "",
		"8080":  ":8080",
		":9090": ":9090",
	}
	for in, want := range cases {
		if got := normalizeAddr(in); got != want {
			t.Fatalf("normalizeAddr(%q)=%q, want %q", in, got, want)
		}
	}
}

func TestShutdown_BeforeRunIsNoop(t *testing.T) {
	var s Server
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRun_ShutdownReturnsNil(t *testing.T) {
	var s Server
	done := make(chan error, 1)
	go func() {
		done <- s.Run("0", http.NotFoundHandler())
	}()

	// Wait until Run has installed the server.
	deadline := time.Now().Add(2 * time.Second)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		err := s.Shutdown(ctx)
		cancel()
		if err != nil {
			t.Fatalf("shutdown: %v", err)
		}
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("Run returned %v, want nil after shutdown", err)
			}
			return
		case <-time.After(20 * time.Millisecond):
		}
		if time.Now().After(deadline) {
			t.Fatal("Run did not return after Shutdown")
		}
	}
}
