package faults

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Class
	}{
		{"nil", nil, Unclassified},
		{"connection sentinel", Connection("broker connect", errors.New("refused")), TransientTransportFailure},
		{"wrapped connection", fmt.Errorf("gateway: %w", Connection("wifi", nil)), TransientTransportFailure},
		{"op error", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("no route")}, TransientTransportFailure},
		{"dns error", &net.DNSError{Err: "no such host", Name: "broker"}, TransientTransportFailure},
		{"errno reset", os.NewSyscallError("read", syscall.ECONNRESET), TransientTransportFailure},
		{"errno pipe", fmt.Errorf("write: %w", syscall.EPIPE), TransientTransportFailure},
		{"closed conn", net.ErrClosed, TransientTransportFailure},
		{"memory sentinel", ResourceExhausted("heap %d MiB", 80), ResourceExhaustion},
		{"enomem", fmt.Errorf("mmap: %w", syscall.ENOMEM), ResourceExhaustion},
		{"generic", errors.New("index out of range"), Unclassified},
		{"deadline", context.DeadlineExceeded, Unclassified},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestClassify_ConnectionWinsOverMemory(t *testing.T) {
	err := fmt.Errorf("%w after %w", ErrResourceExhausted, ErrConnection)
	assert.Equal(t, TransientTransportFailure, Classify(err))
}

func TestClassString(t *testing.T) {
	assert.Equal(t, "transient_transport_failure", TransientTransportFailure.String())
	assert.Equal(t, "resource_exhaustion", ResourceExhaustion.String())
	assert.Equal(t, "unclassified", Unclassified.String())
	assert.Equal(t, "unknown", Class(42).String())
}
