// Package faults defines the closed set of failure kinds that can end the
// gateway process and maps them to a classification.
package faults

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Class is the classification of an error that escaped the gateway loop.
type Class int

const (
	// Unclassified is any failure not covered below.
	Unclassified Class = iota
	// TransientTransportFailure means the link, network or broker connection broke.
	TransientTransportFailure
	// ResourceExhaustion means the process ran out of memory.
	ResourceExhaustion
)

// String returns the string representation of Class
func (c Class) String() string {
	switch c {
	case TransientTransportFailure:
		return "transient_transport_failure"
	case ResourceExhaustion:
		return "resource_exhaustion"
	case Unclassified:
		return "unclassified"
	default:
		return "unknown"
	}
}

// Standard error kinds. Collaborators wrap their failures with one of these.
var (
	ErrConnection        = errors.New("connection failure")
	ErrResourceExhausted = errors.New("resource exhausted")
)

// Connection marks err as a connection-layer failure of op.
func Connection(op string, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", op, ErrConnection)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrConnection, err)
}

// ResourceExhausted marks err as an out-of-memory condition.
func ResourceExhausted(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrResourceExhausted, fmt.Sprintf(format, args...))
}

var connectionErrnos = []syscall.Errno{
	syscall.ECONNRESET,
	syscall.ECONNREFUSED,
	syscall.ECONNABORTED,
	syscall.ENETDOWN,
	syscall.ENETUNREACH,
	syscall.EHOSTUNREACH,
	syscall.EPIPE,
}

// Classify maps err to a Class. Connection failures take priority over
// resource exhaustion.
func Classify(err error) Class {
	switch {
	case err == nil:
		return Unclassified
	case isConnection(err):
		return TransientTransportFailure
	case errors.Is(err, ErrResourceExhausted), errors.Is(err, syscall.ENOMEM):
		return ResourceExhaustion
	default:
		return Unclassified
	}
}

func isConnection(err error) bool {
	if errors.Is(err, ErrConnection) || errors.Is(err, net.ErrClosed) {
		return true
	}
	for _, errno := range connectionErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
