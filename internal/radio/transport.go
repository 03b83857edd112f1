// Package radio defines the packet radio collaborator used by the gateway.
package radio

import (
	"time"

	"sensor_gateway/internal/models"
)

// Transport receives one frame at a time from the radio.
type Transport interface {
	// Receive waits up to timeout for a frame. It returns nil, nil when
	// nothing arrived in time.
	Receive(timeout time.Duration) ([]byte, error)
	// LastRSSI is the signal strength of the last received frame, in dBm.
	LastRSSI() int
	// Info reads the diagnostics logged at startup.
	Info() (models.RadioInfo, error)
	// SetEncryptionKey enables AES with a 16 byte key.
	SetEncryptionKey(key []byte) error
	Close() error
}

// KeySize is the AES key length accepted by SetEncryptionKey.
const KeySize = 16
