package models

import "time"

// Fault is a journal record written right before a restart remedy is applied.
type Fault struct {
	ID         string        `cbor:"1,keyasint" json:"id"`
	BootID     string        `cbor:"2,keyasint" json:"boot_id"`
	OccurredAt time.Time     `cbor:"3,keyasint" json:"occurred_at"`
	Class      string        `cbor:"4,keyasint" json:"class"`
	Remedy     string        `cbor:"5,keyasint" json:"remedy"`
	Delay      time.Duration `cbor:"6,keyasint" json:"delay"`
	Message    string        `cbor:"7,keyasint" json:"message"`
	Stack      string        `cbor:"8,keyasint,omitempty" json:"stack,omitempty"`
}
