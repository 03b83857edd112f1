package models

import "time"

// Gateway event types.
const (
	EventStart = "START"
	EventDrop  = "DROP"
	EventFault = "FAULT"
)

// GatewayEvent is a single log entry.
type GatewayEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // START | DROP | FAULT
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
