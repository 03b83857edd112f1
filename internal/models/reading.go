package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Field is one named numeric value carried by a sensor packet.
type Field struct {
	Name  string
	Value float64
}

// Reading is a decoded sensor packet: the broker topic plus its fields in wire order.
type Reading struct {
	Topic  string  `json:"topic"`
	Fields []Field `json:"-"`
}

// Payload renders the fields as a JSON object, preserving field order.
// Non-finite values cannot be represented and yield an error.
func (r Reading) Payload() (string, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.Fields {
		if i > 0 {
			buf.WriteString(", ")
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return "", fmt.Errorf("encode field name %q: %w", f.Name, err)
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return "", fmt.Errorf("encode field %s: %w", f.Name, err)
		}
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.String(), nil
}

// Value returns the named field value.
func (r Reading) Value(name string) (float64, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return 0, false
}

// LatestReading is the last payload published for a topic.
type LatestReading struct {
	Topic      string          `json:"topic"`
	Payload    json.RawMessage `json:"payload"`
	RSSI       int             `json:"rssi"`
	ReceivedAt time.Time       `json:"received_at"`
}
