// Package packet decodes the fixed-size sensor frames received over the radio.
//
// Wire layout, big-endian:
//
//	offset  size  field
//	0       5     "MQTT:" ASCII prefix
//	5       32    topic, ASCII, NUL padded
//	37      4     humidity (float32)
//	41      4     temperature (float32)
//	45      4     co2_ppm (uint32)
//	49      4     battery_level (float32)
//	53      4     lux (float32)
//	57      3     unused
package packet

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"sensor_gateway/internal/models"
)

const (
	// Size is the length of every radio frame.
	Size = 60
	// Prefix marks a frame carrying broker-bound readings.
	Prefix = "MQTT:"
	// TopicSize is the width of the topic field.
	TopicSize = 32
)

// Field names, in wire order.
const (
	FieldHumidity     = "humidity"
	FieldTemperature  = "temperature"
	FieldCO2          = "co2_ppm"
	FieldBatteryLevel = "battery_level"
	FieldLux          = "lux"
)

// frame mirrors the wire layout for encoding/binary.
type frame struct {
	Prefix       [len(Prefix)]byte
	Topic        [TopicSize]byte
	Humidity     float32
	Temperature  float32
	CO2          uint32
	BatteryLevel float32
	Lux          float32
}

var frameSize = binary.Size(frame{})

// Measurements are the numeric values a sensor node reports.
type Measurements struct {
	Humidity     float32
	Temperature  float32
	CO2          uint32
	BatteryLevel float32
	Lux          float32
}

// Reason identifies why a frame was rejected.
type Reason string

const (
	ReasonBadPrefix        Reason = "bad-prefix"
	ReasonBadTopicEncoding Reason = "bad-topic-encoding"
	ReasonTopicNotAllowed  Reason = "topic-not-allowed"
	ReasonUnpackFailed     Reason = "unpack-failed"
)

// DecodingError reports a rejected frame.
type DecodingError struct {
	Reason Reason
	Detail string
}

func (e *DecodingError) Error() string {
	if e.Detail == "" {
		return "packet rejected: " + string(e.Reason)
	}
	return fmt.Sprintf("packet rejected: %s: %s", e.Reason, e.Detail)
}

func reject(r Reason, format string, args ...any) *DecodingError {
	return &DecodingError{Reason: r, Detail: fmt.Sprintf(format, args...)}
}

// AllowedTopics is the read-only set of topics that may be published.
type AllowedTopics map[string]struct{}

// NewAllowedTopics builds the set from configuration.
func NewAllowedTopics(topics []string) AllowedTopics {
	set := make(AllowedTopics, len(topics))
	for _, t := range topics {
		set[t] = struct{}{}
	}
	return set
}

// Contains reports whether topic may be published.
func (a AllowedTopics) Contains(topic string) bool {
	_, ok := a[topic]
	return ok
}

// Decode validates raw and extracts its topic and readings.
// Every rejection is a *DecodingError.
func Decode(raw []byte, allowed AllowedTopics) (models.Reading, error) {
	if len(raw) != Size {
		return models.Reading{}, reject(ReasonUnpackFailed, "got %d bytes, want %d", len(raw), Size)
	}
	var f frame
	if err := binary.Read(bytes.NewReader(raw[:frameSize]), binary.BigEndian, &f); err != nil {
		return models.Reading{}, reject(ReasonUnpackFailed, "%v", err)
	}

	if !isASCII(f.Prefix[:]) || string(f.Prefix[:]) != Prefix {
		return models.Reading{}, reject(ReasonBadPrefix, "%q", f.Prefix[:])
	}

	field := f.Topic[:]
	if idx := bytes.IndexByte(field, 0); idx > 0 {
		field = field[:idx]
	}
	if !isASCII(field) {
		return models.Reading{}, reject(ReasonBadTopicEncoding, "%q", f.Topic[:])
	}
	topic := string(field)
	if !allowed.Contains(topic) {
		return models.Reading{}, reject(ReasonTopicNotAllowed, "topic %q (field %q)", topic, f.Topic[:])
	}

	return models.Reading{
		Topic: topic,
		Fields: []models.Field{
			{Name: FieldHumidity, Value: float64(f.Humidity)},
			{Name: FieldTemperature, Value: float64(f.Temperature)},
			{Name: FieldCO2, Value: float64(f.CO2)},
			{Name: FieldBatteryLevel, Value: float64(f.BatteryLevel)},
			{Name: FieldLux, Value: float64(f.Lux)},
		},
	}, nil
}

// Encode builds a frame the way a sensor node does.
func Encode(topic string, m Measurements) ([]byte, error) {
	if len(topic) == 0 || len(topic) > TopicSize {
		return nil, fmt.Errorf("topic length %d out of range 1..%d", len(topic), TopicSize)
	}
	if !isASCII([]byte(topic)) {
		return nil, fmt.Errorf("topic %q is not ASCII", topic)
	}
	f := frame{
		Humidity:     m.Humidity,
		Temperature:  m.Temperature,
		CO2:          m.CO2,
		BatteryLevel: m.BatteryLevel,
		Lux:          m.Lux,
	}
	copy(f.Prefix[:], Prefix)
	copy(f.Topic[:], topic)

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, &f); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	out := make([]byte, Size)
	copy(out, buf.Bytes())
	return out, nil
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}
