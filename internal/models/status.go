package models

import "time"

// RadioInfo holds the static radio diagnostics read at startup.
type RadioInfo struct {
	TemperatureC         float64 `json:"temperature_c"`
	FrequencyMHz         float64 `json:"frequency_mhz"`
	BitrateBps           float64 `json:"bitrate_bps"`
	FrequencyDeviationHz float64 `json:"frequency_deviation_hz"`
}

// GatewayStatus is a point-in-time snapshot of the receive/publish pipeline.
type GatewayStatus struct {
	BootID           string     `json:"boot_id"`
	StartedAt        time.Time  `json:"started_at"`
	Broker           string     `json:"broker"`
	Radio            RadioInfo  `json:"radio"`
	PacketsReceived  uint64     `json:"packets_received"`
	PacketsDropped   uint64     `json:"packets_dropped"`
	PacketsPublished uint64     `json:"packets_published"`
	LastRSSI         int        `json:"last_rssi"`
	LastPacketAt     *time.Time `json:"last_packet_at,omitempty"`
	IndicatorOn      bool       `json:"indicator_on"`
}
