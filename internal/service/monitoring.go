package service

import (
	"context"
	"time"

	"sensor_gateway/internal/models"
	"sensor_gateway/internal/repository"
)

// StatusSource is implemented by Gateway.
type StatusSource interface {
	Status() models.GatewayStatus
}

type MonitoringService struct {
	status   StatusSource
	readings repository.ReadingRepo
}

func NewMonitoringService(status StatusSource, readings repository.ReadingRepo) *MonitoringService {
	return &MonitoringService{status: status, readings: readings}
}

// GetStatus returns the current gateway counters with timestamps in UTC.
func (s *MonitoringService) GetStatus(_ context.Context) (models.GatewayStatus, error) {
	st := s.status.Status()
	st.StartedAt = toUTC(st.StartedAt)
	if st.LastPacketAt != nil {
		at := toUTC(*st.LastPacketAt)
		st.LastPacketAt = &at
	}
	return st, nil
}

// LatestReadings returns the last published payload of every topic.
func (s *MonitoringService) LatestReadings(ctx context.Context) ([]models.LatestReading, error) {
	out, err := s.readings.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].ReceivedAt = toUTC(out[i].ReceivedAt)
	}
	return out, nil
}

// toUTC normalizes non-zero time to UTC, preserving zero values.
func toUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
