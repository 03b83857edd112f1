package service

import (
	"context"
	"time"

	"sensor_gateway/internal/models"
	"sensor_gateway/internal/repository"
)

// Authorization manages status API accounts and the tokens that carry
// their role.
type Authorization interface {
	EnrollOperator(ctx context.Context, username, password, bootID string) (int, error)
	AddViewer(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (Principal, error)
}

// Monitoring exposes the live pipeline status and the last reading per topic.
type Monitoring interface {
	GetStatus(ctx context.Context) (models.GatewayStatus, error)
	LatestReadings(ctx context.Context) ([]models.LatestReading, error)
}

// EventLog exposes append-only logs with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.GatewayEvent, error)
}

// FaultLog exposes the faults recorded before past restarts.
type FaultLog interface {
	RecentFaults(limit int) ([]models.Fault, error)
}

// Simulator feeds synthetic sensor frames into the stub radio.
// Stop via context cancellation.
type Simulator interface {
	Run(ctx context.Context, tick time.Duration)
}

// Service aggregates the read-side services behind the status API.
type Service struct {
	Monitoring
	EventLog
	FaultLog
	Authorization
}

func NewService(repos *repository.Repository, status StatusSource, faults FaultSource, signingKey, bootID string) *Service {
	return &Service{
		Monitoring:    NewMonitoringService(status, repos.ReadingRepo),
		EventLog:      NewEventLogService(repos.EventRepo),
		FaultLog:      NewFaultLogService(faults, repos.EventRepo, nil),
		Authorization: NewAuthService(repos.Users, signingKey, bootID),
	}
}
