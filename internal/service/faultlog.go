package service

import (
	"context"
	"fmt"

	"sensor_gateway/internal/logger"
	"sensor_gateway/internal/models"
	"sensor_gateway/internal/repository"
)

const (
	defaultFaultLimit = 20
	maxFaultLimit     = 100
)

// FaultSource is implemented by journal.Journal.
type FaultSource interface {
	Last() (*models.Fault, error)
	List(limit int) ([]models.Fault, error)
}

type FaultLogService struct {
	faults FaultSource
	events repository.EventRepo
	log    *logger.Logger
}

func NewFaultLogService(faults FaultSource, events repository.EventRepo, log *logger.Logger) *FaultLogService {
	if log == nil {
		log = logger.Nop()
	}
	return &FaultLogService{faults: faults, events: events, log: log}
}

// RecentFaults returns up to limit journal records, newest first.
func (s *FaultLogService) RecentFaults(limit int) ([]models.Fault, error) {
	if limit <= 0 {
		limit = defaultFaultLimit
	}
	if limit > maxFaultLimit {
		limit = maxFaultLimit
	}
	return s.faults.List(limit)
}

// AnnounceLastFault logs the fault that ended the previous run and copies
// it into the event log. The fault ID is reused as the event ID, so calling
// it again after a restart without a new fault adds nothing.
func (s *FaultLogService) AnnounceLastFault(ctx context.Context) (*models.Fault, error) {
	f, err := s.faults.Last()
	if err != nil {
		return nil, fmt.Errorf("read last fault: %w", err)
	}
	if f == nil {
		return nil, nil
	}
	s.log.Warnw("previous run ended with a fault",
		"class", f.Class,
		"remedy", f.Remedy,
		"occurred_at", f.OccurredAt,
		"message", f.Message,
	)
	err = s.events.Append(ctx, models.GatewayEvent{
		EventID:     f.ID,
		OccurredAt:  f.OccurredAt,
		Type:        models.EventFault,
		Description: fmt.Sprintf("%s: %s", f.Class, f.Message),
		Metadata: map[string]any{
			"boot_id": f.BootID,
			"remedy":  f.Remedy,
			"delay":   f.Delay.String(),
		},
	})
	if err != nil {
		return f, fmt.Errorf("append fault event: %w", err)
	}
	return f, nil
}
