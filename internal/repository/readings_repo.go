package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sensor_gateway/internal/models"
)

type ReadingSQLite struct {
	db *sql.DB
}

func NewReadingSQLite(db *sql.DB) *ReadingSQLite {
	return &ReadingSQLite{db: db}
}

var _ ReadingRepo = (*ReadingSQLite)(nil)

const (
	upsertReadingSQL = `
		INSERT INTO latest_readings (topic, payload, rssi, received_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(topic) DO UPDATE SET
			payload=excluded.payload,
			rssi=excluded.rssi,
			received_at=excluded.received_at
	`

	selectReadingSQL = `SELECT topic, payload, rssi, received_at FROM latest_readings WHERE topic = ?`

	selectReadingsSQL = `SELECT topic, payload, rssi, received_at FROM latest_readings ORDER BY topic ASC`
)

// Upsert replaces the stored reading for r.Topic.
func (r *ReadingSQLite) Upsert(ctx context.Context, lr models.LatestReading) error {
	ts := lr.ReceivedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	} else {
		ts = ts.UTC()
	}

	if _, err := r.db.ExecContext(ctx, upsertReadingSQL,
		lr.Topic,
		string(lr.Payload),
		lr.RSSI,
		ts,
	); err != nil {
		return fmt.Errorf("upsert reading %q: %w", lr.Topic, err)
	}
	return nil
}

// Get returns the last reading for topic. Returns (nil, nil) if none was stored.
func (r *ReadingSQLite) Get(ctx context.Context, topic string) (*models.LatestReading, error) {
	lr, err := scanReading(r.db.QueryRowContext(ctx, selectReadingSQL, topic))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select reading %q: %w", topic, err)
	}
	return &lr, nil
}

// List returns the last reading of every topic, ordered by topic.
func (r *ReadingSQLite) List(ctx context.Context) ([]models.LatestReading, error) {
	rows, err := r.db.QueryContext(ctx, selectReadingsSQL)
	if err != nil {
		return nil, fmt.Errorf("select readings: %w", err)
	}
	defer rows.Close()

	out := make([]models.LatestReading, 0, 8)
	for rows.Next() {
		lr, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, lr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReading(s scanner) (models.LatestReading, error) {
	var (
		lr      models.LatestReading
		payload string
	)
	if err := s.Scan(&lr.Topic, &payload, &lr.RSSI, &lr.ReceivedAt); err != nil {
		return models.LatestReading{}, err
	}
	lr.Payload = []byte(payload)
	lr.ReceivedAt = lr.ReceivedAt.UTC()
	return lr, nil
}
