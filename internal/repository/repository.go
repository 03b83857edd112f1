package repository

import (
	"context"
	"database/sql"
	"time"

	"sensor_gateway/internal/models"
)

// Users stores status API accounts and their roles.
type Users interface {
	Create(ctx context.Context, u models.User) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	CountByRole(ctx context.Context, role models.Role) (int, error)
}

// ReadingRepo keeps the last published payload per topic.
type ReadingRepo interface {
	Upsert(ctx context.Context, r models.LatestReading) error
	Get(ctx context.Context, topic string) (*models.LatestReading, error)
	List(ctx context.Context) ([]models.LatestReading, error)
}

type EventRepo interface {
	Append(ctx context.Context, e models.GatewayEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.GatewayEvent, error)
}

type Repository struct {
	ReadingRepo ReadingRepo
	EventRepo   EventRepo
	Users       Users
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		ReadingRepo: NewReadingSQLite(db),
		EventRepo:   NewEventSQLite(db),
		Users:       NewUserRepository(db),
	}
}
