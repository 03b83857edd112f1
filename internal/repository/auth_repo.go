package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sensor_gateway/internal/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

var _ Users = (*UserRepository)(nil)

const (
	insertUserSQL           = `INSERT INTO users (username, role, password_hash) VALUES (?, ?, ?)`
	selectUserByUsernameSQL = `SELECT id, username, role, password_hash FROM users WHERE username = ?`
	countUsersByRoleSQL     = `SELECT COUNT(*) FROM users WHERE role = ?`
)

// Create inserts a status API account and returns its ID.
func (r *UserRepository) Create(ctx context.Context, u models.User) (int, error) {
	if !u.Role.Valid() {
		return 0, fmt.Errorf("insert user %q: unknown role %q", u.Username, u.Role)
	}
	res, err := r.db.ExecContext(ctx, insertUserSQL, u.Username, string(u.Role), u.PasswordHash)
	if err != nil {
		return 0, fmt.Errorf("insert user %q: %w", u.Username, err)
	}
	lastID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id for user %q: %w", u.Username, err)
	}
	return int(lastID), nil
}

// GetByUsername fetches a user by username. Returns (nil, nil) if not found.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var (
		u    models.User
		role string
	)
	err := r.db.QueryRowContext(ctx, selectUserByUsernameSQL, username).Scan(&u.ID, &u.Username, &role, &u.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select user %q: %w", username, err)
	}
	u.Role = models.Role(role)
	return &u, nil
}

// CountByRole returns how many accounts hold role.
func (r *UserRepository) CountByRole(ctx context.Context, role models.Role) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, countUsersByRoleSQL, string(role)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s users: %w", role, err)
	}
	return n, nil
}
