package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solarlink-crm/solarlink/internal/shared"
	"github.com/solarlink-crm/solarlink/internal/users"
)

// Repository provides credential lookup and login session bookkeeping.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*users.User, error)
	CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
}

type repository struct {
	pool  *pgxpool.Pool
	users users.Repository
}

// NewRepository returns a pgx-backed auth repository.
func NewRepository(pool *pgxpool.Pool, userRepo users.Repository) Repository {
	return &repository{pool: pool, users: userRepo}
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*users.User, error) {
	user, err := r.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *repository) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO login_sessions (id, user_id, expires_at, ip, user_agent)
VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO UPDATE SET expires_at = EXCLUDED.expires_at`,
		id, userID, expiresAt, ip, ua)
	return err
}

func (r *repository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM login_sessions WHERE id=$1`, id)
	return err
}
