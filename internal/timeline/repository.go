package timeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Dbtx is the subset of pgx executors the timeline insert needs. Module
// repositories pass their open transaction here so the entry commits (or
// rolls back) together with the state change it describes.
type Dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// AppendTx inserts one timeline entry within the caller's transaction.
func AppendTx(ctx context.Context, tx Dbtx, e Entry) error {
	if e.Action == "" {
		return errors.New("timeline: action required")
	}
	if e.ProjectID == uuid.Nil {
		return errors.New("timeline: project id required")
	}
	at := e.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := tx.Exec(ctx, `INSERT INTO project_timeline (project_id, action, remarks, actor_name, at)
VALUES ($1, $2, $3, $4, $5)`, e.ProjectID, e.Action, e.Remarks, e.ActorName, at)
	if err != nil {
		return fmt.Errorf("timeline: append: %w", err)
	}
	return nil
}

// Repository reads a project's audit trail.
type Repository interface {
	ListWindow(ctx context.Context, projectID uuid.UUID, offset, limit int) ([]Entry, error)
	Count(ctx context.Context, projectID uuid.UUID) (int, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a pgx-backed timeline reader.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) ListWindow(ctx context.Context, projectID uuid.UUID, offset, limit int) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, project_id, action, remarks, actor_name, at
FROM project_timeline WHERE project_id=$1 ORDER BY at ASC, id ASC OFFSET $2 LIMIT $3`, projectID, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		var at pgtype.Timestamptz
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Action, &e.Remarks, &e.ActorName, &at); err != nil {
			return nil, err
		}
		if at.Valid {
			e.At = at.Time
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *repository) Count(ctx context.Context, projectID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM project_timeline WHERE project_id=$1`, projectID).Scan(&count)
	return count, err
}
