package leads

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solarlink-crm/solarlink/internal/projects"
	"github.com/solarlink-crm/solarlink/internal/shared"
)

// Repository provides lead persistence. MarkConverted pins the non-terminal
// status in the WHERE clause so a lead converts at most once even under
// concurrent conversion attempts.
type Repository interface {
	Create(ctx context.Context, l Lead) error
	Get(ctx context.Context, id uuid.UUID) (*Lead, error)
	List(ctx context.Context, ownerID *int64, limit, offset int) ([]Lead, int, error)
	Update(ctx context.Context, l Lead) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	MarkConverted(ctx context.Context, id uuid.UUID, projectID uuid.UUID) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a pgx-backed lead repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const leadColumns = `id, owner_id, owner_name, customer_name, phone, address, latitude, longitude,
capacity_kw, plan_tier, potential_value, priority, source, notes, status, project_id,
created_at, updated_at`

func (r *repository) Create(ctx context.Context, l Lead) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO leads (id, owner_id, owner_name, customer_name, phone, address,
latitude, longitude, capacity_kw, plan_tier, potential_value, priority, source, notes, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		l.ID, l.OwnerID, l.OwnerName, l.CustomerName, l.Phone, l.Address,
		l.Latitude, l.Longitude, l.CapacityKW, string(l.PlanTier), l.PotentialValue,
		string(l.Priority), l.Source, l.Notes, string(l.Status))
	if err != nil {
		return fmt.Errorf("leads: create: %w", err)
	}
	return nil
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id=$1`, id)
	l, err := scanLead(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: lead %s", shared.ErrNotFound, id)
		}
		return nil, fmt.Errorf("leads: get: %w", err)
	}
	return l, nil
}

func (r *repository) List(ctx context.Context, ownerID *int64, limit, offset int) ([]Lead, int, error) {
	where, args := "", []any{}
	if ownerID != nil {
		where = " WHERE owner_id=$1"
		args = append(args, *ownerID)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM leads`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("leads: count: %w", err)
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM leads%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		leadColumns, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("leads: list: %w", err)
	}
	defer rows.Close()

	var leads []Lead
	for rows.Next() {
		l, err := scanLead(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("leads: scan: %w", err)
		}
		leads = append(leads, *l)
	}
	return leads, total, rows.Err()
}

func (r *repository) Update(ctx context.Context, l Lead) error {
	tag, err := r.pool.Exec(ctx, `UPDATE leads SET customer_name=$1, phone=$2, address=$3, latitude=$4,
longitude=$5, capacity_kw=$6, plan_tier=$7, potential_value=$8, priority=$9, source=$10, notes=$11,
updated_at=NOW()
WHERE id=$12 AND status <> $13`,
		l.CustomerName, l.Phone, l.Address, l.Latitude, l.Longitude,
		l.CapacityKW, string(l.PlanTier), l.PotentialValue, string(l.Priority), l.Source, l.Notes,
		l.ID, string(StatusConverted))
	if err != nil {
		return fmt.Errorf("leads: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: lead is converted or missing", shared.ErrInvalidTransition)
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE leads SET status=$1, updated_at=NOW()
WHERE id=$2 AND status <> $3`, string(status), id, string(StatusConverted))
	if err != nil {
		return fmt.Errorf("leads: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: lead is converted or missing", shared.ErrInvalidTransition)
	}
	return nil
}

func (r *repository) MarkConverted(ctx context.Context, id uuid.UUID, projectID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE leads SET status=$1, project_id=$2, updated_at=NOW()
WHERE id=$3 AND status <> $1`, string(StatusConverted), projectID, id)
	if err != nil {
		return fmt.Errorf("leads: mark converted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: lead already converted", shared.ErrInvalidTransition)
	}
	return nil
}

func scanLead(scan func(dest ...any) error) (*Lead, error) {
	var (
		l                      Lead
		tier, priority, status string
	)
	if err := scan(&l.ID, &l.OwnerID, &l.OwnerName, &l.CustomerName, &l.Phone, &l.Address,
		&l.Latitude, &l.Longitude, &l.CapacityKW, &tier, &l.PotentialValue,
		&priority, &l.Source, &l.Notes, &status, &l.ProjectID,
		&l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.PlanTier = projects.PlanTier(tier)
	l.Priority = Priority(priority)
	l.Status = Status(status)
	return &l, nil
}
