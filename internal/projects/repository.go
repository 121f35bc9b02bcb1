package projects

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solarlink-crm/solarlink/internal/platform/db"
	"github.com/solarlink-crm/solarlink/internal/shared"
	"github.com/solarlink-crm/solarlink/internal/timeline"
)

// Scope restricts list/get results to what the caller's role may see.
type Scope struct {
	// CreatedBy, when set, limits results to projects created by that user.
	CreatedBy *int64
	// OpsID, when set, limits results to projects assigned to that ops user.
	OpsID *string
}

// Repository provides project persistence. Transition performs a
// compare-and-set on the status column: the expected current status is part of
// the WHERE clause, so of two racing writers exactly one wins and the loser
// observes a stale-state conflict.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Create(ctx context.Context, p Project) error
	Get(ctx context.Context, id uuid.UUID) (*Project, error)
	List(ctx context.Context, req ListProjectsRequest, scope Scope) ([]Project, int, error)
	ListExpiredDrafts(ctx context.Context, now time.Time) ([]Project, error)
	Transition(ctx context.Context, id uuid.UUID, from Status, updates map[string]interface{}) error
	AppendTimeline(ctx context.Context, e timeline.Entry) error
}

type repository struct {
	db   timeline.Dbtx
	pool *pgxpool.Pool
}

// NewRepository returns a pgx-backed project repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const projectColumns = `id, lead_id, customer_name, phone, address, latitude, longitude,
capacity_kw, plan_tier, discount, final_price, billing_amount,
created_by, sales_id, ops_id, status, work_status, rejection_reason,
conversion_deadline, created_at, updated_at`

func (r *repository) Create(ctx context.Context, p Project) error {
	_, err := r.db.Exec(ctx, `INSERT INTO projects (id, lead_id, customer_name, phone, address, latitude, longitude,
capacity_kw, plan_tier, discount, final_price, billing_amount,
created_by, sales_id, ops_id, status, work_status, rejection_reason, conversion_deadline)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		p.ID, p.LeadID, p.CustomerName, p.Phone, p.Address, p.Latitude, p.Longitude,
		p.CapacityKW, string(p.PlanTier), p.Discount, p.FinalPrice, p.BillingAmount,
		p.CreatedBy, p.SalesID, p.OpsID, string(p.Status), string(p.WorkStatus), p.RejectionReason, p.ConversionDeadline)
	if err != nil {
		return fmt.Errorf("projects: create: %w", err)
	}
	return nil
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*Project, error) {
	row := r.db.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=$1`, id)
	p, err := scanProject(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *repository) List(ctx context.Context, req ListProjectsRequest, scope Scope) ([]Project, int, error) {
	conditions := []string{"TRUE"}
	var args []interface{}
	argPos := 1

	if scope.CreatedBy != nil {
		conditions = append(conditions, fmt.Sprintf("created_by = $%d", argPos))
		args = append(args, *scope.CreatedBy)
		argPos++
	}
	if scope.OpsID != nil {
		conditions = append(conditions, fmt.Sprintf("ops_id = $%d", argPos))
		args = append(args, *scope.OpsID)
		argPos++
	}
	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, string(*req.Status))
		argPos++
	}
	if req.Search != nil && *req.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(customer_name ILIKE $%d OR address ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+*req.Search+"%")
		argPos++
	}

	where := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		where += " AND " + conditions[i]
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM projects "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf("SELECT "+projectColumns+" FROM projects %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d", where, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []Project
	for rows.Next() {
		p, err := scanProject(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *p)
	}
	return list, total, rows.Err()
}

func (r *repository) ListExpiredDrafts(ctx context.Context, now time.Time) ([]Project, error) {
	rows, err := r.db.Query(ctx, `SELECT `+projectColumns+` FROM projects
WHERE status=$1 AND conversion_deadline <= $2 ORDER BY conversion_deadline ASC`, string(StatusDraft), now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Project
	for rows.Next() {
		p, err := scanProject(rows.Scan)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

func (r *repository) Transition(ctx context.Context, id uuid.UUID, from Status, updates map[string]interface{}) error {
	query := "UPDATE projects SET updated_at = NOW()"
	var args []interface{}
	argPos := 1

	for _, col := range []string{"status", "work_status", "ops_id", "rejection_reason", "billing_amount", "conversion_deadline"} {
		if v, ok := updates[col]; ok {
			query += fmt.Sprintf(", %s = $%d", col, argPos)
			args = append(args, v)
			argPos++
		}
	}

	query += fmt.Sprintf(" WHERE id = $%d AND status = $%d", argPos, argPos+1)
	args = append(args, id, string(from))

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either the project vanished or a concurrent writer got there first;
		// both surface as a stale-state conflict.
		return fmt.Errorf("%w: project status changed concurrently", shared.ErrInvalidTransition)
	}
	return nil
}

func (r *repository) AppendTimeline(ctx context.Context, e timeline.Entry) error {
	return timeline.AppendTx(ctx, r.db, e)
}

func scanProject(scan func(...any) error) (*Project, error) {
	var p Project
	var leadID pgtype.UUID
	var phone, address, rejectionReason, tier, status, workStatus pgtype.Text
	var lat, lng pgtype.Float8
	var deadline, createdAt, updatedAt pgtype.Timestamptz

	err := scan(&p.ID, &leadID, &p.CustomerName, &phone, &address, &lat, &lng,
		&p.CapacityKW, &tier, &p.Discount, &p.FinalPrice, &p.BillingAmount,
		&p.CreatedBy, &p.SalesID, &p.OpsID, &status, &workStatus, &rejectionReason,
		&deadline, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if leadID.Valid {
		id := uuid.UUID(leadID.Bytes)
		p.LeadID = &id
	}
	if phone.Valid {
		p.Phone = &phone.String
	}
	if address.Valid {
		p.Address = &address.String
	}
	if lat.Valid {
		p.Latitude = &lat.Float64
	}
	if lng.Valid {
		p.Longitude = &lng.Float64
	}
	if tier.Valid {
		p.PlanTier = PlanTier(tier.String)
	}
	if status.Valid {
		p.Status = Status(status.String)
	}
	if workStatus.Valid {
		p.WorkStatus = WorkStatus(workStatus.String)
	}
	if rejectionReason.Valid {
		p.RejectionReason = &rejectionReason.String
	}
	if deadline.Valid {
		p.ConversionDeadline = deadline.Time
	}
	if createdAt.Valid {
		p.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		p.UpdatedAt = updatedAt.Time
	}
	return &p, nil
}
