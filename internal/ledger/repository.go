package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solarlink-crm/solarlink/internal/platform/db"
	"github.com/solarlink-crm/solarlink/internal/shared"
	"github.com/solarlink-crm/solarlink/internal/timeline"
)

// Repository provides payment persistence. Decide mirrors the project status
// compare-and-set: the WHERE clause pins status=PENDING, so a decided payment
// can never be re-decided and racing reviewers produce exactly one decision.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Insert(ctx context.Context, p *Payment) error
	Get(ctx context.Context, id int64) (*Payment, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]Payment, error)
	Decide(ctx context.Context, id int64, status Status, clearance Clearance, verifiedBy int64) error
	ConfirmedTotal(ctx context.Context, projectID uuid.UUID) (float64, error)
	AppendTimeline(ctx context.Context, e timeline.Entry) error
}

type repository struct {
	db   timeline.Dbtx
	pool *pgxpool.Pool
}

// NewRepository returns a pgx-backed payment repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const paymentColumns = `id, project_id, amount, mode, reference, bank_name, cheque_date,
proof_ref, status, clearance_status, recorded_by, recorded_by_name, verified_by,
created_at, updated_at`

func (r *repository) Insert(ctx context.Context, p *Payment) error {
	row := r.db.QueryRow(ctx, `INSERT INTO payments (project_id, amount, mode, reference, bank_name, cheque_date,
proof_ref, status, clearance_status, recorded_by, recorded_by_name)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id, created_at, updated_at`,
		p.ProjectID, p.Amount, string(p.Mode), p.Reference, p.BankName, p.ChequeDate,
		p.ProofRef, string(p.Status), string(p.Clearance), p.RecordedBy, p.RecordedByName)
	if err := row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("payments: insert: %w", err)
	}
	return nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Payment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=$1`, id)
	p, err := scanPayment(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: payment %d", shared.ErrNotFound, id)
		}
		return nil, fmt.Errorf("payments: get: %w", err)
	}
	return p, nil
}

func (r *repository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]Payment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+paymentColumns+` FROM payments
WHERE project_id=$1 ORDER BY created_at ASC, id ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("payments: list: %w", err)
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("payments: scan: %w", err)
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func (r *repository) Decide(ctx context.Context, id int64, status Status, clearance Clearance, verifiedBy int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE payments
SET status=$1, clearance_status=$2, verified_by=$3, updated_at=NOW()
WHERE id=$4 AND status=$5`,
		string(status), string(clearance), verifiedBy, id, string(StatusPending))
	if err != nil {
		return fmt.Errorf("payments: decide: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: payment already decided", shared.ErrInvalidTransition)
	}
	return nil
}

func (r *repository) ConfirmedTotal(ctx context.Context, projectID uuid.UUID) (float64, error) {
	var total float64
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM payments
WHERE project_id=$1
  AND status IN ($2, $3)
  AND (mode <> $4 OR clearance_status = $5)`,
		projectID, string(StatusVerified), string(StatusPaid), string(ModeCheque), string(ClearanceCleared)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("payments: confirmed total: %w", err)
	}
	return total, nil
}

func (r *repository) AppendTimeline(ctx context.Context, e timeline.Entry) error {
	return timeline.AppendTx(ctx, r.db, e)
}

func scanPayment(scan func(dest ...any) error) (*Payment, error) {
	var (
		p                 Payment
		mode, status, clr string
	)
	if err := scan(&p.ID, &p.ProjectID, &p.Amount, &mode, &p.Reference, &p.BankName, &p.ChequeDate,
		&p.ProofRef, &status, &clr, &p.RecordedBy, &p.RecordedByName, &p.VerifiedBy,
		&p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Mode = Mode(mode)
	p.Status = Status(status)
	p.Clearance = Clearance(clr)
	return &p, nil
}
