package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solarlink-crm/solarlink/internal/access"
	"github.com/solarlink-crm/solarlink/internal/shared"
)

// Repository provides user persistence.
type Repository interface {
	Get(ctx context.Context, id int64) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, user User) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	UpdateRole(ctx context.Context, id int64, role access.Role) error
	UpdateProfile(ctx context.Context, id int64, bankAccount, bankIFSC, identityRef *string) error
	List(ctx context.Context, status *Status) ([]User, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a pgx-backed user repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const userColumns = `id, email, name, password_hash, role, status, profile_complete,
bank_account, bank_ifsc, identity_ref, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
	return scanUser(row)
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
	return scanUser(row)
}

func (r *repository) Create(ctx context.Context, user User) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO users (email, name, password_hash, role, status, profile_complete, bank_account, bank_ifsc, identity_ref)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		user.Email, user.Name, user.PasswordHash, string(user.Role), string(user.Status), user.ProfileComplete,
		user.BankAccount, user.BankIFSC, user.IdentityRef).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("users: create: %w", err)
	}
	return id, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET status=$2, updated_at=NOW() WHERE id=$1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) UpdateRole(ctx context.Context, id int64, role access.Role) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET role=$2, updated_at=NOW() WHERE id=$1`, id, string(role))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) UpdateProfile(ctx context.Context, id int64, bankAccount, bankIFSC, identityRef *string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET bank_account=COALESCE($2, bank_account),
bank_ifsc=COALESCE($3, bank_ifsc), identity_ref=COALESCE($4, identity_ref),
profile_complete=TRUE, updated_at=NOW() WHERE id=$1`, id, bankAccount, bankIFSC, identityRef)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) List(ctx context.Context, status *Status) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	var args []interface{}
	if status != nil {
		query += ` WHERE status=$1`
		args = append(args, string(*status))
	}
	query += ` ORDER BY name`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []User
	for rows.Next() {
		u, err := scanUserRows(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *u)
	}
	return list, rows.Err()
}

func scanUser(row pgx.Row) (*User, error) {
	u, err := scanFrom(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func scanUserRows(rows pgx.Rows) (*User, error) {
	return scanFrom(rows.Scan)
}

func scanFrom(scan func(...any) error) (*User, error) {
	var u User
	var role, status string
	var bankAccount, bankIFSC, identityRef pgtype.Text
	var createdAt, updatedAt pgtype.Timestamptz
	err := scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role, &status, &u.ProfileComplete,
		&bankAccount, &bankIFSC, &identityRef, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	canonical, err := access.ParseRole(role)
	if err != nil {
		return nil, err
	}
	u.Role = canonical
	u.Status = Status(status)
	if bankAccount.Valid {
		u.BankAccount = &bankAccount.String
	}
	if bankIFSC.Valid {
		u.BankIFSC = &bankIFSC.String
	}
	if identityRef.Valid {
		u.IdentityRef = &identityRef.String
	}
	if createdAt.Valid {
		u.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		u.UpdatedAt = updatedAt.Time
	}
	return &u, nil
}
