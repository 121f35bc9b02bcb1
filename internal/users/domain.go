package users

import (
	"time"

	"github.com/solarlink-crm/solarlink/internal/access"
)

// Status gates what an account may do before an admin has reviewed it.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusBlocked  Status = "BLOCKED"
)

// User represents a staff account.
type User struct {
	ID              int64       `json:"id"`
	Email           string      `json:"email"`
	Name            string      `json:"name"`
	PasswordHash    string      `json:"-"`
	Role            access.Role `json:"role"`
	Status          Status      `json:"status"`
	ProfileComplete bool        `json:"profile_complete"`
	BankAccount     *string     `json:"bank_account,omitempty"`
	BankIFSC        *string     `json:"bank_ifsc,omitempty"`
	IdentityRef     *string     `json:"identity_ref,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// CanMutateLifecycle reports whether the account cleared the approval gate. A
// PENDING user may authenticate but is blocked from all lifecycle-mutating
// operations except profile completion; head roles bypass the gate.
func (u User) CanMutateLifecycle() bool {
	if u.Status == StatusBlocked {
		return false
	}
	return u.Status == StatusApproved || u.Role.IsHead()
}
