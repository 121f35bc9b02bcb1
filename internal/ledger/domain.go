package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/solarlink-crm/solarlink/internal/shared"
)

// Mode is the payment instrument.
type Mode string

const (
	ModeUPI      Mode = "UPI"
	ModeCash     Mode = "CASH"
	ModeTransfer Mode = "TRANSFER"
	ModeCheque   Mode = "CHEQUE"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeUPI, ModeCash, ModeTransfer, ModeCheque:
		return true
	}
	return false
}

// ParseMode canonicalizes a payment mode. The legacy books spelled bank
// transfers BANK_TRANSFER; that spelling is still accepted on ingest.
func ParseMode(value string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.TrimSpace(value)))
	if m == "BANK_TRANSFER" {
		m = ModeTransfer
	}
	if !m.Valid() {
		return "", fmt.Errorf("%w: unknown payment mode %q", shared.ErrValidation, value)
	}
	return m, nil
}

// Status is the verification state of a payment record. Once a payment leaves
// PENDING it is immutable.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusVerified Status = "VERIFIED"
	StatusRejected Status = "REJECTED"
	// StatusPaid marks records imported from the legacy books that were
	// settled before the verification flow existed.
	StatusPaid Status = "PAID"
)

// Clearance tracks cheque settlement separately from verification.
type Clearance string

const (
	ClearanceNone    Clearance = ""
	ClearancePending Clearance = "PENDING"
	ClearanceCleared Clearance = "CLEARED"
	ClearanceBounced Clearance = "BOUNCED"
)

// Payment is one ledger entry against a project. Records are append-only;
// verification decisions change status exactly once.
type Payment struct {
	ID             int64      `json:"id"`
	ProjectID      uuid.UUID  `json:"project_id"`
	Amount         float64    `json:"amount"`
	Mode           Mode       `json:"mode"`
	Reference      *string    `json:"reference,omitempty"`
	BankName       *string    `json:"bank_name,omitempty"`
	ChequeDate     *time.Time `json:"cheque_date,omitempty"`
	ProofRef       string     `json:"proof_ref"`
	Status         Status     `json:"status"`
	Clearance      Clearance  `json:"clearance_status,omitempty"`
	RecordedBy     int64      `json:"recorded_by"`
	RecordedByName string     `json:"recorded_by_name"`
	VerifiedBy     *int64     `json:"verified_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Decided reports whether the verification decision has been made. Decided
// payments are immutable.
func (p *Payment) Decided() bool {
	return p.Status != StatusPending
}

// Confirmed reports whether the amount counts toward the settlement total.
// Cheques additionally need clearance; a bounced cheque drops out of the total
// while the record stays for audit.
func (p *Payment) Confirmed() bool {
	if p.Status != StatusVerified && p.Status != StatusPaid {
		return false
	}
	if p.Mode == ModeCheque {
		return p.Clearance == ClearanceCleared
	}
	return true
}

// Settlement is the financial summary for a project. Totals are never clamped
// here; only the displayed percentage is bounded.
type Settlement struct {
	ProjectID   uuid.UUID `json:"project_id"`
	FinalPrice  float64   `json:"final_price"`
	Total       float64   `json:"settlement_total"`
	Outstanding float64   `json:"outstanding"`
	PercentPaid float64   `json:"percent_paid"`
}

// NewSettlement computes totals from the project price and confirmed sum.
// Outstanding keeps the raw delta (negative means overpayment); PercentPaid is
// the display value, clamped to [0,100].
func NewSettlement(projectID uuid.UUID, finalPrice, confirmed float64) Settlement {
	s := Settlement{
		ProjectID:   projectID,
		FinalPrice:  finalPrice,
		Total:       confirmed,
		Outstanding: finalPrice - confirmed,
	}
	if finalPrice > 0 {
		s.PercentPaid = confirmed / finalPrice * 100
	}
	if s.PercentPaid > 100 {
		s.PercentPaid = 100
	}
	if s.PercentPaid < 0 {
		s.PercentPaid = 0
	}
	return s
}
