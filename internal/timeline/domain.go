package timeline

import (
	"time"

	"github.com/google/uuid"
)

// Action codes drawn from the fixed timeline vocabulary.
const (
	ActionCreated          = "CREATED"
	ActionForwarded        = "FORWARDED"
	ActionApproved         = "APPROVED"
	ActionRejected         = "REJECTED"
	ActionTransferred      = "TRANSFERRED"
	ActionWorkStatusUpdate = "WORK_STATUS_UPDATE"
	ActionPaymentRecorded  = "PAYMENT_RECORDED"
	ActionPaymentVerified  = "PAYMENT_VERIFIED"
	ActionTaskCompleted    = "TASK_COMPLETED"
	ActionAutoLocked       = "AUTO_LOCKED"
	ActionAdminOverride    = "ADMIN_OVERRIDE"
)

// SystemActor attributes entries written by the deadline monitor rather than a
// human user.
const SystemActor = "system"

// Entry is one row of a project's audit trail. Entries are append-only: no
// update or delete path exists anywhere in the codebase, and insertion order
// is chronological order.
type Entry struct {
	ID        int64     `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	Action    string    `json:"action"`
	Remarks   string    `json:"remarks"`
	ActorName string    `json:"actor_name"`
	At        time.Time `json:"at"`
}
