package projects

import (
	"time"

	"github.com/google/uuid"
)

// Status is the single authoritative lifecycle state of a project. No derived
// or cached status may disagree with it.
type Status string

const (
	StatusDraft            Status = "DRAFT"
	StatusPendingApproval  Status = "PENDING_APPROVAL"
	StatusApproved         Status = "APPROVED"
	StatusRejected         Status = "REJECTED"
	StatusTransferredToOps Status = "TRANSFERRED_TO_OPS"
	StatusCompleted        Status = "COMPLETED"
	StatusLocked           Status = "LOCKED"
)

// transitions lists the reachable targets per status under normal flow.
// REJECTED → PENDING_APPROVAL is the correction loop: the creating sales user
// may re-forward after fixing the draft. LOCKED and COMPLETED leave only the
// admin override path, which is handled separately and always logged.
var transitions = map[Status]map[Status]bool{
	StatusDraft:            {StatusPendingApproval: true, StatusLocked: true},
	StatusPendingApproval:  {StatusApproved: true, StatusRejected: true},
	StatusApproved:         {StatusTransferredToOps: true},
	StatusRejected:         {StatusPendingApproval: true},
	StatusTransferredToOps: {StatusCompleted: true},
	StatusCompleted:        {},
	StatusLocked:           {},
}

// CanTransition reports whether target is reachable from s under normal flow.
func (s Status) CanTransition(target Status) bool {
	next, ok := transitions[s]
	if !ok {
		return false
	}
	return next[target]
}

// Valid reports whether the status belongs to the defined set.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// WorkStatus tracks field execution independently of the approval lifecycle.
// It is active only once the project has been transferred to ops.
type WorkStatus string

const (
	WorkStatusNone       WorkStatus = ""
	WorkStatusAssigned   WorkStatus = "ASSIGNED"
	WorkStatusAccepted   WorkStatus = "ACCEPTED"
	WorkStatusInProgress WorkStatus = "IN_PROGRESS"
	WorkStatusWorking    WorkStatus = "WORKING"
	WorkStatusCompleted  WorkStatus = "COMPLETED"
)

var workOrder = map[WorkStatus]int{
	WorkStatusAssigned:   1,
	WorkStatusAccepted:   2,
	WorkStatusInProgress: 3,
	WorkStatusWorking:    4,
	WorkStatusCompleted:  5,
}

// Valid reports whether the work status belongs to the defined set.
func (s WorkStatus) Valid() bool {
	_, ok := workOrder[s]
	return ok
}

// CanAdvance reports whether the field crew may move from s to target. Work
// only moves forward; stages may be skipped but never revisited.
func (s WorkStatus) CanAdvance(target WorkStatus) bool {
	from, ok := workOrder[s]
	if !ok {
		return false
	}
	to, ok := workOrder[target]
	if !ok {
		return false
	}
	return to > from
}

// ExecutionStage is a coarser reporting view derived from WorkStatus. It is
// computed at read time, never persisted, so it cannot diverge.
type ExecutionStage string

const (
	StagePlanning  ExecutionStage = "PLANNING"
	StageExecution ExecutionStage = "EXECUTION"
	StageCompleted ExecutionStage = "COMPLETED"
)

// Stage projects the execution stage from a work status.
func Stage(ws WorkStatus) ExecutionStage {
	switch ws {
	case WorkStatusInProgress, WorkStatusWorking:
		return StageExecution
	case WorkStatusCompleted:
		return StageCompleted
	default:
		return StagePlanning
	}
}

// PlanTier maps to a fixed per-KW rate.
type PlanTier string

const (
	TierSilver   PlanTier = "SILVER"
	TierGold     PlanTier = "GOLD"
	TierPlatinum PlanTier = "PLATINUM"
)

var tierRates = map[PlanTier]float64{
	TierSilver:   3500,
	TierGold:     4000,
	TierPlatinum: 5500,
}

// Rate returns the per-KW rate for the tier, zero for unknown tiers.
func (t PlanTier) Rate() float64 {
	return tierRates[t]
}

// Valid reports whether the tier is known.
func (t PlanTier) Valid() bool {
	_, ok := tierRates[t]
	return ok
}

// FinalPrice computes capacity × tier rate − discount.
func FinalPrice(capacityKW float64, tier PlanTier, discount float64) float64 {
	return capacityKW*tier.Rate() - discount
}

// OpsPending is the sentinel ops assignee before transfer.
const OpsPending = "PENDING"

// Project represents a converted, billable engagement.
type Project struct {
	ID            uuid.UUID  `json:"id"`
	LeadID        *uuid.UUID `json:"lead_id,omitempty"`
	CustomerName  string     `json:"customer_name"`
	Phone         *string    `json:"phone,omitempty"`
	Address       *string    `json:"address,omitempty"`
	Latitude      *float64   `json:"latitude,omitempty"`
	Longitude     *float64   `json:"longitude,omitempty"`
	CapacityKW    float64    `json:"capacity_kw"`
	PlanTier      PlanTier   `json:"plan_tier"`
	Discount      float64    `json:"discount"`
	FinalPrice    float64    `json:"final_price"`
	BillingAmount float64    `json:"billing_amount"`

	CreatedBy int64  `json:"created_by"`
	SalesID   int64  `json:"sales_id"`
	OpsID     string `json:"ops_id"`

	Status          Status     `json:"status"`
	WorkStatus      WorkStatus `json:"work_status,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`

	ConversionDeadline time.Time `json:"conversion_deadline"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ExecutionStage projects the reporting stage; empty before ops transfer.
func (p *Project) ExecutionStage() ExecutionStage {
	if p.WorkStatus == WorkStatusNone {
		return ""
	}
	return Stage(p.WorkStatus)
}

// DeadlineRemaining returns the countdown to auto-lock, floored at zero. The
// displayed countdown can hit zero before the next sweep persists the LOCKED
// state; that window is accepted eventual consistency.
func (p *Project) DeadlineRemaining(now time.Time) time.Duration {
	if remaining := p.ConversionDeadline.Sub(now); remaining > 0 {
		return remaining
	}
	return 0
}

// DeadlineExpired reports whether the draft window has elapsed.
func (p *Project) DeadlineExpired(now time.Time) bool {
	return !now.Before(p.ConversionDeadline)
}
