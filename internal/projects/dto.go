package projects

import (
	"github.com/google/uuid"
)

// CreateProjectRequest creates a project directly, without a lead.
type CreateProjectRequest struct {
	CustomerName  string   `json:"customer_name" validate:"required,max=200"`
	Phone         *string  `json:"phone,omitempty" validate:"omitempty,max=20"`
	Address       *string  `json:"address,omitempty" validate:"omitempty,max=500"`
	Latitude      *float64 `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude     *float64 `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	CapacityKW    float64  `json:"capacity_kw" validate:"required,gt=0"`
	PlanTier      PlanTier `json:"plan_tier" validate:"required,oneof=SILVER GOLD PLATINUM"`
	Discount      float64  `json:"discount" validate:"gte=0"`
	BillingAmount *float64 `json:"billing_amount,omitempty" validate:"omitempty,gt=0"`

	// LeadID links the project created through lead conversion.
	LeadID *uuid.UUID `json:"lead_id,omitempty"`
}

// ApproveRequest carries the optional approval note.
type ApproveRequest struct {
	Note string `json:"note,omitempty" validate:"omitempty,max=500"`
}

// RejectRequest carries the mandatory rejection reason.
type RejectRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// AssignOpsRequest transfers an approved project to a field ops user.
type AssignOpsRequest struct {
	OpsUserID string `json:"ops_user_id" validate:"required,max=50"`
}

// WorkStatusRequest advances the field execution status.
type WorkStatusRequest struct {
	Status WorkStatus `json:"status" validate:"required,oneof=ASSIGNED ACCEPTED IN_PROGRESS WORKING COMPLETED"`
}

// OverrideRequest is the destructive admin path: force COMPLETED, or reset to
// DRAFT re-arming a fresh conversion deadline.
type OverrideRequest struct {
	TargetStatus Status `json:"target_status" validate:"required,oneof=DRAFT COMPLETED"`
	Reason       string `json:"reason" validate:"required,min=3,max=500"`
}

// ListProjectsRequest filters the project list. Role scoping (own projects for
// sales users, assigned projects for ops users) is applied by the engine on
// top of these filters.
type ListProjectsRequest struct {
	Status *Status `json:"status,omitempty"`
	Search *string `json:"search,omitempty"`
	Limit  int     `json:"limit" validate:"gte=0,lte=1000"`
	Offset int     `json:"offset" validate:"gte=0"`
}
