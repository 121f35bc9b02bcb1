package leads

import (
	"time"

	"github.com/google/uuid"

	"github.com/solarlink-crm/solarlink/internal/projects"
)

// Status is the lead pipeline stage. CONVERTED is terminal: a converted lead
// is immutable and linked to exactly one project.
type Status string

const (
	StatusNew       Status = "NEW"
	StatusDraft     Status = "DRAFT"
	StatusApproved  Status = "APPROVED"
	StatusForwarded Status = "FORWARDED"
	StatusConverted Status = "CONVERTED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusDraft, StatusApproved, StatusForwarded, StatusConverted:
		return true
	}
	return false
}

// Priority ranks follow-up urgency.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Lead is a prospective, unconverted sales contact.
type Lead struct {
	ID             uuid.UUID         `json:"id"`
	OwnerID        int64             `json:"owner_id"`
	OwnerName      string            `json:"owner_name"`
	CustomerName   string            `json:"customer_name"`
	Phone          *string           `json:"phone,omitempty"`
	Address        *string           `json:"address,omitempty"`
	Latitude       *float64          `json:"latitude,omitempty"`
	Longitude      *float64          `json:"longitude,omitempty"`
	CapacityKW     float64           `json:"capacity_kw"`
	PlanTier       projects.PlanTier `json:"plan_tier"`
	PotentialValue float64           `json:"potential_value"`
	Priority       Priority          `json:"priority"`
	Source         *string           `json:"source,omitempty"`
	Notes          *string           `json:"notes,omitempty"`
	Status         Status            `json:"status"`
	ProjectID      *uuid.UUID        `json:"project_id,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// PotentialValue estimates the deal size from capacity and plan tier at list
// price, before any discount.
func PotentialValue(capacityKW float64, tier projects.PlanTier) float64 {
	return projects.FinalPrice(capacityKW, tier, 0)
}
