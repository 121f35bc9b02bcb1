package projects

import (
	"time"

	"github.com/google/uuid"

	"github.com/solarlink-crm/solarlink/internal/access"
)

// View is the API shape of a project. Commercial fields are pointers so they
// can be dropped entirely for roles without commercial visibility.
type View struct {
	ID                 uuid.UUID      `json:"id"`
	LeadID             *uuid.UUID     `json:"lead_id,omitempty"`
	CustomerName       string         `json:"customer_name"`
	Phone              *string        `json:"phone,omitempty"`
	Address            *string        `json:"address,omitempty"`
	Latitude           *float64       `json:"latitude,omitempty"`
	Longitude          *float64       `json:"longitude,omitempty"`
	CapacityKW         float64        `json:"capacity_kw"`
	PlanTier           PlanTier       `json:"plan_tier"`
	Discount           *float64       `json:"discount,omitempty"`
	FinalPrice         *float64       `json:"final_price,omitempty"`
	BillingAmount      *float64       `json:"billing_amount,omitempty"`
	Status             Status         `json:"status"`
	WorkStatus         WorkStatus     `json:"work_status,omitempty"`
	ExecutionStage     ExecutionStage `json:"execution_stage,omitempty"`
	OpsID              string         `json:"ops_id"`
	RejectionReason    *string        `json:"rejection_reason,omitempty"`
	CreatedBy          int64          `json:"created_by"`
	ConversionDeadline *time.Time     `json:"conversion_deadline,omitempty"`
	DeadlineSeconds    *int64         `json:"deadline_seconds,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// NewView builds the role-appropriate projection. Ops users never receive
// pricing; the fields are absent from the payload, not zeroed.
func NewView(p *Project, actor access.Actor, now time.Time) View {
	v := View{
		ID:             p.ID,
		LeadID:         p.LeadID,
		CustomerName:   p.CustomerName,
		Phone:          p.Phone,
		Address:        p.Address,
		Latitude:       p.Latitude,
		Longitude:      p.Longitude,
		CapacityKW:     p.CapacityKW,
		PlanTier:       p.PlanTier,
		Status:         p.Status,
		WorkStatus:     p.WorkStatus,
		ExecutionStage: p.ExecutionStage(),
		OpsID:          p.OpsID,
		CreatedBy:      p.CreatedBy,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	if p.RejectionReason != nil {
		v.RejectionReason = p.RejectionReason
	}
	if p.Status == StatusDraft {
		deadline := p.ConversionDeadline
		v.ConversionDeadline = &deadline
		secs := int64(p.DeadlineRemaining(now).Seconds())
		v.DeadlineSeconds = &secs
	}
	if access.CanPerform(actor.Role, access.ActionViewCommercials) {
		discount, finalPrice, billing := p.Discount, p.FinalPrice, p.BillingAmount
		v.Discount = &discount
		v.FinalPrice = &finalPrice
		v.BillingAmount = &billing
	}
	return v
}

// NewViews maps a page of projects.
func NewViews(ps []Project, actor access.Actor, now time.Time) []View {
	views := make([]View, 0, len(ps))
	for i := range ps {
		views = append(views, NewView(&ps[i], actor, now))
	}
	return views
}
