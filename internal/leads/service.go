package leads

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/solarlink-crm/solarlink/internal/access"
	"github.com/solarlink-crm/solarlink/internal/projects"
	"github.com/solarlink-crm/solarlink/internal/shared"
)

// CreateLeadRequest registers a new prospect.
type CreateLeadRequest struct {
	CustomerName string            `json:"customer_name" validate:"required,max=200"`
	Phone        *string           `json:"phone,omitempty" validate:"omitempty,max=20"`
	Address      *string           `json:"address,omitempty" validate:"omitempty,max=500"`
	Latitude     *float64          `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude    *float64          `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	CapacityKW   float64           `json:"capacity_kw" validate:"required,gt=0"`
	PlanTier     projects.PlanTier `json:"plan_tier" validate:"required,oneof=SILVER GOLD PLATINUM"`
	Priority     Priority          `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH"`
	Source       *string           `json:"source,omitempty" validate:"omitempty,max=100"`
	Notes        *string           `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// UpdateLeadRequest edits a prospect; same shape as creation plus a status move.
type UpdateLeadRequest struct {
	CreateLeadRequest
	Status *Status `json:"status,omitempty" validate:"omitempty,oneof=NEW DRAFT APPROVED FORWARDED"`
}

// ConvertLeadRequest turns a lead into a draft project. Discount and billing
// are settled at conversion time.
type ConvertLeadRequest struct {
	Discount      float64  `json:"discount" validate:"gte=0"`
	BillingAmount *float64 `json:"billing_amount,omitempty" validate:"omitempty,gt=0"`
}

// Service owns the lead pipeline up to conversion; after that the lifecycle
// engine takes over.
type Service struct {
	logger *slog.Logger
	repo   Repository
	engine *projects.Engine
}

// NewService constructs the leads service.
func NewService(logger *slog.Logger, repo Repository, engine *projects.Engine) *Service {
	return &Service{logger: logger, repo: repo, engine: engine}
}

// Create registers a lead owned by the acting sales user.
func (s *Service) Create(ctx context.Context, actor access.Actor, req CreateLeadRequest) (*Lead, error) {
	if !access.CanPerform(actor.Role, access.ActionCreateLead) {
		return nil, fmt.Errorf("%w: role %s cannot create leads", shared.ErrUnauthorized, actor.Role)
	}
	name := strings.TrimSpace(req.CustomerName)
	if name == "" {
		return nil, fmt.Errorf("%w: customer name required", shared.ErrValidation)
	}
	if req.CapacityKW <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive", shared.ErrValidation)
	}
	if !req.PlanTier.Valid() {
		return nil, fmt.Errorf("%w: unknown plan tier %q", shared.ErrValidation, req.PlanTier)
	}
	priority := req.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", shared.ErrValidation, priority)
	}

	l := Lead{
		ID:             uuid.New(),
		OwnerID:        actor.ID,
		OwnerName:      actor.DisplayName,
		CustomerName:   name,
		Phone:          req.Phone,
		Address:        req.Address,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		CapacityKW:     req.CapacityKW,
		PlanTier:       req.PlanTier,
		PotentialValue: PotentialValue(req.CapacityKW, req.PlanTier),
		Priority:       priority,
		Source:         req.Source,
		Notes:          req.Notes,
		Status:         StatusNew,
	}
	if err := s.repo.Create(ctx, l); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, l.ID)
}

// Update edits a lead. Only the owner or a manager-level role may mutate, and
// converted leads are immutable.
func (s *Service) Update(ctx context.Context, actor access.Actor, id uuid.UUID, req UpdateLeadRequest) (*Lead, error) {
	l, err := s.authorizeMutation(ctx, actor, id, access.ActionEditLead)
	if err != nil {
		return nil, err
	}
	if req.CapacityKW <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive", shared.ErrValidation)
	}
	if !req.PlanTier.Valid() {
		return nil, fmt.Errorf("%w: unknown plan tier %q", shared.ErrValidation, req.PlanTier)
	}

	l.CustomerName = strings.TrimSpace(req.CustomerName)
	l.Phone = req.Phone
	l.Address = req.Address
	l.Latitude = req.Latitude
	l.Longitude = req.Longitude
	l.CapacityKW = req.CapacityKW
	l.PlanTier = req.PlanTier
	l.PotentialValue = PotentialValue(req.CapacityKW, req.PlanTier)
	if req.Priority != "" {
		l.Priority = req.Priority
	}
	l.Source = req.Source
	l.Notes = req.Notes
	if err := s.repo.Update(ctx, *l); err != nil {
		return nil, err
	}
	if req.Status != nil && *req.Status != l.Status {
		if err := s.repo.UpdateStatus(ctx, l.ID, *req.Status); err != nil {
			return nil, err
		}
	}
	return s.repo.Get(ctx, l.ID)
}

// Convert turns a lead into a draft project through the lifecycle engine and
// terminally marks the lead CONVERTED. The conversion is one-shot: a racing
// second call loses on the status compare-and-set.
func (s *Service) Convert(ctx context.Context, actor access.Actor, id uuid.UUID, req ConvertLeadRequest) (*projects.Project, error) {
	l, err := s.authorizeMutation(ctx, actor, id, access.ActionConvertLead)
	if err != nil {
		return nil, err
	}

	leadID := l.ID
	p, err := s.engine.Create(ctx, projects.CreateProjectRequest{
		CustomerName:  l.CustomerName,
		Phone:         l.Phone,
		Address:       l.Address,
		Latitude:      l.Latitude,
		Longitude:     l.Longitude,
		CapacityKW:    l.CapacityKW,
		PlanTier:      l.PlanTier,
		Discount:      req.Discount,
		BillingAmount: req.BillingAmount,
		LeadID:        &leadID,
	}, actor)
	if err != nil {
		return nil, err
	}
	if err := s.repo.MarkConverted(ctx, l.ID, p.ID); err != nil {
		// The project exists but the lead lost a conversion race. Surface the
		// conflict; the dangling project is visible in the list for cleanup.
		s.logger.Error("mark lead converted", slog.String("lead", l.ID.String()),
			slog.String("project", p.ID.String()), slog.Any("error", err))
		return nil, err
	}
	return p, nil
}

// Get loads a lead within the caller's visibility: sales users see their own,
// managers and admins see all.
func (s *Service) Get(ctx context.Context, actor access.Actor, id uuid.UUID) (*Lead, error) {
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == access.RoleSalesUser && l.OwnerID != actor.ID {
		return nil, shared.ErrNotFound
	}
	return l, nil
}

// List pages leads scoped by role.
func (s *Service) List(ctx context.Context, actor access.Actor, limit, offset int) ([]Lead, int, error) {
	if limit <= 0 {
		limit = 50
	}
	var ownerID *int64
	if actor.Role == access.RoleSalesUser {
		ownerID = &actor.ID
	}
	return s.repo.List(ctx, ownerID, limit, offset)
}

func (s *Service) authorizeMutation(ctx context.Context, actor access.Actor, id uuid.UUID, action access.Action) (*Lead, error) {
	if !access.CanPerform(actor.Role, action) {
		return nil, fmt.Errorf("%w: role %s cannot modify leads", shared.ErrUnauthorized, actor.Role)
	}
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.Status == StatusConverted {
		return nil, fmt.Errorf("%w: converted leads are immutable", shared.ErrInvalidTransition)
	}
	if !actor.Role.IsManager() && actor.Role != access.RoleAdmin && l.OwnerID != actor.ID {
		return nil, fmt.Errorf("%w: only the owning sales user or a manager may modify this lead", shared.ErrUnauthorized)
	}
	return l, nil
}
