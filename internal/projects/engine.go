package projects

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/solarlink-crm/solarlink/internal/access"
	"github.com/solarlink-crm/solarlink/internal/notify"
	"github.com/solarlink-crm/solarlink/internal/shared"
	"github.com/solarlink-crm/solarlink/internal/timeline"
)

// TransitionObserver counts committed lifecycle transitions, keyed by the
// timeline action.
type TransitionObserver interface {
	ObserveTransition(action string)
}

// OpsDirectory resolves a user ID to an account so the engine can vet an
// ops assignee before transfer. The users service satisfies this.
type OpsDirectory interface {
	ResolveActor(ctx context.Context, userID string) (access.Actor, error)
}

// Engine is the single authority for project status transitions. Every
// mutation runs the same path: reachability check, access policy check, atomic
// field mutation plus timeline append in one transaction, then event publish.
type Engine struct {
	logger      *slog.Logger
	repo        Repository
	bus         *notify.Bus
	observer    TransitionObserver
	directory   OpsDirectory
	draftWindow time.Duration
	now         func() time.Time
}

// NewEngine constructs the lifecycle engine. draftWindow is the time a project
// may remain in DRAFT before auto-lock (72h in production).
func NewEngine(logger *slog.Logger, repo Repository, bus *notify.Bus, draftWindow time.Duration) *Engine {
	if draftWindow <= 0 {
		draftWindow = 72 * time.Hour
	}
	return &Engine{
		logger:      logger,
		repo:        repo,
		bus:         bus,
		draftWindow: draftWindow,
		now:         time.Now,
	}
}

// SetObserver wires the transition metrics counter.
func (e *Engine) SetObserver(obs TransitionObserver) {
	e.observer = obs
}

// SetOpsDirectory wires the directory used to vet ops assignees. Without one
// the engine only checks the ID is non-empty.
func (e *Engine) SetOpsDirectory(dir OpsDirectory) {
	e.directory = dir
}

// Create registers a new project in DRAFT, arming the conversion deadline.
func (e *Engine) Create(ctx context.Context, req CreateProjectRequest, actor access.Actor) (*Project, error) {
	if !access.CanPerform(actor.Role, access.ActionCreateProject) {
		return nil, fmt.Errorf("%w: role %s cannot create projects", shared.ErrUnauthorized, actor.Role)
	}
	if req.CapacityKW <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive", shared.ErrValidation)
	}
	if !req.PlanTier.Valid() {
		return nil, fmt.Errorf("%w: unknown plan tier %q", shared.ErrValidation, req.PlanTier)
	}
	if req.Discount < 0 {
		return nil, fmt.Errorf("%w: discount cannot be negative", shared.ErrValidation)
	}
	finalPrice := FinalPrice(req.CapacityKW, req.PlanTier, req.Discount)
	if finalPrice < 0 {
		return nil, fmt.Errorf("%w: discount exceeds plan value", shared.ErrValidation)
	}

	now := e.now().UTC()
	p := Project{
		ID:                 uuid.New(),
		LeadID:             req.LeadID,
		CustomerName:       strings.TrimSpace(req.CustomerName),
		Phone:              req.Phone,
		Address:            req.Address,
		Latitude:           req.Latitude,
		Longitude:          req.Longitude,
		CapacityKW:         req.CapacityKW,
		PlanTier:           req.PlanTier,
		Discount:           req.Discount,
		FinalPrice:         finalPrice,
		BillingAmount:      finalPrice,
		CreatedBy:          actor.ID,
		SalesID:            actor.ID,
		OpsID:              OpsPending,
		Status:             StatusDraft,
		ConversionDeadline: now.Add(e.draftWindow),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if p.CustomerName == "" {
		return nil, fmt.Errorf("%w: customer name required", shared.ErrValidation)
	}
	if req.BillingAmount != nil {
		p.BillingAmount = *req.BillingAmount
	}

	err := e.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.Create(ctx, p); err != nil {
			return err
		}
		return repo.AppendTimeline(ctx, timeline.Entry{
			ProjectID: p.ID,
			Action:    timeline.ActionCreated,
			Remarks:   fmt.Sprintf("project created, %s plan, %.1f KW", p.PlanTier, p.CapacityKW),
			ActorName: actor.DisplayName,
			At:        now,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	e.committed(p.ID, timeline.ActionCreated, actor.DisplayName, "project created")
	return e.repo.Get(ctx, p.ID)
}

// Forward moves a draft (or corrected rejected project) to PENDING_APPROVAL.
// Only the creating sales user may forward.
func (e *Engine) Forward(ctx context.Context, id uuid.UUID, actor access.Actor) (*Project, error) {
	p, err := e.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Status.CanTransition(StatusPendingApproval) {
		return nil, fmt.Errorf("%w: cannot forward from %s", shared.ErrInvalidTransition, p.Status)
	}
	if p.Status == StatusDraft && p.DeadlineExpired(e.now()) {
		// The draft window already elapsed; lock instead of forwarding. The
		// caller sees the same conflict the next sweep would have produced.
		if err := e.lockOne(ctx, p); err != nil {
			e.logger.Warn("lock expired draft on forward", slog.Any("error", err))
		}
		return nil, fmt.Errorf("%w: draft window elapsed", shared.ErrInvalidTransition)
	}
	if !access.CanPerform(actor.Role, access.ActionForwardProject) {
		return nil, fmt.Errorf("%w: role %s cannot forward projects", shared.ErrUnauthorized, actor.Role)
	}
	if p.CreatedBy != actor.ID {
		return nil, fmt.Errorf("%w: only the creating sales user may forward", shared.ErrUnauthorized)
	}

	updates := map[string]interface{}{"status": string(StatusPendingApproval)}
	if p.Status == StatusRejected {
		updates["rejection_reason"] = nil
	}
	return e.transition(ctx, p, updates, timeline.Entry{
		ProjectID: p.ID,
		Action:    timeline.ActionForwarded,
		Remarks:   "forwarded for approval",
		ActorName: actor.DisplayName,
	})
}

// Approve accepts a pending project.
func (e *Engine) Approve(ctx context.Context, id uuid.UUID, actor access.Actor, note string) (*Project, error) {
	p, err := e.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Status.CanTransition(StatusApproved) {
		return nil, fmt.Errorf("%w: cannot approve from %s", shared.ErrInvalidTransition, p.Status)
	}
	if !access.CanPerform(actor.Role, access.ActionApproveProject) {
		return nil, fmt.Errorf("%w: role %s cannot approve projects", shared.ErrUnauthorized, actor.Role)
	}

	remarks := "approved"
	if note = strings.TrimSpace(note); note != "" {
		remarks = "approved: " + note
	}
	return e.transition(ctx, p, map[string]interface{}{"status": string(StatusApproved)}, timeline.Entry{
		ProjectID: p.ID,
		Action:    timeline.ActionApproved,
		Remarks:   remarks,
		ActorName: actor.DisplayName,
	})
}

// Reject declines a pending project. The reason is mandatory; the UI blocks
// empty submissions but the engine rejects them too.
func (e *Engine) Reject(ctx context.Context, id uuid.UUID, actor access.Actor, reason string) (*Project, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: rejection reason required", shared.ErrValidation)
	}
	p, err := e.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Status.CanTransition(StatusRejected) {
		return nil, fmt.Errorf("%w: cannot reject from %s", shared.ErrInvalidTransition, p.Status)
	}
	if !access.CanPerform(actor.Role, access.ActionRejectProject) {
		return nil, fmt.Errorf("%w: role %s cannot reject projects", shared.ErrUnauthorized, actor.Role)
	}

	return e.transition(ctx, p, map[string]interface{}{
		"status":           string(StatusRejected),
		"rejection_reason": reason,
	}, timeline.Entry{
		ProjectID: p.ID,
		Action:    timeline.ActionRejected,
		Remarks:   reason,
		ActorName: actor.DisplayName,
	})
}

// AssignOps hands an approved project to a field ops user and opens the work
// status track at ASSIGNED.
func (e *Engine) AssignOps(ctx context.Context, id uuid.UUID, actor access.Actor, opsUserID string) (*Project, error) {
	opsUserID = strings.TrimSpace(opsUserID)
	if opsUserID == "" || opsUserID == OpsPending {
		return nil, fmt.Errorf("%w: ops user required", shared.ErrValidation)
	}
	p, err := e.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Status.CanTransition(StatusTransferredToOps) {
		return nil, fmt.Errorf("%w: cannot transfer from %s", shared.ErrInvalidTransition, p.Status)
	}
	if !access.CanPerform(actor.Role, access.ActionAssignOps) {
		return nil, fmt.Errorf("%w: role %s cannot assign ops", shared.ErrUnauthorized, actor.Role)
	}
	if e.directory != nil {
		assignee, err := e.directory.ResolveActor(ctx, opsUserID)
		if err != nil {
			return nil, fmt.Errorf("%w: ops user %s not found", shared.ErrValidation, opsUserID)
		}
		if assignee.Role != access.RoleOpsUser {
			return nil, fmt.Errorf("%w: user %s is not an ops user", shared.ErrValidation, opsUserID)
		}
		if !assignee.Approved {
			return nil, fmt.Errorf("%w: ops user %s is awaiting approval", shared.ErrValidation, opsUserID)
		}
	}

	return e.transition(ctx, p, map[string]interface{}{
		"status":      string(StatusTransferredToOps),
		"ops_id":      opsUserID,
		"work_status": string(WorkStatusAssigned),
	}, timeline.Entry{
		ProjectID: p.ID,
		Action:    timeline.ActionTransferred,
		Remarks:   "transferred to ops user " + opsUserID,
		ActorName: actor.DisplayName,
	})
}

// UpdateWorkStatus advances field execution. Only the assigned ops user (or an
// admin override) may advance; reaching COMPLETED completes the project.
func (e *Engine) UpdateWorkStatus(ctx context.Context, id uuid.UUID, actor access.Actor, target WorkStatus) (*Project, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: unknown work status %q", shared.ErrValidation, target)
	}
	p, err := e.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusTransferredToOps {
		return nil, fmt.Errorf("%w: work status is active only after ops transfer", shared.ErrInvalidTransition)
	}
	if !p.WorkStatus.CanAdvance(target) {
		return nil, fmt.Errorf("%w: cannot move work status %s to %s", shared.ErrInvalidTransition, p.WorkStatus, target)
	}
	if !access.CanPerform(actor.Role, access.ActionUpdateWorkStatus) {
		return nil, fmt.Errorf("%w: role %s cannot update work status", shared.ErrUnauthorized, actor.Role)
	}
	if actor.Role != access.RoleAdmin && p.OpsID != strconv.FormatInt(actor.ID, 10) {
		return nil, fmt.Errorf("%w: only the assigned ops user may update work status", shared.ErrUnauthorized)
	}

	updates := map[string]interface{}{"work_status": string(target)}
	entries := []timeline.Entry{{
		ProjectID: p.ID,
		Action:    timeline.ActionWorkStatusUpdate,
		Remarks:   fmt.Sprintf("work status %s to %s", p.WorkStatus, target),
		ActorName: actor.DisplayName,
	}}
	if target == WorkStatusCompleted {
		updates["status"] = string(StatusCompleted)
		entries = append(entries, timeline.Entry{
			ProjectID: p.ID,
			Action:    timeline.ActionTaskCompleted,
			Remarks:   "field work completed",
			ActorName: actor.DisplayName,
		})
	}
	return e.transition(ctx, p, updates, entries...)
}

// AdminOverride is the destructive path: force COMPLETED, or reset to DRAFT
// re-arming a fresh conversion deadline. Always logged.
func (e *Engine) AdminOverride(ctx context.Context, id uuid.UUID, actor access.Actor, target Status, reason string) (*Project, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: override reason required", shared.ErrValidation)
	}
	if target != StatusDraft && target != StatusCompleted {
		return nil, fmt.Errorf("%w: override target must be DRAFT or COMPLETED", shared.ErrValidation)
	}
	if !access.CanPerform(actor.Role, access.ActionAdminOverride) {
		return nil, fmt.Errorf("%w: role %s cannot override", shared.ErrUnauthorized, actor.Role)
	}
	p, err := e.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status == target {
		return nil, fmt.Errorf("%w: project already %s", shared.ErrInvalidTransition, target)
	}

	updates := map[string]interface{}{"status": string(target)}
	if target == StatusDraft {
		updates["conversion_deadline"] = e.now().UTC().Add(e.draftWindow)
		updates["work_status"] = string(WorkStatusNone)
		updates["ops_id"] = OpsPending
		updates["rejection_reason"] = nil
	}
	return e.transition(ctx, p, updates, timeline.Entry{
		ProjectID: p.ID,
		Action:    timeline.ActionAdminOverride,
		Remarks:   fmt.Sprintf("forced to %s: %s", target, reason),
		ActorName: actor.DisplayName,
	})
}

// LockExpired sweeps DRAFT projects whose conversion window elapsed into
// LOCKED. It is idempotent: the compare-and-set from DRAFT means an already
// locked project is never double-locked and never gains duplicate entries.
// This is the internal non-role-checked path; access policy does not apply.
func (e *Engine) LockExpired(ctx context.Context, now time.Time) (int, error) {
	expired, err := e.repo.ListExpiredDrafts(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list expired drafts: %w", err)
	}
	locked := 0
	for i := range expired {
		if err := e.lockOne(ctx, &expired[i]); err != nil {
			// A concurrent sweep or forward already moved it; skip.
			e.logger.Debug("skip lock", slog.String("project", expired[i].ID.String()), slog.Any("error", err))
			continue
		}
		locked++
	}
	return locked, nil
}

func (e *Engine) lockOne(ctx context.Context, p *Project) error {
	err := e.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.Transition(ctx, p.ID, StatusDraft, map[string]interface{}{"status": string(StatusLocked)}); err != nil {
			return err
		}
		return repo.AppendTimeline(ctx, timeline.Entry{
			ProjectID: p.ID,
			Action:    timeline.ActionAutoLocked,
			Remarks:   "draft window elapsed, project locked",
			ActorName: timeline.SystemActor,
			At:        e.now().UTC(),
		})
	})
	if err != nil {
		return err
	}
	e.committed(p.ID, timeline.ActionAutoLocked, timeline.SystemActor, "auto locked")
	return nil
}

// Get loads one project within the caller's visibility scope. A sweep runs
// lazily first so an expired draft is observed as LOCKED.
func (e *Engine) Get(ctx context.Context, id uuid.UUID, actor access.Actor) (*Project, error) {
	if _, err := e.LockExpired(ctx, e.now()); err != nil {
		e.logger.Warn("deadline sweep before read", slog.Any("error", err))
	}
	p, err := e.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.visible(p, actor) {
		return nil, shared.ErrNotFound
	}
	return p, nil
}

// List returns projects scoped by role: sales users see what they created,
// ops users what they are assigned, managers and admins everything.
func (e *Engine) List(ctx context.Context, req ListProjectsRequest, actor access.Actor) ([]Project, int, error) {
	if _, err := e.LockExpired(ctx, e.now()); err != nil {
		e.logger.Warn("deadline sweep before read", slog.Any("error", err))
	}
	if req.Limit <= 0 {
		req.Limit = 50
	}
	var scope Scope
	switch actor.Role {
	case access.RoleSalesUser:
		scope.CreatedBy = &actor.ID
	case access.RoleOpsUser:
		opsID := strconv.FormatInt(actor.ID, 10)
		scope.OpsID = &opsID
	}
	return e.repo.List(ctx, req, scope)
}

// Now exposes the engine clock, used by handlers for deadline countdowns.
func (e *Engine) Now() time.Time {
	return e.now()
}

func (e *Engine) visible(p *Project, actor access.Actor) bool {
	switch actor.Role {
	case access.RoleSalesUser:
		return p.CreatedBy == actor.ID
	case access.RoleOpsUser:
		return p.OpsID == strconv.FormatInt(actor.ID, 10)
	default:
		return true
	}
}

// transition applies the CAS mutation and timeline entries in one transaction
// and returns the fresh snapshot. The CAS pins the status observed at load
// time, so a concurrent winner forces the loser into ErrInvalidTransition with
// nothing committed.
func (e *Engine) transition(ctx context.Context, p *Project, updates map[string]interface{}, entries ...timeline.Entry) (*Project, error) {
	now := e.now().UTC()
	err := e.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.Transition(ctx, p.ID, p.Status, updates); err != nil {
			return err
		}
		for _, entry := range entries {
			if entry.At.IsZero() {
				entry.At = now
			}
			if err := repo.AppendTimeline(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		e.committed(p.ID, entry.Action, entry.ActorName, entry.Remarks)
	}
	return e.repo.Get(ctx, p.ID)
}

func (e *Engine) committed(id uuid.UUID, action, actorName, remarks string) {
	if e.observer != nil {
		e.observer.ObserveTransition(action)
	}
	if e.bus != nil {
		e.bus.Publish(notify.Event{
			ProjectID: id,
			Action:    action,
			ActorName: actorName,
			Remarks:   remarks,
			At:        e.now().UTC(),
		})
	}
}
