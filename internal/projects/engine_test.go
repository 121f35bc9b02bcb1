package projects

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarlink-crm/solarlink/internal/access"
	"github.com/solarlink-crm/solarlink/internal/shared"
	"github.com/solarlink-crm/solarlink/internal/timeline"
)

type mockRepository struct {
	mu       sync.Mutex
	projects map[uuid.UUID]*Project
	entries  []timeline.Entry
}

func newMockRepository() *mockRepository {
	return &mockRepository{projects: make(map[uuid.UUID]*Project)}
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *mockRepository) Create(_ context.Context, p Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := p
	m.projects[p.ID] = &cp
	return nil
}

func (m *mockRepository) Get(_ context.Context, id uuid.UUID) (*Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, fmt.Errorf("%w: project %s", shared.ErrNotFound, id)
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepository) List(_ context.Context, req ListProjectsRequest, scope Scope) ([]Project, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Project
	for _, p := range m.projects {
		if scope.CreatedBy != nil && p.CreatedBy != *scope.CreatedBy {
			continue
		}
		if scope.OpsID != nil && p.OpsID != *scope.OpsID {
			continue
		}
		if req.Status != nil && p.Status != *req.Status {
			continue
		}
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (m *mockRepository) ListExpiredDrafts(_ context.Context, now time.Time) ([]Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Project
	for _, p := range m.projects {
		if p.Status == StatusDraft && !now.Before(p.ConversionDeadline) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockRepository) Transition(_ context.Context, id uuid.UUID, from Status, updates map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok || p.Status != from {
		return fmt.Errorf("%w: project status changed concurrently", shared.ErrInvalidTransition)
	}
	for col, val := range updates {
		switch col {
		case "status":
			p.Status = Status(val.(string))
		case "work_status":
			p.WorkStatus = WorkStatus(val.(string))
		case "ops_id":
			p.OpsID = val.(string)
		case "rejection_reason":
			if val == nil {
				p.RejectionReason = nil
			} else {
				s := val.(string)
				p.RejectionReason = &s
			}
		case "conversion_deadline":
			p.ConversionDeadline = val.(time.Time)
		case "billing_amount":
			p.BillingAmount = val.(float64)
		}
	}
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *mockRepository) AppendTimeline(_ context.Context, e timeline.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockRepository) entriesFor(id uuid.UUID) []timeline.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []timeline.Entry
	for _, e := range m.entries {
		if e.ProjectID == id {
			out = append(out, e)
		}
	}
	return out
}

var (
	salesActor = access.Actor{ID: 10, DisplayName: "Asha Sales", Role: access.RoleSalesUser, Approved: true}
	otherSales = access.Actor{ID: 11, DisplayName: "Vikram Sales", Role: access.RoleSalesUser, Approved: true}
	manager    = access.Actor{ID: 20, DisplayName: "Meera Manager", Role: access.RoleSalesManager, Approved: true}
	adminActor = access.Actor{ID: 1, DisplayName: "Root Admin", Role: access.RoleAdmin, Approved: true}
	opsActor   = access.Actor{ID: 30, DisplayName: "Omar Ops", Role: access.RoleOpsUser, Approved: true}
)

func newTestEngine(t *testing.T) (*Engine, *mockRepository) {
	t.Helper()
	repo := newMockRepository()
	engine := NewEngine(slog.Default(), repo, nil, 72*time.Hour)
	return engine, repo
}

func createDraft(t *testing.T, engine *Engine) *Project {
	t.Helper()
	p, err := engine.Create(context.Background(), CreateProjectRequest{
		CustomerName: "Sunrise Apartments",
		CapacityKW:   10,
		PlanTier:     TierGold,
	}, salesActor)
	require.NoError(t, err)
	return p
}

func TestCreateComputesPriceAndDeadline(t *testing.T) {
	engine, repo := newTestEngine(t)
	p := createDraft(t, engine)

	assert.Equal(t, StatusDraft, p.Status)
	assert.Equal(t, 40000.0, p.FinalPrice)
	assert.Equal(t, OpsPending, p.OpsID)
	assert.WithinDuration(t, time.Now().Add(72*time.Hour), p.ConversionDeadline, time.Minute)

	entries := repo.entriesFor(p.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, timeline.ActionCreated, entries[0].Action)
}

func TestCreateRejectsBadInput(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Create(ctx, CreateProjectRequest{CustomerName: "X", CapacityKW: 0, PlanTier: TierGold}, salesActor)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = engine.Create(ctx, CreateProjectRequest{CustomerName: "X", CapacityKW: 5, PlanTier: "COPPER"}, salesActor)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = engine.Create(ctx, CreateProjectRequest{CustomerName: "X", CapacityKW: 5, PlanTier: TierGold, Discount: 1e9}, salesActor)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = engine.Create(ctx, CreateProjectRequest{CustomerName: "X", CapacityKW: 5, PlanTier: TierGold}, opsActor)
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestFullLifecycleScenario(t *testing.T) {
	engine, repo := newTestEngine(t)
	ctx := context.Background()
	p := createDraft(t, engine)

	p, err := engine.Forward(ctx, p.ID, salesActor)
	require.NoError(t, err)
	assert.Equal(t, StatusPendingApproval, p.Status)

	p, err = engine.Approve(ctx, p.ID, manager, "looks good")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, p.Status)

	p, err = engine.AssignOps(ctx, p.ID, manager, "30")
	require.NoError(t, err)
	assert.Equal(t, StatusTransferredToOps, p.Status)
	assert.Equal(t, "30", p.OpsID)
	assert.Equal(t, WorkStatusAssigned, p.WorkStatus)

	for _, ws := range []WorkStatus{WorkStatusAccepted, WorkStatusWorking, WorkStatusCompleted} {
		p, err = engine.UpdateWorkStatus(ctx, p.ID, opsActor, ws)
		require.NoError(t, err, "advance to %s", ws)
	}
	assert.Equal(t, StatusCompleted, p.Status)
	assert.Equal(t, WorkStatusCompleted, p.WorkStatus)
	assert.Equal(t, StageCompleted, p.ExecutionStage())

	actions := make([]string, 0)
	for _, e := range repo.entriesFor(p.ID) {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{
		timeline.ActionCreated,
		timeline.ActionForwarded,
		timeline.ActionApproved,
		timeline.ActionTransferred,
		timeline.ActionWorkStatusUpdate,
		timeline.ActionWorkStatusUpdate,
		timeline.ActionWorkStatusUpdate,
		timeline.ActionTaskCompleted,
	}, actions)
}

func TestForwardOnlyByCreator(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	p := createDraft(t, engine)

	_, err := engine.Forward(ctx, p.ID, otherSales)
	assert.ErrorIs(t, err, shared.ErrUnauthorized)

	// Managers cannot forward on someone else's behalf either.
	_, err = engine.Forward(ctx, p.ID, manager)
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestRejectRequiresReasonAndAllowsReforward(t *testing.T) {
	engine, repo := newTestEngine(t)
	ctx := context.Background()
	p := createDraft(t, engine)

	_, err := engine.Forward(ctx, p.ID, salesActor)
	require.NoError(t, err)

	_, err = engine.Reject(ctx, p.ID, manager, "   ")
	assert.ErrorIs(t, err, shared.ErrValidation)

	p, err = engine.Reject(ctx, p.ID, manager, "site survey missing")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, p.Status)
	require.NotNil(t, p.RejectionReason)
	assert.Equal(t, "site survey missing", *p.RejectionReason)

	// Correction loop: a rejected project may be forwarded again and the
	// stale reason is cleared.
	p, err = engine.Forward(ctx, p.ID, salesActor)
	require.NoError(t, err)
	assert.Equal(t, StatusPendingApproval, p.Status)
	assert.Nil(t, p.RejectionReason)

	entries := repo.entriesFor(p.ID)
	assert.Equal(t, timeline.ActionForwarded, entries[len(entries)-1].Action)
}

func TestApproveFromWrongStateConflicts(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	p := createDraft(t, engine)

	_, err := engine.Approve(ctx, p.ID, manager, "")
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)

	_, err = engine.AssignOps(ctx, p.ID, manager, "30")
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)
}

type stubDirectory map[string]access.Actor

func (d stubDirectory) ResolveActor(_ context.Context, userID string) (access.Actor, error) {
	actor, ok := d[userID]
	if !ok {
		return access.Actor{}, shared.ErrNotFound
	}
	return actor, nil
}

func TestAssignOpsVetsAssignee(t *testing.T) {
	engine, _ := newTestEngine(t)
	engine.SetOpsDirectory(stubDirectory{
		"30": opsActor,
		"11": otherSales,
		"32": {ID: 32, DisplayName: "New Ops", Role: access.RoleOpsUser},
	})
	ctx := context.Background()
	p := createDraft(t, engine)
	_, err := engine.Forward(ctx, p.ID, salesActor)
	require.NoError(t, err)
	_, err = engine.Approve(ctx, p.ID, manager, "")
	require.NoError(t, err)

	_, err = engine.AssignOps(ctx, p.ID, manager, "99")
	assert.ErrorIs(t, err, shared.ErrValidation, "unknown user id")

	_, err = engine.AssignOps(ctx, p.ID, manager, "11")
	assert.ErrorIs(t, err, shared.ErrValidation, "sales user cannot take field work")

	_, err = engine.AssignOps(ctx, p.ID, manager, "32")
	assert.ErrorIs(t, err, shared.ErrValidation, "assignee still awaiting account approval")

	p, err = engine.AssignOps(ctx, p.ID, manager, "30")
	require.NoError(t, err)
	assert.Equal(t, StatusTransferredToOps, p.Status)
	assert.Equal(t, "30", p.OpsID)
}

func TestConcurrentApproveHasOneWinner(t *testing.T) {
	engine, repo := newTestEngine(t)
	ctx := context.Background()
	p := createDraft(t, engine)
	_, err := engine.Forward(ctx, p.ID, salesActor)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.Approve(ctx, p.ID, manager, "")
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, shared.ErrInvalidTransition)
		}
	}
	assert.Equal(t, 1, winners)

	approved := 0
	for _, e := range repo.entriesFor(p.ID) {
		if e.Action == timeline.ActionApproved {
			approved++
		}
	}
	assert.Equal(t, 1, approved, "loser must not double-append timeline entries")
}

func TestWorkStatusOwnershipAndOrder(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	p := createDraft(t, engine)
	_, err := engine.Forward(ctx, p.ID, salesActor)
	require.NoError(t, err)
	_, err = engine.Approve(ctx, p.ID, adminActor, "")
	require.NoError(t, err)
	_, err = engine.AssignOps(ctx, p.ID, adminActor, "30")
	require.NoError(t, err)

	stranger := access.Actor{ID: 31, DisplayName: "Other Ops", Role: access.RoleOpsUser, Approved: true}
	_, err = engine.UpdateWorkStatus(ctx, p.ID, stranger, WorkStatusAccepted)
	assert.ErrorIs(t, err, shared.ErrUnauthorized)

	// Forward-only: the track never moves backwards.
	_, err = engine.UpdateWorkStatus(ctx, p.ID, opsActor, WorkStatusWorking)
	require.NoError(t, err)
	_, err = engine.UpdateWorkStatus(ctx, p.ID, opsActor, WorkStatusAccepted)
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)

	// Admin may advance without being the assignee.
	_, err = engine.UpdateWorkStatus(ctx, p.ID, adminActor, WorkStatusCompleted)
	require.NoError(t, err)
}

func TestDeadlineAutoLock(t *testing.T) {
	engine, repo := newTestEngine(t)
	ctx := context.Background()
	p := createDraft(t, engine)

	// Pull the clock past the deadline.
	engine.now = func() time.Time { return p.ConversionDeadline.Add(time.Millisecond) }

	locked, err := engine.LockExpired(ctx, engine.now())
	require.NoError(t, err)
	assert.Equal(t, 1, locked)

	got, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusLocked, got.Status)

	// Sweeping again is a no-op: idempotent, no duplicate entries.
	locked, err = engine.LockExpired(ctx, engine.now())
	require.NoError(t, err)
	assert.Equal(t, 0, locked)

	autoLocks := 0
	for _, e := range repo.entriesFor(p.ID) {
		if e.Action == timeline.ActionAutoLocked {
			autoLocks++
			assert.Equal(t, timeline.SystemActor, e.ActorName)
		}
	}
	assert.Equal(t, 1, autoLocks)

	// A locked project refuses forwarding.
	_, err = engine.Forward(ctx, p.ID, salesActor)
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestForwardAtExpiryLocksInstead(t *testing.T) {
	engine, repo := newTestEngine(t)
	ctx := context.Background()
	p := createDraft(t, engine)

	engine.now = func() time.Time { return p.ConversionDeadline }

	_, err := engine.Forward(ctx, p.ID, salesActor)
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)

	got, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusLocked, got.Status)
}

func TestDeadlineBoundaryJustBefore(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	p := createDraft(t, engine)

	engine.now = func() time.Time { return p.ConversionDeadline.Add(-time.Millisecond) }

	locked, err := engine.LockExpired(ctx, engine.now())
	require.NoError(t, err)
	assert.Equal(t, 0, locked)

	got, err := engine.Forward(ctx, p.ID, salesActor)
	require.NoError(t, err)
	assert.Equal(t, StatusPendingApproval, got.Status)
}

func TestAdminOverrideResetsDraft(t *testing.T) {
	engine, repo := newTestEngine(t)
	ctx := context.Background()
	p := createDraft(t, engine)
	_, err := engine.Forward(ctx, p.ID, salesActor)
	require.NoError(t, err)
	_, err = engine.Reject(ctx, p.ID, manager, "pricing error")
	require.NoError(t, err)

	_, err = engine.AdminOverride(ctx, p.ID, manager, StatusDraft, "restart intake")
	assert.ErrorIs(t, err, shared.ErrUnauthorized)

	p, err = engine.AdminOverride(ctx, p.ID, adminActor, StatusDraft, "restart intake")
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, p.Status)
	assert.Nil(t, p.RejectionReason)
	assert.Equal(t, OpsPending, p.OpsID)
	assert.WithinDuration(t, time.Now().Add(72*time.Hour), p.ConversionDeadline, time.Minute)

	entries := repo.entriesFor(p.ID)
	assert.Equal(t, timeline.ActionAdminOverride, entries[len(entries)-1].Action)

	_, err = engine.AdminOverride(ctx, p.ID, adminActor, StatusApproved, "nope")
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestListScopesByRole(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	mine := createDraft(t, engine)
	theirs, err := engine.Create(ctx, CreateProjectRequest{
		CustomerName: "Blue Hills Villa",
		CapacityKW:   5,
		PlanTier:     TierSilver,
	}, otherSales)
	require.NoError(t, err)

	items, total, err := engine.List(ctx, ListProjectsRequest{}, salesActor)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, mine.ID, items[0].ID)

	_, total, err = engine.List(ctx, ListProjectsRequest{}, manager)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	// Out-of-scope get reads as missing, not forbidden.
	_, err = engine.Get(ctx, theirs.ID, salesActor)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, total, err = engine.List(ctx, ListProjectsRequest{}, opsActor)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestOpsVisibilityFollowsAssignment(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	p := createDraft(t, engine)
	_, err := engine.Forward(ctx, p.ID, salesActor)
	require.NoError(t, err)
	_, err = engine.Approve(ctx, p.ID, manager, "")
	require.NoError(t, err)
	_, err = engine.AssignOps(ctx, p.ID, manager, strconv.FormatInt(opsActor.ID, 10))
	require.NoError(t, err)

	got, err := engine.Get(ctx, p.ID, opsActor)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
}

func TestStaleLoadLosesOnCommit(t *testing.T) {
	engine, repo := newTestEngine(t)
	ctx := context.Background()
	p := createDraft(t, engine)
	_, err := engine.Forward(ctx, p.ID, salesActor)
	require.NoError(t, err)

	// Simulate a racing writer committing between load and commit.
	require.NoError(t, repo.Transition(ctx, p.ID, StatusPendingApproval,
		map[string]interface{}{"status": string(StatusApproved)}))

	_, err = engine.Approve(ctx, p.ID, manager, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInvalidTransition))
}
