package leads

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarlink-crm/solarlink/internal/access"
	"github.com/solarlink-crm/solarlink/internal/projects"
	"github.com/solarlink-crm/solarlink/internal/shared"
	"github.com/solarlink-crm/solarlink/internal/timeline"
)

type mockLeadRepo struct {
	mu    sync.Mutex
	leads map[uuid.UUID]*Lead
}

func newMockLeadRepo() *mockLeadRepo {
	return &mockLeadRepo{leads: make(map[uuid.UUID]*Lead)}
}

func (m *mockLeadRepo) Create(_ context.Context, l Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.CreatedAt = time.Now().UTC()
	l.UpdatedAt = l.CreatedAt
	cp := l
	m.leads[l.ID] = &cp
	return nil
}

func (m *mockLeadRepo) Get(_ context.Context, id uuid.UUID) (*Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok {
		return nil, fmt.Errorf("%w: lead %s", shared.ErrNotFound, id)
	}
	cp := *l
	return &cp, nil
}

func (m *mockLeadRepo) List(_ context.Context, ownerID *int64, limit, offset int) ([]Lead, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Lead
	for _, l := range m.leads {
		if ownerID != nil && l.OwnerID != *ownerID {
			continue
		}
		out = append(out, *l)
	}
	return out, len(out), nil
}

func (m *mockLeadRepo) Update(_ context.Context, l Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.leads[l.ID]
	if !ok || cur.Status == StatusConverted {
		return fmt.Errorf("%w: lead is converted or missing", shared.ErrInvalidTransition)
	}
	l.Status = cur.Status
	l.ProjectID = cur.ProjectID
	cp := l
	m.leads[l.ID] = &cp
	return nil
}

func (m *mockLeadRepo) UpdateStatus(_ context.Context, id uuid.UUID, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.leads[id]
	if !ok || cur.Status == StatusConverted {
		return fmt.Errorf("%w: lead is converted or missing", shared.ErrInvalidTransition)
	}
	cur.Status = status
	return nil
}

func (m *mockLeadRepo) MarkConverted(_ context.Context, id uuid.UUID, projectID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.leads[id]
	if !ok || cur.Status == StatusConverted {
		return fmt.Errorf("%w: lead already converted", shared.ErrInvalidTransition)
	}
	cur.Status = StatusConverted
	cur.ProjectID = &projectID
	return nil
}

// Minimal in-memory projects store so the real engine handles conversion.
type memProjectRepo struct {
	mu       sync.Mutex
	projects map[uuid.UUID]*projects.Project
}

func newMemProjectRepo() *memProjectRepo {
	return &memProjectRepo{projects: make(map[uuid.UUID]*projects.Project)}
}

func (m *memProjectRepo) WithTx(ctx context.Context, fn func(context.Context, projects.Repository) error) error {
	return fn(ctx, m)
}

func (m *memProjectRepo) Create(_ context.Context, p projects.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := p
	m.projects[p.ID] = &cp
	return nil
}

func (m *memProjectRepo) Get(_ context.Context, id uuid.UUID) (*projects.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, fmt.Errorf("%w: project %s", shared.ErrNotFound, id)
	}
	cp := *p
	return &cp, nil
}

func (m *memProjectRepo) List(_ context.Context, _ projects.ListProjectsRequest, _ projects.Scope) ([]projects.Project, int, error) {
	return nil, 0, nil
}

func (m *memProjectRepo) ListExpiredDrafts(_ context.Context, _ time.Time) ([]projects.Project, error) {
	return nil, nil
}

func (m *memProjectRepo) Transition(_ context.Context, _ uuid.UUID, _ projects.Status, _ map[string]interface{}) error {
	return nil
}

func (m *memProjectRepo) AppendTimeline(_ context.Context, _ timeline.Entry) error {
	return nil
}

var (
	salesActor = access.Actor{ID: 10, DisplayName: "Asha Sales", Role: access.RoleSalesUser, Approved: true}
	otherSales = access.Actor{ID: 11, DisplayName: "Vikram Sales", Role: access.RoleSalesUser, Approved: true}
	manager    = access.Actor{ID: 20, DisplayName: "Meera Manager", Role: access.RoleSalesManager, Approved: true}
	opsActor   = access.Actor{ID: 30, DisplayName: "Omar Ops", Role: access.RoleOpsUser, Approved: true}
)

func newTestService(t *testing.T) (*Service, *mockLeadRepo) {
	t.Helper()
	repo := newMockLeadRepo()
	engine := projects.NewEngine(slog.Default(), newMemProjectRepo(), nil, 72*time.Hour)
	return NewService(slog.Default(), repo, engine), repo
}

func createLead(t *testing.T, svc *Service, actor access.Actor) *Lead {
	t.Helper()
	l, err := svc.Create(context.Background(), actor, CreateLeadRequest{
		CustomerName: "Sunrise Apartments",
		CapacityKW:   10,
		PlanTier:     projects.TierGold,
	})
	require.NoError(t, err)
	return l
}

func TestCreateLeadComputesPotentialValue(t *testing.T) {
	svc, _ := newTestService(t)
	l := createLead(t, svc, salesActor)

	assert.Equal(t, StatusNew, l.Status)
	assert.Equal(t, PriorityMedium, l.Priority)
	assert.Equal(t, 40000.0, l.PotentialValue)
	assert.Equal(t, salesActor.ID, l.OwnerID)

	_, err := svc.Create(context.Background(), opsActor, CreateLeadRequest{
		CustomerName: "X", CapacityKW: 1, PlanTier: projects.TierSilver,
	})
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestLeadMutationOwnership(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	l := createLead(t, svc, salesActor)

	upd := UpdateLeadRequest{CreateLeadRequest: CreateLeadRequest{
		CustomerName: "Sunrise Apartments B", CapacityKW: 12, PlanTier: projects.TierGold,
	}}

	_, err := svc.Update(ctx, otherSales, l.ID, upd)
	assert.ErrorIs(t, err, shared.ErrUnauthorized)

	got, err := svc.Update(ctx, manager, l.ID, upd)
	require.NoError(t, err)
	assert.Equal(t, 48000.0, got.PotentialValue)

	got, err = svc.Update(ctx, salesActor, l.ID, upd)
	require.NoError(t, err)
	assert.Equal(t, "Sunrise Apartments B", got.CustomerName)
}

func TestConvertLeadIsOneShot(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	l := createLead(t, svc, salesActor)

	p, err := svc.Convert(ctx, salesActor, l.ID, ConvertLeadRequest{Discount: 2000})
	require.NoError(t, err)
	assert.Equal(t, projects.StatusDraft, p.Status)
	assert.Equal(t, 38000.0, p.FinalPrice)
	require.NotNil(t, p.LeadID)
	assert.Equal(t, l.ID, *p.LeadID)

	converted, err := repo.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConverted, converted.Status)
	require.NotNil(t, converted.ProjectID)
	assert.Equal(t, p.ID, *converted.ProjectID)

	// Converted leads are immutable and cannot convert again.
	_, err = svc.Convert(ctx, salesActor, l.ID, ConvertLeadRequest{})
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)

	_, err = svc.Update(ctx, salesActor, l.ID, UpdateLeadRequest{CreateLeadRequest: CreateLeadRequest{
		CustomerName: "Changed", CapacityKW: 1, PlanTier: projects.TierSilver,
	}})
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestLeadVisibilityScopedToOwner(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	l := createLead(t, svc, salesActor)
	createLead(t, svc, otherSales)

	_, err := svc.Get(ctx, otherSales, l.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, total, err := svc.List(ctx, salesActor, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	_, total, err = svc.List(ctx, manager, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}
