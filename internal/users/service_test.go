package users

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarlink-crm/solarlink/internal/access"
	"github.com/solarlink-crm/solarlink/internal/shared"
)

type mockUserRepo struct {
	mu      sync.Mutex
	users   map[int64]*User
	byEmail map[string]int64
	nextID  int64
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[int64]*User), byEmail: make(map[string]int64), nextID: 1}
}

func (m *mockUserRepo) Get(_ context.Context, id int64) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %d", shared.ErrNotFound, id)
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) FindByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", shared.ErrNotFound, email)
	}
	cp := *m.users[id]
	return &cp, nil
}

func (m *mockUserRepo) Create(_ context.Context, u User) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.byEmail[u.Email]; dup {
		return 0, fmt.Errorf("%w: email taken", shared.ErrValidation)
	}
	u.ID = m.nextID
	m.nextID++
	m.users[u.ID] = &u
	m.byEmail[u.Email] = u.ID
	return u.ID, nil
}

func (m *mockUserRepo) UpdateStatus(_ context.Context, id int64, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.Status = status
	return nil
}

func (m *mockUserRepo) UpdateRole(_ context.Context, id int64, role access.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.Role = role
	return nil
}

func (m *mockUserRepo) UpdateProfile(_ context.Context, id int64, bankAccount, bankIFSC, identityRef *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.BankAccount = bankAccount
	u.BankIFSC = bankIFSC
	u.IdentityRef = identityRef
	u.ProfileComplete = true
	return nil
}

func (m *mockUserRepo) List(_ context.Context, status *Status) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []User
	for _, u := range m.users {
		if status != nil && u.Status != *status {
			continue
		}
		out = append(out, *u)
	}
	return out, nil
}

func TestRegisterGatesFieldRoles(t *testing.T) {
	svc := NewService(newMockUserRepo())
	ctx := context.Background()

	u, err := svc.Register(ctx, "asha@solarlink.in", "Asha", "hunter2secret", "SALES")
	require.NoError(t, err)
	assert.Equal(t, access.RoleSalesUser, u.Role, "legacy alias canonicalized")
	assert.Equal(t, StatusPending, u.Status)
	assert.False(t, u.CanMutateLifecycle())

	head, err := svc.Register(ctx, "meera@solarlink.in", "Meera", "hunter2secret", "SALES_MANAGER")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, head.Status, "head roles skip the approval gate")
	assert.True(t, head.CanMutateLifecycle())

	_, err = svc.Register(ctx, "x@solarlink.in", "X", "short", "SALES")
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Register(ctx, "y@solarlink.in", "Y", "hunter2secret", "INTERN")
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestApproveAndBlock(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewService(repo)
	ctx := context.Background()

	u, err := svc.Register(ctx, "omar@solarlink.in", "Omar", "hunter2secret", "OPS_USER")
	require.NoError(t, err)

	require.NoError(t, svc.Approve(ctx, u.ID))
	got, err := svc.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)

	require.NoError(t, svc.Block(ctx, u.ID))

	// A blocked account cannot be re-approved through the normal path.
	err = svc.Approve(ctx, u.ID)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestCompleteProfileAllowedWhilePending(t *testing.T) {
	svc := NewService(newMockUserRepo())
	ctx := context.Background()

	u, err := svc.Register(ctx, "asha@solarlink.in", "Asha", "hunter2secret", "SALES_USER")
	require.NoError(t, err)

	acct, ifsc := "000111222333", "SBIN0001234"
	require.NoError(t, svc.CompleteProfile(ctx, u.ID, &acct, &ifsc, nil))

	got, err := svc.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.ProfileComplete)

	require.NoError(t, svc.Block(ctx, u.ID))
	err = svc.CompleteProfile(ctx, u.ID, &acct, &ifsc, nil)
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestResolveActor(t *testing.T) {
	svc := NewService(newMockUserRepo())
	ctx := context.Background()

	u, err := svc.Register(ctx, "asha@solarlink.in", "Asha", "hunter2secret", "SALES_USER")
	require.NoError(t, err)

	actor, err := svc.ResolveActor(ctx, fmt.Sprintf("%d", u.ID))
	require.NoError(t, err)
	assert.Equal(t, u.ID, actor.ID)
	assert.Equal(t, access.RoleSalesUser, actor.Role)
	assert.False(t, actor.Approved)

	require.NoError(t, svc.Approve(ctx, u.ID))
	actor, err = svc.ResolveActor(ctx, fmt.Sprintf("%d", u.ID))
	require.NoError(t, err)
	assert.True(t, actor.Approved)

	require.NoError(t, svc.Block(ctx, u.ID))
	_, err = svc.ResolveActor(ctx, fmt.Sprintf("%d", u.ID))
	assert.ErrorIs(t, err, shared.ErrUnauthorized)

	_, err = svc.ResolveActor(ctx, "not-a-number")
	assert.ErrorIs(t, err, shared.ErrValidation)
}
