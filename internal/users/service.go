package users

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/solarlink-crm/solarlink/internal/access"
	"github.com/solarlink-crm/solarlink/internal/shared"
)

// Service wraps user account business rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register creates a new account in PENDING status. Head roles are live
// immediately; field users wait for admin approval.
func (s *Service) Register(ctx context.Context, email, name, password, roleValue string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || name == "" {
		return nil, fmt.Errorf("%w: email and name required", shared.ErrValidation)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", shared.ErrValidation)
	}
	role, err := access.ParseRole(roleValue)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("users: hash password: %w", err)
	}
	user := User{
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hash),
		Role:         role,
		Status:       StatusPending,
	}
	if role.IsHead() {
		user.Status = StatusApproved
	}
	id, err := s.repo.Create(ctx, user)
	if err != nil {
		return nil, err
	}
	user.ID = id
	return &user, nil
}

// Approve moves a PENDING account to APPROVED.
func (s *Service) Approve(ctx context.Context, id int64) error {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if user.Status == StatusBlocked {
		return fmt.Errorf("%w: blocked accounts must be unblocked explicitly", shared.ErrValidation)
	}
	return s.repo.UpdateStatus(ctx, id, StatusApproved)
}

// Block disables an account.
func (s *Service) Block(ctx context.Context, id int64) error {
	return s.repo.UpdateStatus(ctx, id, StatusBlocked)
}

// AssignRole changes an account's role, canonicalizing legacy values.
func (s *Service) AssignRole(ctx context.Context, id int64, roleValue string) error {
	role, err := access.ParseRole(roleValue)
	if err != nil {
		return err
	}
	return s.repo.UpdateRole(ctx, id, role)
}

// CompleteProfile records bank/identity details and marks the profile done.
// This is the one mutation a PENDING user may perform.
func (s *Service) CompleteProfile(ctx context.Context, id int64, bankAccount, bankIFSC, identityRef *string) error {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if user.Status == StatusBlocked {
		return shared.ErrUnauthorized
	}
	return s.repo.UpdateProfile(ctx, id, bankAccount, bankIFSC, identityRef)
}

// Get fetches a single account.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.Get(ctx, id)
}

// List returns accounts, optionally filtered by status.
func (s *Service) List(ctx context.Context, status *Status) ([]User, error) {
	return s.repo.List(ctx, status)
}

// ResolveActor implements access.ActorSource for the session layer.
func (s *Service) ResolveActor(ctx context.Context, userID string) (access.Actor, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(userID), 10, 64)
	if err != nil {
		return access.Actor{}, fmt.Errorf("%w: bad session user id", shared.ErrValidation)
	}
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return access.Actor{}, err
	}
	if user.Status == StatusBlocked {
		return access.Actor{}, shared.ErrUnauthorized
	}
	return access.Actor{
		ID:          user.ID,
		DisplayName: user.Name,
		Role:        user.Role,
		Approved:    user.CanMutateLifecycle(),
	}, nil
}
