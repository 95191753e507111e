package team

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/alexedwards/argon2id"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-commissions/internal/common"
)

var validate = validator.New()

// Service wraps the roster store with role rules: only admins and managers
// change the roster, and the last active admin can never be demoted or
// deactivated.
type Service struct {
	Store Store
}

// AddMemberInput carries the fields for a new roster entry.
type AddMemberInput struct {
	Name              string
	Email             string
	Role              Role
	CommissionRateBps int32
	Password          string
}

// UpdateMemberInput carries a partial roster edit. Nil pointers leave the
// field unchanged.
type UpdateMemberInput struct {
	Name              *string
	Email             *string
	Role              *Role
	CommissionRateBps *int32
	Active            *bool
	Password          *string
}

// AddMember creates a roster entry. Requires an admin or manager actor.
func (s *Service) AddMember(ctx context.Context, actor common.Actor, input AddMemberInput) (Member, error) {
	if s == nil || s.Store == nil {
		return Member{}, ErrStoreUnavailable
	}
	if !CanManageTeam(Role(actor.Role)) {
		return Member{}, common.NewPermissionError("only admins and managers can manage the team")
	}
	orgID, err := uuid.Parse(actor.OrganizationID)
	if err != nil {
		return Member{}, common.NewNotFoundError("organization not found")
	}
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	if input.Name == "" {
		return Member{}, common.NewValidationError("name is required", nil)
	}
	if err := validate.Var(input.Email, "required,email"); err != nil {
		return Member{}, common.NewValidationError("a valid email is required", nil)
	}
	if !ValidRole(input.Role) {
		return Member{}, common.NewValidationError("role must be admin, manager, telesales or bdm", nil)
	}
	if input.CommissionRateBps < 0 || input.CommissionRateBps > 10000 {
		return Member{}, common.NewValidationError("commission rate must be between 0 and 10000 basis points", nil)
	}
	if len(input.Password) < 8 {
		return Member{}, common.NewValidationError("password must be at least 8 characters", nil)
	}
	hash, err := argon2id.CreateHash(input.Password, argon2id.DefaultParams)
	if err != nil {
		return Member{}, common.NewStorageError("failed to hash password", err)
	}
	created, err := s.Store.Insert(ctx, Member{
		OrganizationID:    orgID,
		Name:              input.Name,
		Email:             input.Email,
		Role:              input.Role,
		CommissionRateBps: input.CommissionRateBps,
		Active:            true,
		PasswordHash:      hash,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return Member{}, common.NewAppError("CONFLICT", "email already in use", http.StatusConflict, err)
		}
		return Member{}, common.NewStorageError("failed to add team member", err)
	}
	return created, nil
}

// UpdateMember edits a roster entry. Requires an admin or manager actor.
func (s *Service) UpdateMember(ctx context.Context, actor common.Actor, id uuid.UUID, input UpdateMemberInput) (Member, error) {
	if s == nil || s.Store == nil {
		return Member{}, ErrStoreUnavailable
	}
	if !CanManageTeam(Role(actor.Role)) {
		return Member{}, common.NewPermissionError("only admins and managers can manage the team")
	}
	orgID, err := uuid.Parse(actor.OrganizationID)
	if err != nil {
		return Member{}, common.NewNotFoundError("organization not found")
	}
	existing, err := s.Store.Get(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Member{}, common.NewNotFoundError("team member not found")
		}
		return Member{}, common.NewStorageError("failed to load team member", err)
	}

	wasActiveAdmin := existing.Role == RoleAdmin && existing.Active

	if input.Name != nil {
		existing.Name = strings.TrimSpace(*input.Name)
		if existing.Name == "" {
			return Member{}, common.NewValidationError("name is required", nil)
		}
	}
	if input.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*input.Email))
		if err := validate.Var(email, "required,email"); err != nil {
			return Member{}, common.NewValidationError("a valid email is required", nil)
		}
		existing.Email = email
	}
	if input.Role != nil {
		if !ValidRole(*input.Role) {
			return Member{}, common.NewValidationError("role must be admin, manager, telesales or bdm", nil)
		}
		existing.Role = *input.Role
	}
	if input.CommissionRateBps != nil {
		if *input.CommissionRateBps < 0 || *input.CommissionRateBps > 10000 {
			return Member{}, common.NewValidationError("commission rate must be between 0 and 10000 basis points", nil)
		}
		existing.CommissionRateBps = *input.CommissionRateBps
	}
	if input.Active != nil {
		existing.Active = *input.Active
	}
	if input.Password != nil {
		if len(*input.Password) < 8 {
			return Member{}, common.NewValidationError("password must be at least 8 characters", nil)
		}
		hash, err := argon2id.CreateHash(*input.Password, argon2id.DefaultParams)
		if err != nil {
			return Member{}, common.NewStorageError("failed to hash password", err)
		}
		existing.PasswordHash = hash
	}

	losesAdmin := wasActiveAdmin && (existing.Role != RoleAdmin || !existing.Active)
	if losesAdmin {
		count, err := s.Store.CountActiveAdmins(ctx, orgID)
		if err != nil {
			return Member{}, common.NewStorageError("failed to count active admins", err)
		}
		if count <= 1 {
			return Member{}, common.NewValidationError("organization must keep at least one active admin", nil)
		}
	}

	updated, err := s.Store.Update(ctx, existing)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return Member{}, common.NewNotFoundError("team member not found")
		case errors.Is(err, ErrDuplicateEmail):
			return Member{}, common.NewAppError("CONFLICT", "email already in use", http.StatusConflict, err)
		}
		return Member{}, common.NewStorageError("failed to update team member", err)
	}
	return updated, nil
}

// Get fetches a roster entry in the actor's organization.
func (s *Service) Get(ctx context.Context, actor common.Actor, id uuid.UUID) (Member, error) {
	if s == nil || s.Store == nil {
		return Member{}, ErrStoreUnavailable
	}
	orgID, err := uuid.Parse(actor.OrganizationID)
	if err != nil {
		return Member{}, common.NewNotFoundError("organization not found")
	}
	m, err := s.Store.Get(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Member{}, common.NewNotFoundError("team member not found")
		}
		return Member{}, common.NewStorageError("failed to load team member", err)
	}
	return m, nil
}

// List returns the full roster for the actor's organization.
func (s *Service) List(ctx context.Context, actor common.Actor) ([]Member, error) {
	if s == nil || s.Store == nil {
		return nil, ErrStoreUnavailable
	}
	orgID, err := uuid.Parse(actor.OrganizationID)
	if err != nil {
		return nil, common.NewNotFoundError("organization not found")
	}
	members, err := s.Store.List(ctx, orgID)
	if err != nil {
		return nil, common.NewStorageError("failed to list team members", err)
	}
	return members, nil
}

// ListActiveBDMs returns the deal-assignable BDMs, name order.
func (s *Service) ListActiveBDMs(ctx context.Context, orgID uuid.UUID) ([]Member, error) {
	if s == nil || s.Store == nil {
		return nil, ErrStoreUnavailable
	}
	members, err := s.Store.ListActiveByRole(ctx, orgID, RoleBDM)
	if err != nil {
		return nil, common.NewStorageError("failed to list bdms", err)
	}
	return members, nil
}

// MemberNames resolves display names for the given member ids within the
// organization. Ids that do not belong to the organization are simply
// absent from the result.
func (s *Service) MemberNames(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	if s == nil || s.Store == nil {
		return nil, ErrStoreUnavailable
	}
	if len(ids) == 0 {
		return map[uuid.UUID]string{}, nil
	}
	wanted := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	members, err := s.Store.List(ctx, orgID)
	if err != nil {
		return nil, common.NewStorageError("failed to list team members", err)
	}
	names := make(map[uuid.UUID]string, len(ids))
	for _, m := range members {
		if wanted[m.ID] {
			names[m.ID] = m.Name
		}
	}
	return names, nil
}

// MemberActive reports whether the member exists in the organization and is
// active. Satisfies the deal package's assignment check.
func (s *Service) MemberActive(ctx context.Context, orgID, memberID uuid.UUID) (bool, error) {
	if s == nil || s.Store == nil {
		return false, ErrStoreUnavailable
	}
	m, err := s.Store.Get(ctx, orgID, memberID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return m.Active, nil
}
