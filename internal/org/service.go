package org

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-commissions/internal/common"
)

// Service reads and writes commission settings. Reads fall back to the
// defaults so the engine always has a threshold and a rate to work with.
type Service struct {
	Store Store
}

// GetSettings returns the organization's effective settings. Any member may
// read them.
func (s *Service) GetSettings(ctx context.Context, actor common.Actor) (Settings, error) {
	if s == nil || s.Store == nil {
		return Settings{}, ErrStoreUnavailable
	}
	orgID, err := uuid.Parse(actor.OrganizationID)
	if err != nil {
		return Settings{}, common.NewNotFoundError("organization not found")
	}
	return s.EffectiveSettings(ctx, orgID)
}

// EffectiveSettings resolves the settings for an organization, substituting
// the defaults when none were ever saved.
func (s *Service) EffectiveSettings(ctx context.Context, orgID uuid.UUID) (Settings, error) {
	if s == nil || s.Store == nil {
		return Settings{}, ErrStoreUnavailable
	}
	stored, ok, err := s.Store.GetSettings(ctx, orgID)
	if err != nil {
		return Settings{}, common.NewStorageError("failed to load commission settings", err)
	}
	if !ok {
		return Settings{
			OrganizationID:       orgID,
			BDMThresholdPence:    DefaultBDMThresholdPence,
			BDMCommissionRateBps: DefaultBDMCommissionRateBps,
		}, nil
	}
	return stored, nil
}

// UpdateSettingsInput carries a settings write. Both values are required.
type UpdateSettingsInput struct {
	BDMThresholdPence    int64
	BDMCommissionRateBps int32
}

// UpdateSettings saves new settings. Admin only. The new values affect only
// calculations performed after the write.
func (s *Service) UpdateSettings(ctx context.Context, actor common.Actor, input UpdateSettingsInput) (Settings, error) {
	if s == nil || s.Store == nil {
		return Settings{}, ErrStoreUnavailable
	}
	if actor.Role != "admin" {
		return Settings{}, common.NewPermissionError("only admins can change commission settings")
	}
	orgID, err := uuid.Parse(actor.OrganizationID)
	if err != nil {
		return Settings{}, common.NewNotFoundError("organization not found")
	}
	memberID, err := uuid.Parse(actor.MemberID)
	if err != nil {
		return Settings{}, common.NewNotFoundError("member not found")
	}
	if input.BDMThresholdPence < 0 {
		return Settings{}, common.NewValidationError("threshold must be zero or positive", nil)
	}
	if input.BDMCommissionRateBps < 0 || input.BDMCommissionRateBps > 10000 {
		return Settings{}, common.NewValidationError("commission rate must be between 0 and 10000 basis points", nil)
	}
	saved, err := s.Store.UpsertSettings(ctx, Settings{
		OrganizationID:       orgID,
		BDMThresholdPence:    input.BDMThresholdPence,
		BDMCommissionRateBps: input.BDMCommissionRateBps,
		UpdatedBy:            memberID,
	})
	if err != nil {
		return Settings{}, common.NewStorageError("failed to save commission settings", err)
	}
	return saved, nil
}

// GetOrganization loads the tenant record.
func (s *Service) GetOrganization(ctx context.Context, id uuid.UUID) (Organization, error) {
	if s == nil || s.Store == nil {
		return Organization{}, ErrStoreUnavailable
	}
	o, err := s.Store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Organization{}, common.NewNotFoundError("organization not found")
		}
		return Organization{}, common.NewStorageError("failed to load organization", err)
	}
	return o, nil
}
