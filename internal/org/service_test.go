package org

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-commissions/internal/common"
)

type stubStore struct {
	settings map[uuid.UUID]Settings
}

func newStubStore() *stubStore {
	return &stubStore{settings: map[uuid.UUID]Settings{}}
}

func (s *stubStore) Insert(_ context.Context, o Organization) (Organization, error) {
	o.ID = uuid.New()
	return o, nil
}

func (s *stubStore) Get(_ context.Context, id uuid.UUID) (Organization, error) {
	return Organization{}, ErrNotFound
}

func (s *stubStore) GetSettings(_ context.Context, orgID uuid.UUID) (Settings, bool, error) {
	stored, ok := s.settings[orgID]
	return stored, ok, nil
}

func (s *stubStore) UpsertSettings(_ context.Context, in Settings) (Settings, error) {
	in.UpdatedAt = time.Now().UTC()
	s.settings[in.OrganizationID] = in
	return in, nil
}

func TestEffectiveSettingsDefaults(t *testing.T) {
	svc := &Service{Store: newStubStore()}
	orgID := uuid.New()

	settings, err := svc.EffectiveSettings(context.Background(), orgID)
	require.NoError(t, err)
	require.Equal(t, int64(350000), settings.BDMThresholdPence)
	require.Equal(t, int32(10000), settings.BDMCommissionRateBps)
}

func TestUpdateSettingsAdminOnly(t *testing.T) {
	svc := &Service{Store: newStubStore()}
	orgID := uuid.New()

	manager := common.Actor{MemberID: uuid.New().String(), OrganizationID: orgID.String(), Role: "manager"}
	_, err := svc.UpdateSettings(context.Background(), manager, UpdateSettingsInput{
		BDMThresholdPence: 400000, BDMCommissionRateBps: 5000,
	})
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "FORBIDDEN", appErr.Code)

	admin := common.Actor{MemberID: uuid.New().String(), OrganizationID: orgID.String(), Role: "admin"}
	saved, err := svc.UpdateSettings(context.Background(), admin, UpdateSettingsInput{
		BDMThresholdPence: 400000, BDMCommissionRateBps: 5000,
	})
	require.NoError(t, err)
	require.Equal(t, int64(400000), saved.BDMThresholdPence)

	// Subsequent reads return the stored values, not the defaults.
	settings, err := svc.EffectiveSettings(context.Background(), orgID)
	require.NoError(t, err)
	require.Equal(t, int64(400000), settings.BDMThresholdPence)
	require.Equal(t, int32(5000), settings.BDMCommissionRateBps)
}

func TestUpdateSettingsValidatesBounds(t *testing.T) {
	svc := &Service{Store: newStubStore()}
	admin := common.Actor{MemberID: uuid.New().String(), OrganizationID: uuid.New().String(), Role: "admin"}

	_, err := svc.UpdateSettings(context.Background(), admin, UpdateSettingsInput{
		BDMThresholdPence: -1, BDMCommissionRateBps: 5000,
	})
	require.Error(t, err)

	_, err = svc.UpdateSettings(context.Background(), admin, UpdateSettingsInput{
		BDMThresholdPence: 0, BDMCommissionRateBps: 10001,
	})
	require.Error(t, err)

	// Zero threshold and zero rate are both legal.
	_, err = svc.UpdateSettings(context.Background(), admin, UpdateSettingsInput{
		BDMThresholdPence: 0, BDMCommissionRateBps: 0,
	})
	require.NoError(t, err)
}
