package org

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrStoreUnavailable is returned when the store has no database pool.
	ErrStoreUnavailable = errors.New("org: store unavailable")
	// ErrNotFound is returned when the organization does not exist.
	ErrNotFound = errors.New("org: not found")
)

// Store persists organizations and their commission settings.
type Store interface {
	Insert(ctx context.Context, o Organization) (Organization, error)
	Get(ctx context.Context, id uuid.UUID) (Organization, error)
	GetSettings(ctx context.Context, orgID uuid.UUID) (Settings, bool, error)
	UpsertSettings(ctx context.Context, s Settings) (Settings, error)
}

// NewStore returns a Postgres-backed Store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

func (s *pgStore) Insert(ctx context.Context, o Organization) (Organization, error) {
	if s == nil || s.pool == nil {
		return Organization{}, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO organizations (name, slug)
		VALUES ($1, $2)
		RETURNING id, name, slug, created_at, updated_at`,
		o.Name, o.Slug,
	)
	var out Organization
	if err := row.Scan(&out.ID, &out.Name, &out.Slug, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return Organization{}, err
	}
	return out, nil
}

func (s *pgStore) Get(ctx context.Context, id uuid.UUID) (Organization, error) {
	if s == nil || s.pool == nil {
		return Organization{}, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, slug, created_at, updated_at
		FROM organizations
		WHERE id = $1`,
		id,
	)
	var out Organization
	err := row.Scan(&out.ID, &out.Name, &out.Slug, &out.CreatedAt, &out.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Organization{}, ErrNotFound
	}
	return out, err
}

// GetSettings returns the stored settings and true, or the zero value and
// false when the organization has never saved any.
func (s *pgStore) GetSettings(ctx context.Context, orgID uuid.UUID) (Settings, bool, error) {
	if s == nil || s.pool == nil {
		return Settings{}, false, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `
		SELECT organization_id, bdm_threshold_pence, bdm_commission_rate_bps, updated_by, updated_at
		FROM organization_settings
		WHERE organization_id = $1`,
		orgID,
	)
	var out Settings
	err := row.Scan(&out.OrganizationID, &out.BDMThresholdPence, &out.BDMCommissionRateBps, &out.UpdatedBy, &out.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Settings{}, false, nil
	}
	if err != nil {
		return Settings{}, false, err
	}
	return out, true, nil
}

func (s *pgStore) UpsertSettings(ctx context.Context, in Settings) (Settings, error) {
	if s == nil || s.pool == nil {
		return Settings{}, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO organization_settings (organization_id, bdm_threshold_pence, bdm_commission_rate_bps, updated_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (organization_id) DO UPDATE
		SET bdm_threshold_pence = EXCLUDED.bdm_threshold_pence,
		    bdm_commission_rate_bps = EXCLUDED.bdm_commission_rate_bps,
		    updated_by = EXCLUDED.updated_by,
		    updated_at = now()
		RETURNING organization_id, bdm_threshold_pence, bdm_commission_rate_bps, updated_by, updated_at`,
		in.OrganizationID, in.BDMThresholdPence, in.BDMCommissionRateBps, in.UpdatedBy,
	)
	var out Settings
	err := row.Scan(&out.OrganizationID, &out.BDMThresholdPence, &out.BDMCommissionRateBps, &out.UpdatedBy, &out.UpdatedAt)
	return out, err
}
