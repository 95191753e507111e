package team

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrStoreUnavailable is returned when the store has no database pool.
	ErrStoreUnavailable = errors.New("team: store unavailable")
	// ErrNotFound is returned when no member matches the lookup.
	ErrNotFound = errors.New("team: member not found")
	// ErrDuplicateEmail is returned when an email is already registered.
	ErrDuplicateEmail = errors.New("team: email already in use")
)

// Store persists team members.
type Store interface {
	Insert(ctx context.Context, m Member) (Member, error)
	Get(ctx context.Context, orgID, id uuid.UUID) (Member, error)
	GetByEmail(ctx context.Context, email string) (Member, error)
	List(ctx context.Context, orgID uuid.UUID) ([]Member, error)
	ListActiveByRole(ctx context.Context, orgID uuid.UUID, role Role) ([]Member, error)
	Update(ctx context.Context, m Member) (Member, error)
	CountActiveAdmins(ctx context.Context, orgID uuid.UUID) (int64, error)
}

// NewStore returns a Postgres-backed Store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

const memberColumns = `id, organization_id, name, email, role, commission_rate_bps, active, password_hash, created_at, updated_at`

func (s *pgStore) Insert(ctx context.Context, m Member) (Member, error) {
	if s == nil || s.pool == nil {
		return Member{}, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO team_members (organization_id, name, email, role, commission_rate_bps, active, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+memberColumns,
		m.OrganizationID, m.Name, m.Email, m.Role, m.CommissionRateBps, m.Active, m.PasswordHash,
	)
	out, err := scanMember(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Member{}, ErrDuplicateEmail
		}
		return Member{}, err
	}
	return out, nil
}

func (s *pgStore) Get(ctx context.Context, orgID, id uuid.UUID) (Member, error) {
	if s == nil || s.pool == nil {
		return Member{}, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `
		SELECT `+memberColumns+`
		FROM team_members
		WHERE organization_id = $1 AND id = $2`,
		orgID, id,
	)
	out, err := scanMember(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Member{}, ErrNotFound
	}
	return out, err
}

func (s *pgStore) GetByEmail(ctx context.Context, email string) (Member, error) {
	if s == nil || s.pool == nil {
		return Member{}, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `
		SELECT `+memberColumns+`
		FROM team_members
		WHERE lower(email) = lower($1)`,
		email,
	)
	out, err := scanMember(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Member{}, ErrNotFound
	}
	return out, err
}

func (s *pgStore) List(ctx context.Context, orgID uuid.UUID) ([]Member, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+memberColumns+`
		FROM team_members
		WHERE organization_id = $1
		ORDER BY created_at, id`,
		orgID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMembers(rows)
}

func (s *pgStore) ListActiveByRole(ctx context.Context, orgID uuid.UUID, role Role) ([]Member, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+memberColumns+`
		FROM team_members
		WHERE organization_id = $1 AND role = $2 AND active
		ORDER BY name, id`,
		orgID, role,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMembers(rows)
}

func (s *pgStore) Update(ctx context.Context, m Member) (Member, error) {
	if s == nil || s.pool == nil {
		return Member{}, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE team_members
		SET name = $3,
		    email = $4,
		    role = $5,
		    commission_rate_bps = $6,
		    active = $7,
		    password_hash = $8,
		    updated_at = now()
		WHERE organization_id = $1 AND id = $2
		RETURNING `+memberColumns,
		m.OrganizationID, m.ID, m.Name, m.Email, m.Role, m.CommissionRateBps, m.Active, m.PasswordHash,
	)
	out, err := scanMember(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Member{}, ErrNotFound
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Member{}, ErrDuplicateEmail
		}
		return Member{}, err
	}
	return out, nil
}

func (s *pgStore) CountActiveAdmins(ctx context.Context, orgID uuid.UUID) (int64, error) {
	if s == nil || s.pool == nil {
		return 0, ErrStoreUnavailable
	}
	var count int64
	err := s.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM team_members
		WHERE organization_id = $1 AND role = 'admin' AND active`,
		orgID,
	).Scan(&count)
	return count, err
}

func scanMember(row pgx.Row) (Member, error) {
	var m Member
	err := row.Scan(
		&m.ID, &m.OrganizationID, &m.Name, &m.Email, &m.Role,
		&m.CommissionRateBps, &m.Active, &m.PasswordHash,
		&m.CreatedAt, &m.UpdatedAt,
	)
	return m, err
}

func collectMembers(rows pgx.Rows) ([]Member, error) {
	var out []Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
