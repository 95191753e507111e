package deal

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrStoreUnavailable indicates the deal store dependency is not configured.
var ErrStoreUnavailable = errors.New("deal: store unavailable")

// ErrNotFound is returned when no deal matches the organization-scoped key.
var ErrNotFound = errors.New("deal: not found")

// Store provides organization-scoped database accessors for deals.
type Store interface {
	Insert(ctx context.Context, d Deal) (Deal, error)
	Get(ctx context.Context, orgID, id uuid.UUID) (Deal, error)
	List(ctx context.Context, orgID uuid.UUID, status *Status) ([]Deal, error)
	Update(ctx context.Context, d Deal) (Deal, error)
	Delete(ctx context.Context, orgID, id uuid.UUID) error
	ListPaidInPeriod(ctx context.Context, orgID uuid.UUID, from, to time.Time) ([]Deal, error)
	ListPaidByBDMInPeriod(ctx context.Context, orgID, bdmID uuid.UUID, from, to time.Time) ([]Deal, error)
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

const dealColumns = `id, organization_id, deal_number, customer_name,
deal_value, buy_in_cost, installation_cost, misc_costs,
initial_profit, telesales_commission, remaining_profit,
telesales_agent_id, bdm_id, status, notes,
signed_at, installed_at, invoiced_at, paid_at,
created_by, created_at, updated_at`

// Insert persists a new deal, allocating the next organization-scoped deal
// number inside the same statement.
func (s *pgStore) Insert(ctx context.Context, d Deal) (Deal, error) {
	if s == nil || s.pool == nil {
		return Deal{}, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `INSERT INTO deals (
organization_id, deal_number, customer_name,
deal_value, buy_in_cost, installation_cost, misc_costs,
initial_profit, telesales_commission, remaining_profit,
telesales_agent_id, bdm_id, status, notes, created_by)
VALUES ($1,
	(SELECT COALESCE(MAX(deal_number), 0) + 1 FROM deals WHERE organization_id = $1),
	$2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING `+dealColumns,
		d.OrganizationID, d.CustomerName,
		d.DealValue, d.BuyInCost, d.InstallationCost, d.MiscCosts,
		d.InitialProfit, d.TelesalesCommission, d.RemainingProfit,
		d.TelesalesAgentID, d.BDMID, d.Status, nullableText(d.Notes), d.CreatedBy)
	return scanDeal(row)
}

// Get fetches a deal by id within the organization.
func (s *pgStore) Get(ctx context.Context, orgID, id uuid.UUID) (Deal, error) {
	if s == nil || s.pool == nil {
		return Deal{}, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals
WHERE organization_id = $1 AND id = $2`, orgID, id)
	d, err := scanDeal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Deal{}, ErrNotFound
	}
	return d, err
}

// List returns the organization's deals, optionally narrowed by status,
// newest first.
func (s *pgStore) List(ctx context.Context, orgID uuid.UUID, status *Status) ([]Deal, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	var (
		rows pgx.Rows
		err  error
	)
	if status != nil {
		rows, err = s.pool.Query(ctx, `SELECT `+dealColumns+` FROM deals
WHERE organization_id = $1 AND status = $2 ORDER BY created_at DESC`, orgID, *status)
	} else {
		rows, err = s.pool.Query(ctx, `SELECT `+dealColumns+` FROM deals
WHERE organization_id = $1 ORDER BY created_at DESC`, orgID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDeals(rows)
}

// Update overwrites every mutable field of the deal in one statement. The
// derived profit fields travel with their inputs so a partial write can
// never be observed.
func (s *pgStore) Update(ctx context.Context, d Deal) (Deal, error) {
	if s == nil || s.pool == nil {
		return Deal{}, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `UPDATE deals SET
customer_name = $3,
deal_value = $4, buy_in_cost = $5, installation_cost = $6, misc_costs = $7,
initial_profit = $8, telesales_commission = $9, remaining_profit = $10,
telesales_agent_id = $11, bdm_id = $12, status = $13, notes = $14,
signed_at = $15, installed_at = $16, invoiced_at = $17, paid_at = $18,
updated_at = now()
WHERE organization_id = $1 AND id = $2
RETURNING `+dealColumns,
		d.OrganizationID, d.ID, d.CustomerName,
		d.DealValue, d.BuyInCost, d.InstallationCost, d.MiscCosts,
		d.InitialProfit, d.TelesalesCommission, d.RemainingProfit,
		d.TelesalesAgentID, d.BDMID, d.Status, nullableText(d.Notes),
		d.SignedAt, d.InstalledAt, d.InvoicedAt, d.PaidAt)
	updated, err := scanDeal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Deal{}, ErrNotFound
	}
	return updated, err
}

// Delete removes a deal by id within the organization.
func (s *pgStore) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM deals WHERE organization_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPaidInPeriod returns all paid deals of the organization whose paid
// timestamp falls within the half-open window [from, to).
func (s *pgStore) ListPaidInPeriod(ctx context.Context, orgID uuid.UUID, from, to time.Time) ([]Deal, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `SELECT `+dealColumns+` FROM deals
WHERE organization_id = $1 AND status = $2 AND paid_at >= $3 AND paid_at < $4
ORDER BY paid_at`, orgID, StatusPaid, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDeals(rows)
}

// ListPaidByBDMInPeriod narrows ListPaidInPeriod to a single BDM.
func (s *pgStore) ListPaidByBDMInPeriod(ctx context.Context, orgID, bdmID uuid.UUID, from, to time.Time) ([]Deal, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `SELECT `+dealColumns+` FROM deals
WHERE organization_id = $1 AND bdm_id = $2 AND status = $3 AND paid_at >= $4 AND paid_at < $5
ORDER BY paid_at`, orgID, bdmID, StatusPaid, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDeals(rows)
}

func collectDeals(rows pgx.Rows) ([]Deal, error) {
	deals := make([]Deal, 0)
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		deals = append(deals, d)
	}
	return deals, rows.Err()
}

func scanDeal(row pgx.Row) (Deal, error) {
	var d Deal
	var notes *string
	err := row.Scan(
		&d.ID, &d.OrganizationID, &d.DealNumber, &d.CustomerName,
		&d.DealValue, &d.BuyInCost, &d.InstallationCost, &d.MiscCosts,
		&d.InitialProfit, &d.TelesalesCommission, &d.RemainingProfit,
		&d.TelesalesAgentID, &d.BDMID, &d.Status, &notes,
		&d.SignedAt, &d.InstalledAt, &d.InvoicedAt, &d.PaidAt,
		&d.CreatedBy, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return Deal{}, err
	}
	if notes != nil {
		d.Notes = *notes
	}
	return d, nil
}

func nullableText(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
