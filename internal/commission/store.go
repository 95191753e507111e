package commission

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrStoreUnavailable is returned when the store has no database pool.
	ErrStoreUnavailable = errors.New("commission: store unavailable")
	// ErrNotFound is returned when no record exists for the period.
	ErrNotFound = errors.New("commission: record not found")
)

// Record is the persisted outcome of one BDM evaluation. One row per
// (organization, bdm, year, month); recalculations overwrite in place.
type Record struct {
	ID              uuid.UUID `json:"id"`
	OrganizationID  uuid.UUID `json:"organizationId"`
	BDMID           uuid.UUID `json:"bdmId"`
	Year            int       `json:"year"`
	Month           int       `json:"month"`
	MonthlyProfit   int64     `json:"monthlyProfit"`
	BaseThreshold   int64     `json:"baseThreshold"`
	PreviousDeficit int64     `json:"previousDeficit"`
	ThresholdNeeded int64     `json:"thresholdNeeded"`
	ThresholdMet    bool      `json:"thresholdMet"`
	Excess          int64     `json:"excess"`
	Commission      int64     `json:"commission"`
	DeficitToNext   int64     `json:"deficitToNext"`
	RateBps         int32     `json:"rateBps"`
	DealCount       int       `json:"dealCount"`
	CalculatedBy    uuid.UUID `json:"calculatedBy"`
	CalculatedAt    time.Time `json:"calculatedAt"`
}

// Store persists commission records.
type Store interface {
	GetPeriod(ctx context.Context, orgID, bdmID uuid.UUID, year, month int) (Record, error)
	Upsert(ctx context.Context, rec Record) (Record, error)
	ListPeriod(ctx context.Context, orgID uuid.UUID, year, month int) ([]Record, error)
	ListByBDM(ctx context.Context, orgID, bdmID uuid.UUID) ([]Record, error)
}

// NewStore returns a Postgres-backed Store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

const recordColumns = `id, organization_id, bdm_id, year, month, monthly_profit, base_threshold,
	previous_deficit, threshold_needed, threshold_met, excess, commission, deficit_to_next,
	rate_bps, deal_count, calculated_by, calculated_at`

func (s *pgStore) GetPeriod(ctx context.Context, orgID, bdmID uuid.UUID, year, month int) (Record, error) {
	if s == nil || s.pool == nil {
		return Record{}, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM commission_records
		WHERE organization_id = $1 AND bdm_id = $2 AND year = $3 AND month = $4`,
		orgID, bdmID, year, month,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// Upsert writes the evaluation in a single statement so a concurrent
// recalculation of the same period cannot interleave partial results.
func (s *pgStore) Upsert(ctx context.Context, rec Record) (Record, error) {
	if s == nil || s.pool == nil {
		return Record{}, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO commission_records (
			organization_id, bdm_id, year, month, monthly_profit, base_threshold,
			previous_deficit, threshold_needed, threshold_met, excess, commission,
			deficit_to_next, rate_bps, deal_count, calculated_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (organization_id, bdm_id, year, month) DO UPDATE
		SET monthly_profit = EXCLUDED.monthly_profit,
		    base_threshold = EXCLUDED.base_threshold,
		    previous_deficit = EXCLUDED.previous_deficit,
		    threshold_needed = EXCLUDED.threshold_needed,
		    threshold_met = EXCLUDED.threshold_met,
		    excess = EXCLUDED.excess,
		    commission = EXCLUDED.commission,
		    deficit_to_next = EXCLUDED.deficit_to_next,
		    rate_bps = EXCLUDED.rate_bps,
		    deal_count = EXCLUDED.deal_count,
		    calculated_by = EXCLUDED.calculated_by,
		    calculated_at = now()
		RETURNING `+recordColumns,
		rec.OrganizationID, rec.BDMID, rec.Year, rec.Month, rec.MonthlyProfit, rec.BaseThreshold,
		rec.PreviousDeficit, rec.ThresholdNeeded, rec.ThresholdMet, rec.Excess, rec.Commission,
		rec.DeficitToNext, rec.RateBps, rec.DealCount, rec.CalculatedBy,
	)
	return scanRecord(row)
}

func (s *pgStore) ListPeriod(ctx context.Context, orgID uuid.UUID, year, month int) ([]Record, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM commission_records
		WHERE organization_id = $1 AND year = $2 AND month = $3
		ORDER BY bdm_id`,
		orgID, year, month,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *pgStore) ListByBDM(ctx context.Context, orgID, bdmID uuid.UUID) ([]Record, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM commission_records
		WHERE organization_id = $1 AND bdm_id = $2
		ORDER BY year, month`,
		orgID, bdmID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID, &rec.OrganizationID, &rec.BDMID, &rec.Year, &rec.Month,
		&rec.MonthlyProfit, &rec.BaseThreshold, &rec.PreviousDeficit,
		&rec.ThresholdNeeded, &rec.ThresholdMet, &rec.Excess, &rec.Commission,
		&rec.DeficitToNext, &rec.RateBps, &rec.DealCount,
		&rec.CalculatedBy, &rec.CalculatedAt,
	)
	return rec, err
}

func collectRecords(rows pgx.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
