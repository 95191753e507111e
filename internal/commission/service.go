package commission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-commissions/internal/common"
	"github.com/noah-isme/backend-commissions/internal/deal"
	"github.com/noah-isme/backend-commissions/internal/events"
	"github.com/noah-isme/backend-commissions/internal/obs"
	"github.com/noah-isme/backend-commissions/internal/org"
	"github.com/noah-isme/backend-commissions/internal/team"
)

// SettingsSource resolves the organization's threshold and rate. The
// service reads them fresh on every calculation so a settings change is
// picked up by the next run, never retroactively.
type SettingsSource interface {
	EffectiveSettings(ctx context.Context, orgID uuid.UUID) (org.Settings, error)
}

// DealSource reads the paid deals feeding the engines.
type DealSource interface {
	ListPaidInPeriod(ctx context.Context, orgID uuid.UUID, from, to time.Time) ([]deal.Deal, error)
	ListPaidByBDMInPeriod(ctx context.Context, orgID, bdmID uuid.UUID, from, to time.Time) ([]deal.Deal, error)
}

// BDMSource lists the BDMs a period summary must cover and resolves the
// names of the agents appearing in it.
type BDMSource interface {
	ListActiveBDMs(ctx context.Context, orgID uuid.UUID) ([]team.Member, error)
	MemberNames(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// EventEmitter publishes domain events.
type EventEmitter interface {
	Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) error
}

// Service runs the BDM engine against stored deals and persists the
// resulting records.
type Service struct {
	Records  Store
	Deals    DealSource
	Settings SettingsSource
	Team     BDMSource
	Events   EventEmitter
	Now      func() time.Time
}

// CalculateMonthlyBDMCommission evaluates one (bdm, year, month) and
// upserts the record. The previous month's stored deficit is the only
// history consulted; the chain is never walked further back. Any read
// failure aborts before anything is written.
func (s *Service) CalculateMonthlyBDMCommission(ctx context.Context, orgID, bdmID uuid.UUID, year, month int, calculatedBy uuid.UUID) (Record, error) {
	if s == nil || s.Records == nil || s.Deals == nil || s.Settings == nil {
		return Record{}, ErrStoreUnavailable
	}
	if !ValidPeriod(year, month) {
		return Record{}, common.NewValidationError(fmt.Sprintf("invalid period %d-%02d", year, month), nil)
	}

	settings, err := s.Settings.EffectiveSettings(ctx, orgID)
	if err != nil {
		return Record{}, err
	}

	from, to := PeriodBounds(year, month)
	deals, err := s.Deals.ListPaidByBDMInPeriod(ctx, orgID, bdmID, from, to)
	if err != nil {
		return Record{}, common.NewStorageError("failed to load paid deals for period", err)
	}
	var monthlyProfit int64
	for _, d := range deals {
		monthlyProfit += d.RemainingProfit
	}

	prevYear, prevMonth := PreviousPeriod(year, month)
	var previousDeficit int64
	prev, err := s.Records.GetPeriod(ctx, orgID, bdmID, prevYear, prevMonth)
	switch {
	case err == nil:
		previousDeficit = prev.DeficitToNext
	case errors.Is(err, ErrNotFound):
		// No history means no carried deficit.
	default:
		return Record{}, common.NewStorageError("failed to load previous commission record", err)
	}

	out := Evaluate(Inputs{
		MonthlyProfit:   monthlyProfit,
		BaseThreshold:   settings.BDMThresholdPence,
		PreviousDeficit: previousDeficit,
		RateBps:         settings.BDMCommissionRateBps,
	})

	rec, err := s.Records.Upsert(ctx, Record{
		OrganizationID:  orgID,
		BDMID:           bdmID,
		Year:            year,
		Month:           month,
		MonthlyProfit:   monthlyProfit,
		BaseThreshold:   settings.BDMThresholdPence,
		PreviousDeficit: previousDeficit,
		ThresholdNeeded: out.ThresholdNeeded,
		ThresholdMet:    out.ThresholdMet,
		Excess:          out.Excess,
		Commission:      out.Commission,
		DeficitToNext:   out.DeficitToNext,
		RateBps:         settings.BDMCommissionRateBps,
		DealCount:       len(deals),
		CalculatedBy:    calculatedBy,
	})
	if err != nil {
		return Record{}, common.NewStorageError("failed to save commission record", err)
	}
	if obs.CommissionPaidPence != nil {
		obs.CommissionPaidPence.WithLabelValues("bdm").Observe(float64(rec.Commission))
	}

	if s.Events != nil {
		payload := map[string]any{
			"bdmId":      bdmID.String(),
			"year":       year,
			"month":      month,
			"commission": rec.Commission,
			"deficit":    rec.DeficitToNext,
		}
		if err := s.Events.Emit(ctx, events.TopicCommissionCalculated, rec.ID, payload); err != nil {
			return rec, common.NewStorageError("failed to record commission.calculated event", err)
		}
	}
	return rec, nil
}

// RecalculatePeriod re-runs the engine for every active BDM in the period.
// Used by the explicit recalculation endpoint after backdated edits.
func (s *Service) RecalculatePeriod(ctx context.Context, orgID uuid.UUID, year, month int, calculatedBy uuid.UUID) ([]Record, error) {
	if s == nil || s.Team == nil {
		return nil, ErrStoreUnavailable
	}
	if !ValidPeriod(year, month) {
		return nil, common.NewValidationError(fmt.Sprintf("invalid period %d-%02d", year, month), nil)
	}
	bdms, err := s.Team.ListActiveBDMs(ctx, orgID)
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(bdms))
	for _, bdm := range bdms {
		rec, err := s.CalculateMonthlyBDMCommission(ctx, orgID, bdm.ID, year, month, calculatedBy)
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// ScheduleRecalc satisfies the deal package's scheduler when recalculation
// runs synchronously in-process.
func (s *Service) ScheduleRecalc(ctx context.Context, req deal.RecalcRequest) error {
	_, err := s.CalculateMonthlyBDMCommission(ctx, req.OrganizationID, req.BDMID, req.Year, req.Month, req.TriggeredBy)
	countRecalc("sync", err)
	return err
}
