package commission

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-commissions/internal/common"
)

// BDMSummary is one BDM's line in the monthly report. Persisted is false
// when no record has been stored for the period yet and the figures were
// evaluated on the fly.
type BDMSummary struct {
	BDMID           uuid.UUID `json:"bdmId"`
	Name            string    `json:"name"`
	MonthlyProfit   int64     `json:"monthlyProfit"`
	ThresholdNeeded int64     `json:"thresholdNeeded"`
	ThresholdMet    bool      `json:"thresholdMet"`
	Commission      int64     `json:"commission"`
	DeficitToNext   int64     `json:"deficitToNext"`
	DealCount       int       `json:"dealCount"`
	Persisted       bool      `json:"persisted"`
}

// MonthlySummary is the full commission report for one calendar month.
type MonthlySummary struct {
	Year                     int              `json:"year"`
	Month                    int              `json:"month"`
	DealCount                int              `json:"dealCount"`
	TotalRemainingProfit     int64            `json:"totalRemainingProfit"`
	TotalTelesalesCommission int64            `json:"totalTelesalesCommission"`
	TotalBDMCommission       int64            `json:"totalBdmCommission"`
	TotalCommissions         int64            `json:"totalCommissions"`
	Telesales                []TelesalesTotal `json:"telesales"`
	BDMs                     []BDMSummary     `json:"bdms"`
}

// Summarize builds the monthly report. It is a pure read: stored records
// are shown as-is, BDMs without a stored record are evaluated in memory
// and nothing is written back. Active BDMs with zero paid deals still get
// a line.
func (s *Service) Summarize(ctx context.Context, orgID uuid.UUID, year, month int) (MonthlySummary, error) {
	if s == nil || s.Records == nil || s.Deals == nil || s.Settings == nil || s.Team == nil {
		return MonthlySummary{}, ErrStoreUnavailable
	}
	if !ValidPeriod(year, month) {
		return MonthlySummary{}, common.NewValidationError(fmt.Sprintf("invalid period %d-%02d", year, month), nil)
	}

	from, to := PeriodBounds(year, month)
	paid, err := s.Deals.ListPaidInPeriod(ctx, orgID, from, to)
	if err != nil {
		return MonthlySummary{}, common.NewStorageError("failed to load paid deals for period", err)
	}

	summary := MonthlySummary{Year: year, Month: month, DealCount: len(paid)}
	profitByBDM := make(map[uuid.UUID]int64)
	dealsByBDM := make(map[uuid.UUID]int)
	for _, d := range paid {
		summary.TotalRemainingProfit += d.RemainingProfit
		summary.TotalTelesalesCommission += d.TelesalesCommission
		profitByBDM[d.BDMID] += d.RemainingProfit
		dealsByBDM[d.BDMID]++
	}
	summary.Telesales = AggregateTelesales(paid)
	if len(summary.Telesales) > 0 {
		agentIDs := make([]uuid.UUID, 0, len(summary.Telesales))
		for _, agent := range summary.Telesales {
			agentIDs = append(agentIDs, agent.AgentID)
		}
		names, err := s.Team.MemberNames(ctx, orgID, agentIDs)
		if err != nil {
			return MonthlySummary{}, common.NewStorageError("failed to resolve agent names", err)
		}
		for i := range summary.Telesales {
			summary.Telesales[i].AgentName = names[summary.Telesales[i].AgentID]
		}
	}

	settings, err := s.Settings.EffectiveSettings(ctx, orgID)
	if err != nil {
		return MonthlySummary{}, err
	}
	bdms, err := s.Team.ListActiveBDMs(ctx, orgID)
	if err != nil {
		return MonthlySummary{}, err
	}

	prevYear, prevMonth := PreviousPeriod(year, month)
	summary.BDMs = make([]BDMSummary, 0, len(bdms))
	for _, bdm := range bdms {
		line := BDMSummary{
			BDMID:         bdm.ID,
			Name:          bdm.Name,
			MonthlyProfit: profitByBDM[bdm.ID],
			DealCount:     dealsByBDM[bdm.ID],
		}
		stored, err := s.Records.GetPeriod(ctx, orgID, bdm.ID, year, month)
		switch {
		case err == nil:
			line.MonthlyProfit = stored.MonthlyProfit
			line.ThresholdNeeded = stored.ThresholdNeeded
			line.ThresholdMet = stored.ThresholdMet
			line.Commission = stored.Commission
			line.DeficitToNext = stored.DeficitToNext
			line.DealCount = stored.DealCount
			line.Persisted = true
		case errors.Is(err, ErrNotFound):
			var previousDeficit int64
			prev, err := s.Records.GetPeriod(ctx, orgID, bdm.ID, prevYear, prevMonth)
			switch {
			case err == nil:
				previousDeficit = prev.DeficitToNext
			case errors.Is(err, ErrNotFound):
			default:
				return MonthlySummary{}, common.NewStorageError("failed to load previous commission record", err)
			}
			out := Evaluate(Inputs{
				MonthlyProfit:   line.MonthlyProfit,
				BaseThreshold:   settings.BDMThresholdPence,
				PreviousDeficit: previousDeficit,
				RateBps:         settings.BDMCommissionRateBps,
			})
			line.ThresholdNeeded = out.ThresholdNeeded
			line.ThresholdMet = out.ThresholdMet
			line.Commission = out.Commission
			line.DeficitToNext = out.DeficitToNext
		default:
			return MonthlySummary{}, common.NewStorageError("failed to load commission record", err)
		}
		summary.TotalBDMCommission += line.Commission
		summary.BDMs = append(summary.BDMs, line)
	}
	summary.TotalCommissions = summary.TotalTelesalesCommission + summary.TotalBDMCommission
	return summary, nil
}
