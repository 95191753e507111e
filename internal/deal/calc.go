package deal

import (
	"errors"

	"github.com/noah-isme/backend-commissions/internal/money"
)

// TelesalesRateBps is the fixed telesales split applied to initial profit.
// It is independent of the informational per-member commission rate.
const TelesalesRateBps int32 = 1000

// ErrCostsExceedValue is returned when the combined costs are greater than
// the deal value. Such a deal is never written.
var ErrCostsExceedValue = errors.New("deal: costs exceed deal value")

// Financials are the four settable monetary inputs of a deal, in pence.
type Financials struct {
	DealValue        int64
	BuyInCost        int64
	InstallationCost int64
	MiscCosts        int64
}

// ProfitSplit holds the derived monetary fields of a deal, in pence.
// TelesalesCommission + RemainingProfit always equals InitialProfit exactly:
// only the commission is rounded, the remainder is the complement.
type ProfitSplit struct {
	InitialProfit       int64 `json:"initial_profit"`
	TelesalesCommission int64 `json:"telesales_commission"`
	RemainingProfit     int64 `json:"remaining_profit"`
}

// ComputeFinancials derives the profit split from the deal's financial
// inputs. It must be re-run in full whenever any single input changes.
func ComputeFinancials(f Financials) (ProfitSplit, error) {
	initial := f.DealValue - f.BuyInCost - f.InstallationCost - f.MiscCosts
	if initial < 0 {
		return ProfitSplit{}, ErrCostsExceedValue
	}
	commission := money.ApplyRateBps(initial, TelesalesRateBps)
	return ProfitSplit{
		InitialProfit:       initial,
		TelesalesCommission: commission,
		RemainingProfit:     initial - commission,
	}, nil
}
