package deal

import (
	"errors"
	"testing"
)

func TestComputeFinancialsSplitsProfit(t *testing.T) {
	split, err := ComputeFinancials(Financials{
		DealValue:        100_000,
		BuyInCost:        40_000,
		InstallationCost: 10_000,
		MiscCosts:        5_000,
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if split.InitialProfit != 45_000 {
		t.Fatalf("initial profit = %d, want 45000", split.InitialProfit)
	}
	if split.TelesalesCommission != 4_500 {
		t.Fatalf("telesales commission = %d, want 4500", split.TelesalesCommission)
	}
	if split.RemainingProfit != 40_500 {
		t.Fatalf("remaining profit = %d, want 40500", split.RemainingProfit)
	}
}

func TestComputeFinancialsValidationBoundary(t *testing.T) {
	_, err := ComputeFinancials(Financials{DealValue: 1000, BuyInCost: 600, InstallationCost: 300, MiscCosts: 101})
	if !errors.Is(err, ErrCostsExceedValue) {
		t.Fatalf("expected ErrCostsExceedValue, got %v", err)
	}

	split, err := ComputeFinancials(Financials{DealValue: 1000, BuyInCost: 600, InstallationCost: 300, MiscCosts: 100})
	if err != nil {
		t.Fatalf("zero-profit deal must be accepted: %v", err)
	}
	if split.InitialProfit != 0 || split.TelesalesCommission != 0 || split.RemainingProfit != 0 {
		t.Fatalf("zero-profit split = %+v", split)
	}
}

func TestComputeFinancialsRoundsHalfUp(t *testing.T) {
	split, err := ComputeFinancials(Financials{DealValue: 15})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if split.TelesalesCommission != 2 {
		t.Fatalf("commission on 15p = %d, want 2 (round half up)", split.TelesalesCommission)
	}
	if split.RemainingProfit != 13 {
		t.Fatalf("remaining on 15p = %d, want 13", split.RemainingProfit)
	}
}

func TestComputeFinancialsComplementProperty(t *testing.T) {
	for value := int64(0); value < 500; value++ {
		split, err := ComputeFinancials(Financials{DealValue: value})
		if err != nil {
			t.Fatalf("value %d: %v", value, err)
		}
		if split.TelesalesCommission+split.RemainingProfit != split.InitialProfit {
			t.Fatalf("value %d: split does not sum: %+v", value, split)
		}
	}
}
