// Package commission implements the two commission engines: the flat
// telesales cut recorded on each deal, and the monthly BDM
// deficit-threshold calculation with its carried-forward shortfall.
package commission

import (
	"time"

	"github.com/noah-isme/backend-commissions/internal/money"
)

// Inputs are everything the BDM engine needs for one (bdm, month)
// evaluation. All amounts are pence.
type Inputs struct {
	MonthlyProfit   int64
	BaseThreshold   int64
	PreviousDeficit int64
	RateBps         int32
}

// Outcome is the result of one evaluation. Exactly one of Commission and
// DeficitToNext can be non-zero. ThresholdNeeded is the base threshold plus
// the carried deficit.
type Outcome struct {
	ThresholdNeeded int64
	ThresholdMet    bool
	Excess          int64
	Commission      int64
	DeficitToNext   int64
}

// Evaluate runs the deficit-threshold rule. Meeting the raised threshold
// clears the entire carried deficit, however large; missing it carries the
// full shortfall forward uncapped.
func Evaluate(in Inputs) Outcome {
	needed := in.BaseThreshold + in.PreviousDeficit
	if in.MonthlyProfit >= needed {
		excess := in.MonthlyProfit - needed
		return Outcome{
			ThresholdNeeded: needed,
			ThresholdMet:    true,
			Excess:          excess,
			Commission:      money.ApplyRateBps(excess, in.RateBps),
		}
	}
	return Outcome{
		ThresholdNeeded: needed,
		DeficitToNext:   needed - in.MonthlyProfit,
	}
}

// PreviousPeriod returns the calendar month before (year, month), rolling
// January back to December of the prior year.
func PreviousPeriod(year, month int) (int, int) {
	if month == 1 {
		return year - 1, 12
	}
	return year, month - 1
}

// PeriodBounds returns the UTC half-open interval [from, to) covering the
// calendar month.
func PeriodBounds(year, month int) (time.Time, time.Time) {
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

// ValidPeriod reports whether (year, month) identifies a real calendar
// month the engine will accept.
func ValidPeriod(year, month int) bool {
	return month >= 1 && month <= 12 && year >= 2000 && year <= 2200
}
