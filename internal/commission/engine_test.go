package commission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEvaluateThresholdMet(t *testing.T) {
	out := Evaluate(Inputs{
		MonthlyProfit: 500000,
		BaseThreshold: 350000,
		RateBps:       10000,
	})
	require.True(t, out.ThresholdMet)
	require.Equal(t, int64(350000), out.ThresholdNeeded)
	require.Equal(t, int64(150000), out.Excess)
	require.Equal(t, int64(150000), out.Commission)
	require.Equal(t, int64(0), out.DeficitToNext)
}

func TestEvaluateThresholdMissed(t *testing.T) {
	out := Evaluate(Inputs{
		MonthlyProfit: 200000,
		BaseThreshold: 350000,
		RateBps:       10000,
	})
	require.False(t, out.ThresholdMet)
	require.Equal(t, int64(0), out.Commission)
	require.Equal(t, int64(0), out.Excess)
	require.Equal(t, int64(150000), out.DeficitToNext)
}

func TestEvaluateDeficitRaisesThreshold(t *testing.T) {
	out := Evaluate(Inputs{
		MonthlyProfit:   500000,
		BaseThreshold:   350000,
		PreviousDeficit: 150000,
		RateBps:         10000,
	})
	require.True(t, out.ThresholdMet)
	require.Equal(t, int64(500000), out.ThresholdNeeded)
	require.Equal(t, int64(0), out.Excess)
	require.Equal(t, int64(0), out.Commission)
	require.Equal(t, int64(0), out.DeficitToNext)
}

func TestEvaluateDeficitCompoundsOnRepeatedMiss(t *testing.T) {
	first := Evaluate(Inputs{
		MonthlyProfit: 100000,
		BaseThreshold: 350000,
		RateBps:       10000,
	})
	require.Equal(t, int64(250000), first.DeficitToNext)

	second := Evaluate(Inputs{
		MonthlyProfit:   50000,
		BaseThreshold:   350000,
		PreviousDeficit: first.DeficitToNext,
		RateBps:         10000,
	})
	require.Equal(t, int64(600000), second.ThresholdNeeded)
	require.Equal(t, int64(550000), second.DeficitToNext)
}

func TestEvaluateMeetingClearsEntireDeficit(t *testing.T) {
	// A single good month clears any accumulated deficit completely.
	out := Evaluate(Inputs{
		MonthlyProfit:   2000000,
		BaseThreshold:   350000,
		PreviousDeficit: 1000000,
		RateBps:         10000,
	})
	require.True(t, out.ThresholdMet)
	require.Equal(t, int64(650000), out.Excess)
	require.Equal(t, int64(0), out.DeficitToNext)
}

func TestEvaluateZeroProfitMonth(t *testing.T) {
	out := Evaluate(Inputs{
		MonthlyProfit: 0,
		BaseThreshold: 350000,
		RateBps:       10000,
	})
	require.False(t, out.ThresholdMet)
	require.Equal(t, int64(350000), out.DeficitToNext)
}

func TestEvaluateRateRoundsHalfUp(t *testing.T) {
	out := Evaluate(Inputs{
		MonthlyProfit: 350015,
		BaseThreshold: 350000,
		RateBps:       1000,
	})
	require.Equal(t, int64(15), out.Excess)
	// 15 * 10% = 1.5, rounded half up.
	require.Equal(t, int64(2), out.Commission)
}

func TestEvaluateExactThreshold(t *testing.T) {
	out := Evaluate(Inputs{
		MonthlyProfit: 350000,
		BaseThreshold: 350000,
		RateBps:       10000,
	})
	require.True(t, out.ThresholdMet)
	require.Equal(t, int64(0), out.Commission)
	require.Equal(t, int64(0), out.DeficitToNext)
}

func TestPreviousPeriodYearRollover(t *testing.T) {
	year, month := PreviousPeriod(2025, 1)
	require.Equal(t, 2024, year)
	require.Equal(t, 12, month)

	year, month = PreviousPeriod(2025, 7)
	require.Equal(t, 2025, year)
	require.Equal(t, 6, month)
}

func TestPeriodBounds(t *testing.T) {
	from, to := PeriodBounds(2024, 12)
	require.Equal(t, time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC), from)
	require.Equal(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), to)

	// A payment at the last instant of the month belongs to it.
	lastMoment := time.Date(2024, time.December, 31, 23, 59, 59, 999000000, time.UTC)
	require.True(t, lastMoment.Before(to))
	require.False(t, lastMoment.Before(from))
}

func TestValidPeriod(t *testing.T) {
	require.True(t, ValidPeriod(2025, 1))
	require.True(t, ValidPeriod(2025, 12))
	require.False(t, ValidPeriod(2025, 0))
	require.False(t, ValidPeriod(2025, 13))
	require.False(t, ValidPeriod(1900, 6))
}
