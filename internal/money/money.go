// Package money implements integer pence arithmetic for commission
// calculations. Monetary values are stored and compared as int64 pence;
// pounds appear only at parsing and formatting boundaries.
package money

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrNegativeAmount is returned when a monetary input parses below zero.
	ErrNegativeAmount = errors.New("money: amount must not be negative")
	// ErrInvalidAmount is returned for unparseable or overflowing input.
	ErrInvalidAmount = errors.New("money: invalid amount")
)

// PoundsToPence parses a decimal pounds string into integer pence. Input
// beyond two decimal places rounds half up to the nearest penny so the
// conversion is deterministic.
func PoundsToPence(amount string) (int64, error) {
	trimmed := strings.TrimSpace(amount)
	if trimmed == "" {
		return 0, ErrInvalidAmount
	}
	if strings.HasPrefix(trimmed, "-") {
		return 0, ErrNegativeAmount
	}
	whole := trimmed
	frac := ""
	if idx := strings.IndexByte(trimmed, '.'); idx >= 0 {
		whole = trimmed[:idx]
		frac = trimmed[idx+1:]
	}
	if whole == "" {
		whole = "0"
	}
	var pounds int64
	for i := 0; i < len(whole); i++ {
		c := whole[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
		}
		if pounds > (math.MaxInt64-int64(c-'0'))/10 {
			return 0, fmt.Errorf("%w: %q overflows", ErrInvalidAmount, amount)
		}
		pounds = pounds*10 + int64(c-'0')
	}
	for i := 0; i < len(frac); i++ {
		c := frac[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
		}
	}
	var pence int64
	switch {
	case len(frac) == 0:
	case len(frac) == 1:
		pence = int64(frac[0]-'0') * 10
	default:
		pence = int64(frac[0]-'0')*10 + int64(frac[1]-'0')
		if len(frac) > 2 && frac[2] >= '5' {
			pence++
		}
	}
	if pence == 100 {
		pence = 0
		if pounds == math.MaxInt64 {
			return 0, fmt.Errorf("%w: %q overflows", ErrInvalidAmount, amount)
		}
		pounds++
	}
	if pounds > (math.MaxInt64-pence)/100 {
		return 0, fmt.Errorf("%w: %q overflows", ErrInvalidAmount, amount)
	}
	return pounds*100 + pence, nil
}

// PenceToPounds formats integer pence as an exact two-decimal pounds string.
func PenceToPounds(pence int64) string {
	sign := ""
	if pence < 0 {
		sign = "-"
		pence = -pence
	}
	return fmt.Sprintf("%s%d.%02d", sign, pence/100, pence%100)
}

// ApplyRateBps multiplies an amount by a basis-point rate, rounding half up.
// The 10% telesales split is ApplyRateBps(initialProfit, 1000).
func ApplyRateBps(amount int64, bps int32) int64 {
	if amount <= 0 || bps <= 0 {
		return 0
	}
	product := amount * int64(bps)
	return (product + 5000) / 10000
}

// ApplyRate multiplies an amount by a decimal fraction rate, rounding half
// up. Used for the organization-level BDM commission rate.
func ApplyRate(amount int64, rate float64) int64 {
	if amount <= 0 || rate <= 0 {
		return 0
	}
	return int64(math.Floor(float64(amount)*rate + 0.5))
}
