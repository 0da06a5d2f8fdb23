package tax

import (
	"context"
	"math"
	"strings"
)

// Logger receives structured events from the estimator.
type Logger func(ctx context.Context, event string, fields map[string]any)

// Estimate is the result of a jurisdiction lookup applied to a subtotal.
type Estimate struct {
	Rate float64
	// Tax is round(subtotal * rate) in cents, half-up.
	Tax int64
}

// Estimator resolves sales tax rates from the static jurisdiction table.
type Estimator struct {
	logger Logger
}

// NewEstimator constructs an Estimator. The logger is optional.
func NewEstimator(logger Logger) *Estimator {
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &Estimator{logger: logger}
}

// Rate resolves the combined rate for a state/county pair. County surcharges
// stack on top of the state default; an unmatched county falls back to the
// state default with a warning, and an unknown state yields zero.
func (e *Estimator) Rate(ctx context.Context, state, county string) float64 {
	abbr := strings.ToUpper(strings.TrimSpace(state))
	if abbr == "" {
		return 0
	}

	entry, ok := stateRates[abbr]
	if !ok {
		return 0
	}

	name := strings.ToLower(strings.TrimSpace(county))
	if name == "" {
		return entry.defaultRate
	}

	surcharge, ok := entry.counties[name]
	if !ok {
		e.logger(ctx, "tax.county.unmatched", map[string]any{
			"state":  abbr,
			"county": county,
		})
		return entry.defaultRate
	}
	return entry.defaultRate + surcharge
}

// Estimate computes the rate and rounded tax amount for a subtotal in cents.
func (e *Estimator) Estimate(ctx context.Context, state, county string, subtotal int64) Estimate {
	rate := e.Rate(ctx, state, county)
	return Estimate{
		Rate: rate,
		Tax:  RoundCents(float64(subtotal) * rate),
	}
}

// RoundCents rounds half away from zero to the nearest cent.
func RoundCents(v float64) int64 {
	return int64(math.Round(v))
}
