package tax

import (
	"context"
	"testing"
)

func TestRateLookup(t *testing.T) {
	est := NewEstimator(nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		state  string
		county string
		want   float64
	}{
		{"state default when county empty", "CA", "", 0.0725},
		{"county surcharge stacks on default", "CA", "Los Angeles", 0.0950},
		{"county match is case-insensitive", "ca", "los angeles", 0.0950},
		{"unmatched county falls back to default", "CA", "Atlantis", 0.0725},
		{"zero-rate state", "OR", "", 0},
		{"unknown state yields zero", "ZZ", "Anywhere", 0},
		{"district of columbia", "DC", "", 0.06},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := est.Rate(ctx, tc.state, tc.county)
			if diff := got - tc.want; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("rate = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRateNeverNegative(t *testing.T) {
	est := NewEstimator(nil)
	ctx := context.Background()
	for state, entry := range stateRates {
		if got := est.Rate(ctx, state, ""); got < 0 {
			t.Fatalf("state %s default rate is negative: %v", state, got)
		}
		for county := range entry.counties {
			if got := est.Rate(ctx, state, county); got < 0 {
				t.Fatalf("%s/%s rate is negative: %v", state, county, got)
			}
		}
	}
}

func TestEstimateRoundsHalfUp(t *testing.T) {
	est := NewEstimator(nil)
	ctx := context.Background()

	// 40000 cents at the CA default rate: 40000 * 0.0725 = 2900 exactly.
	got := est.Estimate(ctx, "CA", "", 40000)
	if got.Tax != 2900 {
		t.Fatalf("tax = %d, want 2900", got.Tax)
	}

	// 333 cents at 7.25%: 24.1425 rounds to 24.
	got = est.Estimate(ctx, "CA", "", 333)
	if got.Tax != 24 {
		t.Fatalf("tax = %d, want 24", got.Tax)
	}

	// 1034 cents at 7.25%: 74.965 rounds up to 75.
	got = est.Estimate(ctx, "CA", "", 1034)
	if got.Tax != 75 {
		t.Fatalf("tax = %d, want 75", got.Tax)
	}
}

func TestUnmatchedCountyLogsWarning(t *testing.T) {
	var events []string
	est := NewEstimator(func(_ context.Context, event string, _ map[string]any) {
		events = append(events, event)
	})

	est.Rate(context.Background(), "CA", "Atlantis")
	if len(events) != 1 || events[0] != "tax.county.unmatched" {
		t.Fatalf("expected an unmatched-county event, got %v", events)
	}
}
