package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/remitta/compliance-service/internal/domain"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("invalid decimal literal %q: %v", s, err)
	}
	return d
}

func TestEvaluateCapBoundaries(t *testing.T) {
	asOf := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	// Oldest transfer three days ago: five days until it ages out of the window.
	oldest := asOf.Add(-3 * 24 * time.Hour)

	tests := []struct {
		name          string
		used          string
		requested     string
		withOldest    bool
		wantAllowed   bool
		wantAvailable string
		wantReason    string
	}{
		{
			name:          "headroom reported for partial usage",
			used:          "500",
			requested:     "100",
			withOldest:    true,
			wantAllowed:   true,
			wantAvailable: "499",
			wantReason:    domain.ReasonEligible,
		},
		{
			name:          "single amount above per-transfer cap",
			used:          "0",
			requested:     "1000",
			wantAllowed:   false,
			wantAvailable: "999",
			wantReason:    domain.ReasonLimitExceeded,
		},
		{
			name:          "prior usage plus request above cap",
			used:          "500",
			requested:     "600",
			withOldest:    true,
			wantAllowed:   false,
			wantAvailable: "499",
			wantReason:    domain.ReasonBlockedWaitDays,
		},
		{
			name:          "full cap in one transfer",
			used:          "0",
			requested:     "999",
			wantAllowed:   true,
			wantAvailable: "999",
			wantReason:    domain.ReasonEligible,
		},
		{
			name:          "sum exactly at cap is allowed",
			used:          "499",
			requested:     "500",
			withOldest:    true,
			wantAllowed:   true,
			wantAvailable: "500",
			wantReason:    domain.ReasonEligible,
		},
		{
			name:          "any increment over exhausted window",
			used:          "999",
			requested:     "1",
			withOldest:    true,
			wantAllowed:   false,
			wantAvailable: "0",
			wantReason:    domain.ReasonBlockedWaitDays,
		},
		{
			name:          "999.99 is above the strict 999 cap",
			used:          "0",
			requested:     "999.99",
			wantAllowed:   false,
			wantAvailable: "999",
			wantReason:    domain.ReasonLimitExceeded,
		},
		{
			name:          "one cent over the boundary",
			used:          "998.50",
			requested:     "0.51",
			withOldest:    true,
			wantAllowed:   false,
			wantAvailable: "0.5",
			wantReason:    domain.ReasonBlockedWaitDays,
		},
		{
			name:          "cent-level sum exactly at cap",
			used:          "998.50",
			requested:     "0.50",
			withOldest:    true,
			wantAllowed:   true,
			wantAvailable: "0.5",
			wantReason:    domain.ReasonEligible,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := domain.WindowAggregate{AmountUsed: dec(t, tt.used)}
			if tt.withOldest {
				d := oldest
				agg.OldestTransferDate = &d
			}

			verdict := Evaluate(agg, dec(t, tt.requested), asOf, DefaultLimits())

			if verdict.Allowed != tt.wantAllowed {
				t.Fatalf("expected allowed=%t, got %t", tt.wantAllowed, verdict.Allowed)
			}
			if !verdict.AmountAvailable.Equal(dec(t, tt.wantAvailable)) {
				t.Fatalf("expected available=%s, got %s", tt.wantAvailable, verdict.AmountAvailable)
			}
			if verdict.ReasonCode != tt.wantReason {
				t.Fatalf("expected reason=%q, got %q", tt.wantReason, verdict.ReasonCode)
			}
		})
	}
}

func TestEvaluateRejectsNonPositiveAmounts(t *testing.T) {
	asOf := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	for _, amount := range []string{"0", "-1", "-999.99"} {
		t.Run("amount "+amount, func(t *testing.T) {
			verdict := Evaluate(domain.WindowAggregate{AmountUsed: decimal.Zero}, dec(t, amount), asOf, DefaultLimits())
			if verdict.Allowed {
				t.Fatalf("expected non-positive amount %s to be blocked", amount)
			}
			if verdict.ReasonCode != domain.ReasonLimitExceeded {
				t.Fatalf("expected reason=%q, got %q", domain.ReasonLimitExceeded, verdict.ReasonCode)
			}
		})
	}
}

func TestEvaluateResetDateArithmetic(t *testing.T) {
	asOf := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		oldest        *time.Time
		wantDays      int
		wantResetNil  bool
	}{
		{
			name:         "empty window has no reset date",
			oldest:       nil,
			wantDays:     0,
			wantResetNil: true,
		},
		{
			name:     "oldest transfer moments ago waits the full period",
			oldest:   timePtr(asOf.Add(-1 * time.Minute)),
			wantDays: 8,
		},
		{
			name:     "partial day remaining rounds up",
			oldest:   timePtr(asOf.Add(-7*24*time.Hour - 12*time.Hour)),
			wantDays: 1,
		},
		{
			name:     "exactly at reset instant is zero",
			oldest:   timePtr(asOf.Add(-8 * 24 * time.Hour)),
			wantDays: 0,
		},
		{
			name:     "past reset instant clamps to zero",
			oldest:   timePtr(asOf.Add(-9 * 24 * time.Hour)),
			wantDays: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := domain.WindowAggregate{AmountUsed: dec(t, "999"), OldestTransferDate: tt.oldest}
			verdict := Evaluate(agg, dec(t, "1"), asOf, DefaultLimits())

			if verdict.DaysRemaining != tt.wantDays {
				t.Fatalf("expected days_remaining=%d, got %d", tt.wantDays, verdict.DaysRemaining)
			}
			if tt.wantResetNil {
				if verdict.ResetDate != nil {
					t.Fatalf("expected nil reset date, got %v", verdict.ResetDate)
				}
				return
			}
			if verdict.ResetDate == nil {
				t.Fatal("expected a reset date")
			}
			wantReset := tt.oldest.Add(8 * 24 * time.Hour)
			if !verdict.ResetDate.Equal(wantReset) {
				t.Fatalf("expected reset=%v, got %v", wantReset, verdict.ResetDate)
			}
		})
	}
}

func TestEvaluateBlockedReasonDependsOnPendingRelease(t *testing.T) {
	asOf := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	// Saturated window whose oldest transfer still has days to live: waiting helps.
	recent := asOf.Add(-2 * 24 * time.Hour)
	agg := domain.WindowAggregate{AmountUsed: dec(t, "999"), OldestTransferDate: &recent}
	verdict := Evaluate(agg, dec(t, "10"), asOf, DefaultLimits())
	if verdict.ReasonCode != domain.ReasonBlockedWaitDays {
		t.Fatalf("expected %q, got %q", domain.ReasonBlockedWaitDays, verdict.ReasonCode)
	}
	if verdict.DaysRemaining != 6 {
		t.Fatalf("expected days_remaining=6, got %d", verdict.DaysRemaining)
	}

	// Inconsistent edge: blocked with a non-empty window but no pending release.
	// Reported as limit_exceeded rather than a zero-day wait instruction.
	stale := asOf.Add(-8 * 24 * time.Hour)
	agg = domain.WindowAggregate{AmountUsed: dec(t, "999"), OldestTransferDate: &stale}
	verdict = Evaluate(agg, dec(t, "10"), asOf, DefaultLimits())
	if verdict.ReasonCode != domain.ReasonLimitExceeded {
		t.Fatalf("expected %q, got %q", domain.ReasonLimitExceeded, verdict.ReasonCode)
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	asOf := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	oldest := asOf.Add(-4 * 24 * time.Hour)
	agg := domain.WindowAggregate{AmountUsed: dec(t, "512.34"), OldestTransferDate: &oldest}

	first := Evaluate(agg, dec(t, "100"), asOf, DefaultLimits())
	second := Evaluate(agg, dec(t, "100"), asOf, DefaultLimits())

	if first.Allowed != second.Allowed ||
		first.ReasonCode != second.ReasonCode ||
		first.DaysRemaining != second.DaysRemaining ||
		!first.AmountAvailable.Equal(second.AmountAvailable) {
		t.Fatalf("expected identical verdicts, got %+v and %+v", first, second)
	}
}

func TestLimitsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Limits)
		wantErr error
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Limits) {},
		},
		{
			name:    "zero window cap",
			mutate:  func(l *Limits) { l.WindowCap = decimal.Zero },
			wantErr: ErrInvalidWindowCap,
		},
		{
			name:    "negative single-transfer cap",
			mutate:  func(l *Limits) { l.SingleTransferCap = decimal.NewFromInt(-1) },
			wantErr: ErrInvalidTransferCap,
		},
		{
			name:    "zero period",
			mutate:  func(l *Limits) { l.PeriodDays = 0 },
			wantErr: ErrInvalidPeriodDays,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limits := DefaultLimits()
			tt.mutate(&limits)
			err := limits.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err != tt.wantErr {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
