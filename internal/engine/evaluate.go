/**
 * @description
 * The eligibility evaluator: a pure function of the window aggregate, the
 * requested amount, the evaluation instant and the injected limits. No I/O,
 * fully deterministic, which makes it the natural unit boundary for the
 * boundary-value tests in this package.
 *
 * The cap comparison is inclusive and exact at the cent level: used + requested
 * equal to the cap passes, one cent above fails. decimal.Decimal comparisons
 * carry no float epsilon, so 999.99 against a 999 cap is rejected by
 * construction rather than by tolerance tuning.
 */

package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/remitta/compliance-service/internal/domain"
)

// Evaluate applies the rolling-window cap to a requested transfer amount.
//
// Reason codes:
//   - eligible: the transfer may proceed.
//   - blocked_wait_days: the window is saturated; capacity frees when the oldest
//     contributing transfer ages out (DaysRemaining reports that single next
//     release event, not a full amortization schedule).
//   - limit_exceeded: the request can never pass regardless of waiting. The
//     amount is non-positive, breaks the single-transfer cap, or the window is
//     over cap with no pending release.
func Evaluate(agg domain.WindowAggregate, requested decimal.Decimal, asOf time.Time, limits Limits) domain.Verdict {
	verdict := domain.Verdict{
		AmountUsed:         agg.AmountUsed,
		AmountAvailable:    availableUnder(limits.WindowCap, agg.AmountUsed),
		OldestTransferDate: agg.OldestTransferDate,
	}

	if agg.OldestTransferDate != nil {
		reset := agg.OldestTransferDate.Add(time.Duration(limits.PeriodDays) * 24 * time.Hour)
		verdict.ResetDate = &reset
		verdict.DaysRemaining = daysUntil(reset, asOf)
	}

	// Upstream validation rejects these before they reach the engine, but a
	// nonsensical amount must still never yield an "allowed" verdict.
	if !requested.IsPositive() {
		verdict.ReasonCode = domain.ReasonLimitExceeded
		return verdict
	}

	if requested.GreaterThan(limits.SingleTransferCap) {
		verdict.ReasonCode = domain.ReasonLimitExceeded
		return verdict
	}

	if agg.AmountUsed.Add(requested).LessThanOrEqual(limits.WindowCap) {
		verdict.Allowed = true
		verdict.ReasonCode = domain.ReasonEligible
		return verdict
	}

	if verdict.DaysRemaining > 0 {
		verdict.ReasonCode = domain.ReasonBlockedWaitDays
	} else {
		verdict.ReasonCode = domain.ReasonLimitExceeded
	}
	return verdict
}

func availableUnder(cap, used decimal.Decimal) decimal.Decimal {
	available := cap.Sub(used)
	if available.IsNegative() {
		return decimal.Zero
	}
	return available
}

// daysUntil reports ceil((reset - asOf) / 24h), clamped to zero for instants at
// or past the reset date.
func daysUntil(reset, asOf time.Time) int {
	remaining := reset.Sub(asOf)
	if remaining <= 0 {
		return 0
	}
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) != 0 {
		days++
	}
	return days
}
