/**
 * @description
 * The window aggregator: reduces a client's completed transfers inside the rolling
 * lookback period to a total spent amount and the earliest contributing timestamp.
 *
 * The aggregator is read-only and recomputes from raw transfer rows on every call.
 * Caching a running total would go stale the moment the oldest transfer ages out
 * of the window, so freshness is part of the contract.
 *
 * @dependencies
 * - internal/domain: WindowAggregate and Transfer models.
 * - github.com/shopspring/decimal: Exact monetary summation.
 */

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/remitta/compliance-service/internal/domain"
)

// HistorySource is the read capability the aggregator consumes: every completed
// transfer for a document number across ALL tenants, on or after the given
// instant, ordered ascending by transfer date. Implementations must never filter
// by the querying tenant; cross-tenant aggregation is the point of the control.
type HistorySource interface {
	CompletedTransfersSince(ctx context.Context, documentNumber string, since time.Time) ([]domain.Transfer, error)
}

// Aggregator computes window aggregates for eligibility checks.
type Aggregator struct {
	source HistorySource
	limits Limits
}

// NewAggregator creates an aggregator over the given history source.
func NewAggregator(source HistorySource, limits Limits) *Aggregator {
	return &Aggregator{source: source, limits: limits}
}

// WindowStart returns the inclusive lower bound of the rolling window ending at
// asOf. A transfer dated exactly PeriodDays before asOf still counts.
func (a *Aggregator) WindowStart(asOf time.Time) time.Time {
	return WindowStart(asOf, a.limits.PeriodDays)
}

// WindowStart is the shared window-boundary rule: asOf minus the period length.
func WindowStart(asOf time.Time, periodDays int) time.Time {
	return asOf.Add(-time.Duration(periodDays) * 24 * time.Hour)
}

// Aggregate computes the window aggregate for a document number at the given
// instant. asOf is parameterized so checks are deterministic under test; callers
// normally pass time.Now().UTC().
//
// A source failure is propagated unchanged: the caller must fail closed. This
// method never substitutes an empty (and therefore permissive) aggregate for an
// error.
func (a *Aggregator) Aggregate(ctx context.Context, documentNumber string, asOf time.Time) (domain.WindowAggregate, error) {
	since := a.WindowStart(asOf)
	transfers, err := a.source.CompletedTransfersSince(ctx, documentNumber, since)
	if err != nil {
		return domain.WindowAggregate{}, fmt.Errorf("fetch transfer history for window: %w", err)
	}

	agg := domain.WindowAggregate{AmountUsed: decimal.Zero}
	for i := range transfers {
		t := &transfers[i]
		if t.Status != domain.TransferStatusCompleted {
			continue
		}
		if t.TransferDate.Before(since) {
			// Defensive re-check; the source is contracted to pre-filter.
			continue
		}
		agg.AmountUsed = agg.AmountUsed.Add(t.Amount)
		if agg.OldestTransferDate == nil || t.TransferDate.Before(*agg.OldestTransferDate) {
			d := t.TransferDate
			agg.OldestTransferDate = &d
		}
	}
	return agg, nil
}
