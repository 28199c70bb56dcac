/**
 * @description
 * Regulatory constants for the eligibility engine. The rolling-window cap and the
 * per-transfer cap are numerically identical in the current jurisdiction (999 EUR)
 * but are kept as separate named values so a jurisdiction where they diverge can be
 * expressed through configuration without touching the algorithm.
 *
 * Note: marketing copy commonly cites the cap as "999,99 EUR". The enforced figure
 * here is a strict 999, matching the legal text this service was built against.
 */

package engine

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Jurisdiction defaults (Italy, D.Lgs. 231/2007 money-transfer regime).
const DefaultPeriodDays = 8

var DefaultCap = decimal.NewFromInt(999)

var (
	ErrInvalidWindowCap   = errors.New("window cap must be positive")
	ErrInvalidTransferCap = errors.New("single-transfer cap must be positive")
	ErrInvalidPeriodDays  = errors.New("window period must be at least one day")
)

// Limits carries the injected regulatory thresholds. Both caps are inclusive:
// a total exactly equal to the cap is allowed.
type Limits struct {
	// WindowCap is the maximum a client may send across all tenants within the
	// rolling window.
	WindowCap decimal.Decimal

	// SingleTransferCap is the maximum amount of one transfer.
	SingleTransferCap decimal.Decimal

	// PeriodDays is the length of the rolling window in days. Each transfer
	// expires PeriodDays after its own timestamp; there is no shared calendar
	// boundary.
	PeriodDays int
}

// DefaultLimits returns the current Italian money-transfer thresholds.
func DefaultLimits() Limits {
	return Limits{
		WindowCap:         DefaultCap,
		SingleTransferCap: DefaultCap,
		PeriodDays:        DefaultPeriodDays,
	}
}

// Validate rejects limit sets that would disable the control entirely.
func (l Limits) Validate() error {
	if !l.WindowCap.IsPositive() {
		return ErrInvalidWindowCap
	}
	if !l.SingleTransferCap.IsPositive() {
		return ErrInvalidTransferCap
	}
	if l.PeriodDays < 1 {
		return ErrInvalidPeriodDays
	}
	return nil
}
