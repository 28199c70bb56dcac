package app

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Document numbers arrive from identity documents typed at a counter: trim,
// uppercase, strip inner spaces, then require a plausible shape. Full syntactic
// validation per document type is the onboarding system's job.
func normalizeDocumentNumber(raw string) (string, error) {
	normalized := strings.ToUpper(strings.Join(strings.Fields(raw), ""))
	if len(normalized) < 5 || len(normalized) > 32 {
		return "", ErrInvalidDocumentNumber
	}
	for _, r := range normalized {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '-' {
			return "", ErrInvalidDocumentNumber
		}
	}
	return normalized, nil
}

// validateAmount enforces positive, cent-granular amounts. Decimal values are
// finite by construction, so no NaN/Inf handling is needed here.
func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidTransferAmount
	}
	if amount.Exponent() < -2 {
		return ErrInvalidTransferAmount
	}
	return nil
}

func normalizeDestination(raw string) (string, error) {
	destination := strings.TrimSpace(raw)
	if destination == "" {
		return "", ErrInvalidDestination
	}
	return destination, nil
}

func normalizeRequiredText(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", ErrInvalidClientName
	}
	return text, nil
}

func normalizeOptionalText(raw string) string {
	return strings.TrimSpace(raw)
}
