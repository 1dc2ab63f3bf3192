package parser

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-extractor/internal/models"
)

// parseAmount converts a string like "1,234.56" to a decimal. Thousands
// separators and surrounding whitespace are ignored.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "\u00A0", "") // non-breaking space
	return decimal.NewFromString(s)
}

// inRange reports whether the amount's magnitude is within models.MaxAmount.
func inRange(d decimal.Decimal) bool {
	return d.Abs().LessThanOrEqual(models.MaxAmount)
}

// directionFromLabel maps a free-text type column onto a Direction.
func directionFromLabel(label string) models.Direction {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "debit", "dr", "withdrawal", "debit card", "paid out":
		return models.Debit
	case "credit", "cr", "deposit", "paid in":
		return models.Credit
	default:
		return models.Unknown
	}
}
