package parser

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-extractor/internal/models"
	"github.com/insightdelivered/statement-extractor/internal/sanitize"
)

// field is one of the column roles the table strategy understands.
type field int

const (
	fieldDate field = iota
	fieldNarration
	fieldDescription
	fieldWithdrawalDr
	fieldWithdrawal
	fieldDepositCr
	fieldDeposit
	fieldCount
)

// headerLabels maps normalized header text onto a field.
var headerLabels = map[string]field{
	"date":            fieldDate,
	"narration":       fieldNarration,
	"description":     fieldDescription,
	"withdrawal (dr)": fieldWithdrawalDr,
	"withdrawal":      fieldWithdrawal,
	"deposit (cr)":    fieldDepositCr,
	"deposit":         fieldDeposit,
}

// columnIndex is a fixed lookup from field to column position; -1 means the
// header has no such column.
type columnIndex [fieldCount]int

func newColumnIndex(header models.Row) columnIndex {
	var idx columnIndex
	for i := range idx {
		idx[i] = -1
	}
	for col := range header {
		label := strings.ToLower(header.Value(col))
		if f, ok := headerLabels[label]; ok && idx[f] < 0 {
			idx[f] = col
		}
	}
	return idx
}

// lookup returns the first non-empty value among fields, or def.
func (idx columnIndex) lookup(row models.Row, def string, fields ...field) string {
	for _, f := range fields {
		if v := row.Value(idx[f]); v != "" {
			return v
		}
	}
	return def
}

// outcome is the tagged result of parsing one row or line.
type outcome struct {
	entry models.Entry
	skip  models.SkipReason
}

func skipped(reason models.SkipReason) outcome {
	return outcome{skip: reason}
}

// parseTableRow turns one data row into an entry. The withdrawal column
// wins when it holds a positive amount; otherwise a positive deposit makes
// the row a credit.
func parseTableRow(idx columnIndex, width int, row models.Row) outcome {
	if len(row) != width {
		return skipped(models.SkipMalformed)
	}

	date := idx.lookup(row, "", fieldDate)
	description := idx.lookup(row, "", fieldNarration, fieldDescription)
	withdrawal := idx.lookup(row, "0", fieldWithdrawalDr, fieldWithdrawal)
	deposit := idx.lookup(row, "0", fieldDepositCr, fieldDeposit)

	amount := decimal.Zero
	direction := models.Unknown

	w, err := parseAmount(withdrawal)
	if err != nil {
		return skipped(models.SkipParse)
	}
	if w.IsPositive() {
		amount, direction = w, models.Debit
	} else {
		d, err := parseAmount(deposit)
		if err != nil {
			return skipped(models.SkipParse)
		}
		if d.IsPositive() {
			amount, direction = d, models.Credit
		}
	}

	if !inRange(amount) {
		return skipped(models.SkipRange)
	}

	date = sanitize.String(date)
	description = sanitize.String(description)
	if date == "" || description == "" || amount.IsZero() {
		return skipped(models.SkipIncomplete)
	}

	return outcome{entry: models.Entry{
		Date:        date,
		Description: description,
		Amount:      amount,
		Direction:   direction,
	}}
}

// usableTable reports whether a table has a header and at least one data row.
func usableTable(t models.Table) bool {
	return len(t) >= 2
}
