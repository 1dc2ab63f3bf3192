package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Direction classifies an entry as money out (Debit) or money in (Credit).
type Direction string

const (
	Debit   Direction = "Debit"
	Credit  Direction = "Credit"
	Unknown Direction = "Unknown"
)

// MaxAmount is the largest amount magnitude accepted from a statement.
var MaxAmount = decimal.RequireFromString("999999999.99")

// Entry represents a single extracted statement transaction.
type Entry struct {
	Date        string
	Description string
	Amount      decimal.Decimal
	Direction   Direction
}

// entryJSON is the wire shape of an Entry. Amounts are emitted as JSON
// numbers with two decimal places rather than decimal's default quoted form.
type entryJSON struct {
	Date        string      `json:"date"`
	Description string      `json:"description"`
	Amount      json.Number `json:"amount"`
	Type        Direction   `json:"type"`
}

func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(entryJSON{
		Date:        e.Date,
		Description: e.Description,
		Amount:      json.Number(e.Amount.StringFixed(2)),
		Type:        e.Direction,
	})
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw entryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	amount, err := decimal.NewFromString(raw.Amount.String())
	if err != nil {
		return err
	}
	*e = Entry{
		Date:        raw.Date,
		Description: raw.Description,
		Amount:      amount,
		Direction:   raw.Type,
	}
	return nil
}

// Strategy names the extraction path that handled a page.
type Strategy string

const (
	StrategyTable Strategy = "table"
	StrategyText  Strategy = "text"
)

// SkipReason explains why a table row or text line produced no entry.
type SkipReason string

const (
	SkipMalformed  SkipReason = "malformed"   // cell count differs from header
	SkipShortLine  SkipReason = "short_line"  // fewer than four fields
	SkipParse      SkipReason = "parse"       // amount not numeric
	SkipRange      SkipReason = "range"       // amount magnitude too large
	SkipIncomplete SkipReason = "incomplete"  // missing date, description or amount
)

// PageDiagnostic captures what the engine did with one page.
type PageDiagnostic struct {
	Page     int                `json:"page"`
	Strategy Strategy           `json:"strategy"`
	Accepted int                `json:"accepted"`
	Skipped  map[SkipReason]int `json:"skipped,omitempty"`
}

// SkippedTotal returns the number of rows or lines skipped on the page.
func (d PageDiagnostic) SkippedTotal() int {
	n := 0
	for _, c := range d.Skipped {
		n += c
	}
	return n
}

// Result holds the entries extracted from a document, in page then
// row/line order.
type Result struct {
	Entries     []Entry
	Diagnostics []PageDiagnostic
}

// Count returns the number of extracted entries.
func (r *Result) Count() int {
	if r == nil {
		return 0
	}
	return len(r.Entries)
}

// Totals sums debit and credit amounts.
func (r *Result) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	if r == nil {
		return debit, credit
	}
	for _, e := range r.Entries {
		switch e.Direction {
		case Debit:
			debit = debit.Add(e.Amount.Abs())
		case Credit:
			credit = credit.Add(e.Amount.Abs())
		}
	}
	return debit, credit
}
