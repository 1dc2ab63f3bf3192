package parser

import (
	"testing"

	"github.com/insightdelivered/statement-extractor/internal/models"
)

var standardHeader = models.Cells("Date", "Narration", "Withdrawal (Dr)", "Deposit (Cr)")

func TestNewColumnIndex(t *testing.T) {
	idx := newColumnIndex(models.Cells(" DATE ", "Description", "Withdrawal", "Deposit", "Balance"))

	if idx[fieldDate] != 0 {
		t.Errorf("date column: got %d, want 0", idx[fieldDate])
	}
	if idx[fieldDescription] != 1 {
		t.Errorf("description column: got %d, want 1", idx[fieldDescription])
	}
	if idx[fieldNarration] != -1 {
		t.Errorf("narration column: got %d, want -1", idx[fieldNarration])
	}
	if idx[fieldWithdrawal] != 2 || idx[fieldDeposit] != 3 {
		t.Errorf("amount columns: got %d/%d, want 2/3", idx[fieldWithdrawal], idx[fieldDeposit])
	}
}

func TestParseTableRow(t *testing.T) {
	idx := newColumnIndex(standardHeader)

	tests := []struct {
		name      string
		row       models.Row
		skip      models.SkipReason
		amount    string
		direction models.Direction
	}{
		{
			name:      "withdrawal is a debit",
			row:       models.Cells("01/01/2024", "Coffee Shop", "150.00", ""),
			amount:    "150",
			direction: models.Debit,
		},
		{
			name:      "deposit is a credit",
			row:       models.Cells("01/01/2024", "Salary", "", "500.00"),
			amount:    "500",
			direction: models.Credit,
		},
		{
			name:      "thousands separators",
			row:       models.Cells("02/01/2024", "Rent", "1,250.50", ""),
			amount:    "1250.5",
			direction: models.Debit,
		},
		{
			name:      "withdrawal wins when both are positive",
			row:       models.Cells("03/01/2024", "Odd row", "10.00", "20.00"),
			amount:    "10",
			direction: models.Debit,
		},
		{
			name:      "zero withdrawal falls through to deposit",
			row:       models.Cells("03/01/2024", "Refund", "0.00", "20.00"),
			amount:    "20",
			direction: models.Credit,
		},
		{
			name:      "nil cells use defaults",
			row:       models.Row{strPtr("04/01/2024"), strPtr("Interest"), nil, strPtr("1.23")},
			amount:    "1.23",
			direction: models.Credit,
		},
		{
			name: "neither amount positive",
			row:  models.Cells("05/01/2024", "Memo", "", ""),
			skip: models.SkipIncomplete,
		},
		{
			name: "missing date",
			row:  models.Cells("", "Coffee", "5.00", ""),
			skip: models.SkipIncomplete,
		},
		{
			name: "description only unsafe characters",
			row:  models.Cells("05/01/2024", "<>", "5.00", ""),
			skip: models.SkipIncomplete,
		},
		{
			name: "unparseable withdrawal",
			row:  models.Cells("06/01/2024", "Coffee", "n/a", "5.00"),
			skip: models.SkipParse,
		},
		{
			name: "unparseable deposit",
			row:  models.Cells("06/01/2024", "Coffee", "", "five"),
			skip: models.SkipParse,
		},
		{
			name: "out of range",
			row:  models.Cells("07/01/2024", "Whale", "1,000,000,000.00", ""),
			skip: models.SkipRange,
		},
		{
			name: "short row",
			row:  models.Cells("07/01/2024", "Coffee", "5.00"),
			skip: models.SkipMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := parseTableRow(idx, len(standardHeader), tt.row)
			if out.skip != tt.skip {
				t.Fatalf("skip: got %q, want %q", out.skip, tt.skip)
			}
			if tt.skip != "" {
				return
			}
			if out.entry.Amount.String() != tt.amount {
				t.Errorf("amount: got %s, want %s", out.entry.Amount, tt.amount)
			}
			if out.entry.Direction != tt.direction {
				t.Errorf("direction: got %q, want %q", out.entry.Direction, tt.direction)
			}
		})
	}
}

func TestParseTableRow_SanitizesFields(t *testing.T) {
	idx := newColumnIndex(standardHeader)
	out := parseTableRow(idx, 4, models.Cells("01/01/2024", `<b>"Joe's" Diner</b>`, "9.99", ""))
	if out.skip != "" {
		t.Fatalf("unexpected skip: %q", out.skip)
	}
	if out.entry.Description != "bJoes Diner/b" {
		t.Errorf("description: got %q", out.entry.Description)
	}
}

func TestParseTableRow_PlainHeaders(t *testing.T) {
	idx := newColumnIndex(models.Cells("date", "description", "withdrawal", "deposit"))
	out := parseTableRow(idx, 4, models.Cells("01/02/2024", "ATM", "40", ""))
	if out.skip != "" {
		t.Fatalf("unexpected skip: %q", out.skip)
	}
	if out.entry.Description != "ATM" || out.entry.Direction != models.Debit {
		t.Errorf("got %+v", out.entry)
	}
}

func strPtr(s string) *string { return &s }
