package writer

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-extractor/internal/models"
)

func sampleResult() *models.Result {
	return &models.Result{
		Entries: []models.Entry{
			{Date: "15/01/2024", Description: "CARD PAYMENT TESCO", Amount: decimal.RequireFromString("25.99"), Direction: models.Debit},
			{Date: "16/01/2024", Description: "SALARY, JAN", Amount: decimal.RequireFromString("2500"), Direction: models.Credit},
			{Date: "17/01/2024", Description: "ADJUSTMENT", Amount: decimal.RequireFromString("1.5"), Direction: models.Unknown},
		},
	}
}

func TestCSVWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	w := &CSVWriter{}
	if err := w.Write(&buf, sampleResult()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := strings.Join([]string{
		"Date,Description,Type,Amount",
		"15/01/2024,CARD PAYMENT TESCO,Debit,25.99",
		`16/01/2024,"SALARY, JAN",Credit,2500.00`,
		"17/01/2024,ADJUSTMENT,Unknown,1.50",
	}, "\n") + "\n"

	if got := buf.String(); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestCSVWriter_WriteSummary(t *testing.T) {
	var buf bytes.Buffer
	w := &CSVWriter{IncludeSummary: true}
	if err := w.Write(&buf, sampleResult()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	// 3 summary lines + 1 header + 3 entries = 7
	if len(lines) != 7 {
		t.Fatalf("expected 7 lines, got %d", len(lines))
	}
	for i, want := range []string{"# Count,3", "# Total Debit,25.99", "# Total Credit,2500.00"} {
		if lines[i] != want {
			t.Errorf("line %d: got %q, want %q", i, lines[i], want)
		}
	}
}

func TestCSVWriter_WriteEmpty(t *testing.T) {
	var buf bytes.Buffer
	w := &CSVWriter{IncludeSummary: true}
	if err := w.Write(&buf, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "# Count,0") {
		t.Errorf("expected zero count, got %q", buf.String())
	}
	if !strings.HasSuffix(buf.String(), "Date,Description,Type,Amount\n") {
		t.Errorf("expected header only after summary, got %q", buf.String())
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestCSVWriter_WriteError(t *testing.T) {
	w := &CSVWriter{}
	if err := w.Write(failingWriter{}, sampleResult()); err == nil {
		t.Error("expected write error")
	}
}

func TestCSVWriter_WriteToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w := &CSVWriter{}
	if err := w.WriteToFile(path, sampleResult()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "Date,Description,Type,Amount\n") {
		t.Errorf("unexpected file content: %q", data)
	}

	if err := w.WriteToFile(filepath.Join(t.TempDir(), "missing", "out.csv"), sampleResult()); err == nil {
		t.Error("expected error for missing directory")
	}
}
