package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/insightdelivered/statement-extractor/internal/models"
)

// CSVWriter writes extracted entries to CSV format.
type CSVWriter struct {
	IncludeSummary bool
}

// WriteToFile writes entries to a CSV file at the given path.
func (w *CSVWriter) WriteToFile(path string, result *models.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	if err := w.Write(f, result); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write writes entries in CSV format to the given writer.
func (w *CSVWriter) Write(out io.Writer, result *models.Result) error {
	writer := csv.NewWriter(out)

	// Summary rows go first, as comment-style header rows
	if w.IncludeSummary {
		debit, credit := result.Totals()
		summary := [][]string{
			{"# Count", strconv.Itoa(result.Count())},
			{"# Total Debit", debit.StringFixed(2)},
			{"# Total Credit", credit.StringFixed(2)},
		}
		if err := writer.WriteAll(summary); err != nil {
			return fmt.Errorf("failed to write CSV summary: %w", err)
		}
	}

	header := []string{"Date", "Description", "Type", "Amount"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	if result != nil {
		for _, e := range result.Entries {
			row := []string{
				e.Date,
				e.Description,
				string(e.Direction),
				e.Amount.StringFixed(2),
			}
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("failed to write CSV row: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}
