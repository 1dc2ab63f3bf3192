// Package parser turns page content from a bank statement into a normalized
// list of transaction entries.
//
// Each page is handled by one of two strategies. Pages that carry a table
// grid are read by header label; pages that only carry text are split into
// columns on runs of spaces and read positionally. Rows and lines that do
// not qualify are skipped and counted, never fatal.
package parser

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/insightdelivered/statement-extractor/internal/models"
)

// Document is the page-oriented view of an uploaded statement.
type Document interface {
	NumPages() int
	// Page returns the content of the zero-based page i.
	Page(i int) (models.PageContent, error)
}

// EmptyResultError is returned when every page was processed but no entry
// qualified.
type EmptyResultError struct {
	Pages   int
	Skipped int
}

func (e *EmptyResultError) Error() string {
	return "No valid entries found in PDF. Please check the format. The PDF may not contain a recognizable table or text-based data."
}

// Engine extracts entries from Documents. It holds no per-request state and
// may be shared across goroutines.
type Engine struct {
	logger *slog.Logger
}

// New returns an Engine that logs to logger, or discards logs when nil.
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{logger: logger}
}

// Extract processes every page of doc in order. It fails with
// *EmptyResultError when no page yields an entry.
func (e *Engine) Extract(ctx context.Context, doc Document) (*models.Result, error) {
	result := &models.Result{Entries: []models.Entry{}}
	skippedTotal := 0

	for i := 0; i < doc.NumPages(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := doc.Page(i)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", i+1, err)
		}

		entries, diag := e.extractPage(i+1, page)
		result.Entries = append(result.Entries, entries...)
		result.Diagnostics = append(result.Diagnostics, diag)
		skippedTotal += diag.SkippedTotal()

		e.logger.Info("page processed",
			"page", diag.Page,
			"strategy", diag.Strategy,
			"accepted", diag.Accepted,
			"skipped", diag.SkippedTotal(),
		)
	}

	if len(result.Entries) == 0 {
		return nil, &EmptyResultError{Pages: doc.NumPages(), Skipped: skippedTotal}
	}
	return result, nil
}

func (e *Engine) extractPage(pageNum int, page models.PageContent) ([]models.Entry, models.PageDiagnostic) {
	if table, ok := page.Table(); ok && usableTable(table) {
		return e.extractTable(pageNum, table)
	}
	e.logger.Debug("no table found, trying text lines", "page", pageNum)
	return e.extractText(pageNum, page.Text())
}

func (e *Engine) extractTable(pageNum int, table models.Table) ([]models.Entry, models.PageDiagnostic) {
	header := table[0]
	idx := newColumnIndex(header)
	diag := newDiagnostic(pageNum, models.StrategyTable)
	e.logger.Debug("table headers", "page", pageNum, "columns", len(header))

	var entries []models.Entry
	for n, row := range table[1:] {
		out := parseTableRow(idx, len(header), row)
		if out.skip != "" {
			diag.Skipped[out.skip]++
			e.logger.Debug("row skipped", "page", pageNum, "row", n+1, "reason", out.skip)
			continue
		}
		entries = append(entries, out.entry)
		diag.Accepted++
	}
	return entries, diag
}

func (e *Engine) extractText(pageNum int, text string) ([]models.Entry, models.PageDiagnostic) {
	diag := newDiagnostic(pageNum, models.StrategyText)

	var entries []models.Entry
	for n, line := range splitLines(text) {
		out := parseTextLine(line)
		if out.skip != "" {
			diag.Skipped[out.skip]++
			if out.skip != models.SkipShortLine {
				e.logger.Debug("line skipped", "page", pageNum, "line", n+1, "reason", out.skip)
			}
			continue
		}
		entries = append(entries, out.entry)
		diag.Accepted++
	}
	return entries, diag
}

func newDiagnostic(pageNum int, s models.Strategy) models.PageDiagnostic {
	return models.PageDiagnostic{
		Page:     pageNum,
		Strategy: s,
		Skipped:  make(map[models.SkipReason]int),
	}
}
