package models

import "strings"

// Row is one table row. A nil cell means the extractor found nothing in
// that column.
type Row []*string

// Cells builds a Row from plain strings.
func Cells(values ...string) Row {
	row := make(Row, len(values))
	for i := range values {
		v := values[i]
		row[i] = &v
	}
	return row
}

// Value returns the trimmed cell at i, or "" when the cell is nil or out of range.
func (r Row) Value(i int) string {
	if i < 0 || i >= len(r) || r[i] == nil {
		return ""
	}
	return strings.TrimSpace(*r[i])
}

// Table is a grid of cells whose first row holds the header labels.
type Table []Row

// PageContent is what the document layer yields for one page: either a
// table or a block of newline-delimited text, never both.
type PageContent struct {
	table Table
	text  string
	kind  Strategy
}

// TablePage wraps a table grid.
func TablePage(t Table) PageContent {
	return PageContent{table: t, kind: StrategyTable}
}

// TextPage wraps raw page text.
func TextPage(text string) PageContent {
	return PageContent{text: text, kind: StrategyText}
}

// Table returns the page's table and whether the page carries one.
func (p PageContent) Table() (Table, bool) {
	return p.table, p.kind == StrategyTable
}

// Text returns the page's raw text; empty for table pages.
func (p PageContent) Text() string {
	return p.text
}

// Kind reports which representation the page carries.
func (p PageContent) Kind() Strategy {
	return p.kind
}
