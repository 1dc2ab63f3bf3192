// Package extractor turns PDF files into per-page tables or text blocks
// for the extraction engine.
package extractor

import (
	"errors"
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"

	"github.com/insightdelivered/statement-extractor/internal/models"
)

// ErrNoPages is returned by Open for documents without a single page.
var ErrNoPages = errors.New("PDF has no pages")

// Document is an open PDF. It is not safe for concurrent use.
type Document struct {
	file   *os.File
	reader *pdf.Reader
	pages  int
}

// Open opens the PDF at path and reads its page tree.
func Open(path string) (doc *Document, err error) {
	var f *os.File
	defer func() {
		if r := recover(); r != nil {
			if f != nil {
				f.Close()
			}
			doc, err = nil, fmt.Errorf("PDF library crashed: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	n := r.NumPage()
	if n == 0 {
		f.Close()
		return nil, ErrNoPages
	}
	return &Document{file: f, reader: r, pages: n}, nil
}

// NumPages returns the page count.
func (d *Document) NumPages() int {
	return d.pages
}

// Page reconstructs page i, counting from zero. A blank page yields an
// empty text page.
func (d *Document) Page(i int) (content models.PageContent, err error) {
	if i < 0 || i >= d.pages {
		return models.PageContent{}, fmt.Errorf("page %d out of range [0,%d)", i, d.pages)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("PDF library crashed on page %d: %v", i+1, r)
		}
	}()

	page := d.reader.Page(i + 1)
	if page.V.IsNull() {
		return models.TextPage(""), nil
	}

	texts := page.Content().Text
	if len(texts) == 0 {
		// Some producers only expose text through the row API.
		rows, rowErr := page.GetTextByRow()
		if rowErr == nil {
			for _, row := range rows {
				texts = append(texts, row.Content...)
			}
		}
	}
	return Layout(texts), nil
}

// Close releases the underlying file.
func (d *Document) Close() error {
	return d.file.Close()
}
