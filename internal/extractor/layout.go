package extractor

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/insightdelivered/statement-extractor/internal/models"
)

const (
	// wordGap is the horizontal gap, in points, above which two glyph runs
	// are separate words.
	wordGap = 1.5
	// cellGap is the gap above which two runs fall in separate columns.
	cellGap = 12.0
	// minReadable is the share of ordinary characters a page needs before
	// its text is trusted. Fonts with broken encodings decode to noise.
	minReadable = 0.6
)

type cell struct {
	x    float64
	text string
}

type line struct {
	y     int
	cells []cell
}

// Layout rebuilds a page from positioned glyph runs. The page becomes a
// table when a header line with a "date" column is followed by at least
// one line, and a text block otherwise.
func Layout(texts []pdf.Text) models.PageContent {
	lines := groupLines(texts)
	if t, ok := buildTable(lines); ok {
		return models.TablePage(t)
	}

	text := renderText(lines)
	if !readable(text) {
		return models.TextPage("")
	}
	return models.TextPage(text)
}

// groupLines buckets runs by rounded baseline, top of page first, and
// merges each line's runs into cells.
func groupLines(texts []pdf.Text) []line {
	byY := make(map[int][]pdf.Text)
	for _, t := range texts {
		if strings.TrimSpace(t.S) == "" && t.S != " " {
			continue
		}
		y := int(math.Round(t.Y))
		byY[y] = append(byY[y], t)
	}

	ys := make([]int, 0, len(byY))
	for y := range byY {
		ys = append(ys, y)
	}
	// PDF Y grows upwards.
	sort.Sort(sort.Reverse(sort.IntSlice(ys)))

	lines := make([]line, 0, len(ys))
	for _, y := range ys {
		if cells := mergeCells(byY[y]); len(cells) > 0 {
			lines = append(lines, line{y: y, cells: cells})
		}
	}
	return lines
}

func mergeCells(runs []pdf.Text) []cell {
	sort.SliceStable(runs, func(a, b int) bool { return runs[a].X < runs[b].X })

	var (
		cells []cell
		b     strings.Builder
		start float64
		end   float64
	)
	flush := func() {
		if s := strings.Join(strings.Fields(b.String()), " "); s != "" {
			cells = append(cells, cell{x: start, text: s})
		}
		b.Reset()
	}

	for i, r := range runs {
		if i > 0 {
			switch gap := r.X - end; {
			case gap > cellGap:
				flush()
				start = r.X
			case gap > wordGap:
				b.WriteByte(' ')
			}
		} else {
			start = r.X
		}
		b.WriteString(r.S)
		if e := r.X + runWidth(r); e > end || i == 0 {
			end = e
		}
	}
	flush()
	return cells
}

// runWidth falls back to an estimate from the font size when the library
// reports no advance width.
func runWidth(r pdf.Text) float64 {
	if r.W > 0 {
		return r.W
	}
	return r.FontSize * 0.5 * float64(utf8.RuneCountInString(r.S))
}

func buildTable(lines []line) (models.Table, bool) {
	for i, l := range lines {
		if !isHeader(l) {
			continue
		}
		if len(lines[i+1:]) == 0 {
			return nil, false
		}
		header := l.cells
		table := models.Table{rowFromHeader(header)}
		for _, body := range lines[i+1:] {
			table = append(table, assignColumns(header, body.cells))
		}
		return table, true
	}
	return nil, false
}

func isHeader(l line) bool {
	if len(l.cells) < 2 {
		return false
	}
	for _, c := range l.cells {
		if strings.EqualFold(strings.TrimSpace(c.text), "date") {
			return true
		}
	}
	return false
}

func rowFromHeader(header []cell) models.Row {
	values := make([]string, len(header))
	for i, c := range header {
		values[i] = c.text
	}
	return models.Cells(values...)
}

// assignColumns drops each cell into the header column whose left edge is
// closest. Cells sharing a column are joined with a space; columns without
// a cell stay nil.
func assignColumns(header, cells []cell) models.Row {
	row := make(models.Row, len(header))
	for _, c := range cells {
		col := nearestColumn(header, c.x)
		if row[col] == nil {
			v := c.text
			row[col] = &v
			continue
		}
		joined := *row[col] + " " + c.text
		row[col] = &joined
	}
	return row
}

func nearestColumn(header []cell, x float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, h := range header {
		if d := math.Abs(h.x - x); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// renderText joins cells with two spaces, the column separator the text
// strategy splits on.
func renderText(lines []line) string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		parts := make([]string, len(l.cells))
		for i, c := range l.cells {
			parts[i] = c.text
		}
		out = append(out, strings.Join(parts, "  "))
	}
	return strings.Join(out, "\n")
}

func readable(text string) bool {
	total, ok := 0, 0
	for _, r := range text {
		total++
		if r < unicode.MaxASCII && (unicode.IsPrint(r) || unicode.IsSpace(r)) || r == '£' || r == '€' {
			ok++
		}
	}
	if total == 0 {
		return true
	}
	return float64(ok)/float64(total) > minReadable
}
