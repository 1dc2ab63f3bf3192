package parser

import (
	"regexp"
	"strings"

	"github.com/insightdelivered/statement-extractor/internal/models"
	"github.com/insightdelivered/statement-extractor/internal/sanitize"
)

// columnGap separates visually aligned columns in extracted text.
var columnGap = regexp.MustCompile(` {2,}`)

// splitColumns splits a line on runs of two or more spaces, dropping empty
// fields.
func splitColumns(line string) []string {
	var fields []string
	for _, part := range columnGap.Split(line, -1) {
		if part = strings.TrimSpace(part); part != "" {
			fields = append(fields, part)
		}
	}
	return fields
}

// parseTextLine reads a line positionally as date, description, amount, type.
// Fields after the fourth are ignored.
func parseTextLine(line string) outcome {
	fields := splitColumns(line)
	if len(fields) < 4 {
		return skipped(models.SkipShortLine)
	}
	date, description, rawAmount, label := fields[0], fields[1], fields[2], fields[3]

	amount, err := parseAmount(rawAmount)
	if err != nil {
		return skipped(models.SkipParse)
	}
	if !inRange(amount) {
		return skipped(models.SkipRange)
	}

	date = sanitize.String(date)
	description = sanitize.String(description)
	if date == "" || description == "" {
		return skipped(models.SkipIncomplete)
	}

	return outcome{entry: models.Entry{
		Date:        date,
		Description: description,
		Amount:      amount,
		Direction:   directionFromLabel(sanitize.String(label)),
	}}
}

// splitLines splits page text on newlines, tolerating CRLF.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}
