package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/insightdelivered/statement-extractor/internal/extractor"
	"github.com/insightdelivered/statement-extractor/internal/logging"
	"github.com/insightdelivered/statement-extractor/internal/models"
	"github.com/insightdelivered/statement-extractor/internal/parser"
	"github.com/insightdelivered/statement-extractor/internal/validator"
	"github.com/insightdelivered/statement-extractor/internal/writer"
)

const version = "1.0.0"

func main() {
	// CLI flags
	formatFlag := flag.String("format", "csv", "Output format: csv or json")
	outputFlag := flag.String("output", "", "Output file path, or - for stdout (defaults to input filename with the format's extension)")
	summaryFlag := flag.Bool("summary", false, "Include count and total rows in CSV output")
	verboseFlag := flag.Bool("verbose", false, "Log per-page extraction details")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	helpFlag := flag.Bool("help", false, "Show usage help")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Bank Statement Entry Extractor
by Insight Delivered (QEA AutoLens)

Extracts dated debit and credit entries from bank statement PDFs, using
the statement's table where one exists and its text layout otherwise.

Usage:
  statement-extractor [flags] <input.pdf> [input2.pdf ...]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Convert to CSV next to the input
  statement-extractor statement.pdf

  # JSON to stdout
  statement-extractor --format=json --output=- statement.pdf

  # CSV with totals
  statement-extractor --summary --output=entries.csv statement.pdf

  # Convert multiple files
  statement-extractor jan.pdf feb.pdf mar.pdf
`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("statement-extractor v%s\n", version)
		os.Exit(0)
	}

	if *helpFlag || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}

	format := strings.ToLower(*formatFlag)
	if format != "csv" && format != "json" {
		fatalf("Unknown format %q. Supported: csv, json\n", *formatFlag)
	}

	inputFiles := flag.Args()
	if *outputFlag != "" && *outputFlag != "-" && len(inputFiles) > 1 {
		fatalf("--output can only name a file when converting a single input\n")
	}

	level := "warn"
	if *verboseFlag {
		level = "debug"
	}
	logger := slog.New(logging.NewHandler(os.Stderr, level, "text"))

	v := validator.New(validator.Limits{})
	engine := parser.New(logger)

	// Process each input file
	for _, inputPath := range inputFiles {
		if err := processFile(inputPath, v, engine, format, *outputFlag, *summaryFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Error processing %s: %v\n", inputPath, err)
			os.Exit(1)
		}
	}
}

func processFile(inputPath string, v *validator.Validator, engine *parser.Engine, format, outputPath string, summary bool) error {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("input file not found: %s", inputPath)
	}
	if err := v.CheckName(filepath.Base(inputPath)); err != nil {
		return err
	}
	if err := v.CheckArtifact(inputPath); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Processing: %s\n", inputPath)

	doc, err := extractor.Open(inputPath)
	if err != nil {
		return fmt.Errorf("PDF extraction failed: %w", err)
	}
	defer doc.Close()

	if err := v.CheckPages(doc.NumPages()); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "  Read %d page(s)\n", doc.NumPages())

	result, err := engine.Extract(context.Background(), doc)
	if err != nil {
		var empty *parser.EmptyResultError
		if errors.As(err, &empty) {
			return fmt.Errorf("%s (%d page(s), %d line(s) skipped)", empty.Error(), empty.Pages, empty.Skipped)
		}
		return fmt.Errorf("parsing failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "  Found %d entr%s\n", result.Count(), plural(result.Count(), "y", "ies"))
	for _, d := range result.Diagnostics {
		fmt.Fprintf(os.Stderr, "  Page %d: %s strategy, %d accepted, %d skipped\n", d.Page, d.Strategy, d.Accepted, d.SkippedTotal())
	}

	// Determine output path
	outPath := outputPath
	if outPath == "" {
		base := strings.TrimSuffix(inputPath, filepath.Ext(inputPath))
		outPath = base + "." + format
	}

	if outPath == "-" {
		return writeResult(os.Stdout, result, format, summary)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", outPath, err)
	}
	if err := writeResult(f, result, format, summary); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "  Output: %s\n", outPath)

	debit, credit := result.Totals()
	fmt.Fprintf(os.Stderr, "  Total debit: %s\n", debit.StringFixed(2))
	fmt.Fprintf(os.Stderr, "  Total credit: %s\n", credit.StringFixed(2))
	fmt.Fprintln(os.Stderr, "  Done.")
	return nil
}

func writeResult(out io.Writer, result *models.Result, format string, summary bool) error {
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Entries []models.Entry `json:"entries"`
			Count   int            `json:"count"`
		}{result.Entries, result.Count()})
	}
	w := &writer.CSVWriter{IncludeSummary: summary}
	if err := w.Write(out, result); err != nil {
		return fmt.Errorf("CSV write failed: %w", err)
	}
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(1)
}
