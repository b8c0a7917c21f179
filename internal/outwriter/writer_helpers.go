package outwriter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/huangsam/moze/internal/contract"
	"github.com/huangsam/moze/schema"
)

// dispatch routes a value to the JSON, CSV or text writer picked by cfg.Output,
// writing to cfg.OutputFile or stdout.
func dispatch(cfg *contract.Config, what string, data any, csvFn func(*csv.Writer) error, textFn func(io.Writer) error) error {
	switch cfg.Output {
	case schema.JSONOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, data)
		}, "Wrote JSON"); err != nil {
			return fmt.Errorf("error writing JSON %s: %w", what, err)
		}
	case schema.CSVOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			csvWriter := csv.NewWriter(w)
			if err := csvFn(csvWriter); err != nil {
				return err
			}
			csvWriter.Flush()
			return csvWriter.Error()
		}, "Wrote CSV"); err != nil {
			return fmt.Errorf("error writing CSV %s: %w", what, err)
		}
	case schema.ParquetOut:
		return fmt.Errorf("parquet output is not available for %s", what)
	default:
		return writeWithFile(cfg.OutputFile, textFn, "Wrote table")
	}
	return nil
}

// writeWithFile handles the common pattern of opening a file, writing to it, and cleaning up.
// It accepts a writer function that takes an io.Writer and returns an error.
func writeWithFile(outputFile string, writer func(io.Writer) error, successMsg string) error {
	file, err := contract.SelectOutputFile(outputFile)
	if err != nil {
		return err
	}
	// Only close if it's not stdout
	if file != os.Stdout {
		defer func() { _ = file.Close() }()
	}

	if err := writer(file); err != nil {
		return err
	}

	if file != os.Stdout {
		_, _ = fmt.Fprintf(os.Stderr, "💾 %s to %s\n", successMsg, outputFile)
	}
	return nil
}

// writeParquetFile runs a Parquet writer and reports where the file went.
func writeParquetFile(outputFile, what string, write func() error) error {
	if outputFile == "" {
		return fmt.Errorf("parquet output for %s requires --output-file", what)
	}
	if err := write(); err != nil {
		return fmt.Errorf("error writing parquet %s: %w", what, err)
	}
	_, _ = fmt.Fprintf(os.Stderr, "💾 Wrote Parquet to %s\n", outputFile)
	return nil
}

// writeJSON is a generic JSON encoder that handles indentation consistently.
func writeJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// tierLabel returns the tier label, colored when colors are enabled.
func tierLabel(t schema.Tier, cfg *contract.Config) string {
	if !cfg.UseColors {
		return string(t)
	}
	return contract.GetColorTier(t)
}

// gradeLabel returns the grade, colored by its tier when colors are enabled.
func gradeLabel(g schema.Grade, cfg *contract.Config) string {
	if !cfg.UseColors || g == "" {
		return string(g)
	}
	return contract.GetColorGrade(g, cfg.Tiers)
}

// mutedLabel dims redacted or missing values when colors are enabled.
func mutedLabel(s string, cfg *contract.Config) string {
	if !cfg.UseColors {
		return s
	}
	return contract.MutedColor.Sprint(s)
}

// scoreText formats an optional score.
func scoreText(score *float64, precision int) string {
	if score == nil {
		return "-"
	}
	return contract.FormatScore(*score, precision)
}

// formatTime renders a timestamp, or "-" when it is unset.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(contract.DateTimeFormat)
}
