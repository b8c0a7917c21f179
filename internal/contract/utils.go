package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/huangsam/moze/schema"
)

// Color variables for console output.
var (
	UrgentColor = color.New(color.FgRed, color.Bold) // UrgentColor represents standard danger.
	WatchColor  = color.New(color.FgYellow)          // WatchColor represents standard caution, not bold.
	StableColor = color.New(color.FgCyan)            // StableColor represents informational / low-priority signal.
	MutedColor  = color.New(color.Faint)             // MutedColor is used for redacted or missing values.
)

// GetColorTier returns a colored tier label for console output (table).
func GetColorTier(t schema.Tier) string {
	switch t {
	case schema.UrgentTier:
		return UrgentColor.Sprint(string(t))
	case schema.WatchTier:
		return WatchColor.Sprint(string(t))
	case schema.StableTier:
		return StableColor.Sprint(string(t))
	default:
		return MutedColor.Sprint(string(t))
	}
}

// GetColorGrade colors a grade with the color of the tier it maps to.
func GetColorGrade(g schema.Grade, tiers schema.TierTable) string {
	switch tiers.Assign(g) {
	case schema.UrgentTier:
		return UrgentColor.Sprint(string(g))
	case schema.WatchTier:
		return WatchColor.Sprint(string(g))
	default:
		return StableColor.Sprint(string(g))
	}
}

// SelectOutputFile returns the appropriate file handle for output, based on the provided
// file path. An empty path means os.Stdout.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "%s %s: %v\n", UrgentColor.Sprint("Fatal"), msg, err)
	os.Exit(1)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "%s %s: %v\n", WatchColor.Sprint("Warn"), msg, err)
}

// GetDBFilePath returns the path to the SQLite DB file for evaluation storage.
func GetDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".moze.db"
	}
	return filepath.Join(homeDir, ".moze.db")
}

// TruncateText truncates text to a maximum width with an ellipsis suffix.
// Requires maxWidth > 3 so there is room for the ellipsis and one character.
func TruncateText(s string, maxWidth int) string {
	runes := []rune(s)
	if len(runes) > maxWidth && maxWidth > 3 {
		return string(runes[:maxWidth-3]) + "..."
	}
	return s
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
// Returns an error for invalid values.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}

// FormatScore renders a score in [0,1] with the configured precision.
func FormatScore(score float64, precision int) string {
	return fmt.Sprintf("%.*f", precision, score)
}
