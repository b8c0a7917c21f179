package contract

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/moze/schema"
)

// Default values for configuration.
const (
	DefaultResultLimit = 50
	MaxResultLimit     = 10000
	DefaultPrecision   = 2
	DefaultLogLevel    = "warn"
	DefaultLogFormat   = "text"
)

// DateTimeFormat is the default date time representation.
var DateTimeFormat = time.RFC3339

// GradesRawInput holds custom grade cut points from the YAML config file.
type GradesRawInput struct {
	A *float64 `mapstructure:"a"`
	B *float64 `mapstructure:"b"`
	C *float64 `mapstructure:"c"`
	D *float64 `mapstructure:"d"`
	E *float64 `mapstructure:"e"`
}

// Config holds the runtime configuration of the engine and its CLI.
// This struct remains the "final, validated" config.
type Config struct {
	StoreBackend   schema.DatabaseBackend
	StoreDBConnect string // Please use env var as this is plaintext

	RosterPath string
	CallerID   string
	FormKey    string
	Limit      int

	GradeBands schema.GradeBands
	Tiers      schema.TierTable

	Output     schema.OutputMode
	OutputFile string
	Precision  int
	Width      int // Terminal width override (0 = auto-detect)
	Explain    bool
	UseColors  bool

	LogLevel  slog.Level
	LogFormat string
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// --- Fields from rootCmd.PersistentFlags() ---
	StoreBackend   string `mapstructure:"store-backend"`
	StoreDBConnect string `mapstructure:"store-db-connect"`
	Roster         string `mapstructure:"roster"`
	As             string `mapstructure:"as"`
	Output         string `mapstructure:"output"`
	OutputFile     string `mapstructure:"output-file"`
	Precision      int    `mapstructure:"precision"`
	Width          int    `mapstructure:"width"`
	Color          string `mapstructure:"color"`
	LogLevel       string `mapstructure:"log-level"`
	LogFormat      string `mapstructure:"log-format"`
	GradeBandsStr  string `mapstructure:"grade-bands"`
	TierMapStr     string `mapstructure:"tier-map"`

	// --- Fields from report and listing commands ---
	Form    string `mapstructure:"form"`
	Limit   int    `mapstructure:"limit"`
	Explain bool   `mapstructure:"explain"`

	// --- Custom grade cut points from config file ---
	Grades GradesRawInput `mapstructure:"grades"`

	// --- Custom tier mapping from config file ---
	Tiers map[string]string `mapstructure:"tiers"`
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := validateBackendConfig(cfg, input); err != nil {
		return err
	}
	if err := processGradeBands(cfg, input); err != nil {
		return err
	}
	if err := processTiers(cfg, input); err != nil {
		return err
	}
	return nil
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("store-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("store-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateBackendConfig validates the store backend configuration.
func validateBackendConfig(cfg *Config, input *ConfigRawInput) error {
	cfg.StoreBackend = schema.DatabaseBackend(strings.ToLower(input.StoreBackend))
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = schema.SQLiteBackend
	}
	if _, ok := schema.ValidDatabaseBackends[cfg.StoreBackend]; !ok {
		return fmt.Errorf("invalid store backend '%s'. must be sqlite, mysql, postgresql", input.StoreBackend)
	}
	cfg.StoreDBConnect = input.StoreDBConnect
	return ValidateDatabaseConnectionString(cfg.StoreBackend, cfg.StoreDBConnect)
}

// validateSimpleInputs processes and validates all scalar fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.RosterPath = strings.TrimSpace(input.Roster)
	cfg.CallerID = strings.TrimSpace(input.As)
	cfg.OutputFile = input.OutputFile
	cfg.Explain = input.Explain
	cfg.Width = input.Width

	cfg.FormKey = strings.TrimSpace(input.Form)
	if cfg.FormKey == "" {
		cfg.FormKey = schema.AllFormsKey
	}

	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	if input.Limit <= 0 || input.Limit > MaxResultLimit {
		return fmt.Errorf("limit must be greater than 0 and cannot exceed %d (received %d)", MaxResultLimit, input.Limit)
	}
	cfg.Limit = input.Limit

	if input.Precision < 1 || input.Precision > 4 {
		return fmt.Errorf("precision must be between 1 and 4 (received %d)", input.Precision)
	}
	cfg.Precision = input.Precision

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json, parquet", input.Output)
	}
	if cfg.Output == schema.ParquetOut && cfg.OutputFile == "" {
		return fmt.Errorf("parquet output requires --output-file")
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(input.LogLevel)); err != nil {
		return fmt.Errorf("invalid --log-level value '%s'. must be debug, info, warn, error", input.LogLevel)
	}
	cfg.LogFormat = strings.ToLower(input.LogFormat)
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return fmt.Errorf("invalid --log-format value '%s'. must be text, json", input.LogFormat)
	}

	return nil
}

// processGradeBands merges the config file cut points and the --grade-bands
// override onto the default table. The flag takes precedence.
func processGradeBands(cfg *Config, input *ConfigRawInput) error {
	mins := make(map[schema.Grade]float64)
	for _, b := range schema.DefaultGradeBands().Bands {
		mins[b.Grade] = b.Min
	}

	custom := map[schema.Grade]*float64{
		schema.GradeA: input.Grades.A,
		schema.GradeB: input.Grades.B,
		schema.GradeC: input.Grades.C,
		schema.GradeD: input.Grades.D,
		schema.GradeE: input.Grades.E,
	}
	for g, v := range custom {
		if v != nil {
			mins[g] = *v
		}
	}

	if input.GradeBandsStr != "" {
		parsed, err := ParseGradeBandsString(input.GradeBandsStr)
		if err != nil {
			return fmt.Errorf("invalid --grade-bands format: %w", err)
		}
		for g, v := range parsed {
			mins[g] = v
		}
	}

	bands, err := schema.NewGradeBands(mins)
	if err != nil {
		return fmt.Errorf("invalid grade bands: %w", err)
	}
	cfg.GradeBands = bands
	return nil
}

// processTiers merges the config file tier map and the --tier-map override
// onto the default table.
func processTiers(cfg *Config, input *ConfigRawInput) error {
	tiers := schema.DefaultTierTable()
	for g, t := range input.Tiers {
		tiers[schema.Grade(strings.ToUpper(g))] = schema.Tier(strings.ToLower(t))
	}

	if input.TierMapStr != "" {
		parsed, err := ParseTierMapString(input.TierMapStr)
		if err != nil {
			return fmt.Errorf("invalid --tier-map format: %w", err)
		}
		for g, t := range parsed {
			tiers[g] = t
		}
	}

	for g := range tiers {
		if _, ok := schema.ValidGrades[g]; !ok {
			return fmt.Errorf("invalid tier map: unknown grade %q", g)
		}
	}
	if err := tiers.Validate(); err != nil {
		return fmt.Errorf("invalid tier map: %w", err)
	}
	cfg.Tiers = tiers
	return nil
}

// ParseGradeBandsString parses a string like "A:0.9,B:0.75,C:0.6,D:0.4"
// into a map of grade to minimum score.
func ParseGradeBandsString(s string) (map[schema.Grade]float64, error) {
	result := make(map[schema.Grade]float64)
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, err := splitPair(part, "grade:value")
		if err != nil {
			return nil, err
		}
		grade := schema.Grade(strings.ToUpper(key))
		if _, ok := schema.ValidGrades[grade]; !ok {
			return nil, fmt.Errorf("invalid grade '%s', must be A, B, C, D, or E", key)
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid cut point '%s' for grade %s: %w", value, grade, err)
		}
		result[grade] = v
	}
	return result, nil
}

// ParseTierMapString parses a string like "E:urgent,D:urgent,C:watch"
// into a map of grade to tier.
func ParseTierMapString(s string) (map[schema.Grade]schema.Tier, error) {
	result := make(map[schema.Grade]schema.Tier)
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, err := splitPair(part, "grade:tier")
		if err != nil {
			return nil, err
		}
		grade := schema.Grade(strings.ToUpper(key))
		if _, ok := schema.ValidGrades[grade]; !ok {
			return nil, fmt.Errorf("invalid grade '%s', must be A, B, C, D, or E", key)
		}
		tier := schema.Tier(strings.ToLower(value))
		if _, ok := schema.ValidTiers[tier]; !ok {
			return nil, fmt.Errorf("invalid tier '%s', must be urgent, watch, or stable", value)
		}
		result[grade] = tier
	}
	return result, nil
}

func splitPair(part, want string) (string, string, error) {
	kv := strings.Split(part, ":")
	if len(kv) != 2 {
		return "", "", fmt.Errorf("invalid format '%s', expected '%s'", part, want)
	}
	return strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1]), nil
}
