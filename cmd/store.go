package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/huangsam/moze/internal/contract"
	"github.com/huangsam/moze/internal/evalstore"
	"github.com/huangsam/moze/internal/parquet"
	"github.com/huangsam/moze/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// storeSetup loads minimal configuration needed for store operations.
// This is used by commands that need store access without the roster or engine.
func storeSetup() error {
	backend, connStr, err := storeBackendConfig()
	if err != nil {
		return err
	}
	if err := evalstore.InitStores(backend, connStr); err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	cfg.StoreBackend = backend
	cfg.StoreDBConnect = connStr
	return nil
}

// storeSetupWrapper wraps storeSetup to provide PreRunE for store commands.
func storeSetupWrapper(_ *cobra.Command, _ []string) error {
	return storeSetup()
}

// storeMigrateSetup validates the backend without opening the store, so
// migrations can run against a fresh or downgraded database.
func storeMigrateSetup(_ *cobra.Command, _ []string) error {
	backend, connStr, err := storeBackendConfig()
	if err != nil {
		return err
	}
	if backend == schema.SQLiteBackend && connStr == "" {
		connStr = contract.GetDBFilePath()
	}
	cfg.StoreBackend = backend
	cfg.StoreDBConnect = connStr
	return nil
}

func storeBackendConfig() (schema.DatabaseBackend, string, error) {
	if err := loadConfigFile(); err != nil {
		return "", "", err
	}
	backend := schema.DatabaseBackend(viper.GetString("store-backend"))
	connStr := viper.GetString("store-db-connect")
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return "", "", err
	}
	return backend, connStr, nil
}

// storeCmd focused on evaluation store management.
//
// Note: status, clear and migrate use minimal initialization instead of the
// full sharedSetup, so they work without a roster.
var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage the evaluation store",
	Long: `Manage the database that holds forms, submissions, aggregates and the audit log.

Supported backends: SQLite (default), MySQL, PostgreSQL

Subcommands:
  status  - Show store statistics and connection info
  clear   - Remove all stored data
  migrate - Run database schema migrations
  export  - Export ranking and submissions to Parquet`,
}

var storeStatusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Display store statistics and connection details",
	PreRunE: storeSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		status, err := evalstore.Manager.GetEvalStore().GetStatus(rootCtx)
		if err != nil {
			contract.LogFatal("Failed to get store status", err)
		}
		evalstore.PrintStoreStatus(os.Stdout, status)
	},
}

var storeClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all forms, submissions, aggregates and audit entries",
	Long: `Delete every row from every evaluation table.

WARNING: This action cannot be undone. Consider exporting data first.

Examples:
  moze store export --as admin --output-file backup
  moze store clear`,
	PreRunE: storeSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := evalstore.Manager.GetEvalStore().Clear(rootCtx); err != nil {
			contract.LogFatal("Failed to clear store", err)
		}
		fmt.Println("Store cleared successfully.")
	},
}

var storeMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage database schema versions for the evaluation store.

By default, migrates to the latest version. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  moze store migrate

  # Rollback to initial state
  moze store migrate --target-version 0`,
	PreRunE: storeMigrateSetup,
	Run: func(_ *cobra.Command, _ []string) {
		targetVersion := viper.GetInt("target-version")
		if err := evalstore.Migrate(cfg.StoreBackend, cfg.StoreDBConnect, targetVersion); err != nil {
			contract.LogFatal("Failed to run migrations", err)
		}
	},
}

var storeExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export ranking and submissions to Parquet for BI tools",
	Long: `Export the ranking and the submissions visible to the caller as Parquet files.

Writes ranking.parquet and submissions.parquet into the --output-file directory.
Administrators get scores, grades and voided submissions. Anyone else only gets
their own submissions without scores, and no ranking.

Examples:
  moze store export --as admin --output-file moze-data
  duckdb -c "SELECT * FROM read_parquet('moze-data/ranking.parquet')"`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		caller, err := requireCaller()
		if err != nil {
			contract.LogFatal("Cannot export", err)
		}
		if cfg.OutputFile == "" {
			contract.LogFatal("Cannot export", fmt.Errorf("--output-file is required"))
		}
		bundle, err := engine.ExportRecords(rootCtx, caller, cfg.FormKey)
		if err != nil {
			contract.LogFatal("Failed to collect export data", err)
		}
		if err := writeExport(cfg.OutputFile, bundle.Redacted, &bundle.Ranking, bundle.Submissions); err != nil {
			contract.LogFatal("Failed to export data", err)
		}
	},
}

// writeExport writes the Parquet files of an export into dir.
func writeExport(dir string, redacted bool, ranking *schema.RankedReport, subs []schema.Submission) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	if !redacted {
		path := filepath.Join(dir, "ranking.parquet")
		if err := parquet.WriteRankingParquet(parquet.ConvertRanking(ranking), path); err != nil {
			return err
		}
		fmt.Printf("Exported %d ranked units to %s\n", ranking.Len(), path)
	}
	path := filepath.Join(dir, "submissions.parquet")
	if err := parquet.WriteSubmissionsParquet(parquet.ConvertSubmissions(subs), path); err != nil {
		return err
	}
	fmt.Printf("Exported %d submissions to %s\n", len(subs), path)
	return nil
}
