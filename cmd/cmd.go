// Package cmd defines the command-line interface for moze.
package cmd

import (
	"github.com/huangsam/moze/internal/contract"
	"github.com/huangsam/moze/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(formCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(submissionCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(storeCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)

	// Add the form subcommands to the parent form command
	formCmd.AddCommand(formCreateCmd)
	formCmd.AddCommand(formRedefineCmd)
	formCmd.AddCommand(formShowCmd)
	formCmd.AddCommand(formListCmd)
	formCmd.AddCommand(formRenameCmd)
	formCmd.AddCommand(formArchiveCmd)
	formCmd.AddCommand(formDeleteCmd)

	// Add the submission subcommands to the parent submission command
	submissionCmd.AddCommand(submissionShowCmd)
	submissionCmd.AddCommand(submissionListCmd)
	submissionCmd.AddCommand(submissionVoidCmd)
	submissionCmd.AddCommand(submissionOverrideCmd)

	// Add the report subcommands to the parent report command
	reportCmd.AddCommand(reportRankCmd)
	reportCmd.AddCommand(reportUnitCmd)

	// Add the store subcommands to the parent store command
	storeCmd.AddCommand(storeStatusCmd)
	storeCmd.AddCommand(storeClearCmd)
	storeCmd.AddCommand(storeMigrateCmd)
	storeCmd.AddCommand(storeExportCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("as", "", "Identity of the caller (roster person ID)")
	rootCmd.PersistentFlags().String("roster", "roster.yaml", "Path to the roster file with people, roles and unit assignments")
	rootCmd.PersistentFlags().String("form", schema.AllFormsKey, "Form ID to report on, or '*' for all forms")
	rootCmd.PersistentFlags().IntP("limit", "l", contract.DefaultResultLimit, "Number of results to display")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or csv or json or parquet")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().Int("precision", contract.DefaultPrecision, "Decimal precision for scores")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("grade-bands", "", "Grade cut points override (format: 'A:0.9,B:0.75,C:0.6,D:0.4')")
	rootCmd.PersistentFlags().String("tier-map", "", "Grade to tier override (format: 'E:urgent,D:urgent,C:watch')")
	rootCmd.PersistentFlags().String("store-backend", string(schema.SQLiteBackend), "Store backend: sqlite or mysql or postgresql")
	rootCmd.PersistentFlags().String("store-db-connect", "", "Database connection string for mysql/postgresql (e.g., user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().String("log-level", contract.DefaultLogLevel, "Log level: debug or info or warn or error")
	rootCmd.PersistentFlags().String("log-format", contract.DefaultLogFormat, "Log format: text or json")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of submissionShowCmd to Viper
	submissionShowCmd.Flags().Bool("explain", false, "Print the weighted points of every scored question")
	if err := viper.BindPFlags(submissionShowCmd.Flags()); err != nil {
		contract.LogFatal("Error binding submission show flags", err)
	}

	// Local flags that do not belong in the config file
	submissionListCmd.Flags().String("unit", "", "Only list submissions for this unit")
	submissionListCmd.Flags().String("evaluator", "", "Only list submissions by this evaluator")
	submissionListCmd.Flags().Bool("unscored", false, "Only list submissions the engine could not score")
	submissionListCmd.Flags().Bool("include-voided", false, "Include voided submissions")
	submissionVoidCmd.Flags().String("reason", "", "Reason recorded in the audit log")
	submissionOverrideCmd.Flags().String("reason", "", "Reason recorded in the audit log")

	// Bind all flags of storeMigrateCmd to Viper
	storeMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(storeMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding store migrate flags", err)
	}
}
