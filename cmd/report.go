package cmd

import (
	"github.com/huangsam/moze/internal/contract"
	"github.com/spf13/cobra"
)

// reportCmd groups the prioritization reports. All of them are administrator-only.
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show unit aggregates and the priority ranking",
	Long: `Show the materialized aggregates of evaluated units.

Units are ranked by tier (urgent, watch, stable) and, within a tier, by mean
score ascending so the weakest units come first. Use --form to rank against one
form instead of the all-forms composite.

Examples:
  # Rank every unit across all forms
  moze report rank --as admin

  # Export the ranking for BI tools
  moze report rank --as admin --output parquet --output-file ranking.parquet

  # One unit only
  moze report unit u1 --as admin --form 7d3c...`,
}

var reportRankCmd = &cobra.Command{
	Use:     "rank",
	Short:   "Rank units by priority tier",
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		caller, err := requireCaller()
		if err != nil {
			contract.LogFatal("Cannot rank units", err)
		}
		report, err := engine.RankAll(rootCtx, caller, cfg.FormKey)
		if err != nil {
			contract.LogFatal("Failed to rank units", err)
		}
		if err := writer.WriteRanking(&report, cfg); err != nil {
			contract.LogFatal("Failed to write ranking", err)
		}
	},
}

var reportUnitCmd = &cobra.Command{
	Use:     "unit <unit-id>",
	Short:   "Show the aggregate of one unit",
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, args []string) {
		caller, err := requireCaller()
		if err != nil {
			contract.LogFatal("Cannot show unit", err)
		}
		report, err := engine.UnitReport(rootCtx, caller, args[0], cfg.FormKey)
		if err != nil {
			contract.LogFatal("Failed to get unit report", err)
		}
		if err := writer.WriteUnitReport(report, cfg); err != nil {
			contract.LogFatal("Failed to write unit report", err)
		}
	},
}

// refreshCmd recomputes every aggregate, e.g. after grade bands changed.
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Recompute every unit aggregate",
	Long: `Recompute the aggregate of every unit for every form and the all-forms composite.

Run this after changing grade bands or the tier map, or to repair aggregates
left stale by an interrupted recompute.`,
	PreRunE: sharedSetupWrapper,
	Run: func(cmd *cobra.Command, _ []string) {
		caller, err := requireCaller()
		if err != nil {
			contract.LogFatal("Cannot refresh", err)
		}
		n, err := engine.RefreshAll(rootCtx, caller)
		if err != nil {
			contract.LogFatal("Failed to refresh aggregates", err)
		}
		cmd.Printf("Refreshed %d aggregates with grade bands %s\n", n, engine.GradeBands())
	},
}

// auditCmd lists administrator overrides, newest first.
var auditCmd = &cobra.Command{
	Use:     "audit",
	Short:   "List administrator overrides",
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		caller, err := requireCaller()
		if err != nil {
			contract.LogFatal("Cannot list audit log", err)
		}
		entries, err := engine.ListAudit(rootCtx, caller, cfg.Limit)
		if err != nil {
			contract.LogFatal("Failed to list audit log", err)
		}
		if err := writer.WriteAudit(entries, cfg); err != nil {
			contract.LogFatal("Failed to write audit log", err)
		}
	},
}
