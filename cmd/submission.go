package cmd

import (
	"fmt"
	"strconv"

	"github.com/huangsam/moze/internal/contract"
	"github.com/huangsam/moze/schema"
	"github.com/spf13/cobra"
)

// submissionCmd groups reads and administrator overrides of submissions.
var submissionCmd = &cobra.Command{
	Use:   "submission",
	Short: "Inspect submissions and apply administrator overrides",
	Long: `Inspect recorded submissions.

Evaluators only see confirmations of their own submissions. Administrators see
scores and grades, can void a submission (it stops counting toward aggregates)
or set a manual score on one the engine could not score. Every override is
written to the audit log.

Subcommands:
  show     - Show one submission
  list     - List submissions
  void     - Void a submission (administrators)
  override - Set a manual score (administrators)`,
}

var submissionShowCmd = &cobra.Command{
	Use:     "show <submission-id>",
	Short:   "Show one submission",
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, args []string) {
		caller, err := requireCaller()
		if err != nil {
			contract.LogFatal("Cannot show submission", err)
		}
		view, err := engine.ViewSubmission(rootCtx, caller, args[0])
		if err != nil {
			contract.LogFatal("Failed to get submission", err)
		}
		if err := writer.WriteSubmission(view, cfg); err != nil {
			contract.LogFatal("Failed to write submission", err)
		}
	},
}

var submissionListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List submissions",
	PreRunE: sharedSetupWrapper,
	Run: func(cmd *cobra.Command, _ []string) {
		caller, err := requireCaller()
		if err != nil {
			contract.LogFatal("Cannot list submissions", err)
		}
		filter := schema.SubmissionFilter{}
		if cfg.FormKey != schema.AllFormsKey {
			filter.FormID = cfg.FormKey
		}
		filter.UnitID, _ = cmd.Flags().GetString("unit")
		filter.EvaluatorID, _ = cmd.Flags().GetString("evaluator")
		filter.OnlyUnscored, _ = cmd.Flags().GetBool("unscored")
		filter.IncludeVoided, _ = cmd.Flags().GetBool("include-voided")

		views, err := engine.ListSubmissions(rootCtx, caller, filter)
		if err != nil {
			contract.LogFatal("Failed to list submissions", err)
		}
		if err := writer.WriteSubmissions(views, cfg); err != nil {
			contract.LogFatal("Failed to write submissions", err)
		}
	},
}

var submissionVoidCmd = &cobra.Command{
	Use:     "void <submission-id>",
	Short:   "Void a submission so it no longer counts",
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(cmd *cobra.Command, args []string) {
		caller, err := requireCaller()
		if err != nil {
			contract.LogFatal("Cannot void submission", err)
		}
		reason, _ := cmd.Flags().GetString("reason")
		if err := engine.VoidSubmission(rootCtx, caller, args[0], reason); err != nil {
			contract.LogFatal("Failed to void submission", err)
		}
		cmd.Printf("Voided submission %s\n", args[0])
	},
}

var submissionOverrideCmd = &cobra.Command{
	Use:     "override <submission-id> <score>",
	Short:   "Set a manual score between 0 and 1",
	Args:    cobra.ExactArgs(2),
	PreRunE: sharedSetupWrapper,
	Run: func(cmd *cobra.Command, args []string) {
		caller, err := requireCaller()
		if err != nil {
			contract.LogFatal("Cannot override score", err)
		}
		score, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			contract.LogFatal("Cannot override score", fmt.Errorf("invalid score %q: %w", args[1], err))
		}
		reason, _ := cmd.Flags().GetString("reason")
		if err := engine.OverrideScore(rootCtx, caller, args[0], score, reason); err != nil {
			contract.LogFatal("Failed to override score", err)
		}
		cmd.Printf("Set score of submission %s to %s\n", args[0], contract.FormatScore(score, cfg.Precision))
	},
}
