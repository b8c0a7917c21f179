package cmd

import (
	"github.com/huangsam/moze/core"
	"github.com/huangsam/moze/internal/contract"
	"github.com/spf13/cobra"
)

// submitCmd records an evaluation on behalf of --as.
var submitCmd = &cobra.Command{
	Use:   "submit <form-id> <unit-id> <answers-file>",
	Short: "Submit an evaluation of a unit",
	Long: `Submit answers to a form for one unit, acting as the --as identity.

The answers file holds a top-level "answers" list; each entry names a
question_id and one of text, choices or rating:

  answers:
    - question_id: q1
      choices: [good]
    - question_id: q2
      rating: 4

The confirmation never shows the score. Scores, grades and rankings are only
visible to administrators.

Examples:
  moze submit 7d3c... u1 answers.yaml --as alice`,
	Args:    cobra.ExactArgs(3),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, args []string) {
		caller, err := requireCaller()
		if err != nil {
			contract.LogFatal("Cannot submit", err)
		}
		answers, err := loadAnswers(args[2])
		if err != nil {
			contract.LogFatal("Cannot load answers", err)
		}
		receipt, err := engine.Submit(rootCtx, core.SubmitRequest{
			FormID:      args[0],
			EvaluatorID: caller,
			UnitID:      args[1],
			Answers:     answers,
		})
		if err != nil {
			contract.LogFatal("Submission rejected", err)
		}
		if err := writer.WriteReceipt(receipt, cfg); err != nil {
			contract.LogFatal("Failed to write receipt", err)
		}
	},
}
