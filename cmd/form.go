package cmd

import (
	"fmt"

	"github.com/huangsam/moze/internal/contract"
	"github.com/spf13/cobra"
)

// formCmd groups the form lifecycle commands.
var formCmd = &cobra.Command{
	Use:   "form",
	Short: "Define and manage evaluation forms",
	Long: `Create, inspect and retire evaluation form templates.

A form freezes on its first submission: from then on its questions, weights,
scoring, target roles and window can no longer change. The title stays editable
and the form can still be archived.

Subcommands:
  create   - Create a form from a YAML/JSON definition
  redefine - Replace the definition of a form that has no submissions
  show     - Show one form with its questions
  list     - List all forms
  rename   - Change the title of a form
  archive  - Stop accepting submissions for a form
  delete   - Remove a form that has no submissions

Examples:
  # Create a form as an administrator
  moze form create inspection.yaml --as admin

  # Look at its questions
  moze form show 7d3c...`,
}

var formCreateCmd = &cobra.Command{
	Use:     "create <definition-file>",
	Short:   "Create a form from a YAML/JSON definition",
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(cmd *cobra.Command, args []string) {
		caller, err := requireCaller()
		if err != nil {
			contract.LogFatal("Cannot create form", err)
		}
		draft, err := loadDraft(args[0])
		if err != nil {
			contract.LogFatal("Cannot load form definition", err)
		}
		id, err := engine.CreateForm(rootCtx, caller, draft)
		if err != nil {
			contract.LogFatal("Failed to create form", err)
		}
		cmd.Printf("Created form %s\n", id)
	},
}

var formRedefineCmd = &cobra.Command{
	Use:     "redefine <form-id> <definition-file>",
	Short:   "Replace the definition of a form that has no submissions",
	Args:    cobra.ExactArgs(2),
	PreRunE: sharedSetupWrapper,
	Run: func(cmd *cobra.Command, args []string) {
		caller, err := requireCaller()
		if err != nil {
			contract.LogFatal("Cannot redefine form", err)
		}
		draft, err := loadDraft(args[1])
		if err != nil {
			contract.LogFatal("Cannot load form definition", err)
		}
		if err := engine.RedefineForm(rootCtx, caller, args[0], draft); err != nil {
			contract.LogFatal("Failed to redefine form", err)
		}
		cmd.Printf("Redefined form %s\n", args[0])
	},
}

var formShowCmd = &cobra.Command{
	Use:     "show <form-id>",
	Short:   "Show one form with its questions",
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, args []string) {
		form, err := engine.GetForm(rootCtx, args[0])
		if err != nil {
			contract.LogFatal("Failed to get form", err)
		}
		if err := writer.WriteForm(form, cfg); err != nil {
			contract.LogFatal("Failed to write form", err)
		}
	},
}

var formListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List all forms",
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		forms, err := engine.ListForms(rootCtx)
		if err != nil {
			contract.LogFatal("Failed to list forms", err)
		}
		if err := writer.WriteForms(forms, cfg); err != nil {
			contract.LogFatal("Failed to write forms", err)
		}
	},
}

var formRenameCmd = &cobra.Command{
	Use:     "rename <form-id> <title>",
	Short:   "Change the title of a form",
	Args:    cobra.ExactArgs(2),
	PreRunE: sharedSetupWrapper,
	Run: func(cmd *cobra.Command, args []string) {
		caller, err := requireCaller()
		if err != nil {
			contract.LogFatal("Cannot rename form", err)
		}
		if err := engine.RenameForm(rootCtx, caller, args[0], args[1]); err != nil {
			contract.LogFatal("Failed to rename form", err)
		}
		cmd.Printf("Renamed form %s to %q\n", args[0], args[1])
	},
}

var formArchiveCmd = &cobra.Command{
	Use:     "archive <form-id>",
	Short:   "Stop accepting submissions for a form",
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(cmd *cobra.Command, args []string) {
		caller, err := requireCaller()
		if err != nil {
			contract.LogFatal("Cannot archive form", err)
		}
		if err := engine.ArchiveForm(rootCtx, caller, args[0]); err != nil {
			contract.LogFatal("Failed to archive form", err)
		}
		cmd.Printf("Archived form %s\n", args[0])
	},
}

var formDeleteCmd = &cobra.Command{
	Use:     "delete <form-id>",
	Short:   "Remove a form that has no submissions",
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(cmd *cobra.Command, args []string) {
		caller, err := requireCaller()
		if err != nil {
			contract.LogFatal("Cannot delete form", err)
		}
		if err := engine.DeleteForm(rootCtx, caller, args[0]); err != nil {
			contract.LogFatal("Failed to delete form", fmt.Errorf("%w (archive it instead once submissions exist)", err))
		}
		cmd.Printf("Deleted form %s\n", args[0])
	},
}
