package cmd

import (
	"github.com/huangsam/moze/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the Moze MCP server",
	Long: `Launch an MCP server that lets AI agents list forms, submit evaluations and
read reports via standard tools. Each tool takes an optional caller_id; without
it the --as identity is used, and the same score visibility rules apply.`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		return mcp.StartMCPServer(rootCtx, cfg, engine)
	},
}
