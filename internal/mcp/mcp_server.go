// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/moze/core"
	"github.com/huangsam/moze/internal/contract"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer initializes and configures the Moze MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, engine *core.Engine) *server.MCPServer {
	s := server.NewMCPServer(
		"Moze Evaluation Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		engine:  engine,
	}

	callerArg := mcp.WithString("caller_id", mcp.Description("Identity the call is made as (defaults to the configured --as identity)."))

	// --- 1. Tool: list_forms ---
	s.AddTool(mcp.NewTool("list_forms",
		mcp.WithDescription("List every evaluation form with its lifecycle flags."),
	), h.handleListForms)

	// --- 2. Tool: get_form ---
	s.AddTool(mcp.NewTool("get_form",
		mcp.WithDescription("Get one evaluation form with its questions, so answers can be prepared."),
		mcp.WithString("form_id", mcp.Description("ID of the form."), mcp.Required()),
	), h.handleGetForm)

	// --- 3. Tool: submit_evaluation ---
	s.AddTool(mcp.NewTool("submit_evaluation",
		mcp.WithDescription("Submit an evaluation of a unit against a form. The receipt never carries a score."),
		mcp.WithString("form_id", mcp.Description("ID of the form."), mcp.Required()),
		mcp.WithString("unit_id", mcp.Description("ID of the evaluated unit."), mcp.Required()),
		mcp.WithArray("answers", mcp.Description("Answers as objects with question_id and one of text, choices or rating."), mcp.Required()),
		callerArg,
	), h.handleSubmitEvaluation)

	// --- 4. Tool: get_submission ---
	s.AddTool(mcp.NewTool("get_submission",
		mcp.WithDescription("Get one submission. Scores are only shown to administrators."),
		mcp.WithString("submission_id", mcp.Description("ID of the submission."), mcp.Required()),
		callerArg,
	), h.handleGetSubmission)

	// --- 5. Tool: get_unit_report ---
	s.AddTool(mcp.NewTool("get_unit_report",
		mcp.WithDescription("Get the aggregate score, grade and tier of one unit (administrators only)."),
		mcp.WithString("unit_id", mcp.Description("ID of the unit."), mcp.Required()),
		mcp.WithString("form", mcp.Description("Form ID, or '*' for all forms (default).")),
		callerArg,
	), h.handleGetUnitReport)

	// --- 6. Tool: get_ranking ---
	s.AddTool(mcp.NewTool("get_ranking",
		mcp.WithDescription("Rank units by priority tier, most urgent first (administrators only)."),
		mcp.WithString("form", mcp.Description("Form ID, or '*' for all forms (default).")),
		mcp.WithNumber("limit", mcp.Description("Limit the number of ranked units returned.")),
		callerArg,
	), h.handleGetRanking)

	return s
}

// StartMCPServer starts the Moze MCP server on stdio.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, engine *core.Engine) error {
	s := NewMCPServer(baseCfg, engine)
	return server.ServeStdio(s)
}
