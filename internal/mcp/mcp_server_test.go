package mcp_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/huangsam/moze/core"
	"github.com/huangsam/moze/internal/contract"
	"github.com/huangsam/moze/internal/evalstore"
	mcp_internal "github.com/huangsam/moze/internal/mcp"
	"github.com/huangsam/moze/internal/roster"
	"github.com/huangsam/moze/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*server.MCPServer, string) {
	t.Helper()
	store, err := evalstore.NewEvalStore(schema.SQLiteBackend, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	r, err := roster.New(roster.File{
		People: []roster.Person{
			{ID: "admin", Role: schema.AdministratorRole, Admin: true},
			{ID: "alice", Role: schema.EvaluatorRole},
		},
		Units: []roster.UnitEntry{{ID: "u1", Name: "North Center", Evaluators: []string{"alice"}}},
	})
	require.NoError(t, err)

	engine := core.NewEngine(store, r, r, core.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	formID, err := engine.CreateForm(context.Background(), "admin", schema.FormDraft{
		Title: "Site inspection",
		Questions: []schema.Question{{
			ID: "q1", Prompt: "Overall condition", Type: schema.SingleChoiceQuestion, Required: true, Weight: 1,
			Options: map[string]float64{"poor": 0, "good": 5},
		}},
	})
	require.NoError(t, err)

	return mcp_internal.NewMCPServer(&contract.Config{CallerID: "alice"}, engine), formID
}

func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	tool := s.GetTool(name)
	require.NotNil(t, tool, "Tool %s should exist", name)

	req := mcp.CallToolRequest{Params: mcp.CallToolParams{Name: name, Arguments: args}}
	res, err := tool.Handler(context.Background(), req)
	require.NoError(t, err, "The MCP handler should not return a raw error for tool logic failures")
	return res
}

func resultText(res *mcp.CallToolResult) string {
	return res.Content[0].(mcp.TextContent).Text
}

func TestMCPServerHandlers_ValidationErrors(t *testing.T) {
	s, formID := newTestServer(t)

	t.Run("get_form missing form_id", func(t *testing.T) {
		res := callTool(t, s, "get_form", map[string]any{})
		assert.True(t, res.IsError)
		assert.Contains(t, resultText(res), "form_id is required")
	})

	t.Run("submit_evaluation missing answers", func(t *testing.T) {
		res := callTool(t, s, "submit_evaluation", map[string]any{"form_id": formID, "unit_id": "u1"})
		assert.True(t, res.IsError)
		assert.Contains(t, resultText(res), "answers are required")
	})

	t.Run("submit_evaluation incomplete", func(t *testing.T) {
		res := callTool(t, s, "submit_evaluation", map[string]any{
			"form_id": formID, "unit_id": "u1", "answers": []any{},
		})
		assert.True(t, res.IsError)
		assert.Contains(t, resultText(res), "submission rejected")
	})

	t.Run("get_ranking as evaluator", func(t *testing.T) {
		res := callTool(t, s, "get_ranking", map[string]any{})
		require.False(t, res.IsError)
		var report schema.RankedReport
		require.NoError(t, json.Unmarshal([]byte(resultText(res)), &report))
		assert.True(t, report.Redacted)
		assert.Empty(t, report.Entries)
	})
}

func TestMCPServerHandlers_SubmitAndRank(t *testing.T) {
	s, formID := newTestServer(t)

	res := callTool(t, s, "submit_evaluation", map[string]any{
		"form_id": formID,
		"unit_id": "u1",
		"answers": []any{map[string]any{"question_id": "q1", "choices": []any{"good"}}},
	})
	require.False(t, res.IsError, resultText(res))
	var receipt schema.Receipt
	require.NoError(t, json.Unmarshal([]byte(resultText(res)), &receipt))
	assert.Equal(t, schema.RedactedNotice, receipt.Status)
	assert.NotContains(t, resultText(res), "score")

	res = callTool(t, s, "get_submission", map[string]any{"submission_id": receipt.SubmissionID})
	require.False(t, res.IsError)
	assert.NotContains(t, resultText(res), `"score"`)

	res = callTool(t, s, "get_ranking", map[string]any{"caller_id": "admin"})
	require.False(t, res.IsError)
	var report schema.RankedReport
	require.NoError(t, json.Unmarshal([]byte(resultText(res)), &report))
	require.Len(t, report.Entries, 1)
	assert.Equal(t, "u1", report.Entries[0].Aggregate.UnitID)
	assert.InDelta(t, 1.0, report.Entries[0].Aggregate.MeanScore, 1e-9)

	res = callTool(t, s, "get_unit_report", map[string]any{"caller_id": "admin", "unit_id": "u1"})
	require.False(t, res.IsError)
	assert.Contains(t, resultText(res), `"evaluated": true`)

	res = callTool(t, s, "list_forms", map[string]any{})
	require.False(t, res.IsError)
	assert.Contains(t, resultText(res), `"frozen": true`)
}
