package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/huangsam/moze/core"
	"github.com/huangsam/moze/internal/contract"
	"github.com/huangsam/moze/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	engine  *core.Engine
}

// caller resolves the identity of a call, falling back to the configured one.
func (h *toolHandler) caller(request mcp.CallToolRequest) string {
	return request.GetString("caller_id", h.baseCfg.CallerID)
}

func (h *toolHandler) handleListForms(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	forms, err := h.engine.ListForms(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing forms failed: %v", err)), nil
	}
	return jsonResult(forms)
}

func (h *toolHandler) handleGetForm(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("form_id", "")
	if id == "" {
		return mcp.NewToolResultError("form_id is required"), nil
	}
	form, err := h.engine.GetForm(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get form failed: %v", err)), nil
	}
	return jsonResult(form)
}

func (h *toolHandler) handleSubmitEvaluation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := core.SubmitRequest{
		FormID:      request.GetString("form_id", ""),
		UnitID:      request.GetString("unit_id", ""),
		EvaluatorID: h.caller(request),
	}
	if req.FormID == "" || req.UnitID == "" {
		return mcp.NewToolResultError("form_id and unit_id are required"), nil
	}
	if req.EvaluatorID == "" {
		return mcp.NewToolResultError("caller_id is required"), nil
	}

	answers, err := decodeAnswers(request.GetArguments()["answers"])
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid answers: %v", err)), nil
	}
	req.Answers = answers

	receipt, err := h.engine.Submit(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("submission rejected: %v", err)), nil
	}
	return jsonResult(receipt)
}

func (h *toolHandler) handleGetSubmission(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("submission_id", "")
	if id == "" {
		return mcp.NewToolResultError("submission_id is required"), nil
	}
	view, err := h.engine.ViewSubmission(ctx, h.caller(request), id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get submission failed: %v", err)), nil
	}
	return jsonResult(view)
}

func (h *toolHandler) handleGetUnitReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	unitID := request.GetString("unit_id", "")
	if unitID == "" {
		return mcp.NewToolResultError("unit_id is required"), nil
	}
	report, err := h.engine.UnitReport(ctx, h.caller(request), unitID, request.GetString("form", schema.AllFormsKey))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("unit report failed: %v", err)), nil
	}
	return jsonResult(report)
}

func (h *toolHandler) handleGetRanking(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := h.engine.RankAll(ctx, h.caller(request), request.GetString("form", schema.AllFormsKey))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ranking failed: %v", err)), nil
	}
	if l := request.GetInt("limit", 0); l > 0 && l < len(report.Entries) {
		report.Entries = report.Entries[:l]
	}
	return jsonResult(report)
}

// decodeAnswers converts the loosely typed tool argument into answers.
func decodeAnswers(raw any) ([]schema.Answer, error) {
	if raw == nil {
		return nil, fmt.Errorf("answers are required")
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var answers []schema.Answer
	if err := json.Unmarshal(data, &answers); err != nil {
		return nil, err
	}
	return answers, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}
