package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/huangsam/moze/internal/contract"
	"github.com/huangsam/moze/schema"
	"github.com/olekukonko/tablewriter"
)

// writeFormsTable lists forms with their lifecycle flags.
func writeFormsTable(w io.Writer, forms []schema.Form, cfg *contract.Config) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Form", "Title", "Questions", "Window", "Flags"})

	titleWidth := getMaxTableTextWidth(cfg, 90)
	var data [][]string
	for _, f := range forms {
		data = append(data, []string{
			f.ID,
			contract.TruncateText(f.Title, titleWidth),
			strconv.Itoa(len(f.Questions)),
			windowText(f.Window),
			formFlags(f),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func writeFormsCSV(w *csv.Writer, forms []schema.Form) error {
	header := []string{"form_id", "title", "questions", "window_start", "window_end", "multiple_responses", "frozen", "archived", "needs_review"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, f := range forms {
		rec := []string{
			f.ID, f.Title, strconv.Itoa(len(f.Questions)),
			formatTime(f.Window.Start), formatTime(f.Window.End),
			strconv.FormatBool(f.AllowMultipleResponses),
			strconv.FormatBool(f.Frozen), strconv.FormatBool(f.Archived), strconv.FormatBool(f.NeedsReview),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

// writeFormDetail prints a form header followed by its question table.
func writeFormDetail(w io.Writer, f schema.Form, cfg *contract.Config) error {
	roles := "any"
	if len(f.TargetRoles) > 0 {
		parts := make([]string, len(f.TargetRoles))
		for i, r := range f.TargetRoles {
			parts[i] = string(r)
		}
		roles = strings.Join(parts, ", ")
	}
	header := []string{
		"Form: " + f.ID,
		"Title: " + f.Title,
		"Target Roles: " + roles,
		"Window: " + windowText(f.Window),
		"Multiple Responses: " + strconv.FormatBool(f.AllowMultipleResponses),
		"Flags: " + formFlags(f),
	}
	for _, line := range header {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Question", "Type", "Required", "Weight", "Prompt", "Points"})
	promptWidth := getMaxTableTextWidth(cfg, 85)
	var data [][]string
	for _, q := range f.Questions {
		data = append(data, []string{
			q.ID,
			string(q.Type),
			strconv.FormatBool(q.Required),
			strconv.FormatFloat(q.Weight, 'g', -1, 64),
			contract.TruncateText(q.Prompt, promptWidth),
			pointsText(q),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func writeQuestionsCSV(w *csv.Writer, f schema.Form) error {
	if err := w.Write([]string{"form_id", "question_id", "type", "required", "weight", "prompt", "points"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, q := range f.Questions {
		rec := []string{f.ID, q.ID, string(q.Type), strconv.FormatBool(q.Required),
			strconv.FormatFloat(q.Weight, 'g', -1, 64), q.Prompt, pointsText(q)}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

// writeAuditTable lists override audit entries.
func writeAuditTable(w io.Writer, entries []schema.AuditEntry, cfg *contract.Config) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"ID", "At", "Actor", "Action", "Submission", "Detail"})
	detailWidth := getMaxTableTextWidth(cfg, 75)
	var data [][]string
	for _, e := range entries {
		data = append(data, []string{
			strconv.FormatInt(e.ID, 10),
			formatTime(e.At),
			e.ActorID,
			e.Action,
			e.SubmissionID,
			contract.TruncateText(e.Detail, detailWidth),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func writeAuditCSV(w *csv.Writer, entries []schema.AuditEntry) error {
	if err := w.Write([]string{"id", "at", "actor_id", "action", "submission_id", "detail"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, e := range entries {
		rec := []string{strconv.FormatInt(e.ID, 10), formatTime(e.At), e.ActorID, e.Action, e.SubmissionID, e.Detail}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

func windowText(win schema.Window) string {
	if win.Start.IsZero() && win.End.IsZero() {
		return "always open"
	}
	return formatTime(win.Start) + " .. " + formatTime(win.End)
}

func formFlags(f schema.Form) string {
	var flags []string
	if f.Frozen {
		flags = append(flags, "frozen")
	}
	if f.Archived {
		flags = append(flags, "archived")
	}
	if f.NeedsReview {
		flags = append(flags, "needs-review")
	}
	if len(flags) == 0 {
		return "-"
	}
	return strings.Join(flags, ",")
}

// pointsText renders the answer-to-points mapping in sorted key order.
func pointsText(q schema.Question) string {
	if len(q.Options) == 0 {
		if q.Scale != nil {
			return fmt.Sprintf("%d..%d", q.Scale.Min, q.Scale.Max)
		}
		return "-"
	}
	keys := slices.Sorted(maps.Keys(q.Options))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + strconv.FormatFloat(q.Options[k], 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}
