package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/huangsam/moze/internal/contract"
	"github.com/huangsam/moze/schema"
	"github.com/olekukonko/tablewriter"
)

// writeSubmissionsTable lists submissions. Redacted views only show the confirmation fields.
func writeSubmissionsTable(w io.Writer, views []schema.SubmissionView, cfg *contract.Config) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Submission", "Form", "Unit", "Evaluator", "Submitted", "Score", "Grade", "Status"})

	limit := rowLimit(cfg, len(views))
	var data [][]string
	for _, v := range views[:limit] {
		switch {
		case v.Submission != nil:
			s := v.Submission
			data = append(data, []string{
				s.ID, s.FormID, s.UnitID, s.EvaluatorID, formatTime(s.SubmittedAt),
				scoreText(s.Score, cfg.Precision), gradeLabel(s.Grade, cfg), v.Status,
			})
		case v.Receipt != nil:
			r := v.Receipt
			data = append(data, []string{
				r.SubmissionID, r.FormID, r.UnitID, "-", formatTime(r.SubmittedAt),
				mutedLabel("-", cfg), mutedLabel("-", cfg), v.Status,
			})
		}
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Showing %d of %d submissions\n", len(data), len(views))
	return err
}

func writeSubmissionsCSV(w *csv.Writer, views []schema.SubmissionView, cfg *contract.Config) error {
	header := []string{"submission_id", "form_id", "unit_id", "evaluator_id", "submitted_at", "score", "grade", "status"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, v := range views {
		var rec []string
		switch {
		case v.Submission != nil:
			s := v.Submission
			score := ""
			if s.Score != nil {
				score = contract.FormatScore(*s.Score, cfg.Precision)
			}
			rec = []string{s.ID, s.FormID, s.UnitID, s.EvaluatorID, formatTime(s.SubmittedAt), score, string(s.Grade), v.Status}
		case v.Receipt != nil:
			r := v.Receipt
			rec = []string{r.SubmissionID, r.FormID, r.UnitID, "", formatTime(r.SubmittedAt), "", "", v.Status}
		default:
			rec = []string{"", "", "", "", "", "", "", v.Status}
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

// writeSubmissionDetail prints one submission with its answers and, when
// explain is on, the weighted points of every scored question.
func writeSubmissionDetail(w io.Writer, view schema.SubmissionView, cfg *contract.Config) error {
	if view.Submission == nil {
		if view.Receipt != nil {
			return writeReceiptText(w, *view.Receipt)
		}
		_, err := fmt.Fprintf(w, "Submission %s\n", mutedLabel(view.Status, cfg))
		return err
	}

	s := view.Submission
	header := []string{
		"Submission: " + s.ID,
		"Form: " + s.FormID,
		"Unit: " + s.UnitID,
		"Evaluator: " + s.EvaluatorID,
		"Submitted At: " + formatTime(s.SubmittedAt),
		"Score: " + scoreText(s.Score, cfg.Precision),
		"Grade: " + gradeLabel(s.Grade, cfg),
		"Status: " + view.Status,
	}
	for _, line := range header {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	table := tablewriter.NewWriter(w)
	headers := []string{"Question", "Answer"}
	if cfg.Explain && view.Explain != nil {
		headers = append(headers, "Points")
	}
	table.Header(headers)
	answerWidth := getMaxTableTextWidth(cfg, 40)
	var data [][]string
	for _, a := range s.Answers {
		row := []string{a.QuestionID, contract.TruncateText(answerText(a), answerWidth)}
		if cfg.Explain && view.Explain != nil {
			points, ok := view.Explain.Breakdown[a.QuestionID]
			if ok {
				row = append(row, contract.FormatScore(points, cfg.Precision))
			} else {
				row = append(row, "-")
			}
		}
		data = append(data, row)
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	if cfg.Explain && view.Explain != nil {
		_, err := fmt.Fprintf(w, "Composite %s over scored weight %s\n",
			contract.FormatScore(view.Explain.Composite, cfg.Precision),
			contract.FormatScore(view.Explain.ScoredWeight, cfg.Precision))
		return err
	}
	return nil
}

func writeReceiptText(w io.Writer, r schema.Receipt) error {
	_, err := fmt.Fprintf(w, "Submission %s %s for unit %s on form %s at %s\n",
		r.SubmissionID, r.Status, r.UnitID, r.FormID, formatTime(r.SubmittedAt))
	return err
}

func writeReceiptCSV(w *csv.Writer, r schema.Receipt) error {
	if err := w.Write([]string{"submission_id", "form_id", "unit_id", "submitted_at", "status"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	return w.Write([]string{r.SubmissionID, r.FormID, r.UnitID, formatTime(r.SubmittedAt), r.Status})
}

// answerText renders whichever value the answer carries.
func answerText(a schema.Answer) string {
	switch {
	case a.Rating != nil:
		return fmt.Sprintf("%d", *a.Rating)
	case len(a.Choices) > 0:
		choices := slices.Clone(a.Choices)
		return strings.Join(choices, ", ")
	default:
		return a.Text
	}
}
