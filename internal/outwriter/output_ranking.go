package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/huangsam/moze/internal/contract"
	"github.com/huangsam/moze/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// rankingFixedWidth covers Rank, Unit, Mean, Grade, Tier and Count with borders.
const rankingFixedWidth = 70

// writeRankingTable generates and writes the human-readable priority table.
func writeRankingTable(w io.Writer, report *schema.RankedReport, cfg *contract.Config) error {
	if report.Redacted {
		_, err := fmt.Fprintf(w, "Ranking %s\n", mutedLabel(schema.UnavailableNotice, cfg))
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Rank", "Unit", "Name", "Mean", "Grade", "Tier", "Count"})
	table.Configure(func(c *tablewriter.Config) {
		c.Row.Alignment.Global = tw.AlignRight
	})

	nameWidth := getMaxTableTextWidth(cfg, rankingFixedWidth)
	limit := rowLimit(cfg, report.Len())
	var data [][]string
	for i, e := range report.All() {
		if i >= limit {
			break
		}
		agg := e.Aggregate
		data = append(data, []string{
			strconv.Itoa(e.Rank),
			agg.UnitID,
			contract.TruncateText(e.Unit.Name, nameWidth),
			contract.FormatScore(agg.MeanScore, cfg.Precision),
			gradeLabel(agg.Grade, cfg),
			tierLabel(agg.Tier, cfg),
			strconv.Itoa(agg.SubmissionCount),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	counts := make([]string, 0, len(schema.AllTiers))
	for _, tier := range schema.AllTiers {
		n := 0
		for range report.ByTier(tier) {
			n++
		}
		counts = append(counts, fmt.Sprintf("%s: %d", tier, n))
	}
	if _, err := fmt.Fprintf(w, "Showing %d of %d units for form %s (%s)\n",
		len(data), report.Len(), report.FormKey, strings.Join(counts, ", ")); err != nil {
		return err
	}
	if len(report.Unevaluated) > 0 {
		ids := make([]string, len(report.Unevaluated))
		for i, u := range report.Unevaluated {
			ids[i] = u.ID
		}
		if _, err := fmt.Fprintf(w, "Unevaluated units (%d): %s\n",
			len(ids), mutedLabel(strings.Join(ids, ", "), cfg)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Generated at %s with grade bands %s\n", formatTime(report.GeneratedAt), cfg.GradeBands)
	return err
}

// writeRankingCSV writes ranked units followed by the unevaluated ones with an empty rank.
func writeRankingCSV(w *csv.Writer, report *schema.RankedReport, cfg *contract.Config) error {
	header := []string{"rank", "unit_id", "unit_name", "form_key", "mean_score", "grade", "tier", "submissions", "computed_at"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	if report.Redacted {
		return nil
	}
	for _, e := range report.All() {
		agg := e.Aggregate
		rec := []string{
			strconv.Itoa(e.Rank),
			agg.UnitID,
			e.Unit.Name,
			agg.FormKey,
			contract.FormatScore(agg.MeanScore, cfg.Precision),
			string(agg.Grade),
			string(agg.Tier),
			strconv.Itoa(agg.SubmissionCount),
			formatTime(agg.ComputedAt),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	for _, u := range report.Unevaluated {
		if err := w.Write([]string{"", u.ID, u.Name, report.FormKey, "", "", "unevaluated", "0", ""}); err != nil {
			return err
		}
	}
	return nil
}

// writeUnitReportText prints one unit aggregate as key/value lines.
func writeUnitReportText(w io.Writer, report schema.UnitReport, cfg *contract.Config) error {
	lines := []string{fmt.Sprintf("Unit: %s", report.UnitID), fmt.Sprintf("Form: %s", report.FormKey)}
	switch {
	case report.Redacted:
		lines = append(lines, "Status: "+mutedLabel(report.Status, cfg))
	case !report.Evaluated || report.Aggregate == nil:
		lines = append(lines, "Status: "+mutedLabel("unevaluated", cfg))
	default:
		agg := report.Aggregate
		lines = append(lines,
			"Mean Score: "+contract.FormatScore(agg.MeanScore, cfg.Precision),
			"Grade: "+gradeLabel(agg.Grade, cfg),
			"Tier: "+tierLabel(agg.Tier, cfg),
			"Submissions: "+strconv.Itoa(agg.SubmissionCount),
			"Computed At: "+formatTime(agg.ComputedAt),
		)
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func writeUnitReportCSV(w *csv.Writer, report schema.UnitReport, cfg *contract.Config) error {
	if err := w.Write([]string{"unit_id", "form_key", "status", "mean_score", "grade", "tier", "submissions"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	rec := []string{report.UnitID, report.FormKey, report.Status, "", "", "", ""}
	if agg := report.Aggregate; agg != nil {
		rec[3] = contract.FormatScore(agg.MeanScore, cfg.Precision)
		rec[4] = string(agg.Grade)
		rec[5] = string(agg.Tier)
		rec[6] = strconv.Itoa(agg.SubmissionCount)
	}
	return w.Write(rec)
}

// rowLimit caps table rows at cfg.Limit when set.
func rowLimit(cfg *contract.Config, n int) int {
	if cfg.Limit > 0 && cfg.Limit < n {
		return cfg.Limit
	}
	return n
}
