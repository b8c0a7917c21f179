// Package outwriter has output and writer logic.
package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/huangsam/moze/internal/contract"
	"github.com/huangsam/moze/internal/parquet"
	"github.com/huangsam/moze/schema"
)

// OutWriter provides a unified interface for all output operations.
// It encapsulates the various output formats and provides a clean API for the commands.
type OutWriter struct{}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter() *OutWriter {
	return &OutWriter{}
}

// WriteRanking prints the ranked report using the configured output format.
func (ow *OutWriter) WriteRanking(report *schema.RankedReport, cfg *contract.Config) error {
	if cfg.Output == schema.ParquetOut {
		if report.Redacted {
			return fmt.Errorf("ranking is %s to this caller", schema.UnavailableNotice)
		}
		return writeParquetFile(cfg.OutputFile, "ranking", func() error {
			return parquet.WriteRankingParquet(parquet.ConvertRanking(report), cfg.OutputFile)
		})
	}
	return dispatch(cfg, "ranking", report,
		func(w *csv.Writer) error { return writeRankingCSV(w, report, cfg) },
		func(w io.Writer) error { return writeRankingTable(w, report, cfg) })
}

// WriteUnitReport prints the aggregate of one unit.
func (ow *OutWriter) WriteUnitReport(report schema.UnitReport, cfg *contract.Config) error {
	return dispatch(cfg, "unit report", report,
		func(w *csv.Writer) error { return writeUnitReportCSV(w, report, cfg) },
		func(w io.Writer) error { return writeUnitReportText(w, report, cfg) })
}

// WriteSubmissions prints a list of submission views.
func (ow *OutWriter) WriteSubmissions(views []schema.SubmissionView, cfg *contract.Config) error {
	if cfg.Output == schema.ParquetOut {
		var subs []schema.Submission
		for _, v := range views {
			if v.Submission != nil {
				subs = append(subs, *v.Submission)
			}
		}
		return writeParquetFile(cfg.OutputFile, "submissions", func() error {
			return parquet.WriteSubmissionsParquet(parquet.ConvertSubmissions(subs), cfg.OutputFile)
		})
	}
	return dispatch(cfg, "submissions", views,
		func(w *csv.Writer) error { return writeSubmissionsCSV(w, views, cfg) },
		func(w io.Writer) error { return writeSubmissionsTable(w, views, cfg) })
}

// WriteSubmission prints one submission view, with the score breakdown when explain is set.
func (ow *OutWriter) WriteSubmission(view schema.SubmissionView, cfg *contract.Config) error {
	return dispatch(cfg, "submission", view,
		func(w *csv.Writer) error { return writeSubmissionsCSV(w, []schema.SubmissionView{view}, cfg) },
		func(w io.Writer) error { return writeSubmissionDetail(w, view, cfg) })
}

// WriteReceipt prints the confirmation of a recorded submission.
func (ow *OutWriter) WriteReceipt(receipt schema.Receipt, cfg *contract.Config) error {
	return dispatch(cfg, "receipt", receipt,
		func(w *csv.Writer) error { return writeReceiptCSV(w, receipt) },
		func(w io.Writer) error { return writeReceiptText(w, receipt) })
}

// WriteForms prints a list of forms.
func (ow *OutWriter) WriteForms(forms []schema.Form, cfg *contract.Config) error {
	return dispatch(cfg, "forms", forms,
		func(w *csv.Writer) error { return writeFormsCSV(w, forms) },
		func(w io.Writer) error { return writeFormsTable(w, forms, cfg) })
}

// WriteForm prints one form with its questions.
func (ow *OutWriter) WriteForm(form schema.Form, cfg *contract.Config) error {
	return dispatch(cfg, "form", form,
		func(w *csv.Writer) error { return writeQuestionsCSV(w, form) },
		func(w io.Writer) error { return writeFormDetail(w, form, cfg) })
}

// WriteAudit prints override audit entries.
func (ow *OutWriter) WriteAudit(entries []schema.AuditEntry, cfg *contract.Config) error {
	return dispatch(cfg, "audit log", entries,
		func(w *csv.Writer) error { return writeAuditCSV(w, entries) },
		func(w io.Writer) error { return writeAuditTable(w, entries, cfg) })
}
