package core

import (
	"context"
	"errors"

	"github.com/huangsam/moze/core/algo"
	"github.com/huangsam/moze/schema"
)

// CanViewScores reports whether the caller may read scores, grades,
// aggregates and rankings. Oracle failures deny.
func (e *Engine) CanViewScores(ctx context.Context, caller string) bool {
	ok, err := e.oracle.HasAdminCapability(ctx, caller)
	if err != nil {
		e.logger.Warn("capability lookup failed, denying score access", "caller", caller, "error", err)
		return false
	}
	return ok
}

// ViewSubmission returns a submission as the caller may see it. Evaluators
// get a confirmation of their own submissions and "not available" for any
// other, including IDs that do not exist.
func (e *Engine) ViewSubmission(ctx context.Context, caller, id string) (schema.SubmissionView, error) {
	admin := e.CanViewScores(ctx, caller)
	sub, err := e.store.GetSubmission(ctx, id)
	if err != nil {
		if !admin && errors.Is(err, schema.ErrSubmissionNotFound) {
			return unavailableView(), nil
		}
		return schema.SubmissionView{}, err
	}
	if !admin {
		return e.redactedView(caller, sub), nil
	}

	view := schema.SubmissionView{Status: submissionStatus(sub), Submission: &sub}
	if sub.Scored && !sub.Override {
		if form, err := e.store.GetForm(ctx, sub.FormID); err == nil {
			if result, err := algo.Score(&form, sub.Answers, e.bands); err == nil {
				view.Explain = &result
			}
		}
	}
	return view, nil
}

// ListSubmissions returns the submissions matching the filter. Callers
// without the administrator capability only see confirmations of their own
// non-voided submissions.
func (e *Engine) ListSubmissions(ctx context.Context, caller string, filter schema.SubmissionFilter) ([]schema.SubmissionView, error) {
	admin := e.CanViewScores(ctx, caller)
	if !admin {
		filter.EvaluatorID = caller
		filter.OnlyUnscored = false
		filter.IncludeVoided = false
	}
	subs, err := e.store.ListSubmissions(ctx, filter)
	if err != nil {
		return nil, err
	}

	views := make([]schema.SubmissionView, 0, len(subs))
	for _, sub := range subs {
		if !admin {
			views = append(views, e.redactedView(caller, sub))
			continue
		}
		views = append(views, schema.SubmissionView{Status: submissionStatus(sub), Submission: &sub})
	}
	return views, nil
}

// UnitReport returns the cached aggregate of one unit.
func (e *Engine) UnitReport(ctx context.Context, caller, unitID, formKey string) (schema.UnitReport, error) {
	if formKey == "" {
		formKey = schema.AllFormsKey
	}
	report := schema.UnitReport{UnitID: unitID, FormKey: formKey}
	if !e.CanViewScores(ctx, caller) {
		report.Redacted = true
		report.Status = schema.UnavailableNotice
		return report, nil
	}
	agg, ok, err := e.store.GetAggregate(ctx, unitID, formKey)
	if err != nil {
		return report, err
	}
	report.Evaluated = ok
	if ok {
		report.Aggregate = &agg
		report.Status = string(agg.Tier)
	} else {
		report.Status = "unevaluated"
	}
	return report, nil
}

func (e *Engine) redactedView(caller string, sub schema.Submission) schema.SubmissionView {
	if sub.EvaluatorID != caller || sub.Voided {
		return unavailableView()
	}
	return schema.SubmissionView{
		Redacted: true,
		Status:   schema.RedactedNotice,
		Receipt: &schema.Receipt{
			SubmissionID: sub.ID,
			FormID:       sub.FormID,
			UnitID:       sub.UnitID,
			SubmittedAt:  sub.SubmittedAt,
			Status:       schema.RedactedNotice,
		},
	}
}

func unavailableView() schema.SubmissionView {
	return schema.SubmissionView{Redacted: true, Status: schema.UnavailableNotice}
}

func submissionStatus(sub schema.Submission) string {
	switch {
	case sub.Voided:
		return "voided"
	case sub.Override:
		return "overridden"
	case sub.Scored:
		return "scored"
	default:
		return "unscored"
	}
}
