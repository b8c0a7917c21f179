package core

import (
	"context"

	"github.com/huangsam/moze/schema"
)

// ExportBundle is everything a caller may take out of the store in one go.
type ExportBundle struct {
	Redacted    bool
	Ranking     schema.RankedReport
	Submissions []schema.Submission
}

// ExportRecords collects the ranking and the submissions for an export.
// Without the administrator capability the ranking is redacted and only the
// caller's own submissions are included, stripped of score and grade.
func (e *Engine) ExportRecords(ctx context.Context, caller, formKey string) (ExportBundle, error) {
	ranking, err := e.RankAll(ctx, caller, formKey)
	if err != nil {
		return ExportBundle{}, err
	}
	bundle := ExportBundle{Redacted: ranking.Redacted, Ranking: ranking}

	filter := schema.SubmissionFilter{IncludeVoided: !ranking.Redacted}
	if formKey != "" && formKey != schema.AllFormsKey {
		filter.FormID = formKey
	}
	if ranking.Redacted {
		filter.EvaluatorID = caller
	}
	subs, err := e.store.ListSubmissions(ctx, filter)
	if err != nil {
		return ExportBundle{}, err
	}
	if ranking.Redacted {
		for i := range subs {
			subs[i].Score = nil
			subs[i].Grade = ""
			subs[i].Scored = false
			subs[i].Override = false
		}
	}
	bundle.Submissions = subs
	return bundle, nil
}
