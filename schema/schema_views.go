package schema

import (
	"iter"
	"time"
)

// Receipt confirms a recorded submission. It never carries a score.
type Receipt struct {
	SubmissionID string    `json:"submission_id"`
	FormID       string    `json:"form_id"`
	UnitID       string    `json:"unit_id"`
	SubmittedAt  time.Time `json:"submitted_at"`
	Status       string    `json:"status"`
}

// SubmissionView is a submission as seen by a particular caller.
// Redacted views keep only the confirmation fields.
type SubmissionView struct {
	Redacted   bool         `json:"redacted"`
	Status     string       `json:"status"`
	Receipt    *Receipt     `json:"receipt,omitempty"`
	Submission *Submission  `json:"submission,omitempty"`
	Explain    *ScoreResult `json:"explain,omitempty"` // per-question breakdown, admins only
}

// UnitReport is the aggregate of one unit as seen by a particular caller.
type UnitReport struct {
	Redacted  bool           `json:"redacted"`
	Status    string         `json:"status"`
	UnitID    string         `json:"unit_id"`
	FormKey   string         `json:"form_key"`
	Evaluated bool           `json:"evaluated"`
	Aggregate *UnitAggregate `json:"aggregate,omitempty"`
}

// RankedReport is a snapshot of the prioritized units taken by one RankAll call.
type RankedReport struct {
	Redacted    bool         `json:"redacted"`
	Status      string       `json:"status"`
	FormKey     string       `json:"form_key"`
	GeneratedAt time.Time    `json:"generated_at"`
	Entries     []RankedUnit `json:"entries"`
	Unevaluated []Unit       `json:"unevaluated"`
}

// All yields the ranked entries in order. Each call starts from the top of the snapshot.
func (r *RankedReport) All() iter.Seq2[int, RankedUnit] {
	return func(yield func(int, RankedUnit) bool) {
		for i, e := range r.Entries {
			if !yield(i, e) {
				return
			}
		}
	}
}

// ByTier yields only the entries of one tier.
func (r *RankedReport) ByTier(t Tier) iter.Seq[RankedUnit] {
	return func(yield func(RankedUnit) bool) {
		for _, e := range r.Entries {
			if e.Aggregate.Tier != t {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}

// Len returns the number of ranked entries.
func (r *RankedReport) Len() int {
	return len(r.Entries)
}
