// Package schema has models, constants and errors for all parts of moze.
package schema

import "time"

// Window is the active period of a form. Zero bounds are open-ended.
type Window struct {
	Start time.Time `json:"start" mapstructure:"start"`
	End   time.Time `json:"end" mapstructure:"end"`
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && t.After(w.End) {
		return false
	}
	return true
}

// Scale bounds the values a rating question accepts.
type Scale struct {
	Min int `json:"min" mapstructure:"min"`
	Max int `json:"max" mapstructure:"max"`
}

// Question is one prompt of an evaluation form.
type Question struct {
	ID       string             `json:"id" mapstructure:"id" validate:"required"`
	Prompt   string             `json:"prompt" mapstructure:"prompt" validate:"required"`
	Type     QuestionType       `json:"type" mapstructure:"type" validate:"required"`
	Required bool               `json:"required" mapstructure:"required"`
	Weight   float64            `json:"weight" mapstructure:"weight"`
	Options  map[string]float64 `json:"options,omitempty" mapstructure:"options"` // answer value -> raw points
	Scale    *Scale             `json:"scale,omitempty" mapstructure:"scale"`     // rating bounds
}

// Form is an evaluation form template.
type Form struct {
	ID                     string     `json:"id"`
	Title                  string     `json:"title"`
	Questions              []Question `json:"questions"`
	TargetRoles            []Role     `json:"target_roles"`
	Window                 Window     `json:"window"`
	AllowMultipleResponses bool       `json:"allow_multiple_responses"`
	Frozen                 bool       `json:"frozen"`       // set by the first submission
	Archived               bool       `json:"archived"`     // soft-disabled
	NeedsReview            bool       `json:"needs_review"` // weighted free-text present
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// Question returns the question with the given ID.
func (f *Form) Question(id string) (Question, bool) {
	for _, q := range f.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// AllowsRole reports whether the role may submit against the form.
// An empty target-role filter admits every role.
func (f *Form) AllowsRole(r Role) bool {
	if len(f.TargetRoles) == 0 {
		return true
	}
	for _, tr := range f.TargetRoles {
		if tr == r {
			return true
		}
	}
	return false
}

// FormDraft carries the caller-supplied part of a form definition.
type FormDraft struct {
	Title                  string     `json:"title" mapstructure:"title" validate:"required"`
	Questions              []Question `json:"questions" mapstructure:"questions" validate:"required,min=1,unique=ID,dive"`
	TargetRoles            []Role     `json:"target_roles" mapstructure:"target_roles"`
	Window                 Window     `json:"window" mapstructure:"window"`
	AllowMultipleResponses bool       `json:"allow_multiple_responses" mapstructure:"allow_multiple_responses"`
}

// Answer is the response to one question. Exactly one value field is set,
// matching the question type.
type Answer struct {
	QuestionID string   `json:"question_id" mapstructure:"question_id"`
	Text       string   `json:"text,omitempty" mapstructure:"text"`
	Choices    []string `json:"choices,omitempty" mapstructure:"choices"`
	Rating     *int     `json:"rating,omitempty" mapstructure:"rating"`
}

// IsEmpty reports whether the answer carries no value at all.
func (a Answer) IsEmpty() bool {
	return a.Text == "" && len(a.Choices) == 0 && a.Rating == nil
}

// Submission is one evaluator's evaluation of one unit against one form.
type Submission struct {
	ID          string    `json:"id"`
	FormID      string    `json:"form_id"`
	EvaluatorID string    `json:"evaluator_id"`
	UnitID      string    `json:"unit_id"`
	SubmittedAt time.Time `json:"submitted_at"`
	Answers     []Answer  `json:"answers"`
	Score       *float64  `json:"score"` // nil while unscored
	Grade       Grade     `json:"grade"`
	Scored      bool      `json:"scored"`
	Voided      bool      `json:"voided"`
	Override    bool      `json:"override"` // score set by an administrator
}

// Qualifies reports whether the submission counts toward aggregates.
func (s *Submission) Qualifies() bool {
	return s.Scored && !s.Voided && s.Score != nil
}

// SubmissionFilter narrows submission queries. Empty fields match everything.
type SubmissionFilter struct {
	FormID        string
	UnitID        string
	EvaluatorID   string
	OnlyUnscored  bool
	IncludeVoided bool
}

// ScoreResult is the outcome of scoring one submission.
type ScoreResult struct {
	Composite    float64            `json:"composite"`
	Grade        Grade              `json:"grade"`
	ScoredWeight float64            `json:"scored_weight"`
	Breakdown    map[string]float64 `json:"breakdown"` // question ID -> weighted points
}

// UnitAggregate is the materialized summary of a unit's qualifying submissions.
type UnitAggregate struct {
	UnitID          string    `json:"unit_id"`
	FormKey         string    `json:"form_key"` // form ID or AllFormsKey
	MeanScore       float64   `json:"mean_score"`
	SubmissionCount int       `json:"submission_count"`
	Grade           Grade     `json:"grade"`
	Tier            Tier      `json:"tier"`
	ComputedAt      time.Time `json:"computed_at"`
}

// Unit is an organizational unit under evaluation.
type Unit struct {
	ID   string `json:"id" mapstructure:"id"`
	Name string `json:"name" mapstructure:"name"`
}

// RankedUnit is one entry of the ranked report.
type RankedUnit struct {
	Rank      int           `json:"rank"`
	Unit      Unit          `json:"unit"`
	Aggregate UnitAggregate `json:"aggregate"`
}

// AuditEntry records an administrator override.
type AuditEntry struct {
	ID           int64     `json:"id"`
	At           time.Time `json:"at"`
	ActorID      string    `json:"actor_id"`
	Action       string    `json:"action"`
	SubmissionID string    `json:"submission_id"`
	Detail       string    `json:"detail"`
}

// Audit actions.
const (
	AuditVoid     = "void"
	AuditOverride = "override"
)

// StoreStatus represents the status of the evaluation store.
type StoreStatus struct {
	Backend          string           `json:"backend"`
	Connected        bool             `json:"connected"`
	TotalForms       int              `json:"total_forms"`
	TotalSubmissions int              `json:"total_submissions"`
	UnscoredCount    int              `json:"unscored_count"`
	LastSubmission   time.Time        `json:"last_submission"`
	TableSizes       map[string]int64 `json:"table_sizes"`
}
