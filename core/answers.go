package core

import (
	"fmt"
	"strconv"

	"github.com/huangsam/moze/schema"
)

// checkComplete returns an *schema.IncompleteSubmissionError naming every
// required question without a non-empty answer, in form order.
func checkComplete(form *schema.Form, answers []schema.Answer) error {
	answered := make(map[string]bool, len(answers))
	for _, a := range answers {
		if !a.IsEmpty() {
			answered[a.QuestionID] = true
		}
	}
	var missing []string
	for _, q := range form.Questions {
		if q.Required && !answered[q.ID] {
			missing = append(missing, q.ID)
		}
	}
	if len(missing) > 0 {
		return &schema.IncompleteSubmissionError{Missing: missing}
	}
	return nil
}

// checkAnswers returns the first answer that does not conform to its question
// as an *schema.InvalidAnswerError.
func checkAnswers(form *schema.Form, answers []schema.Answer) error {
	seen := make(map[string]bool, len(answers))
	for _, a := range answers {
		q, ok := form.Question(a.QuestionID)
		if !ok {
			return &schema.InvalidAnswerError{QuestionID: a.QuestionID, Reason: "no such question on the form"}
		}
		if seen[a.QuestionID] {
			return &schema.InvalidAnswerError{QuestionID: a.QuestionID, Reason: "answered more than once"}
		}
		seen[a.QuestionID] = true
		if a.IsEmpty() {
			continue
		}
		if reason := answerMismatch(q, a); reason != "" {
			return &schema.InvalidAnswerError{QuestionID: q.ID, Reason: reason}
		}
	}
	return nil
}

// answerMismatch describes why a non-empty answer does not fit the question.
func answerMismatch(q schema.Question, a schema.Answer) string {
	switch q.Type {
	case schema.FreeTextQuestion:
		if len(a.Choices) > 0 || a.Rating != nil {
			return "free-text question takes text only"
		}

	case schema.SingleChoiceQuestion, schema.MultiChoiceQuestion:
		if a.Text != "" || a.Rating != nil {
			return "choice question takes choices only"
		}
		if q.Type == schema.SingleChoiceQuestion && len(a.Choices) != 1 {
			return "exactly one option must be selected"
		}
		picked := make(map[string]bool, len(a.Choices))
		for _, c := range a.Choices {
			if _, ok := q.Options[c]; !ok {
				return fmt.Sprintf("unknown option %q", c)
			}
			if picked[c] {
				return fmt.Sprintf("option %q selected twice", c)
			}
			picked[c] = true
		}

	case schema.RatingQuestion:
		if a.Text != "" || len(a.Choices) > 0 || a.Rating == nil {
			return "rating question takes a rating only"
		}
		v := *a.Rating
		if q.Scale != nil && (v < q.Scale.Min || v > q.Scale.Max) {
			return fmt.Sprintf("rating %d outside %d..%d", v, q.Scale.Min, q.Scale.Max)
		}
		if len(q.Options) > 0 {
			if _, ok := q.Options[strconv.Itoa(v)]; !ok {
				return fmt.Sprintf("rating %d has no point value", v)
			}
		}

	default:
		return fmt.Sprintf("unsupported question type %q", q.Type)
	}
	return ""
}
