// Package algo holds the pure scoring and ranking functions.
package algo

import (
	"fmt"
	"math"
	"strconv"

	"github.com/huangsam/moze/schema"
)

// Score computes the composite score and grade of one submission.
// Questions are visited in form order so identical inputs always produce
// identical output. It returns schema.ErrNoScore when no answered question
// carries scorable weight.
func Score(form *schema.Form, answers []schema.Answer, bands schema.GradeBands) (schema.ScoreResult, error) {
	byQuestion := make(map[string]schema.Answer, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	result := schema.ScoreResult{Breakdown: make(map[string]float64)}
	var points float64

	for _, q := range form.Questions {
		if !q.Type.IsScorable() {
			continue
		}
		a, ok := byQuestion[q.ID]
		if !ok || a.IsEmpty() {
			continue // skipped optional question
		}
		maxRaw := MaxRaw(q)
		if maxRaw <= 0 {
			continue
		}
		raw, err := RawPoints(q, a)
		if err != nil {
			return schema.ScoreResult{}, err
		}
		p := q.Weight * clamp01(raw/maxRaw)
		result.Breakdown[q.ID] = p
		points += p
		result.ScoredWeight += q.Weight
	}

	if result.ScoredWeight <= 0 {
		return schema.ScoreResult{Breakdown: result.Breakdown}, schema.ErrNoScore
	}

	result.Composite = clamp01(points / result.ScoredWeight)
	result.Grade = bands.Assign(result.Composite)
	return result, nil
}

// MaxRaw returns the largest raw value a question can award.
func MaxRaw(q schema.Question) float64 {
	switch q.Type {
	case schema.SingleChoiceQuestion:
		return maxOption(q.Options)
	case schema.MultiChoiceQuestion:
		var sum float64
		for _, v := range q.Options {
			if v > 0 {
				sum += v
			}
		}
		return sum
	case schema.RatingQuestion:
		if len(q.Options) > 0 {
			return maxOption(q.Options)
		}
		if q.Scale == nil {
			return 0
		}
		return float64(q.Scale.Max)
	default:
		return 0
	}
}

// RawPoints returns the raw value an answer earns on its question.
func RawPoints(q schema.Question, a schema.Answer) (float64, error) {
	switch q.Type {
	case schema.SingleChoiceQuestion:
		if len(a.Choices) != 1 {
			return 0, &schema.InvalidAnswerError{QuestionID: q.ID, Reason: "exactly one option must be selected"}
		}
		v, ok := q.Options[a.Choices[0]]
		if !ok {
			return 0, &schema.InvalidAnswerError{QuestionID: q.ID, Reason: fmt.Sprintf("unknown option %q", a.Choices[0])}
		}
		return v, nil

	case schema.MultiChoiceQuestion:
		var sum float64
		for _, c := range a.Choices {
			v, ok := q.Options[c]
			if !ok {
				return 0, &schema.InvalidAnswerError{QuestionID: q.ID, Reason: fmt.Sprintf("unknown option %q", c)}
			}
			sum += v
		}
		return sum, nil

	case schema.RatingQuestion:
		if a.Rating == nil {
			return 0, &schema.InvalidAnswerError{QuestionID: q.ID, Reason: "rating value required"}
		}
		if len(q.Options) > 0 {
			v, ok := q.Options[strconv.Itoa(*a.Rating)]
			if !ok {
				return 0, &schema.InvalidAnswerError{QuestionID: q.ID, Reason: fmt.Sprintf("rating %d has no point value", *a.Rating)}
			}
			return v, nil
		}
		return float64(*a.Rating), nil

	default:
		return 0, nil
	}
}

func maxOption(options map[string]float64) float64 {
	m := 0.0
	for _, v := range options {
		m = math.Max(m, v)
	}
	return m
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
