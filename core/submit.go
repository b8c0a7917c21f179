package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/huangsam/moze/core/algo"
	"github.com/huangsam/moze/schema"
)

// SubmitRequest is one evaluator's evaluation of one unit against one form.
type SubmitRequest struct {
	FormID      string          `json:"form_id"`
	EvaluatorID string          `json:"evaluator_id"`
	UnitID      string          `json:"unit_id"`
	Answers     []schema.Answer `json:"answers"`
}

// Submit validates, scores and persists a submission. The unit's form-level
// and all-forms aggregates are rebuilt in the same store transaction, so they
// are current once Submit returns and never left stale when it fails.
//
// Checks run in a fixed order and stop at the first failure: form open,
// role allowed, evaluator assigned to the unit, no duplicate, answers
// complete, answers valid. A submission with nothing scorable is stored
// unscored. The receipt never carries the score or grade.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (schema.Receipt, error) {
	form, err := e.openForm(ctx, req.FormID)
	if err != nil {
		return schema.Receipt{}, err
	}

	role, err := e.oracle.RoleOf(ctx, req.EvaluatorID)
	if err != nil {
		return schema.Receipt{}, fmt.Errorf("failed to resolve role of %s: %w", req.EvaluatorID, err)
	}
	if !form.AllowsRole(role) {
		return schema.Receipt{}, fmt.Errorf("%w: role %q on form %s", schema.ErrForbiddenRole, role, form.ID)
	}

	if err := e.checkAssignment(ctx, req.EvaluatorID, req.UnitID); err != nil {
		return schema.Receipt{}, err
	}

	unlock := e.locks.lock(req.UnitID)
	defer unlock()

	unique := !form.AllowMultipleResponses
	if unique {
		taken, err := e.store.HasSubmission(ctx, form.ID, req.EvaluatorID, req.UnitID)
		if err != nil {
			return schema.Receipt{}, err
		}
		if taken {
			return schema.Receipt{}, fmt.Errorf("%w: %s already evaluated %s on form %s",
				schema.ErrDuplicateSubmission, req.EvaluatorID, req.UnitID, form.ID)
		}
	}

	if err := checkComplete(&form, req.Answers); err != nil {
		return schema.Receipt{}, err
	}
	if err := checkAnswers(&form, req.Answers); err != nil {
		return schema.Receipt{}, err
	}

	sub := schema.Submission{
		ID:          e.newID(),
		FormID:      form.ID,
		EvaluatorID: req.EvaluatorID,
		UnitID:      req.UnitID,
		SubmittedAt: e.now(),
		Answers:     req.Answers,
	}
	result, err := algo.Score(&form, req.Answers, e.bands)
	switch {
	case errors.Is(err, schema.ErrNoScore):
		e.logger.Warn("submission has no scorable answers", "form", form.ID, "unit", req.UnitID)
	case err != nil:
		return schema.Receipt{}, err
	default:
		sub.Score = &result.Composite
		sub.Grade = result.Grade
		sub.Scored = true
	}

	froze, err := e.store.InsertSubmission(ctx, sub, form, unique, e.summarize)
	if err != nil {
		return schema.Receipt{}, err
	}
	if froze {
		e.logger.Info("form frozen by first submission", "form", form.ID)
	}
	e.logger.Info("submission recorded", "submission", sub.ID, "form", form.ID, "unit", sub.UnitID, "scored", sub.Scored)

	return schema.Receipt{
		SubmissionID: sub.ID,
		FormID:       sub.FormID,
		UnitID:       sub.UnitID,
		SubmittedAt:  sub.SubmittedAt,
		Status:       schema.RedactedNotice,
	}, nil
}

// openForm loads a form that currently accepts submissions.
func (e *Engine) openForm(ctx context.Context, formID string) (schema.Form, error) {
	form, err := e.store.GetForm(ctx, formID)
	if errors.Is(err, schema.ErrFormNotFound) {
		return form, fmt.Errorf("%w: %w", schema.ErrFormClosed, err)
	}
	if err != nil {
		return form, err
	}
	if form.Archived {
		return form, fmt.Errorf("%w: %s is archived", schema.ErrFormClosed, form.ID)
	}
	if !form.Window.Contains(e.now()) {
		return form, fmt.Errorf("%w: %s is outside its window", schema.ErrFormClosed, form.ID)
	}
	return form, nil
}

// checkAssignment allows assigned evaluators and administrators.
func (e *Engine) checkAssignment(ctx context.Context, evaluatorID, unitID string) error {
	assigned, err := e.directory.IsAssignedEvaluator(ctx, evaluatorID, unitID)
	if err != nil {
		return fmt.Errorf("failed to check assignment of %s: %w", evaluatorID, err)
	}
	if assigned {
		return nil
	}
	admin, err := e.oracle.HasAdminCapability(ctx, evaluatorID)
	if err != nil {
		return fmt.Errorf("failed to resolve capability of %s: %w", evaluatorID, err)
	}
	if !admin {
		return fmt.Errorf("%w: %s for %s", schema.ErrUnitMismatch, evaluatorID, unitID)
	}
	return nil
}
