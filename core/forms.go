package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/huangsam/moze/schema"
)

// CreateForm validates the draft and stores it as a new form.
func (e *Engine) CreateForm(ctx context.Context, caller string, draft schema.FormDraft) (string, error) {
	if err := e.requireAdmin(ctx, caller); err != nil {
		return "", err
	}
	needsReview, err := e.validateDraft(draft)
	if err != nil {
		return "", err
	}

	now := e.now()
	form := schema.Form{
		ID:                     e.newID(),
		Title:                  strings.TrimSpace(draft.Title),
		Questions:              draft.Questions,
		TargetRoles:            draft.TargetRoles,
		Window:                 draft.Window,
		AllowMultipleResponses: draft.AllowMultipleResponses,
		NeedsReview:            needsReview,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := e.store.CreateForm(ctx, form); err != nil {
		return "", fmt.Errorf("failed to create form: %w", err)
	}

	e.logger.Info("form created", "form", form.ID, "questions", len(form.Questions), "caller", caller)
	if needsReview {
		e.logger.Warn("form has weighted free-text questions", "form", form.ID)
	}
	return form.ID, nil
}

// GetForm returns the form with the given ID.
func (e *Engine) GetForm(ctx context.Context, id string) (schema.Form, error) {
	return e.store.GetForm(ctx, id)
}

// ListForms returns every form, archived ones included.
func (e *Engine) ListForms(ctx context.Context) ([]schema.Form, error) {
	return e.store.ListForms(ctx)
}

// RenameForm changes only the title, which stays editable after freezing.
func (e *Engine) RenameForm(ctx context.Context, caller, id, title string) error {
	if err := e.requireAdmin(ctx, caller); err != nil {
		return err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		ve := &schema.ValidationError{}
		ve.Add("Title", "must not be empty")
		return ve
	}
	if err := e.store.RenameForm(ctx, id, title, e.now()); err != nil {
		return err
	}
	e.logger.Info("form renamed", "form", id, "caller", caller)
	return nil
}

// RedefineForm replaces the frozen part of a form. It fails with
// schema.ErrFormFrozen once the form has a submission.
func (e *Engine) RedefineForm(ctx context.Context, caller, id string, draft schema.FormDraft) error {
	if err := e.requireAdmin(ctx, caller); err != nil {
		return err
	}
	needsReview, err := e.validateDraft(draft)
	if err != nil {
		return err
	}
	current, err := e.store.GetForm(ctx, id)
	if err != nil {
		return err
	}
	if current.Frozen {
		return fmt.Errorf("%w: %s", schema.ErrFormFrozen, id)
	}

	current.Title = strings.TrimSpace(draft.Title)
	current.Questions = draft.Questions
	current.TargetRoles = draft.TargetRoles
	current.Window = draft.Window
	current.AllowMultipleResponses = draft.AllowMultipleResponses
	current.NeedsReview = needsReview
	current.UpdatedAt = e.now()

	// The store re-checks the submission count under the form row lock.
	if err := e.store.RedefineForm(ctx, current); err != nil {
		return err
	}
	e.logger.Info("form redefined", "form", id, "caller", caller)
	return nil
}

// ArchiveForm soft-disables a form. Archived forms reject submissions.
func (e *Engine) ArchiveForm(ctx context.Context, caller, id string) error {
	if err := e.requireAdmin(ctx, caller); err != nil {
		return err
	}
	if err := e.store.ArchiveForm(ctx, id, e.now()); err != nil {
		return err
	}
	e.logger.Info("form archived", "form", id, "caller", caller)
	return nil
}

// DeleteForm removes a form that never received a submission.
func (e *Engine) DeleteForm(ctx context.Context, caller, id string) error {
	if err := e.requireAdmin(ctx, caller); err != nil {
		return err
	}
	if err := e.store.DeleteForm(ctx, id); err != nil {
		return err
	}
	e.logger.Info("form deleted", "form", id, "caller", caller)
	return nil
}

// validateDraft runs the struct tag checks and then the rules tags cannot
// express. It reports whether the draft needs administrator review.
func (e *Engine) validateDraft(draft schema.FormDraft) (bool, error) {
	ve := &schema.ValidationError{}

	if err := e.validate.Struct(draft); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return false, fmt.Errorf("failed to validate form draft: %w", err)
		}
		for _, fe := range fieldErrs {
			ve.Add(strings.TrimPrefix(fe.Namespace(), "FormDraft."), "failed %q check", fe.Tag())
		}
	}

	needsReview := false
	for i, q := range draft.Questions {
		field := fmt.Sprintf("Questions[%d]", i)
		if q.ID != "" {
			field = fmt.Sprintf("Questions[%s]", q.ID)
		}
		if _, ok := schema.ValidQuestionTypes[q.Type]; q.Type != "" && !ok {
			ve.Add(field+".Type", "unknown question type %q", q.Type)
			continue
		}
		if q.Weight < 0 {
			ve.Add(field+".Weight", "must not be negative, got %v", q.Weight)
		}
		switch q.Type {
		case schema.FreeTextQuestion:
			if q.Weight > 0 {
				needsReview = true
			}
		case schema.SingleChoiceQuestion, schema.MultiChoiceQuestion:
			if len(q.Options) == 0 {
				ve.Add(field+".Options", "choice question needs an answer-to-points mapping")
			}
		case schema.RatingQuestion:
			switch {
			case q.Scale == nil && len(q.Options) == 0:
				ve.Add(field+".Scale", "rating question needs a scale or an answer-to-points mapping")
			case q.Scale != nil && q.Scale.Min > q.Scale.Max:
				ve.Add(field+".Scale", "min %d is above max %d", q.Scale.Min, q.Scale.Max)
			}
		}
	}

	w := draft.Window
	if !w.Start.IsZero() && !w.End.IsZero() && w.End.Before(w.Start) {
		ve.Add("Window", "ends before it starts")
	}

	return needsReview, ve.OrNil()
}
