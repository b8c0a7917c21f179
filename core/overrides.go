package core

import (
	"context"
	"fmt"

	"github.com/huangsam/moze/internal/contract"
	"github.com/huangsam/moze/schema"
)

// VoidSubmission excludes a submission from every aggregate and frees its
// duplicate slot. The action is recorded in the audit log.
func (e *Engine) VoidSubmission(ctx context.Context, caller, id, reason string) error {
	if err := e.requireAdmin(ctx, caller); err != nil {
		return err
	}
	sub, err := e.store.GetSubmission(ctx, id)
	if err != nil {
		return err
	}
	if sub.Voided {
		return nil
	}

	unlock := e.locks.lock(sub.UnitID)
	defer unlock()

	entry := schema.AuditEntry{
		At:           e.now(),
		ActorID:      caller,
		Action:       schema.AuditVoid,
		SubmissionID: id,
		Detail:       reason,
	}
	if err := e.store.VoidSubmission(ctx, id, entry, e.summarize); err != nil {
		return err
	}
	e.logger.Info("submission voided", "submission", id, "unit", sub.UnitID, "caller", caller)
	return nil
}

// OverrideScore sets a manual score on a submission, typically one stored
// unscored or one from a form flagged for review. The grade is derived from
// the configured bands.
func (e *Engine) OverrideScore(ctx context.Context, caller, id string, score float64, reason string) error {
	if err := e.requireAdmin(ctx, caller); err != nil {
		return err
	}
	if score < 0 || score > 1 {
		ve := &schema.ValidationError{}
		ve.Add("Score", "must be within 0..1, got %v", score)
		return ve
	}
	sub, err := e.store.GetSubmission(ctx, id)
	if err != nil {
		return err
	}
	if sub.Voided {
		return fmt.Errorf("%w: %s is voided", schema.ErrSubmissionNotFound, id)
	}

	unlock := e.locks.lock(sub.UnitID)
	defer unlock()

	grade := e.bands.Assign(score)
	detail := fmt.Sprintf("score=%.4f grade=%s", score, grade)
	if reason != "" {
		detail += " reason=" + reason
	}
	entry := schema.AuditEntry{
		At:           e.now(),
		ActorID:      caller,
		Action:       schema.AuditOverride,
		SubmissionID: id,
		Detail:       detail,
	}
	if err := e.store.OverrideScore(ctx, id, score, grade, entry, e.summarize); err != nil {
		return err
	}
	e.logger.Info("score overridden", "submission", id, "unit", sub.UnitID, "grade", grade, "caller", caller)
	return nil
}

// ListAudit returns the most recent override entries, newest first.
func (e *Engine) ListAudit(ctx context.Context, caller string, limit int) ([]schema.AuditEntry, error) {
	if err := e.requireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = contract.DefaultResultLimit
	}
	return e.store.ListAudit(ctx, limit)
}
