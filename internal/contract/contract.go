// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/huangsam/moze/schema"
)

// UnitDirectory answers which evaluator represents which unit.
// The engine invokes it and never owns unit membership.
type UnitDirectory interface {
	// IsAssignedEvaluator reports whether the evaluator is the assigned representative of the unit.
	IsAssignedEvaluator(ctx context.Context, evaluatorID, unitID string) (bool, error)

	// Units lists every unit known to the directory, evaluated or not.
	Units(ctx context.Context) ([]schema.Unit, error)
}

// RoleOracle resolves caller identities to roles and capabilities.
type RoleOracle interface {
	RoleOf(ctx context.Context, callerID string) (schema.Role, error)
	HasAdminCapability(ctx context.Context, callerID string) (bool, error)
}

// FormStore persists evaluation form templates.
type FormStore interface {
	CreateForm(ctx context.Context, form schema.Form) error
	GetForm(ctx context.Context, id string) (schema.Form, error)
	ListForms(ctx context.Context) ([]schema.Form, error)

	// RenameForm changes only the title, which stays editable after the freeze.
	RenameForm(ctx context.Context, id, title string, at time.Time) error

	// RedefineForm replaces the frozen part of a form. It returns schema.ErrFormFrozen
	// when any submission references the form, checked in the same transaction.
	RedefineForm(ctx context.Context, form schema.Form) error

	ArchiveForm(ctx context.Context, id string, at time.Time) error

	// DeleteForm removes a form that no submission references.
	DeleteForm(ctx context.Context, id string) error
}

// Summarizer turns the qualifying scores of one (unit, form key) pair into
// the aggregate to cache. ok is false when nothing qualifies and the cached
// row must be removed.
type Summarizer func(unitID, formKey string, scores []float64) (agg schema.UnitAggregate, ok bool)

// SubmissionStore persists submissions and the overrides applied to them.
//
// Every write that changes which scores qualify for a unit also rebuilds that
// unit's form-level and all-forms aggregates with summarize, inside the same
// transaction and under a per-unit lock shared by every process using the store.
type SubmissionStore interface {
	// InsertSubmission stores a submission against the exact form definition it
	// was validated and scored with. It fails with schema.ErrFormClosed when the
	// form is gone or archived and with schema.ErrFormFrozen when its definition
	// changed since. When unique is set a second non-voided submission for the
	// same (form, evaluator, unit) fails with schema.ErrDuplicateSubmission.
	// froze reports whether this submission was the one that froze the form.
	InsertSubmission(ctx context.Context, sub schema.Submission, form schema.Form, unique bool, summarize Summarizer) (froze bool, err error)

	// HasSubmission reports whether a non-voided submission exists for the triple.
	HasSubmission(ctx context.Context, formID, evaluatorID, unitID string) (bool, error)

	GetSubmission(ctx context.Context, id string) (schema.Submission, error)
	ListSubmissions(ctx context.Context, filter schema.SubmissionFilter) ([]schema.Submission, error)
	CountSubmissions(ctx context.Context, formID string) (int, error)

	// VoidSubmission marks a submission voided and records the audit entry.
	// Voiding an already voided submission changes nothing.
	VoidSubmission(ctx context.Context, id string, entry schema.AuditEntry, summarize Summarizer) error

	// OverrideScore sets a manual score and records the audit entry. A voided
	// submission reads as schema.ErrSubmissionNotFound.
	OverrideScore(ctx context.Context, id string, score float64, grade schema.Grade, entry schema.AuditEntry, summarize Summarizer) error
}

// AggregateStore persists the materialized unit aggregates.
type AggregateStore interface {
	// RecomputeAggregate reads the qualifying scores of a unit and writes the
	// summarized aggregate in one transaction holding the unit lock.
	// formKey is a form ID or schema.AllFormsKey.
	RecomputeAggregate(ctx context.Context, unitID, formKey string, summarize Summarizer) (schema.UnitAggregate, bool, error)

	GetAggregate(ctx context.Context, unitID, formKey string) (schema.UnitAggregate, bool, error)
	ListAggregates(ctx context.Context, formKey string) ([]schema.UnitAggregate, error)

	// ListAggregateKeys returns every (unit, form key) pair with submissions or a cached aggregate.
	ListAggregateKeys(ctx context.Context) ([][2]string, error)
}

// AuditStore reads the administrator override log.
type AuditStore interface {
	ListAudit(ctx context.Context, limit int) ([]schema.AuditEntry, error)
}

// EvalStore is the full persistence collaborator of the engine.
type EvalStore interface {
	FormStore
	SubmissionStore
	AggregateStore
	AuditStore

	// GetStatus returns status information about the store.
	GetStatus(ctx context.Context) (schema.StoreStatus, error)

	// Clear drops every row from every table.
	Clear(ctx context.Context) error

	// Close closes the underlying connection.
	Close() error
}

// StoreManager defines the interface for managing the evaluation store.
// This allows the storage layer to be mocked for testing.
type StoreManager interface {
	GetEvalStore() EvalStore
}
