package evalstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/huangsam/moze/schema"
)

// formDefinition is the frozen part of a form, stored as one JSON document.
type formDefinition struct {
	Questions              []schema.Question `json:"questions"`
	TargetRoles            []schema.Role     `json:"target_roles"`
	Window                 schema.Window     `json:"window"`
	AllowMultipleResponses bool              `json:"allow_multiple_responses"`
}

const formColumns = "form_id, title, definition, frozen, archived, needs_review, created_at, updated_at"

func encodeDefinition(form schema.Form) (string, error) {
	def, err := json.Marshal(formDefinition{
		Questions:              form.Questions,
		TargetRoles:            form.TargetRoles,
		Window:                 form.Window,
		AllowMultipleResponses: form.AllowMultipleResponses,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal form definition: %w", err)
	}
	return string(def), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanForm(row rowScanner) (schema.Form, error) {
	var form schema.Form
	var def string
	var frozen, archived, needsReview int
	var createdAt, updatedAt int64
	if err := row.Scan(&form.ID, &form.Title, &def, &frozen, &archived, &needsReview, &createdAt, &updatedAt); err != nil {
		return form, err
	}
	var fd formDefinition
	if err := json.Unmarshal([]byte(def), &fd); err != nil {
		return form, fmt.Errorf("failed to unmarshal definition of form %s: %w", form.ID, err)
	}
	form.Questions = fd.Questions
	form.TargetRoles = fd.TargetRoles
	form.Window = fd.Window
	form.AllowMultipleResponses = fd.AllowMultipleResponses
	form.Frozen = frozen != 0
	form.Archived = archived != 0
	form.NeedsReview = needsReview != 0
	form.CreatedAt = fromMicros(createdAt)
	form.UpdatedAt = fromMicros(updatedAt)
	return form, nil
}

// CreateForm inserts a new form.
func (s *EvalStoreImpl) CreateForm(ctx context.Context, form schema.Form) error {
	def, err := encodeDefinition(form)
	if err != nil {
		return err
	}
	query := s.rebind(fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		quoteTableName(formsTable, s.backend), formColumns))
	_, err = s.db.ExecContext(ctx, query,
		form.ID, form.Title, def, boolToInt(form.Frozen), boolToInt(form.Archived), boolToInt(form.NeedsReview),
		toMicros(form.CreatedAt), toMicros(form.UpdatedAt))
	if err != nil {
		return schema.StorageError("create form", err)
	}
	return nil
}

// GetForm retrieves a form by ID.
func (s *EvalStoreImpl) GetForm(ctx context.Context, id string) (schema.Form, error) {
	query := s.rebind(fmt.Sprintf(`SELECT %s FROM %s WHERE form_id = ?`, formColumns, quoteTableName(formsTable, s.backend)))
	form, err := scanForm(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return form, fmt.Errorf("%w: %s", schema.ErrFormNotFound, id)
	}
	if err != nil {
		return form, schema.StorageError("get form", err)
	}
	return form, nil
}

// ListForms returns every form ordered by creation time.
func (s *EvalStoreImpl) ListForms(ctx context.Context) ([]schema.Form, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at, form_id`, formColumns, quoteTableName(formsTable, s.backend))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, schema.StorageError("list forms", err)
	}
	defer func() { _ = rows.Close() }()

	var forms []schema.Form
	for rows.Next() {
		form, err := scanForm(rows)
		if err != nil {
			return nil, schema.StorageError("list forms", err)
		}
		forms = append(forms, form)
	}
	if err := rows.Err(); err != nil {
		return nil, schema.StorageError("list forms", err)
	}
	return forms, nil
}

// RenameForm changes the title of a form.
func (s *EvalStoreImpl) RenameForm(ctx context.Context, id, title string, at time.Time) error {
	return s.inTx(ctx, "rename form", func(tx *sql.Tx) error {
		if _, err := s.lockForm(ctx, tx, id); err != nil {
			return err
		}
		query := s.rebind(fmt.Sprintf(`UPDATE %s SET title = ?, updated_at = ? WHERE form_id = ?`, quoteTableName(formsTable, s.backend)))
		_, err := tx.ExecContext(ctx, query, title, toMicros(at), id)
		return err
	})
}

// RedefineForm replaces the definition of a form nobody has submitted against yet.
func (s *EvalStoreImpl) RedefineForm(ctx context.Context, form schema.Form) error {
	def, err := encodeDefinition(form)
	if err != nil {
		return err
	}
	return s.inTx(ctx, "redefine form", func(tx *sql.Tx) error {
		frozen, err := s.lockForm(ctx, tx, form.ID)
		if err != nil {
			return err
		}
		count, err := s.countSubmissionsTx(ctx, tx, form.ID)
		if err != nil {
			return err
		}
		if frozen || count > 0 {
			return fmt.Errorf("%w: %s has %d submissions", schema.ErrFormFrozen, form.ID, count)
		}
		query := s.rebind(fmt.Sprintf(`UPDATE %s SET title = ?, definition = ?, needs_review = ?, updated_at = ? WHERE form_id = ?`,
			quoteTableName(formsTable, s.backend)))
		_, err = tx.ExecContext(ctx, query, form.Title, def, boolToInt(form.NeedsReview), toMicros(form.UpdatedAt), form.ID)
		return err
	})
}

// ArchiveForm soft-disables a form.
func (s *EvalStoreImpl) ArchiveForm(ctx context.Context, id string, at time.Time) error {
	return s.inTx(ctx, "archive form", func(tx *sql.Tx) error {
		if _, err := s.lockForm(ctx, tx, id); err != nil {
			return err
		}
		query := s.rebind(fmt.Sprintf(`UPDATE %s SET archived = 1, updated_at = ? WHERE form_id = ?`, quoteTableName(formsTable, s.backend)))
		_, err := tx.ExecContext(ctx, query, toMicros(at), id)
		return err
	})
}

// DeleteForm removes a form without submissions.
func (s *EvalStoreImpl) DeleteForm(ctx context.Context, id string) error {
	return s.inTx(ctx, "delete form", func(tx *sql.Tx) error {
		if _, err := s.lockForm(ctx, tx, id); err != nil {
			return err
		}
		count, err := s.countSubmissionsTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: %s has %d submissions, archive it instead", schema.ErrFormFrozen, id, count)
		}
		query := s.rebind(fmt.Sprintf(`DELETE FROM %s WHERE form_id = ?`, quoteTableName(formsTable, s.backend)))
		_, err = tx.ExecContext(ctx, query, id)
		return err
	})
}

// lockForm locks the form row for the rest of the transaction and reports whether it is frozen.
func (s *EvalStoreImpl) lockForm(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	query := s.rebind(fmt.Sprintf(`SELECT frozen FROM %s WHERE form_id = ?%s`, quoteTableName(formsTable, s.backend), s.lockClause()))
	var frozen int
	err := tx.QueryRowContext(ctx, query, id).Scan(&frozen)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("%w: %s", schema.ErrFormNotFound, id)
	}
	return frozen != 0, err
}

func (s *EvalStoreImpl) countSubmissionsTx(ctx context.Context, tx *sql.Tx, formID string) (int, error) {
	query := s.rebind(fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE form_id = ?`, quoteTableName(submissionsTable, s.backend)))
	var count int
	err := tx.QueryRowContext(ctx, query, formID).Scan(&count)
	return count, err
}

// freezeForm locks the form a submission is about to reference and freezes it.
// def is the encoded definition the submission was validated against.
// It reports whether the form was frozen by this call.
func (s *EvalStoreImpl) freezeForm(ctx context.Context, tx *sql.Tx, id, def string) (bool, error) {
	query := s.rebind(fmt.Sprintf(`SELECT definition, archived FROM %s WHERE form_id = ?%s`,
		quoteTableName(formsTable, s.backend), s.lockClause()))
	var stored string
	var archived int
	err := tx.QueryRowContext(ctx, query, id).Scan(&stored, &archived)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("%w: %s no longer exists", schema.ErrFormClosed, id)
	}
	if err != nil {
		return false, err
	}
	if archived != 0 {
		return false, fmt.Errorf("%w: %s is archived", schema.ErrFormClosed, id)
	}
	if stored != def {
		return false, fmt.Errorf("%w: %s was redefined after the submission was validated", schema.ErrFormFrozen, id)
	}

	update := s.rebind(fmt.Sprintf(`UPDATE %s SET frozen = 1 WHERE form_id = ? AND frozen = 0`, quoteTableName(formsTable, s.backend)))
	res, err := tx.ExecContext(ctx, update, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
