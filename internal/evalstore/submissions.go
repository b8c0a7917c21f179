package evalstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/huangsam/moze/internal/contract"
	"github.com/huangsam/moze/schema"
)

const submissionColumns = "submission_id, form_id, evaluator_id, unit_id, submitted_at, answers, score, grade, scored, voided, overridden"

// dedupeKey identifies the one submission an evaluator may hold per unit and form.
func dedupeKey(formID, evaluatorID, unitID string) string {
	return formID + "|" + evaluatorID + "|" + unitID
}

func scanSubmission(row rowScanner) (schema.Submission, error) {
	var sub schema.Submission
	var answers, grade string
	var submittedAt int64
	var score sql.NullFloat64
	var scored, voided, overridden int
	if err := row.Scan(&sub.ID, &sub.FormID, &sub.EvaluatorID, &sub.UnitID, &submittedAt, &answers,
		&score, &grade, &scored, &voided, &overridden); err != nil {
		return sub, err
	}
	if err := json.Unmarshal([]byte(answers), &sub.Answers); err != nil {
		return sub, fmt.Errorf("failed to unmarshal answers of submission %s: %w", sub.ID, err)
	}
	if score.Valid {
		v := score.Float64
		sub.Score = &v
	}
	sub.SubmittedAt = fromMicros(submittedAt)
	sub.Grade = schema.Grade(grade)
	sub.Scored = scored != 0
	sub.Voided = voided != 0
	sub.Override = overridden != 0
	return sub, nil
}

// InsertSubmission stores a submission, freezes its form and rebuilds the
// unit's aggregates in one transaction.
func (s *EvalStoreImpl) InsertSubmission(ctx context.Context, sub schema.Submission, form schema.Form, unique bool, summarize contract.Summarizer) (bool, error) {
	answers, err := json.Marshal(sub.Answers)
	if err != nil {
		return false, fmt.Errorf("failed to marshal answers: %w", err)
	}
	def, err := encodeDefinition(form)
	if err != nil {
		return false, err
	}
	var key any
	if unique {
		key = dedupeKey(sub.FormID, sub.EvaluatorID, sub.UnitID)
	}
	var score any
	if sub.Score != nil {
		score = *sub.Score
	}
	if err := s.ensureUnitLock(ctx, sub.UnitID); err != nil {
		return false, err
	}

	var froze bool
	err = s.inTx(ctx, "insert submission", func(tx *sql.Tx) error {
		if err := s.lockUnit(ctx, tx, sub.UnitID); err != nil {
			return err
		}
		var err error
		if froze, err = s.freezeForm(ctx, tx, sub.FormID, def); err != nil {
			return err
		}
		if unique {
			taken, err := s.dedupeTaken(ctx, tx, key.(string))
			if err != nil {
				return err
			}
			if taken {
				return schema.ErrDuplicateSubmission
			}
		}
		insert := s.rebind(fmt.Sprintf(`INSERT INTO %s (%s, dedupe_key) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			quoteTableName(submissionsTable, s.backend), submissionColumns))
		_, err = tx.ExecContext(ctx, insert,
			sub.ID, sub.FormID, sub.EvaluatorID, sub.UnitID, toMicros(sub.SubmittedAt), string(answers),
			score, string(sub.Grade), boolToInt(sub.Scored), boolToInt(sub.Voided), boolToInt(sub.Override), key)
		if err != nil {
			return err
		}
		if !sub.Scored {
			return nil
		}
		return s.refreshUnitTx(ctx, tx, sub.UnitID, sub.FormID, summarize)
	})
	if err == nil || !unique || errors.Is(err, schema.ErrDuplicateSubmission) {
		return froze && err == nil, err
	}

	// A concurrent writer in another process may have won the unique key.
	if taken, checkErr := s.dedupeTaken(ctx, s.db, key.(string)); checkErr == nil && taken {
		return false, schema.ErrDuplicateSubmission
	}
	return false, err
}

// HasSubmission reports whether a non-voided submission exists for the triple.
func (s *EvalStoreImpl) HasSubmission(ctx context.Context, formID, evaluatorID, unitID string) (bool, error) {
	query := s.rebind(fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE form_id = ? AND evaluator_id = ? AND unit_id = ? AND voided = 0`,
		quoteTableName(submissionsTable, s.backend)))
	var count int
	if err := s.db.QueryRowContext(ctx, query, formID, evaluatorID, unitID).Scan(&count); err != nil {
		return false, schema.StorageError("check submission", err)
	}
	return count > 0, nil
}

// GetSubmission retrieves a submission by ID.
func (s *EvalStoreImpl) GetSubmission(ctx context.Context, id string) (schema.Submission, error) {
	query := s.rebind(fmt.Sprintf(`SELECT %s FROM %s WHERE submission_id = ?`, submissionColumns, quoteTableName(submissionsTable, s.backend)))
	sub, err := scanSubmission(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return sub, fmt.Errorf("%w: %s", schema.ErrSubmissionNotFound, id)
	}
	if err != nil {
		return sub, schema.StorageError("get submission", err)
	}
	return sub, nil
}

// ListSubmissions returns the submissions matching the filter, oldest first.
func (s *EvalStoreImpl) ListSubmissions(ctx context.Context, filter schema.SubmissionFilter) ([]schema.Submission, error) {
	var where []string
	var args []any
	if filter.FormID != "" {
		where = append(where, "form_id = ?")
		args = append(args, filter.FormID)
	}
	if filter.UnitID != "" {
		where = append(where, "unit_id = ?")
		args = append(args, filter.UnitID)
	}
	if filter.EvaluatorID != "" {
		where = append(where, "evaluator_id = ?")
		args = append(args, filter.EvaluatorID)
	}
	if filter.OnlyUnscored {
		where = append(where, "scored = 0")
	}
	if !filter.IncludeVoided {
		where = append(where, "voided = 0")
	}

	query := fmt.Sprintf(`SELECT %s FROM %s`, submissionColumns, quoteTableName(submissionsTable, s.backend))
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY submitted_at, submission_id"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, schema.StorageError("list submissions", err)
	}
	defer func() { _ = rows.Close() }()

	var subs []schema.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, schema.StorageError("list submissions", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, schema.StorageError("list submissions", err)
	}
	return subs, nil
}

// CountSubmissions returns how many submissions reference a form, voided ones included.
func (s *EvalStoreImpl) CountSubmissions(ctx context.Context, formID string) (int, error) {
	query := s.rebind(fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE form_id = ?`, quoteTableName(submissionsTable, s.backend)))
	var count int
	if err := s.db.QueryRowContext(ctx, query, formID).Scan(&count); err != nil {
		return 0, schema.StorageError("count submissions", err)
	}
	return count, nil
}

// VoidSubmission marks a submission voided, frees its duplicate slot, logs
// the action and rebuilds the unit's aggregates.
func (s *EvalStoreImpl) VoidSubmission(ctx context.Context, id string, entry schema.AuditEntry, summarize contract.Summarizer) error {
	unitID, formID, err := s.submissionOwner(ctx, id)
	if err != nil {
		return err
	}
	return s.inTx(ctx, "void submission", func(tx *sql.Tx) error {
		if err := s.lockUnit(ctx, tx, unitID); err != nil {
			return err
		}
		voided, err := s.lockSubmission(ctx, tx, id)
		if err != nil || voided {
			return err
		}
		query := s.rebind(fmt.Sprintf(`UPDATE %s SET voided = 1, dedupe_key = NULL WHERE submission_id = ?`,
			quoteTableName(submissionsTable, s.backend)))
		if _, err := tx.ExecContext(ctx, query, id); err != nil {
			return err
		}
		if err := s.insertAudit(ctx, tx, entry); err != nil {
			return err
		}
		return s.refreshUnitTx(ctx, tx, unitID, formID, summarize)
	})
}

// OverrideScore sets a manual score on a submission, logs the action and
// rebuilds the unit's aggregates.
func (s *EvalStoreImpl) OverrideScore(ctx context.Context, id string, score float64, grade schema.Grade, entry schema.AuditEntry, summarize contract.Summarizer) error {
	unitID, formID, err := s.submissionOwner(ctx, id)
	if err != nil {
		return err
	}
	return s.inTx(ctx, "override score", func(tx *sql.Tx) error {
		if err := s.lockUnit(ctx, tx, unitID); err != nil {
			return err
		}
		voided, err := s.lockSubmission(ctx, tx, id)
		if err != nil {
			return err
		}
		if voided {
			return fmt.Errorf("%w: %s is voided", schema.ErrSubmissionNotFound, id)
		}
		query := s.rebind(fmt.Sprintf(`UPDATE %s SET score = ?, grade = ?, scored = 1, overridden = 1 WHERE submission_id = ?`,
			quoteTableName(submissionsTable, s.backend)))
		if _, err := tx.ExecContext(ctx, query, score, string(grade), id); err != nil {
			return err
		}
		if err := s.insertAudit(ctx, tx, entry); err != nil {
			return err
		}
		return s.refreshUnitTx(ctx, tx, unitID, formID, summarize)
	})
}

// submissionOwner returns the unit and form of a submission and makes sure
// the unit has a lock row.
func (s *EvalStoreImpl) submissionOwner(ctx context.Context, id string) (string, string, error) {
	query := s.rebind(fmt.Sprintf(`SELECT unit_id, form_id FROM %s WHERE submission_id = ?`, quoteTableName(submissionsTable, s.backend)))
	var unitID, formID string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&unitID, &formID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", fmt.Errorf("%w: %s", schema.ErrSubmissionNotFound, id)
	}
	if err != nil {
		return "", "", schema.StorageError("get submission", err)
	}
	if err := s.ensureUnitLock(ctx, unitID); err != nil {
		return "", "", err
	}
	return unitID, formID, nil
}

// lockSubmission locks a submission row and reports whether it is voided.
func (s *EvalStoreImpl) lockSubmission(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	query := s.rebind(fmt.Sprintf(`SELECT voided FROM %s WHERE submission_id = ?%s`,
		quoteTableName(submissionsTable, s.backend), s.lockClause()))
	var voided int
	err := tx.QueryRowContext(ctx, query, id).Scan(&voided)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("%w: %s", schema.ErrSubmissionNotFound, id)
	}
	return voided != 0, err
}
