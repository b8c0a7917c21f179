package evalstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/huangsam/moze/schema"
)

func (s *EvalStoreImpl) insertAudit(ctx context.Context, tx *sql.Tx, entry schema.AuditEntry) error {
	query := s.rebind(fmt.Sprintf(`INSERT INTO %s (at, actor_id, action, submission_id, detail) VALUES (?, ?, ?, ?, ?)`,
		quoteTableName(auditTable, s.backend)))
	_, err := tx.ExecContext(ctx, query, toMicros(entry.At), entry.ActorID, entry.Action, entry.SubmissionID, entry.Detail)
	return err
}

// ListAudit returns the most recent override entries, newest first.
func (s *EvalStoreImpl) ListAudit(ctx context.Context, limit int) ([]schema.AuditEntry, error) {
	query := s.rebind(fmt.Sprintf(`SELECT audit_id, at, actor_id, action, submission_id, detail FROM %s ORDER BY audit_id DESC LIMIT ?`,
		quoteTableName(auditTable, s.backend)))
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, schema.StorageError("list audit", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []schema.AuditEntry
	for rows.Next() {
		var e schema.AuditEntry
		var at int64
		if err := rows.Scan(&e.ID, &at, &e.ActorID, &e.Action, &e.SubmissionID, &e.Detail); err != nil {
			return nil, schema.StorageError("list audit", err)
		}
		e.At = fromMicros(at)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, schema.StorageError("list audit", err)
	}
	return entries, nil
}
