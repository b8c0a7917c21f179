package evalstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/huangsam/moze/internal/contract"
	"github.com/huangsam/moze/schema"
)

const aggregateColumns = "unit_id, form_key, mean_score, submission_count, grade, tier, computed_at"

func scanAggregate(row rowScanner) (schema.UnitAggregate, error) {
	var agg schema.UnitAggregate
	var grade, tier string
	var computedAt int64
	if err := row.Scan(&agg.UnitID, &agg.FormKey, &agg.MeanScore, &agg.SubmissionCount, &grade, &tier, &computedAt); err != nil {
		return agg, err
	}
	agg.Grade = schema.Grade(grade)
	agg.Tier = schema.Tier(tier)
	agg.ComputedAt = fromMicros(computedAt)
	return agg, nil
}

// RecomputeAggregate rebuilds one cached aggregate under the unit lock.
func (s *EvalStoreImpl) RecomputeAggregate(ctx context.Context, unitID, formKey string, summarize contract.Summarizer) (schema.UnitAggregate, bool, error) {
	if err := s.ensureUnitLock(ctx, unitID); err != nil {
		return schema.UnitAggregate{}, false, err
	}
	var agg schema.UnitAggregate
	var ok bool
	err := s.inTx(ctx, "recompute aggregate", func(tx *sql.Tx) error {
		if err := s.lockUnit(ctx, tx, unitID); err != nil {
			return err
		}
		var err error
		agg, ok, err = s.recomputeTx(ctx, tx, unitID, formKey, summarize)
		return err
	})
	if err != nil {
		return schema.UnitAggregate{}, false, err
	}
	return agg, ok, nil
}

// refreshUnitTx rebuilds the form-level and all-forms aggregates of a unit.
// The transaction must already hold the unit lock.
func (s *EvalStoreImpl) refreshUnitTx(ctx context.Context, tx *sql.Tx, unitID, formID string, summarize contract.Summarizer) error {
	for _, key := range []string{formID, schema.AllFormsKey} {
		if _, _, err := s.recomputeTx(ctx, tx, unitID, key, summarize); err != nil {
			return err
		}
	}
	return nil
}

func (s *EvalStoreImpl) recomputeTx(ctx context.Context, tx *sql.Tx, unitID, formKey string, summarize contract.Summarizer) (schema.UnitAggregate, bool, error) {
	scores, err := s.qualifyingScores(ctx, tx, unitID, formKey)
	if err != nil {
		return schema.UnitAggregate{}, false, err
	}
	agg, ok := summarize(unitID, formKey, scores)
	if !ok {
		query := s.rebind(fmt.Sprintf(`DELETE FROM %s WHERE unit_id = ? AND form_key = ?`, quoteTableName(aggregatesTable, s.backend)))
		if _, err := tx.ExecContext(ctx, query, unitID, formKey); err != nil {
			return schema.UnitAggregate{}, false, fmt.Errorf("failed to delete aggregate: %w", err)
		}
		return schema.UnitAggregate{}, false, nil
	}
	_, err = tx.ExecContext(ctx, s.getUpsertAggregateQuery(),
		agg.UnitID, agg.FormKey, agg.MeanScore, agg.SubmissionCount, string(agg.Grade), string(agg.Tier), toMicros(agg.ComputedAt))
	if err != nil {
		return schema.UnitAggregate{}, false, fmt.Errorf("failed to upsert aggregate: %w", err)
	}
	return agg, true, nil
}

// qualifyingScores returns the scores of scored, non-voided submissions of a unit.
func (s *EvalStoreImpl) qualifyingScores(ctx context.Context, q dbtx, unitID, formKey string) ([]float64, error) {
	query := fmt.Sprintf(`SELECT score FROM %s WHERE unit_id = ? AND scored = 1 AND voided = 0 AND score IS NOT NULL`,
		quoteTableName(submissionsTable, s.backend))
	args := []any{unitID}
	if formKey != schema.AllFormsKey {
		query += " AND form_id = ?"
		args = append(args, formKey)
	}
	query += " ORDER BY submitted_at, submission_id"

	rows, err := q.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read scores: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var scores []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to read scores: %w", err)
		}
		scores = append(scores, v)
	}
	return scores, rows.Err()
}

// getUpsertAggregateQuery returns the UPSERT query for the backend.
func (s *EvalStoreImpl) getUpsertAggregateQuery() string {
	quotedTableName := quoteTableName(aggregatesTable, s.backend)
	switch s.backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?) AS new
			ON DUPLICATE KEY UPDATE mean_score = new.mean_score, submission_count = new.submission_count,
			grade = new.grade, tier = new.tier, computed_at = new.computed_at`, quotedTableName, aggregateColumns)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (unit_id, form_key) DO UPDATE SET mean_score = EXCLUDED.mean_score, submission_count = EXCLUDED.submission_count,
			grade = EXCLUDED.grade, tier = EXCLUDED.tier, computed_at = EXCLUDED.computed_at`, quotedTableName, aggregateColumns)

	default: // SQLite
		return fmt.Sprintf(`INSERT OR REPLACE INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?)`, quotedTableName, aggregateColumns)
	}
}

// ensureUnitLock creates the lock row of a unit outside any transaction, so
// lockUnit only ever updates an existing row.
func (s *EvalStoreImpl) ensureUnitLock(ctx context.Context, unitID string) error {
	if _, err := s.db.ExecContext(ctx, s.getInsertUnitLockQuery(), unitID); err != nil {
		return schema.StorageError("create unit lock", err)
	}
	return nil
}

// lockUnit holds the unit's lock row until the transaction ends. Writers in
// other processes sharing the database block here, on every backend.
func (s *EvalStoreImpl) lockUnit(ctx context.Context, tx *sql.Tx, unitID string) error {
	query := s.rebind(fmt.Sprintf(`UPDATE %s SET version = version + 1 WHERE unit_id = ?`, quoteTableName(unitLocksTable, s.backend)))
	res, err := tx.ExecContext(ctx, query, unitID)
	if err != nil {
		return fmt.Errorf("failed to lock unit %s: %w", unitID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	// The row was cleared since ensureUnitLock; recreate it inside the transaction.
	if _, err := tx.ExecContext(ctx, s.getInsertUnitLockQuery(), unitID); err != nil {
		return fmt.Errorf("failed to lock unit %s: %w", unitID, err)
	}
	_, err = tx.ExecContext(ctx, query, unitID)
	return err
}

// getInsertUnitLockQuery returns the insert-if-missing query for a unit lock row.
func (s *EvalStoreImpl) getInsertUnitLockQuery() string {
	quotedTableName := quoteTableName(unitLocksTable, s.backend)
	switch s.backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`INSERT IGNORE INTO %s (unit_id, version) VALUES (?, 0)`, quotedTableName)
	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`INSERT INTO %s (unit_id, version) VALUES ($1, 0) ON CONFLICT (unit_id) DO NOTHING`, quotedTableName)
	default: // SQLite
		return fmt.Sprintf(`INSERT OR IGNORE INTO %s (unit_id, version) VALUES (?, 0)`, quotedTableName)
	}
}

// GetAggregate reads one aggregate. The boolean is false when none is cached.
func (s *EvalStoreImpl) GetAggregate(ctx context.Context, unitID, formKey string) (schema.UnitAggregate, bool, error) {
	query := s.rebind(fmt.Sprintf(`SELECT %s FROM %s WHERE unit_id = ? AND form_key = ?`, aggregateColumns, quoteTableName(aggregatesTable, s.backend)))
	agg, err := scanAggregate(s.db.QueryRowContext(ctx, query, unitID, formKey))
	if errors.Is(err, sql.ErrNoRows) {
		return schema.UnitAggregate{}, false, nil
	}
	if err != nil {
		return agg, false, schema.StorageError("get aggregate", err)
	}
	return agg, true, nil
}

// ListAggregates returns every aggregate of a form key in one query.
func (s *EvalStoreImpl) ListAggregates(ctx context.Context, formKey string) ([]schema.UnitAggregate, error) {
	query := s.rebind(fmt.Sprintf(`SELECT %s FROM %s WHERE form_key = ? ORDER BY unit_id`, aggregateColumns, quoteTableName(aggregatesTable, s.backend)))
	rows, err := s.db.QueryContext(ctx, query, formKey)
	if err != nil {
		return nil, schema.StorageError("list aggregates", err)
	}
	defer func() { _ = rows.Close() }()

	var aggs []schema.UnitAggregate
	for rows.Next() {
		agg, err := scanAggregate(rows)
		if err != nil {
			return nil, schema.StorageError("list aggregates", err)
		}
		aggs = append(aggs, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, schema.StorageError("list aggregates", err)
	}
	return aggs, nil
}

// ListAggregateKeys returns the sorted (unit, form key) pairs that have
// submissions or a cached aggregate.
func (s *EvalStoreImpl) ListAggregateKeys(ctx context.Context) ([][2]string, error) {
	seen := make(map[[2]string]struct{})
	queries := []string{
		fmt.Sprintf(`SELECT DISTINCT unit_id, form_id FROM %s`, quoteTableName(submissionsTable, s.backend)),
		fmt.Sprintf(`SELECT unit_id, form_key FROM %s`, quoteTableName(aggregatesTable, s.backend)),
	}
	for _, query := range queries {
		if err := s.collectKeys(ctx, query, seen); err != nil {
			return nil, schema.StorageError("list aggregate keys", err)
		}
	}

	keys := make([][2]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b [2]string) int {
		if c := strings.Compare(a[0], b[0]); c != 0 {
			return c
		}
		return strings.Compare(a[1], b[1])
	})
	return keys, nil
}

func (s *EvalStoreImpl) collectKeys(ctx context.Context, query string, seen map[[2]string]struct{}) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var k [2]string
		if err := rows.Scan(&k[0], &k[1]); err != nil {
			return err
		}
		seen[k] = struct{}{}
	}
	return rows.Err()
}
