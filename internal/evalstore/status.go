package evalstore

import (
	"context"
	"fmt"
	"io"

	"github.com/huangsam/moze/schema"
)

// GetStatus returns status information about the evaluation store.
func (s *EvalStoreImpl) GetStatus(ctx context.Context) (schema.StoreStatus, error) {
	status := schema.StoreStatus{
		Backend:    string(s.backend),
		Connected:  s.db != nil,
		TableSizes: make(map[string]int64),
	}
	if s.db == nil {
		return status, nil
	}

	counts := []struct {
		dest  *int
		query string
	}{
		{&status.TotalForms, fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteTableName(formsTable, s.backend))},
		{&status.TotalSubmissions, fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteTableName(submissionsTable, s.backend))},
		{&status.UnscoredCount, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE scored = 0 AND voided = 0", quoteTableName(submissionsTable, s.backend))},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return status, schema.StorageError("status", err)
		}
	}

	if status.TotalSubmissions > 0 {
		var last int64
		query := fmt.Sprintf("SELECT MAX(submitted_at) FROM %s", quoteTableName(submissionsTable, s.backend))
		if err := s.db.QueryRowContext(ctx, query).Scan(&last); err != nil {
			return status, schema.StorageError("status", err)
		}
		status.LastSubmission = fromMicros(last)
	}

	for _, table := range allTables {
		var count int64
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteTableName(table, s.backend))
		if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
			return status, schema.StorageError("status", err)
		}
		status.TableSizes[table] = count
	}

	return status, nil
}

// PrintStoreStatus prints store status information.
func PrintStoreStatus(w io.Writer, status schema.StoreStatus) {
	_, _ = fmt.Fprintf(w, "Store Backend: %s\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Connected: %t\n", status.Connected)
	if !status.Connected {
		return
	}
	_, _ = fmt.Fprintf(w, "Total Forms: %d\n", status.TotalForms)
	_, _ = fmt.Fprintf(w, "Total Submissions: %d\n", status.TotalSubmissions)
	_, _ = fmt.Fprintf(w, "Unscored Submissions: %d\n", status.UnscoredCount)
	if status.TotalSubmissions > 0 {
		_, _ = fmt.Fprintf(w, "Last Submission: %s\n", status.LastSubmission.Format("2006-01-02 15:04:05"))
	}
	_, _ = fmt.Fprintln(w, "Table Sizes:")
	for _, table := range allTables {
		_, _ = fmt.Fprintf(w, "  %s: %d rows\n", table, status.TableSizes[table])
	}
}
