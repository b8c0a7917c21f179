package evalstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/huangsam/moze/internal/contract"
	"github.com/huangsam/moze/schema"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver
)

// Table names for evaluation storage.
const (
	formsTable       = "eval_forms"
	submissionsTable = "eval_submissions"
	aggregatesTable  = "eval_unit_aggregates"
	auditTable       = "eval_audit_log"
	unitLocksTable   = "eval_unit_locks"
)

// allTables lists every table in dependency order.
var allTables = []string{formsTable, submissionsTable, aggregatesTable, auditTable, unitLocksTable}

// sqliteBusyTimeout is how long a SQLite writer waits for another process to
// release the database lock before failing.
const sqliteBusyTimeout = 5 * time.Second

// dbtx is the query surface shared by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// EvalStoreImpl handles durable storage operations using various database backends.
type EvalStoreImpl struct {
	db         *sql.DB
	backend    schema.DatabaseBackend
	driverName string
}

var _ contract.EvalStore = &EvalStoreImpl{} // Compile-time check

// NewEvalStore opens the backend, migrates it to the latest schema and returns the store.
func NewEvalStore(backend schema.DatabaseBackend, connStr string) (*EvalStoreImpl, error) {
	db, driverName, err := openDB(backend, connStr)
	if err != nil {
		return nil, err
	}

	if err := upgrade(db, backend, connStr); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create evaluation tables: %w", err)
	}

	return &EvalStoreImpl{
		db:         db,
		backend:    backend,
		driverName: driverName,
	}, nil
}

// openDB opens and pings a database for the backend.
func openDB(backend schema.DatabaseBackend, connStr string) (*sql.DB, string, error) {
	var db *sql.DB
	var err error
	var driverName string

	switch backend {
	case schema.SQLiteBackend:
		driverName = "sqlite"
		dbPath := connStr
		if dbPath == "" {
			dbPath = contract.GetDBFilePath()
		}
		db, err = sql.Open(driverName, dbPath)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open SQLite database at %q: %w. Check that the directory is writable", dbPath, err)
		}
		// Limit SQLite to a single open connection to avoid "database is locked" errors
		db.SetMaxOpenConns(1)
		pragma := fmt.Sprintf("PRAGMA busy_timeout = %d", sqliteBusyTimeout.Milliseconds())
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, "", fmt.Errorf("failed to set SQLite busy timeout: %w", err)
		}

	case schema.MySQLBackend:
		// connStr should be:
		// user:password@tcp(host:port)/dbname
		driverName = "mysql"
		db, err = sql.Open(driverName, connStr)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open MySQL database: %w. Check connection string format: user:password@tcp(host:port)/dbname", err)
		}

	case schema.PostgreSQLBackend:
		// connStr should be:
		// host=localhost port=5432 user=postgres password=mysecretpassword dbname=postgres
		driverName = "pgx"
		db, err = sql.Open(driverName, connStr)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open PostgreSQL database: %w. Check connection string format: host=localhost port=5432 user=postgres dbname=mydb", err)
		}

	default:
		return nil, "", fmt.Errorf("unsupported backend: %s. Must be sqlite, mysql, or postgresql", backend)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("failed to connect to %s database. Check that the server is running and connection parameters are valid: %w", backend, err)
	}
	return db, driverName, nil
}

// Backend returns the backend the store talks to.
func (s *EvalStoreImpl) Backend() schema.DatabaseBackend {
	return s.backend
}

// Close closes the underlying DB connection.
func (s *EvalStoreImpl) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Clear deletes every row from every evaluation table.
func (s *EvalStoreImpl) Clear(ctx context.Context) error {
	return s.inTx(ctx, "clear", func(tx *sql.Tx) error {
		for i := len(allTables) - 1; i >= 0; i-- {
			query := fmt.Sprintf("DELETE FROM %s", quoteTableName(allTables[i], s.backend))
			if _, err := tx.ExecContext(ctx, query); err != nil {
				return fmt.Errorf("failed to clear table %s: %w", allTables[i], err)
			}
		}
		return nil
	})
}

// inTx runs fn in a transaction. Errors that already carry an engine sentinel
// pass through untouched; everything else is reported as a storage failure.
func (s *EvalStoreImpl) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return schema.StorageError(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		if isEngineError(err) {
			return err
		}
		return schema.StorageError(op, err)
	}
	if err := tx.Commit(); err != nil {
		return schema.StorageError(op, err)
	}
	return nil
}

// rebind rewrites ? placeholders into the $n form PostgreSQL expects.
func (s *EvalStoreImpl) rebind(query string) string {
	if s.backend != schema.PostgreSQLBackend {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$")
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// lockClause returns the row lock suffix for backends that support it.
// SQLite serializes writers on its single connection instead.
func (s *EvalStoreImpl) lockClause() string {
	if s.backend == schema.SQLiteBackend {
		return ""
	}
	return " FOR UPDATE"
}

// quoteTableName quotes a table name for the backend.
func quoteTableName(name string, backend schema.DatabaseBackend) string {
	switch backend {
	case schema.MySQLBackend:
		return "`" + name + "`"
	default: // SQLite and PostgreSQL
		return `"` + name + `"`
	}
}

func isEngineError(err error) bool {
	for _, sentinel := range []error{
		schema.ErrFormNotFound,
		schema.ErrFormFrozen,
		schema.ErrFormClosed,
		schema.ErrDuplicateSubmission,
		schema.ErrSubmissionNotFound,
		schema.ErrStorageUnavailable,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// Times are stored as UTC unix microseconds on every backend.
func toMicros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMicro()
}

func fromMicros(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.UnixMicro(v).UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
