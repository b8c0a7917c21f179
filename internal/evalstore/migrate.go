package evalstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/huangsam/moze/schema"
)

//go:embed migrations
var migrationsFS embed.FS

// migrationsTable keeps the version bookkeeping apart from any other tool sharing the database.
const migrationsTable = "moze_schema_migrations"

// newMigrator wraps an open database in a migrate instance reading the
// embedded migrations of the backend.
func newMigrator(db *sql.DB, backend schema.DatabaseBackend) (*migrate.Migrate, error) {
	var driver database.Driver
	var err error

	switch backend {
	case schema.SQLiteBackend:
		driver, err = sqlite.WithInstance(db, &sqlite.Config{MigrationsTable: migrationsTable})
	case schema.MySQLBackend:
		driver, err = mysql.WithInstance(db, &mysql.Config{MigrationsTable: migrationsTable})
	case schema.PostgreSQLBackend:
		driver, err = postgres.WithInstance(db, &postgres.Config{MigrationsTable: migrationsTable})
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s migrate driver: %w", backend, err)
	}

	sub, err := fs.Sub(migrationsFS, "migrations/"+string(backend))
	if err != nil {
		return nil, fmt.Errorf("failed to access migrations directory: %w", err)
	}
	sourceDriver, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "moze", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// migrateTo moves the schema to targetVersion and reports the versions before and after.
// - If targetVersion < 0, it migrates to the latest version.
// - If targetVersion == 0, it rolls back all migrations (to initial state).
// - If targetVersion > 0, it migrates to the specified version.
func migrateTo(m *migrate.Migrate, targetVersion int) (uint, uint, error) {
	current, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, 0, fmt.Errorf("failed to get current migration version: %w", err)
	}
	if dirty {
		return current, current, fmt.Errorf("database is in a dirty state at version %d. Please fix manually or force version", current)
	}

	switch {
	case targetVersion < 0:
		err = m.Up()
	case targetVersion == 0:
		err = m.Down()
	default:
		err = m.Migrate(uint(targetVersion))
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return current, current, fmt.Errorf("failed to migrate from version %d: %w", current, err)
	}

	after, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return current, current, fmt.Errorf("failed to read migrated version: %w", err)
	}
	return current, after, nil
}

// Migrate runs database migrations for the evaluation store on a dedicated connection.
func Migrate(backend schema.DatabaseBackend, connStr string, targetVersion int) error {
	db, _, err := openDB(backend, connStr)
	if err != nil {
		return err
	}

	m, err := newMigrator(db, backend)
	if err != nil {
		_ = db.Close()
		return err
	}
	defer func() { _, _ = m.Close() }() // closes db as well

	from, to, err := migrateTo(m, targetVersion)
	if err != nil {
		return err
	}
	if from == to {
		fmt.Printf("No migration needed. Database is already at version %d\n", to)
		return nil
	}
	fmt.Printf("Successfully migrated from version %d to version %d\n", from, to)
	return nil
}

// upgrade brings a freshly opened store to the latest schema. SQLite migrates on
// the store's own connection so in-memory databases see the tables; the server
// backends migrate on a separate connection that is closed afterwards.
func upgrade(db *sql.DB, backend schema.DatabaseBackend, connStr string) error {
	if backend == schema.SQLiteBackend {
		m, err := newMigrator(db, backend)
		if err != nil {
			return err
		}
		_, _, err = migrateTo(m, -1)
		return err
	}

	migrationDB, _, err := openDB(backend, connStr)
	if err != nil {
		return err
	}
	m, err := newMigrator(migrationDB, backend)
	if err != nil {
		_ = migrationDB.Close()
		return err
	}
	defer func() { _, _ = m.Close() }()
	_, _, err = migrateTo(m, -1)
	return err
}
