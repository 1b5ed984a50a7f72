package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/sqlidentity/internal/dbx"
	"github.com/dmitrijs2005/sqlidentity/internal/server/migrations"
	"github.com/dmitrijs2005/sqlidentity/internal/server/repositories/identities"
	_ "modernc.org/sqlite"
)

// sqliteBusyTimeout makes concurrent writers wait instead of failing with
// SQLITE_BUSY.
const sqliteBusyTimeout = "_pragma=busy_timeout(5000)"

// SQLiteRepositoryManager is the file-based default variant (modernc.org/sqlite).
type SQLiteRepositoryManager struct{}

// Variant reports VariantSQLite.
func (m *SQLiteRepositoryManager) Variant() Variant { return VariantSQLite }

// Open opens a modernc.org/sqlite pool; private in-memory databases get a
// single connection.
func (m *SQLiteRepositoryManager) Open(uri string, poolSize int) (*sql.DB, error) {
	dsn := SQLiteDSN(uri)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	// every connection to a private in-memory database is a new database
	if isPrivateMemory(dsn) {
		poolSize = 1
	}
	configurePool(db, poolSize)
	return db, nil
}

// RunMigrations runs the embedded SQLite migrations.
func (m *SQLiteRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return runMigrations(ctx, db, "sqlite3", migrations.SQLiteDir)
}

// Identities returns an identities.Repository bound to the provided DBTX.
func (m *SQLiteRepositoryManager) Identities(db dbx.DBTX) identities.Repository {
	return identities.NewSQLiteRepository(db)
}

// SQLiteDSN turns a connection URI into a modernc.org/sqlite DSN:
// "sqlite://path" and "sqlite:path" lose their scheme, and a busy timeout is
// added unless the caller already set pragmas.
func SQLiteDSN(uri string) string {
	dsn := uri
	for _, prefix := range []string{"sqlite://", "sqlite3://", "sqlite:"} {
		if strings.HasPrefix(dsn, prefix) {
			dsn = strings.TrimPrefix(dsn, prefix)
			break
		}
	}

	if dsn == ":memory:" || strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + sqliteBusyTimeout
	}
	return dsn + "?" + sqliteBusyTimeout
}

func isPrivateMemory(dsn string) bool {
	if dsn == ":memory:" {
		return true
	}
	return strings.Contains(dsn, "mode=memory") && !strings.Contains(dsn, "cache=shared")
}
