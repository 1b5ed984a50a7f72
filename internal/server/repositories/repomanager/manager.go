// Package repomanager selects a backend variant, opens its connection pool,
// runs its migrations and vends repositories bound to it.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/sqlidentity/internal/common"
	"github.com/dmitrijs2005/sqlidentity/internal/dbx"
	"github.com/dmitrijs2005/sqlidentity/internal/server/migrations"
	"github.com/dmitrijs2005/sqlidentity/internal/server/repositories/identities"
	"github.com/pressly/goose/v3"
)

// Variant is one of the supported relational backends.
type Variant int

const (
	VariantSQLite Variant = iota
	VariantMySQL
	VariantPostgres
)

func (v Variant) String() string {
	switch v {
	case VariantSQLite:
		return "sqlite"
	case VariantMySQL:
		return "mysql"
	case VariantPostgres:
		return "postgres"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// VariantFromURI sniffs the backend from a connection URI. Anything that is
// not MySQL or PostgreSQL is treated as a SQLite file.
func VariantFromURI(uri string) Variant {
	switch {
	case strings.HasPrefix(uri, "mysql://"):
		return VariantMySQL
	case strings.HasPrefix(uri, "postgres://"), strings.HasPrefix(uri, "postgresql://"):
		return VariantPostgres
	default:
		return VariantSQLite
	}
}

// ParseVariant maps a variant name to a Variant.
func ParseVariant(name string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3":
		return VariantSQLite, nil
	case "mysql", "mariadb":
		return VariantMySQL, nil
	case "postgres", "postgresql", "pg":
		return VariantPostgres, nil
	default:
		return 0, fmt.Errorf("%w: %q", common.ErrVariantNotSupported, name)
	}
}

// RepositoryManager is implemented once per Variant.
type RepositoryManager interface {
	Variant() Variant
	// Open builds a connection pool of at most poolSize connections.
	// It does not connect; callers ping.
	Open(uri string, poolSize int) (*sql.DB, error)
	RunMigrations(ctx context.Context, db *sql.DB) error
	Identities(db dbx.DBTX) identities.Repository
}

// New returns the manager for v.
func New(v Variant) (RepositoryManager, error) {
	switch v {
	case VariantSQLite:
		return &SQLiteRepositoryManager{}, nil
	case VariantMySQL:
		return &MySQLRepositoryManager{}, nil
	case VariantPostgres:
		return &PostgresRepositoryManager{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", common.ErrVariantNotSupported, v)
	}
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

func runMigrations(ctx context.Context, db *sql.DB, dialect, dir string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("goose dialect %s: %w", dialect, err)
	}
	if err := gooseUpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("migrations (%s): %w", dir, err)
	}
	return nil
}

func configurePool(db *sql.DB, poolSize int) {
	if poolSize < 1 {
		poolSize = common.DefaultPoolSize
	}
	db.SetMaxOpenConns(poolSize)
	db.SetMaxIdleConns(poolSize)
}
