package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/sqlidentity/internal/dbx"
	"github.com/dmitrijs2005/sqlidentity/internal/server/migrations"
	"github.com/dmitrijs2005/sqlidentity/internal/server/repositories/identities"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresRepositoryManager vends PostgreSQL-backed repositories through the
// pgx database/sql driver.
type PostgresRepositoryManager struct{}

// Variant reports VariantPostgres.
func (m *PostgresRepositoryManager) Variant() Variant { return VariantPostgres }

// Open opens a pgx-backed pool.
func (m *PostgresRepositoryManager) Open(uri string, poolSize int) (*sql.DB, error) {
	db, err := sql.Open("pgx", uri)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	configurePool(db, poolSize)
	return db, nil
}

// RunMigrations runs the embedded PostgreSQL migrations.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return runMigrations(ctx, db, "pgx", migrations.PostgresDir)
}

// Identities returns an identities.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Identities(db dbx.DBTX) identities.Repository {
	return identities.NewPostgresRepository(db)
}
