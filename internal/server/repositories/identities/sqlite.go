package identities

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/sqlidentity/internal/common"
	"github.com/dmitrijs2005/sqlidentity/internal/dbx"
	"github.com/dmitrijs2005/sqlidentity/internal/server/models"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteRepository implements Repository over a SQLite database file.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Find(ctx context.Context, token string) (*models.Identity, error) {
	if token == "" {
		return nil, nil
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT id, token, userid, ip, user_agent, created
		FROM identities
		WHERE token = ?
	`, token)
	return scanIdentity(row)
}

func (r *SQLiteRepository) Create(ctx context.Context, identity *models.Identity) (*models.Identity, error) {
	out := prepareCreate(identity)

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO identities (token, userid, ip, user_agent, created)
		VALUES (?, ?, ?, ?, ?)
	`, out.Token, out.UserID, nullIfEmpty(out.IP), nullIfEmpty(out.UserAgent), out.Created)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %w", common.ErrConflict, err)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	out.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, identity *models.Identity) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE identities
		SET token = ?, userid = ?, ip = ?, user_agent = ?
		WHERE id = ?
	`, identity.Token, identity.UserID, nullIfEmpty(identity.IP), nullIfEmpty(identity.UserAgent), identity.ID)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return fmt.Errorf("%w: %w", common.ErrConflict, err)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return checkAffected(res, common.ErrorNotFound)
}

func (r *SQLiteRepository) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM identities WHERE token = ?`, token); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func isSQLiteUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(se.Error(), "UNIQUE")
	}
	return false
}
