package identities

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/sqlidentity/internal/common"
	"github.com/dmitrijs2005/sqlidentity/internal/dbx"
	"github.com/dmitrijs2005/sqlidentity/internal/server/models"
	"github.com/go-sql-driver/mysql"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// MySQLRepository implements Repository over MySQL/MariaDB.
//
// Update relies on the connection being opened with clientFoundRows so that
// an update that changes nothing still reports the matched row.
type MySQLRepository struct {
	db dbx.DBTX
}

func NewMySQLRepository(db dbx.DBTX) *MySQLRepository {
	return &MySQLRepository{db: db}
}

func (r *MySQLRepository) Find(ctx context.Context, token string) (*models.Identity, error) {
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

func (r *MySQLRepository) Create(ctx context.Context, identity *models.Identity) (*models.Identity, error) {
	out := prepareCreate(identity)

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO identities (token, userid, ip, user_agent, created)
		VALUES (?, ?, ?, ?, ?)
	`, out.Token, out.UserID, nullIfEmpty(out.IP), nullIfEmpty(out.UserAgent), out.Created)
	if err != nil {
		if isMySQLDuplicate(err) {
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

func (r *MySQLRepository) Update(ctx context.Context, identity *models.Identity) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE identities
		SET token = ?, userid = ?, ip = ?, user_agent = ?
		WHERE id = ?
	`, identity.Token, identity.UserID, nullIfEmpty(identity.IP), nullIfEmpty(identity.UserAgent), identity.ID)
	if err != nil {
		if isMySQLDuplicate(err) {
			return fmt.Errorf("%w: %w", common.ErrConflict, err)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return checkAffected(res, common.ErrorNotFound)
}

func (r *MySQLRepository) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM identities WHERE token = ?`, token); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func isMySQLDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}
