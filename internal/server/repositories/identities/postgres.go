package identities

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/sqlidentity/internal/common"
	"github.com/dmitrijs2005/sqlidentity/internal/dbx"
	"github.com/dmitrijs2005/sqlidentity/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// PostgresRepository implements Repository over PostgreSQL (pgx stdlib driver).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Find(ctx context.Context, token string) (*models.Identity, error) {
	if token == "" {
		return nil, nil
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT id, token, userid, ip, user_agent, created
		FROM identities
		WHERE token = $1
	`, token)
	return scanIdentity(row)
}

func (r *PostgresRepository) Create(ctx context.Context, identity *models.Identity) (*models.Identity, error) {
	out := prepareCreate(identity)

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO identities (token, userid, ip, user_agent, created)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, out.Token, out.UserID, nullIfEmpty(out.IP), nullIfEmpty(out.UserAgent), out.Created).Scan(&out.ID)
	if err != nil {
		if isPgUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %w", common.ErrConflict, err)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Update(ctx context.Context, identity *models.Identity) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE identities
		SET token = $1, userid = $2, ip = $3, user_agent = $4
		WHERE id = $5
	`, identity.Token, identity.UserID, nullIfEmpty(identity.IP), nullIfEmpty(identity.UserAgent), identity.ID)
	if err != nil {
		if isPgUniqueViolation(err) {
			return fmt.Errorf("%w: %w", common.ErrConflict, err)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return checkAffected(res, common.ErrorNotFound)
}

func (r *PostgresRepository) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	if _, err := r.db.ExecContext(ctx, `
		DELETE FROM identities
		WHERE token = $1
	`, token); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
