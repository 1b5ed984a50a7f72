// Package identities provides the persistence contract for session
// identities and its SQLite, PostgreSQL and MySQL implementations.
package identities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sqlidentity/internal/server/models"
)

// Repository stores identity rows keyed by token.
type Repository interface {
	// Find returns the row for token, or (nil, nil) when token is empty or
	// no row matches.
	Find(ctx context.Context, token string) (*models.Identity, error)

	// Create inserts a new row and returns it with its assigned ID.
	// A duplicate token yields common.ErrConflict.
	Create(ctx context.Context, identity *models.Identity) (*models.Identity, error)

	// Update rewrites token, user and provenance of the row with identity.ID.
	// A missing row yields common.ErrorNotFound.
	Update(ctx context.Context, identity *models.Identity) error

	// Delete removes the row for token. Deleting a non-existent token is not
	// an error.
	Delete(ctx context.Context, token string) error
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (*models.Identity, error) {
	var (
		identity      models.Identity
		ip, userAgent sql.NullString
	)

	err := row.Scan(&identity.ID, &identity.Token, &identity.UserID, &ip, &userAgent, &identity.Created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	identity.IP = ip.String
	identity.UserAgent = userAgent.String
	identity.Created = identity.Created.UTC()
	return &identity, nil
}

// prepareCreate copies identity and stamps the creation time if missing.
func prepareCreate(identity *models.Identity) *models.Identity {
	out := *identity
	if out.Created.IsZero() {
		out.Created = time.Now().UTC()
	}
	return &out
}

func checkAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
