// Package identity maps the bearer token of an HTTP request to a stored
// identity and persists login, refresh and logout exactly once per request.
package identity

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sqlidentity/internal/common"
	"github.com/dmitrijs2005/sqlidentity/internal/logging"
	"github.com/dmitrijs2005/sqlidentity/internal/server/actor"
	"github.com/dmitrijs2005/sqlidentity/internal/server/models"
)

// Store persists identity records. *actor.Actor implements it.
type Store interface {
	Find(ctx context.Context, token string) (*models.Identity, error)
	Create(ctx context.Context, id *models.Identity) (*models.Identity, error)
	Update(ctx context.Context, id *models.Identity) error
	Delete(ctx context.Context, token string) error
}

var _ Store = (*actor.Actor)(nil)

// Identity is the request-local view of a session. It is not safe for
// concurrent use; one request owns it.
type Identity struct {
	subject string
	token   string
	// stored is the token the store currently holds for this session.
	stored  string
	id      int64
	created time.Time

	ip        string
	userAgent string

	state State

	store  Store
	header string
	log    logging.Logger
}

// Identity returns the current subject, if any.
func (i *Identity) Identity() (string, bool) {
	return i.subject, i.subject != ""
}

// Token returns the current token or "".
func (i *Identity) Token() string { return i.token }

// State returns the pending persistence step.
func (i *Identity) State() State { return i.state }

// Remember binds subject to a freshly generated token. Any loaded token is
// replaced.
func (i *Identity) Remember(subject string) error {
	token, err := common.NewToken()
	if err != nil {
		return err
	}
	i.subject = subject
	i.token = token
	i.state = Created
	return nil
}

// Refresh re-saves the loaded record with this request's provenance. A
// pending Remember is kept, so its new token still reaches the client.
func (i *Identity) Refresh() {
	if i.state == Created {
		return
	}
	i.state = Updated
}

// Forget drops the subject. Write deletes the record under the token the
// store holds, even when Remember issued a new one in the meantime.
func (i *Identity) Forget() {
	i.subject = ""
	i.state = Deleted
}

// Write performs the persistence step for the current state, at most once:
// the state is reset before the store is called. For Created the token
// header is appended to resp first; callers drop resp when Write fails.
func (i *Identity) Write(ctx context.Context, resp *Response) error {
	state := i.state
	i.state = Unchanged

	switch state {
	case Created:
		if i.token == "" || i.subject == "" {
			return common.ErrTokenRequired
		}
		if err := resp.appendToken(i.header, i.token); err != nil {
			return err
		}
		if i.id > 0 {
			if err := i.store.Update(ctx, i.record()); err != nil {
				return i.fail(ctx, actor.OpUpdate, err)
			}
			i.stored = i.token
			return nil
		}
		created, err := i.store.Create(ctx, i.record())
		if err != nil {
			return i.fail(ctx, actor.OpCreate, err)
		}
		i.id = created.ID
		i.created = created.Created
		i.stored = i.token
		return nil

	case Updated:
		if i.token == "" || i.subject == "" {
			return common.ErrTokenRequired
		}
		return i.fail(ctx, actor.OpUpdate, i.store.Update(ctx, i.record()))

	case Deleted:
		if i.stored == "" {
			return common.ErrTokenRequired
		}
		if err := i.store.Delete(ctx, i.stored); err != nil {
			return i.fail(ctx, actor.OpDelete, err)
		}
		i.token = ""
		i.stored = ""
		i.id = 0
		return nil
	}

	return nil
}

func (i *Identity) record() *models.Identity {
	return &models.Identity{
		ID:        i.id,
		Token:     i.token,
		UserID:    i.subject,
		IP:        i.ip,
		UserAgent: i.userAgent,
		Created:   i.created,
	}
}

func (i *Identity) fail(ctx context.Context, op string, err error) error {
	if err != nil {
		i.log.Error(ctx, "identity store failed", "op", op, "token", common.TokenHint(i.token), "error", err)
	}
	return err
}
