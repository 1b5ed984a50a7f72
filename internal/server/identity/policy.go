package identity

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/sqlidentity/internal/common"
	"github.com/dmitrijs2005/sqlidentity/internal/logging"
	"github.com/dmitrijs2005/sqlidentity/internal/server/models"
)

// Policy resolves requests to identities against a Store.
type Policy struct {
	store  Store
	header string
	log    logging.Logger
	closer io.Closer
}

// NewPolicy wires a Policy around store. Builder.Finish is the usual way to
// get one; closer, when not nil, is released by Close.
func NewPolicy(store Store, responseHeader string, log logging.Logger, closer io.Closer) *Policy {
	if responseHeader == "" {
		responseHeader = common.DefaultResponseHeaderName
	}
	if log == nil {
		log = logging.NewDiscardLogger()
	}
	return &Policy{
		store:  store,
		header: responseHeader,
		log:    log,
		closer: closer,
	}
}

// ResponseHeader is the header newly issued tokens are sent in.
func (p *Policy) ResponseHeader() string { return p.header }

// FromRequest resolves r to an identity. It never fails: a missing or
// unknown token, or an unreachable store, yields an anonymous identity.
func (p *Policy) FromRequest(r *http.Request) *Identity {
	id := &Identity{
		ip:        remoteIP(r.RemoteAddr),
		userAgent: userAgent(r),
		store:     p.store,
		header:    p.header,
		log:       p.log,
	}

	token, ok := bearerToken(r.Header.Get(common.AuthorizationHeaderName))
	if !ok {
		return id
	}

	ctx := r.Context()
	rec, err := p.load(ctx, token)
	switch {
	case err == nil:
		id.subject = rec.UserID
		id.token = rec.Token
		id.stored = rec.Token
		id.id = rec.ID
		id.created = rec.Created
	case errors.Is(err, common.ErrTokenNotFound):
		p.log.Debug(ctx, "unknown token", "token", common.TokenHint(token))
	default:
		p.log.Warn(ctx, "identity lookup failed", "op", "find", "token", common.TokenHint(token), "error", err)
	}
	return id
}

func (p *Policy) load(ctx context.Context, token string) (*models.Identity, error) {
	rec, err := p.store.Find(ctx, token)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, common.ErrTokenNotFound
	}
	return rec, nil
}

// Close releases the store and its connection pool.
func (p *Policy) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

// bearerToken extracts the credential from "<scheme> <token>[ ...]". The
// scheme itself is not checked.
func bearerToken(v string) (string, bool) {
	scheme, rest, ok := strings.Cut(v, " ")
	if !ok || scheme == "" {
		return "", false
	}
	token, _, _ := strings.Cut(rest, " ")
	if token == "" {
		return "", false
	}
	return token, true
}

func remoteIP(addr string) string {
	if addr == "" {
		return common.UnknownRemoteIP
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func userAgent(r *http.Request) string {
	if ua := r.UserAgent(); ua != "" {
		return ua
	}
	return common.UnknownUserAgent
}
