package identity

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/sqlidentity/internal/common"
)

type ctxKey struct{}

// NewContext returns a copy of ctx carrying id.
func NewContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by Middleware.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(*Identity)
	return id, ok && id != nil
}

// FromRequest returns the identity of a request served behind Middleware,
// or nil.
func FromRequest(r *http.Request) *Identity {
	id, _ := FromContext(r.Context())
	return id
}

// StatusCode maps a Write error to the HTTP status sent instead of the
// handler's response.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, common.ErrTokenRequired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Middleware resolves each request's identity, runs next against a buffered
// response and persists the identity before anything reaches the client.
// When persisting fails the handler's response is discarded.
func Middleware(p *Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := p.FromRequest(r)
			r = r.WithContext(NewContext(r.Context(), id))

			resp := NewResponse()
			next.ServeHTTP(resp, r)

			if err := id.Write(r.Context(), resp); err != nil {
				code := StatusCode(err)
				p.log.Warn(r.Context(), "identity write rejected", "status", code, "error", err)
				msg := http.StatusText(code)
				if code < http.StatusInternalServerError {
					msg = err.Error()
				}
				http.Error(w, msg, code)
				return
			}

			if err := resp.FlushTo(w); err != nil {
				p.log.Warn(r.Context(), "response write failed", "error", err)
			}
		})
	}
}
