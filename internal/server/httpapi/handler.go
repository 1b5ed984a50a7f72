package httpapi

import (
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/sqlidentity/internal/server/identity"
)

func current(w http.ResponseWriter, r *http.Request) (*identity.Identity, bool) {
	id := identity.FromRequest(r)
	if id == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return nil, false
	}
	return id, true
}

// login remembers the "user" form or query value under a new token.
func (s *HTTPServer) login(w http.ResponseWriter, r *http.Request) {
	id, ok := current(w, r)
	if !ok {
		return
	}

	user := r.FormValue("user")
	if user == "" {
		http.Error(w, "user is required", http.StatusBadRequest)
		return
	}

	if err := id.Remember(user); err != nil {
		s.logger.Error(r.Context(), "token generation failed", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	io.WriteString(w, "Logged in!")
}

func (s *HTTPServer) profile(w http.ResponseWriter, r *http.Request) {
	id, ok := current(w, r)
	if !ok {
		return
	}
	if subject, ok := id.Identity(); ok {
		fmt.Fprintf(w, "Hello, %s!", subject)
		return
	}
	io.WriteString(w, "Hello, anonymous user!")
}

func (s *HTTPServer) refresh(w http.ResponseWriter, r *http.Request) {
	id, ok := current(w, r)
	if !ok {
		return
	}
	id.Refresh()
	io.WriteString(w, "Refreshed!")
}

func (s *HTTPServer) logout(w http.ResponseWriter, r *http.Request) {
	id, ok := current(w, r)
	if !ok {
		return
	}
	id.Forget()
	io.WriteString(w, "Logged out!")
}

func (s *HTTPServer) healthz(w http.ResponseWriter, r *http.Request) {
	io.WriteString(w, "ok")
}
