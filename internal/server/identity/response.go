package identity

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/sqlidentity/internal/common"
	"golang.org/x/net/http/httpguts"
)

// Response buffers a handler's output so identity headers can still be
// added, and the whole response dropped, after the handler returns.
type Response struct {
	header http.Header
	status int
	body   bytes.Buffer
}

// NewResponse returns an empty draft.
func NewResponse() *Response {
	return &Response{header: make(http.Header)}
}

// Header returns the draft headers.
func (r *Response) Header() http.Header { return r.header }

// WriteHeader records status; only the first call counts.
func (r *Response) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
}

// Write buffers b, implying 200 when no status was set.
func (r *Response) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.body.Write(b)
}

// Status returns the buffered status, 200 if none was set.
func (r *Response) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// FlushTo copies headers, status and body to w.
func (r *Response) FlushTo(w http.ResponseWriter) error {
	dst := w.Header()
	for k, vs := range r.header {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
	w.WriteHeader(r.Status())
	if _, err := r.body.WriteTo(w); err != nil {
		return fmt.Errorf("flush response: %w", err)
	}
	return nil
}

func (r *Response) appendToken(name, token string) error {
	if !httpguts.ValidHeaderFieldValue(token) {
		return common.ErrTokenNotSet
	}
	r.header.Add(name, token)
	return nil
}
