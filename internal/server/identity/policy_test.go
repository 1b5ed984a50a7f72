package identity

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/dmitrijs2005/sqlidentity/internal/common"
	"github.com/dmitrijs2005/sqlidentity/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Bearer abc", "abc", true},
		{"Token abc def", "abc", true},
		{"whatever abc", "abc", true},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"Bearer  abc", "", false},
		{" abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := bearerToken(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromRequest_NoHeaderSkipsStore(t *testing.T) {
	s := newFakeStore()
	id := newPolicy(s).FromRequest(httptest.NewRequest("GET", "/", nil))

	_, ok := id.Identity()
	assert.False(t, ok)
	assert.Empty(t, id.Token())
	assert.Equal(t, Unchanged, id.State())

	finds, _, _, _ := s.calls()
	assert.Zero(t, finds)
}

func TestFromRequest_SchemeOnlySkipsStore(t *testing.T) {
	s := newFakeStore()
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer")

	id := newPolicy(s).FromRequest(r)
	_, ok := id.Identity()
	assert.False(t, ok)

	finds, _, _, _ := s.calls()
	assert.Zero(t, finds)
}

func TestFromRequest_UnknownToken(t *testing.T) {
	s := newFakeStore()
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer nope")

	id := newPolicy(s).FromRequest(r)
	_, ok := id.Identity()
	assert.False(t, ok)
	assert.Empty(t, id.Token())

	finds, _, _, _ := s.calls()
	assert.Equal(t, 1, finds)
}

func TestFromRequest_Bound(t *testing.T) {
	s := newFakeStore()
	rec := s.seed("tok", "alice")

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer tok")
	id := newPolicy(s).FromRequest(r)

	subject, ok := id.Identity()
	require.True(t, ok)
	assert.Equal(t, "alice", subject)
	assert.Equal(t, "tok", id.Token())
	assert.Equal(t, rec.ID, id.id)
	assert.Equal(t, Unchanged, id.State())
}

func TestFromRequest_StoreDownIsAnonymous(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	s := newFakeStore()
	s.seed("secret-token", "alice")
	s.findErr = errors.New("connection refused")

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer secret-token")
	id := NewPolicy(s, "", log, nil).FromRequest(r)

	_, ok := id.Identity()
	assert.False(t, ok)
	assert.Contains(t, buf.String(), "identity lookup failed")
	assert.Contains(t, buf.String(), common.TokenHint("secret-token"))
	assert.NotContains(t, buf.String(), "secret-token")
}

func TestFromRequest_Provenance(t *testing.T) {
	p := newPolicy(newFakeStore())

	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.9:5555"
	r.Header.Set("User-Agent", "curl/8.0")
	id := p.FromRequest(r)
	assert.Equal(t, "203.0.113.9", id.ip)
	assert.Equal(t, "curl/8.0", id.userAgent)

	r = httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = ""
	r.Header.Del("User-Agent")
	id = p.FromRequest(r)
	assert.Equal(t, common.UnknownRemoteIP, id.ip)
	assert.Equal(t, common.UnknownUserAgent, id.userAgent)

	r.RemoteAddr = "unix-socket"
	assert.Equal(t, "unix-socket", p.FromRequest(r).ip)
}

func TestWrite_PersistsProvenance(t *testing.T) {
	s := newFakeStore()
	r := httptest.NewRequest("POST", "/login", nil)
	r.RemoteAddr = "198.51.100.7:1000"
	r.Header.Set("User-Agent", "tests")

	id := newPolicy(s).FromRequest(r)
	require.NoError(t, id.Remember("bob"))
	require.NoError(t, id.Write(context.Background(), NewResponse()))

	rec, err := s.Find(context.Background(), id.Token())
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "198.51.100.7", rec.IP)
	assert.Equal(t, "tests", rec.UserAgent)
}

type closeCounter struct{ n int }

func (c *closeCounter) Close() error {
	c.n++
	return nil
}

func TestPolicy_Defaults(t *testing.T) {
	p := NewPolicy(newFakeStore(), "", nil, nil)
	assert.Equal(t, common.DefaultResponseHeaderName, p.ResponseHeader())
	assert.NoError(t, p.Close())

	c := &closeCounter{}
	p = NewPolicy(newFakeStore(), "X-Session", nil, c)
	assert.Equal(t, "X-Session", p.ResponseHeader())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, c.n)
}
