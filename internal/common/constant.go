// Package common contains shared constants, sentinel errors and token helpers
// used across sqlidentity components.
package common

const (
	// AuthorizationHeaderName is the inbound header carrying "<scheme> <token>".
	AuthorizationHeaderName = "Authorization"

	// DefaultResponseHeaderName is the outbound header a freshly remembered
	// token is appended to.
	DefaultResponseHeaderName = "X-Identity-Token"

	// DefaultPoolSize is the number of pooled connections (and actor workers).
	DefaultPoolSize = 3

	// TokenSize is the number of random bytes behind every issued token.
	TokenSize = 24

	// UnknownUserAgent and UnknownRemoteIP fill provenance fields the request
	// did not carry.
	UnknownUserAgent = "Unknown"
	UnknownRemoteIP  = "0.0.0.0"
)
