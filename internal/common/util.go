package common

import (
	"crypto/rand"
	"encoding/base64"
)

// NewToken returns a fresh session token: TokenSize bytes from crypto/rand,
// standard base64 encoded.
//
// Example:
//
//	token, err := NewToken()
//	if err != nil {
//	    return err
//	}
//	fmt.Println(token) // e.g., "q3VQ0c9x0mJm2yX8bQ2b1Jp7cTq8W1nE"
func NewToken() (string, error) {
	b := make([]byte, TokenSize)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// TokenHint returns a short prefix of token suitable for logs.
func TokenHint(token string) string {
	const n = 6
	if len(token) <= n {
		return token
	}
	return token[:n] + "..."
}
