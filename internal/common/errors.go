package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrConflict   = errors.New("conflict")

	// Identity lifecycle errors.
	ErrTokenNotFound = errors.New("token not found")
	ErrTokenNotSet   = errors.New("token failed to set in header")
	ErrTokenRequired = errors.New("token not provided but required, bad request")

	// Setup errors.
	ErrVariantNotSupported = errors.New("sql variant not supported")
	ErrInvalidConfig       = errors.New("invalid config")

	// Persistence actor errors.
	ErrActorClosed = errors.New("persistence actor closed")
)
