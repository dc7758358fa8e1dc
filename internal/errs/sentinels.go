// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across storage/session/api layers.
var (
	// ErrNotFound indicates the requested key or entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates the remote API rejected the bearer token (HTTP 401).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrStale indicates an async result arrived after the session was cleared or replaced.
	ErrStale = errors.New("stale session epoch")

	// ErrNoToken indicates a login/registration payload carried no bearer token.
	ErrNoToken = errors.New("no token")
)
