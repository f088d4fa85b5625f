// Package errors defines the sentinel errors of the authentication core.
// Security-relevant failures are always surfaced to callers; the generic
// user-facing message never distinguishes the cause.
package errors

import "errors"

var (
	// ErrInvalidCredentials is returned on a username/password mismatch at
	// login. It deliberately does not reveal which part was wrong.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrAccountDisabled is returned when credentials are valid but the
	// account is not enabled.
	ErrAccountDisabled = errors.New("account is disabled")

	// ErrInvalidToken is the generic refresh-flow failure surfaced to
	// clients. Missing cookie, malformed token and every internal
	// validation failure all collapse into it at the transport boundary.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired covers both "not found" and "found but expired"
	// refresh tokens so that callers cannot probe for token existence.
	ErrTokenExpired = errors.New("token expired or is invalid")

	// ErrFingerprintMismatch is the suspicious-activity signal: the token
	// exists and is current but was presented by a different client.
	ErrFingerprintMismatch = errors.New("token validation failed")

	// ErrTokenNotFound is the repository-level lookup miss.
	ErrTokenNotFound = errors.New("refresh token not found")

	// ErrUserNotFound is the user-store lookup miss.
	ErrUserNotFound = errors.New("user not found")
)
