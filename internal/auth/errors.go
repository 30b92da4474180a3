package auth

import "errors"

// Rejection reasons surfaced to the HTTP boundary as distinct error kinds.
// Clients depend on the distinction: an expired token means "refresh", a
// revoked one means "log in again".
var (
	ErrNoCredentials      = errors.New("auth: no credentials presented")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrTokenMalformed     = errors.New("auth: token malformed")
	ErrTokenRevoked       = errors.New("auth: token revoked")
	ErrUnknownAPIKey      = errors.New("auth: unknown api key")
	ErrInactiveAPIKey     = errors.New("auth: inactive api key")
	ErrTooManyAttempts    = errors.New("auth: too many login attempts")

	ErrInsufficientRole  = errors.New("auth: insufficient role")
	ErrInsufficientScope = errors.New("auth: insufficient scope")
)
