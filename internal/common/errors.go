// Package common contains shared sentinel errors and small utilities used
// across authgate components. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Registration errors.
	ErrorLoginIsBusy = errors.New("login already registered")

	// Login errors.
	ErrorInvalidPassword = errors.New("invalid login or password")
	ErrorUserBlocked     = errors.New("too many login attempts")

	// Token lifecycle errors.
	ErrorInvalidToken          = errors.New("invalid token")
	ErrorTokenExpired          = errors.New("token expired")
	ErrorRefreshTokenNotFound  = errors.New("refresh token not found")
	ErrorTokenGenerationFailed = errors.New("failed to generate token")

	// Lookup by token subject.
	ErrorUserNotFound = errors.New("user not found")
)
