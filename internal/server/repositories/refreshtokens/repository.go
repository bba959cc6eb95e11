// Package refreshtokens declares the server-side repository contract for
// managing refresh tokens in persistent storage.
package refreshtokens

import (
	"context"
	"time"

	"github.com/avolkov/authgate/internal/server/models"
)

// Repository defines operations for issuing, rotating, and revoking refresh
// tokens. Token strings carry a unique constraint; Create and Rotate report
// a collision as common.ErrorAlreadyExists so callers can retry with a
// fresh random token.
type Repository interface {
	// Create stores a new refresh token for userID with an expiry of
	// now+validity.
	Create(ctx context.Context, userID int64, token string, validity time.Duration) error

	// FindValid looks up a refresh token by its opaque token string,
	// matching only rows that have not expired. Expired and absent rows
	// are both reported as common.ErrorNotFound.
	FindValid(ctx context.Context, token string) (*models.RefreshToken, error)

	// Rotate atomically replaces the token value of the row matching
	// oldToken and extends its expiry to now+validity. The old token string
	// is invalid the instant this succeeds. A missing row is reported as
	// common.ErrorNotFound.
	Rotate(ctx context.Context, oldToken, newToken string, validity time.Duration) (*models.RefreshToken, error)

	// DeleteAllForUser removes every refresh token owned by the user.
	DeleteAllForUser(ctx context.Context, userID int64) error

	// CountForUser returns the number of refresh tokens owned by the user.
	CountForUser(ctx context.Context, userID int64) (int, error)

	// DeleteOldest removes the user's token with the smallest expiry.
	// Deleting when no tokens exist is not an error.
	DeleteOldest(ctx context.Context, userID int64) error
}
