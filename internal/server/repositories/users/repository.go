// Package users declares the server-side repository contract for the
// durable user directory.
package users

import (
	"context"

	"github.com/avolkov/authgate/internal/server/models"
)

// Repository defines lookups and creation for durable user records.
type Repository interface {
	// Create inserts a new user and returns it with the server-assigned id
	// and creation timestamp. A duplicate login yields
	// common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByLogin returns the user with the given login identifier, or
	// common.ErrorNotFound.
	GetByLogin(ctx context.Context, login string) (*models.User, error)

	// GetByID returns the user with the given surrogate id, or
	// common.ErrorNotFound.
	GetByID(ctx context.Context, userID int64) (*models.User, error)
}
