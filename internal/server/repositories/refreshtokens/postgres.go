// Package refreshtokens provides a PostgreSQL-backed repository for
// managing refresh tokens used in the authentication flow.
package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/avolkov/authgate/internal/common"
	"github.com/avolkov/authgate/internal/dbx"
	"github.com/avolkov/authgate/internal/server/models"
)

// PostgresRepository implements the refresh-token store over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new refresh token for userID with an expiry time of
// now+validity.
func (r *PostgresRepository) Create(ctx context.Context, userID int64, token string, validity time.Duration) error {
	query := `
		INSERT INTO refresh_tokens (user_id, token, expires_at)
		VALUES ($1, $2, $3)
	`
	if _, err := r.db.ExecContext(ctx, query, userID, token, time.Now().Add(validity)); err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// FindValid returns the unexpired refresh token row for the given token
// string. Expired and absent rows both return common.ErrorNotFound.
func (r *PostgresRepository) FindValid(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `
		SELECT id, user_id, token, expires_at, created_at
		FROM refresh_tokens
		WHERE token = $1 AND expires_at >= now()
	`
	refreshToken := &models.RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, token).
		Scan(&refreshToken.ID, &refreshToken.UserID, &refreshToken.Token,
			&refreshToken.ExpiresAt, &refreshToken.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return refreshToken, nil
}

// Rotate replaces the token string of the row matching oldToken and extends
// its expiry. Uniqueness of the token column guarantees that concurrent
// rotations of the same old token have exactly one winner; the losers see
// zero updated rows and get common.ErrorNotFound.
func (r *PostgresRepository) Rotate(ctx context.Context, oldToken, newToken string, validity time.Duration) (*models.RefreshToken, error) {
	query := `
		UPDATE refresh_tokens
		SET token = $2, expires_at = $3, created_at = now()
		WHERE token = $1
		RETURNING id, user_id, token, expires_at, created_at
	`
	refreshToken := &models.RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, oldToken, newToken, time.Now().Add(validity)).
		Scan(&refreshToken.ID, &refreshToken.UserID, &refreshToken.Token,
			&refreshToken.ExpiresAt, &refreshToken.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return refreshToken, nil
}

// DeleteAllForUser removes every refresh token owned by the user.
func (r *PostgresRepository) DeleteAllForUser(ctx context.Context, userID int64) error {
	query := `
		DELETE FROM refresh_tokens
		WHERE user_id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// CountForUser returns the number of refresh tokens owned by the user.
func (r *PostgresRepository) CountForUser(ctx context.Context, userID int64) (int, error) {
	query := `
		SELECT count(*)
		FROM refresh_tokens
		WHERE user_id = $1
	`
	var count int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return count, nil
}

// DeleteOldest removes the user's refresh token with the smallest expiry
// timestamp, if any.
func (r *PostgresRepository) DeleteOldest(ctx context.Context, userID int64) error {
	query := `
		DELETE FROM refresh_tokens
		WHERE id = (
			SELECT id FROM refresh_tokens
			WHERE user_id = $1
			ORDER BY expires_at ASC
			LIMIT 1
		)
	`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
