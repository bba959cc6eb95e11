// Package services holds the session orchestrator: the request-scoped
// workflows behind register, login, refresh, authenticate and logout.
//
// The durable store is the only collaborator with commit/rollback
// semantics; every call runs at most one transaction via dbx.WithTx. The
// cache and the login throttle are best effort by design: their failures
// are logged and degrade to a miss (cache) or to no throttling (limiter),
// never to a failed request.
package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/avolkov/authgate/internal/common"
	"github.com/avolkov/authgate/internal/dbx"
	"github.com/avolkov/authgate/internal/logging"
	"github.com/avolkov/authgate/internal/retryx"
	"github.com/avolkov/authgate/internal/server/auth"
	"github.com/avolkov/authgate/internal/server/config"
	"github.com/avolkov/authgate/internal/server/events"
	"github.com/avolkov/authgate/internal/server/models"
	"github.com/avolkov/authgate/internal/server/password"
	"github.com/avolkov/authgate/internal/server/repositories/repomanager"
)

// Refresh-token strings carry 48 random bytes (384 bits) encoded base64url.
const refreshTokenBytes = 48

// Token-issuing writes retry this many times on a unique-constraint
// collision before giving up with ErrorTokenGenerationFailed.
const maxTokenAttempts = 5

// UserCache is the ephemeral user projection store. A nil projection with
// a nil error is a miss.
type UserCache interface {
	GetUser(ctx context.Context, userID int64) (*models.CachedUser, error)
	SetUser(ctx context.Context, user *models.User, ttl time.Duration) error
	DeleteUser(ctx context.Context, userID int64) error
}

// LoginLimiter is the per (IP, login) throttle.
type LoginLimiter interface {
	IsBlocked(ctx context.Context, ip, login string) (bool, error)
	RecordAttempt(ctx context.Context, ip, login string) (int64, error)
	SetBlock(ctx context.Context, ip, login string) error
}

// UserService coordinates the credential and session lifecycle.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	cache       UserCache
	limiter     LoginLimiter
	producer    events.Publisher
	logger      logging.Logger

	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	maxActiveSessions            int
	maxLoginAttempts             int
}

func NewUserService(
	db *sql.DB,
	m repomanager.RepositoryManager,
	cache UserCache,
	limiter LoginLimiter,
	producer events.Publisher,
	logger logging.Logger,
	cfg *config.Config,
) *UserService {
	return &UserService{
		db:                           db,
		repomanager:                  m,
		cache:                        cache,
		limiter:                      limiter,
		producer:                     producer,
		logger:                       logger,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		maxActiveSessions:            cfg.MaxActiveSessions,
		maxLoginAttempts:             cfg.MaxLoginAttempts,
	}
}

// Register creates a new user. A taken login yields common.ErrorLoginIsBusy.
// The user-created event is published best effort after the durable write;
// a publish failure is logged and never surfaced to the caller.
func (s *UserService) Register(ctx context.Context, login, plainPassword, fullName string) (*models.UserOut, error) {

	repo := s.repomanager.Users(s.db)

	if _, err := repo.GetByLogin(ctx, login); err == nil {
		return nil, common.ErrorLoginIsBusy
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrorInternal
	}

	hash, err := password.Hash(plainPassword)
	if err != nil {
		return nil, common.ErrorInternal
	}

	user, err := repo.Create(ctx, &models.User{
		Login:        login,
		PasswordHash: hash,
		FullName:     fullName,
	})
	if err != nil {
		// The pre-check races with concurrent registrations; the unique
		// constraint is authoritative.
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorLoginIsBusy
		}
		return nil, common.ErrorInternal
	}

	out := user.Out()

	if err := s.producer.UserCreated(ctx, out); err != nil {
		s.logger.Error(ctx, "user created event publish failed", "user_id", user.ID, "error", err.Error())
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return out, nil
}

// Login verifies credentials for the (clientIP, login) pair and issues a
// fresh access/refresh token pair. Throttled pairs get
// common.ErrorUserBlocked before credentials are even looked at. Unknown
// login and wrong password are deliberately indistinguishable
// (common.ErrorInvalidPassword).
func (s *UserService) Login(ctx context.Context, clientIP, login, plainPassword string) (*models.TokenPair, error) {

	if err := s.checkLoginAttempts(ctx, clientIP, login); err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users(s.db).GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorInvalidPassword
		}
		return nil, common.ErrorInternal
	}

	if !password.Verify(plainPassword, user.PasswordHash) {
		return nil, common.ErrorInvalidPassword
	}

	accessToken, err := auth.GenerateToken(user.ID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}

	refreshToken, err := s.issueRefreshToken(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user logged in", "user_id", user.ID, "ip", clientIP)
	return &models.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// RefreshToken exchanges a valid refresh token for a new access/refresh
// pair. The old token is single use: rotation invalidates it atomically,
// and a concurrent rotation of the same token has exactly one winner.
func (s *UserService) RefreshToken(ctx context.Context, oldRefreshToken string) (*models.TokenPair, error) {

	token, err := s.repomanager.RefreshTokens(s.db).FindValid(ctx, oldRefreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorRefreshTokenNotFound
		}
		return nil, common.ErrorInternal
	}

	user, err := s.getUser(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// Orphaned token pointing at a user that no longer resolves.
			return nil, common.ErrorUserNotFound
		}
		return nil, common.ErrorInternal
	}

	accessToken, err := auth.GenerateToken(user.ID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}

	newRefreshToken, err := s.rotateRefreshToken(ctx, oldRefreshToken)
	if err != nil {
		return nil, err
	}

	return &models.TokenPair{AccessToken: accessToken, RefreshToken: newRefreshToken}, nil
}

// Authenticate resolves the subject of an access token. Codec failures
// surface as common.ErrorInvalidToken / common.ErrorTokenExpired; a valid
// token whose subject no longer exists yields common.ErrorUserNotFound.
func (s *UserService) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {

	userID, err := auth.GetUserIDFromToken(accessToken, s.jwtSecret)
	if err != nil {
		return nil, err
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUserNotFound
		}
		return nil, common.ErrorInternal
	}

	return user, nil
}

// Logout drops the cached projection and revokes every refresh token of
// the user. Already-issued access tokens stay valid until their own
// expiry; there is no revocation list.
func (s *UserService) Logout(ctx context.Context, userID int64) error {

	if err := s.cache.DeleteUser(ctx, userID); err != nil {
		s.logger.Warn(ctx, "cache invalidate failed", "user_id", userID, "error", err.Error())
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.RefreshTokens(tx).DeleteAllForUser(ctx, userID)
	})
	if err != nil {
		return common.ErrorInternal
	}

	s.logger.Info(ctx, "user logged out", "user_id", userID)
	return nil
}

// checkLoginAttempts enforces the (IP, login) throttle. A successful login
// does not clear the counter; it only matters once the pair crosses the
// budget, and the whole state expires with the block window anyway. The
// throttle fails open: limiter errors are logged and ignored.
func (s *UserService) checkLoginAttempts(ctx context.Context, clientIP, login string) error {

	blocked, err := s.limiter.IsBlocked(ctx, clientIP, login)
	if err != nil {
		s.logger.Warn(ctx, "login throttle unavailable", "error", err.Error())
		return nil
	}
	if blocked {
		return common.ErrorUserBlocked
	}

	attempts, err := s.limiter.RecordAttempt(ctx, clientIP, login)
	if err != nil {
		s.logger.Warn(ctx, "login throttle unavailable", "error", err.Error())
		return nil
	}

	if attempts > int64(s.maxLoginAttempts) {
		if err := s.limiter.SetBlock(ctx, clientIP, login); err != nil {
			s.logger.Warn(ctx, "login throttle unavailable", "error", err.Error())
		}
		return common.ErrorUserBlocked
	}

	return nil
}

// issueRefreshToken persists a fresh refresh token for userID, enforcing
// the session cap inside the same transaction: when the user is at the
// cap, the token with the smallest expiry is evicted before the insert.
// The whole transaction is retried with a new random token on a
// uniqueness collision.
//
// The cap is soft: count-evict-insert is not locked across callers, so
// concurrent logins for the same user can transiently overshoot by the
// number of concurrent callers. Later logins bring the count back down.
func (s *UserService) issueRefreshToken(ctx context.Context, userID int64) (string, error) {

	var issued string

	err := retryx.Do(ctx, maxTokenAttempts, s.isTokenCollision, func(ctx context.Context) error {
		token, err := common.MakeRandTokenString(refreshTokenBytes)
		if err != nil {
			return err
		}

		err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			repo := s.repomanager.RefreshTokens(tx)

			count, err := repo.CountForUser(ctx, userID)
			if err != nil {
				return err
			}
			if count >= s.maxActiveSessions {
				if err := repo.DeleteOldest(ctx, userID); err != nil {
					return err
				}
			}

			return repo.Create(ctx, userID, token, s.refreshTokenValidityDuration)
		})
		if err != nil {
			return err
		}

		issued = token
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			s.logger.Error(ctx, "refresh token generation exhausted retries", "user_id", userID)
			return "", common.ErrorTokenGenerationFailed
		}
		return "", common.ErrorInternal
	}

	return issued, nil
}

// rotateRefreshToken replaces oldToken with a fresh value in its own
// transaction, retrying on uniqueness collisions. Losing a rotation race
// yields common.ErrorRefreshTokenNotFound, a legitimate outcome rather
// than something to retry.
func (s *UserService) rotateRefreshToken(ctx context.Context, oldToken string) (string, error) {

	var issued string

	err := retryx.Do(ctx, maxTokenAttempts, s.isTokenCollision, func(ctx context.Context) error {
		token, err := common.MakeRandTokenString(refreshTokenBytes)
		if err != nil {
			return err
		}

		err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			_, err := s.repomanager.RefreshTokens(tx).Rotate(ctx, oldToken, token, s.refreshTokenValidityDuration)
			return err
		})
		if err != nil {
			return err
		}

		issued = token
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorNotFound):
			return "", common.ErrorRefreshTokenNotFound
		case errors.Is(err, common.ErrorAlreadyExists):
			s.logger.Error(ctx, "refresh token rotation exhausted retries")
			return "", common.ErrorTokenGenerationFailed
		default:
			return "", common.ErrorInternal
		}
	}

	return issued, nil
}

func (s *UserService) isTokenCollision(err error) bool {
	return errors.Is(err, common.ErrorAlreadyExists)
}

// getUser resolves a user by id, cache first. Cache failures count as
// misses; the directory remains the source of truth and repopulates the
// projection with the access-token lifetime as TTL.
func (s *UserService) getUser(ctx context.Context, userID int64) (*models.User, error) {

	cached, err := s.cache.GetUser(ctx, userID)
	if err != nil {
		s.logger.Warn(ctx, "user cache unavailable", "error", err.Error())
	}
	if cached != nil {
		return cached.User(), nil
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetUser(ctx, user, s.accessTokenValidityDuration); err != nil {
		s.logger.Warn(ctx, "user cache write failed", "user_id", userID, "error", err.Error())
	}

	return user, nil
}
