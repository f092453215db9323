package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/iudanet/taskkeeper/internal/models"
	"github.com/iudanet/taskkeeper/internal/server/refresh"
	"github.com/iudanet/taskkeeper/internal/server/storage"
	"github.com/iudanet/taskkeeper/internal/validation"
)

// TokenType is reported to clients alongside every issued pair.
const TokenType = "bearer"

// TokenCodec issues and verifies signed tokens.
type TokenCodec interface {
	Issue(subject int64, ttl time.Duration) (string, time.Time, error)
	Verify(token string) (int64, error)
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
	VerifyDummy(plain string) bool
}

// AuthConfig holds the token lifetimes and the storage deadline.
type AuthConfig struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	// OperationTimeout bounds every storage call; zero disables the bound.
	OperationTimeout time.Duration
}

// AuthService handles registration, login, refresh rotation, logout and
// access-token authentication.
type AuthService struct {
	logger *slog.Logger
	users  storage.UserStorage
	tokens refresh.Store
	codec  TokenCodec
	hasher PasswordHasher
	cfg    AuthConfig
}

// NewAuthService создает сервис аутентификации.
func NewAuthService(
	logger *slog.Logger,
	users storage.UserStorage,
	tokens refresh.Store,
	codec TokenCodec,
	hasher PasswordHasher,
	cfg AuthConfig,
) *AuthService {
	return &AuthService{
		logger: logger,
		users:  users,
		tokens: tokens,
		codec:  codec,
		hasher: hasher,
		cfg:    cfg,
	}
}

func (s *AuthService) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeout(ctx, s.cfg.OperationTimeout)
}

// Register creates a new account.
func (s *AuthService) Register(ctx context.Context, username, password string) (models.Identity, error) {
	if err := validation.ValidateUsername(username); err != nil {
		return models.Identity{}, invalid("username", err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return models.Identity{}, invalid("password", err)
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := s.users.GetUserByUsername(ctx, username)
	switch {
	case err == nil:
		s.logger.WarnContext(ctx, "registration rejected: username taken", slog.String("username", username))
		return models.Identity{}, ErrConflict
	case !errors.Is(err, storage.ErrUserNotFound):
		return models.Identity{}, internal("lookup user", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.Identity{}, internal("hash password", err)
	}

	user, err := s.users.CreateUser(ctx, username, hash)
	if err != nil {
		// Параллельная регистрация с тем же именем.
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			s.logger.WarnContext(ctx, "registration rejected: username taken", slog.String("username", username))
			return models.Identity{}, ErrConflict
		}
		return models.Identity{}, internal("create user", err)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("username", user.Username),
		slog.Int64("user_id", user.ID))

	return user.Identity(), nil
}

// Login checks credentials and issues a new token pair.
// Unknown users and wrong passwords both yield ErrUnauthorized.
func (s *AuthService) Login(ctx context.Context, username, password string) (models.TokenPair, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			s.hasher.VerifyDummy(password)
			s.logger.WarnContext(ctx, "login failed", slog.String("username", username))
			return models.TokenPair{}, ErrUnauthorized
		}
		return models.TokenPair{}, internal("lookup user", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.logger.WarnContext(ctx, "login failed", slog.String("username", username))
		return models.TokenPair{}, ErrUnauthorized
	}

	pair, err := s.issuePair(ctx, user.ID)
	if err != nil {
		return models.TokenPair{}, err
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("username", user.Username),
		slog.Int64("user_id", user.ID))

	return pair, nil
}

// RefreshSession exchanges a refresh token for a new pair. The presented
// token is consumed before anything else happens, so it is spent even if a
// later step fails.
func (s *AuthService) RefreshSession(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	subject, err := s.codec.Verify(refreshToken)
	if err != nil {
		s.logger.WarnContext(ctx, "refresh rejected: invalid token")
		return models.TokenPair{}, ErrUnauthorized
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	owner, err := s.tokens.Consume(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, refresh.ErrNotFound) {
			s.logger.WarnContext(ctx, "refresh rejected: token not redeemable", slog.Int64("user_id", subject))
			return models.TokenPair{}, ErrUnauthorized
		}
		return models.TokenPair{}, internal("consume refresh token", err)
	}

	if owner != subject {
		s.logger.WarnContext(ctx, "refresh rejected: owner mismatch",
			slog.Int64("subject", subject),
			slog.Int64("owner", owner))
		return models.TokenPair{}, ErrUnauthorized
	}

	if _, err := s.users.GetUserByID(ctx, owner); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			s.logger.WarnContext(ctx, "refresh rejected: user no longer exists", slog.Int64("user_id", owner))
			return models.TokenPair{}, ErrUnauthorized
		}
		return models.TokenPair{}, internal("lookup user", err)
	}

	pair, err := s.issuePair(ctx, owner)
	if err != nil {
		return models.TokenPair{}, err
	}

	s.logger.InfoContext(ctx, "session refreshed", slog.Int64("user_id", owner))
	return pair, nil
}

// Logout revokes refreshToken on behalf of caller. Tokens that are already
// unusable are ignored; tokens belonging to another user are rejected.
func (s *AuthService) Logout(ctx context.Context, caller models.Identity, refreshToken string) error {
	subject, err := s.codec.Verify(refreshToken)
	if err != nil {
		return nil
	}
	if subject != caller.ID {
		s.logger.WarnContext(ctx, "logout rejected: token belongs to another user", slog.Int64("user_id", caller.ID))
		return ErrUnauthorized
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	owner, err := s.tokens.Get(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, refresh.ErrNotFound) {
			return nil
		}
		return internal("lookup refresh token", err)
	}
	if owner != caller.ID {
		return ErrUnauthorized
	}

	if err := s.tokens.Delete(ctx, refreshToken); err != nil {
		return internal("delete refresh token", err)
	}

	s.logger.InfoContext(ctx, "user logged out", slog.Int64("user_id", caller.ID))
	return nil
}

// Authenticate resolves an access token to the identity of a live user.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (models.Identity, error) {
	subject, err := s.codec.Verify(accessToken)
	if err != nil {
		return models.Identity{}, ErrUnauthorized
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	user, err := s.users.GetUserByID(ctx, subject)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.Identity{}, ErrUnauthorized
		}
		return models.Identity{}, internal("lookup user", err)
	}

	return user.Identity(), nil
}

func (s *AuthService) issuePair(ctx context.Context, userID int64) (models.TokenPair, error) {
	access, _, err := s.codec.Issue(userID, s.cfg.AccessTokenTTL)
	if err != nil {
		return models.TokenPair{}, internal("issue access token", err)
	}

	refreshToken, _, err := s.codec.Issue(userID, s.cfg.RefreshTokenTTL)
	if err != nil {
		return models.TokenPair{}, internal("issue refresh token", err)
	}

	if err := s.tokens.Put(ctx, refreshToken, userID, s.cfg.RefreshTokenTTL); err != nil {
		return models.TokenPair{}, internal("store refresh token", err)
	}

	return models.TokenPair{
		AccessToken:  access,
		RefreshToken: refreshToken,
		TokenType:    TokenType,
		ExpiresIn:    int64(s.cfg.AccessTokenTTL / time.Second),
	}, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
