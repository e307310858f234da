package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/gopherauth/internal/apperrors"
	"github.com/nkiryanov/gopherauth/internal/kvstore"
	"github.com/nkiryanov/gopherauth/internal/logger"
	"github.com/nkiryanov/gopherauth/internal/models"
	"github.com/nkiryanov/gopherauth/internal/repository"
	"github.com/nkiryanov/gopherauth/internal/service/auth/tokenmanager"
)

const defaultMinResponseTime = 500 * time.Millisecond

// Interface to create or compare user password hashes
type PasswordHasher interface {
	Hash(ctx context.Context, password models.Secret) ([]byte, error)

	// Compare known digest and user provided password
	// Must be protected against timing attacks
	Compare(ctx context.Context, digest []byte, password models.Secret) bool
}

// Notifier delivers email verification token to the user
type Notifier interface {
	NotifyEmailVerification(ctx context.Context, user models.User, token string) error
}

type Config struct {
	Tokens tokenmanager.Config

	// Failed login never responds faster than this
	// If not set than default is used
	MinResponseTime time.Duration

	// Hasher to use during user registration or login process
	// If not set bcrypt hasher is used
	Hasher PasswordHasher
}

type Service struct {
	tokens          tokenmanager.Config
	minResponseTime time.Duration
	hasher          PasswordHasher

	kv       kvstore.Store
	storage  repository.Storage
	notifier Notifier
	logger   logger.Logger
}

func NewService(cfg Config, kv kvstore.Store, storage repository.Storage, notifier Notifier, l logger.Logger) (*Service, error) {
	if kv == nil || storage == nil {
		return nil, errors.New("stores must not be nil")
	}

	if l == nil {
		l = logger.NewNoOpLogger()
	}
	if notifier == nil {
		notifier = NewLogNotifier(l)
	}
	if cfg.Hasher == nil {
		cfg.Hasher = NewBcryptHasher(0)
	}
	if cfg.MinResponseTime == 0 {
		cfg.MinResponseTime = defaultMinResponseTime
	}

	return &Service{
		tokens:          cfg.Tokens,
		minResponseTime: cfg.MinResponseTime,
		hasher:          cfg.Hasher,
		kv:              kv,
		storage:         storage,
		notifier:        notifier,
		logger:          l.With("component", "auth"),
	}, nil
}

// CreateAccount registers user with not verified email and sends verification token
// If the email is taken returns apperrors.ErrUserAlreadyExists
func (s *Service) CreateAccount(ctx context.Context, email string, password models.Secret) (models.User, error) {
	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return models.User{}, fmt.Errorf("can't use this as password, error=%w", err)
	}

	var user models.User
	err = s.storage.InTx(ctx, func(st repository.Storage) error {
		user, err = st.User().CreateUser(ctx, email, hash)
		return err
	})

	switch {
	case errors.Is(err, apperrors.ErrDuplicateKey):
		return models.User{}, apperrors.ErrUserAlreadyExists
	case err != nil:
		return models.User{}, err
	}

	// Account exists already, user may ask to resend the token
	if err := s.sendVerification(ctx, user); err != nil {
		s.logger.Error("Email verification not sent", "user_id", user.ID, "error", err)
	}

	return user, nil
}

// ResendVerification issues new verification token if user exists and not verified yet
// Otherwise does nothing, so caller can't tell whether the email is registered
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	user, err := s.getUserByEmail(ctx, email)

	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return nil
	case err != nil:
		return err
	case user.IsEmailVerified:
		return nil
	}

	return s.sendVerification(ctx, user)
}

func (s *Service) sendVerification(ctx context.Context, user models.User) error {
	var token string

	err := s.kv.InPipeline(ctx, func(p kvstore.Pipeline) (err error) {
		token, err = tokenmanager.New(s.tokens, p).IssueEmailVerificationToken(user.ID)
		return err
	})
	if err != nil {
		return fmt.Errorf("error while issuing verification token. Err: %w", err)
	}

	return s.notifier.NotifyEmailVerification(ctx, user, token)
}

// VerifyEmail marks user email verified and burns the token
// Unknown or expired token reported as apperrors.ErrInvalidCredentials
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	return s.kv.InPipeline(ctx, func(p kvstore.Pipeline) error {
		tm := tokenmanager.New(s.tokens, p)

		userID, err := tm.GetUserByEmailVerificationToken(ctx, token)
		switch {
		case errors.Is(err, apperrors.ErrEmailVerificationTokenNotFound):
			return apperrors.ErrInvalidCredentials
		case err != nil:
			return err
		}

		// Persist verification first: if commit fails the token remains usable
		err = s.storage.InTx(ctx, func(st repository.Storage) error {
			return st.User().VerifyEmail(ctx, userID)
		})
		switch {
		case errors.Is(err, apperrors.ErrUserNotFound):
			return apperrors.ErrInvalidCredentials
		case err != nil:
			return err
		}

		tm.InvalidateEmailVerificationToken(token)
		return nil
	})
}

// Login checks user credentials and issues new token pair
// Previous user refresh token is invalidated, so user has only one active session
//
// Failures are reported as apperrors.ErrUserNotFound, apperrors.ErrUserNotVerified or apperrors.ErrInvalidCredentials
// and never returned faster than configured min response time
func (s *Service) Login(ctx context.Context, email string, password models.Secret) (models.TokenPair, error) {
	start := time.Now()

	pair, err := s.login(ctx, email, password)
	if isCredentialsError(err) {
		s.waitMinResponseTime(ctx, start)
	}

	return pair, err
}

func (s *Service) login(ctx context.Context, email string, password models.Secret) (models.TokenPair, error) {
	user, err := s.getUserByEmail(ctx, email)

	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		s.logger.Warn("Failed login attempt. User not found")
		return models.TokenPair{}, err
	case err != nil:
		return models.TokenPair{}, err
	}

	if !user.IsEmailVerified {
		s.logger.Warn("Failed login attempt. Email not verified", "user_id", user.ID)
		return models.TokenPair{}, apperrors.ErrUserNotVerified
	}

	if !s.hasher.Compare(ctx, user.HashedPassword, password) {
		s.logger.Warn("Failed login attempt. Invalid password", "user_id", user.ID)
		return models.TokenPair{}, apperrors.ErrInvalidCredentials
	}

	var pair models.TokenPair
	err = s.kv.InPipeline(ctx, func(p kvstore.Pipeline) error {
		tm := tokenmanager.New(s.tokens, p)

		previous, err := tm.GetRefreshTokenByUser(ctx, user.ID)
		switch {
		case err == nil:
			s.logger.Warn("User logged in while previous session is active, previous refresh token invalidated", "user_id", user.ID)
			tm.InvalidateRefreshToken(previous)
		case !errors.Is(err, apperrors.ErrRefreshTokenNotFound):
			return err
		}

		pair, err = tm.IssueTokens(user.ID)
		return err
	})
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not be issued, sorry. %w", err)
	}

	return pair, nil
}

// Logout revokes access token and user refresh token
// Missing refresh token is logged, but not reported to the caller
func (s *Service) Logout(ctx context.Context, accessToken string, userID uuid.UUID) error {
	return s.kv.InPipeline(ctx, func(p kvstore.Pipeline) error {
		tm := tokenmanager.New(s.tokens, p)

		refresh, err := tm.GetRefreshTokenByUser(ctx, userID)
		switch {
		case err == nil:
			tm.InvalidateRefreshToken(refresh)
		case errors.Is(err, apperrors.ErrRefreshTokenNotFound):
			s.logger.Error("Invalid application state, no refresh token for user", "user_id", userID)
		default:
			return err
		}

		tm.InvalidateUserRefreshToken(userID)
		tm.InvalidateAccessToken(accessToken)
		return nil
	})
}

// Refresh rotates refresh token and issues new access token
// The access token issued with the old refresh token stays valid until it expires
func (s *Service) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	var pair models.TokenPair

	err := s.kv.InPipeline(ctx, func(p kvstore.Pipeline) error {
		tm := tokenmanager.New(s.tokens, p)

		userID, err := tm.GetUserByRefreshToken(ctx, refreshToken)
		switch {
		case errors.Is(err, apperrors.ErrRefreshTokenNotFound):
			return apperrors.ErrInvalidCredentials
		case err != nil:
			return err
		}

		tm.InvalidateRefreshToken(refreshToken)
		pair, err = tm.IssueTokens(userID)
		return err
	})
	if err != nil {
		return models.TokenPair{}, err
	}

	return pair, nil
}

// Authenticate resolves access token to the user id
func (s *Service) Authenticate(ctx context.Context, accessToken string) (uuid.UUID, error) {
	var userID uuid.UUID

	err := s.kv.InPipeline(ctx, func(p kvstore.Pipeline) (err error) {
		userID, err = tokenmanager.New(s.tokens, p).GetUserByAccessToken(ctx, accessToken)
		return err
	})

	switch {
	case errors.Is(err, apperrors.ErrAccessTokenNotFound):
		return uuid.Nil, apperrors.ErrInvalidCredentials
	case err != nil:
		return uuid.Nil, err
	}

	return userID, nil
}

func (s *Service) GetUser(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return s.storage.User().GetUserByID(ctx, userID)
}

func (s *Service) getUserByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User

	err := s.storage.InTx(ctx, func(st repository.Storage) (err error) {
		user, err = st.User().GetUserByEmail(ctx, email)
		return err
	})

	return user, err
}

// Sleep until min response time elapsed since start or ctx is done
func (s *Service) waitMinResponseTime(ctx context.Context, start time.Time) {
	delay := s.minResponseTime - time.Since(start)
	if delay <= 0 {
		return
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func isCredentialsError(err error) bool {
	return errors.Is(err, apperrors.ErrUserNotFound) ||
		errors.Is(err, apperrors.ErrUserNotVerified) ||
		errors.Is(err, apperrors.ErrInvalidCredentials)
}
