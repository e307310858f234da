package tokenmanager

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/gopherauth/internal/apperrors"
	"github.com/nkiryanov/gopherauth/internal/kvstore"
	"github.com/nkiryanov/gopherauth/internal/models"
)

const (
	BearerTokenBytes            = 32
	EmailVerificationTokenBytes = 32
)

var (
	BearerTokenLength            = EncodedLen(BearerTokenBytes)
	EmailVerificationTokenLength = EncodedLen(EmailVerificationTokenBytes)
)

const (
	defaultAccessTokenTTL       = 15 * time.Minute
	defaultRefreshTokenTTL      = 24 * time.Hour
	defaultEmailVerificationTTL = 24 * time.Hour
)

// Key prefixes, every key is '<prefix>:<value>'
const (
	accessTokenPrefix            = "access_token"
	refreshTokenPrefix           = "refresh_token"
	userRefreshTokenPrefix       = "user_refresh_token"
	emailVerificationTokenPrefix = "email_verification_token"
)

func AccessTokenKey(token string) string  { return accessTokenPrefix + ":" + token }
func RefreshTokenKey(token string) string { return refreshTokenPrefix + ":" + token }
func UserRefreshTokenKey(userID uuid.UUID) string {
	return userRefreshTokenPrefix + ":" + userID.String()
}
func EmailVerificationTokenKey(token string) string {
	return emailVerificationTokenPrefix + ":" + token
}

// EncodedLen returns length of token generated from n random bytes
func EncodedLen(n int) int {
	return base64.RawURLEncoding.EncodedLen(n)
}

// GenerateToken returns n random bytes encoded with url-safe base64 without padding
func GenerateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("error while generating token. Err: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Token lifetimes with sensible defaults
type Config struct {
	AccessTTL            time.Duration
	RefreshTTL           time.Duration
	EmailVerificationTTL time.Duration
}

func (c Config) withDefaults() Config {
	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&c.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&c.RefreshTTL, defaultRefreshTokenTTL)
	setDefaultDuration(&c.EmailVerificationTTL, defaultEmailVerificationTTL)
	return c
}

// TokenManager reads tokens from store and queues mutations into the pipeline
// Queued changes are applied only when the pipeline is executed
type TokenManager struct {
	cfg Config
	kv  kvstore.Pipeline
}

func New(cfg Config, kv kvstore.Pipeline) *TokenManager {
	return &TokenManager{cfg: cfg.withDefaults(), kv: kv}
}

func (m *TokenManager) GetUserByAccessToken(ctx context.Context, token string) (uuid.UUID, error) {
	return m.getUser(ctx, AccessTokenKey(token), apperrors.ErrAccessTokenNotFound)
}

func (m *TokenManager) GetUserByRefreshToken(ctx context.Context, token string) (uuid.UUID, error) {
	return m.getUser(ctx, RefreshTokenKey(token), apperrors.ErrRefreshTokenNotFound)
}

func (m *TokenManager) GetUserByEmailVerificationToken(ctx context.Context, token string) (uuid.UUID, error) {
	return m.getUser(ctx, EmailVerificationTokenKey(token), apperrors.ErrEmailVerificationTokenNotFound)
}

func (m *TokenManager) GetRefreshTokenByUser(ctx context.Context, userID uuid.UUID) (string, error) {
	token, err := m.kv.Get(ctx, UserRefreshTokenKey(userID))

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, kvstore.ErrNotFound):
		return "", apperrors.ErrRefreshTokenNotFound
	default:
		return "", fmt.Errorf("error while reading user refresh token. Err: %w", err)
	}
}

func (m *TokenManager) InvalidateAccessToken(token string) {
	m.kv.Delete(AccessTokenKey(token))
}

func (m *TokenManager) InvalidateRefreshToken(token string) {
	m.kv.Delete(RefreshTokenKey(token))
}

func (m *TokenManager) InvalidateUserRefreshToken(userID uuid.UUID) {
	m.kv.Delete(UserRefreshTokenKey(userID))
}

func (m *TokenManager) InvalidateEmailVerificationToken(token string) {
	m.kv.Delete(EmailVerificationTokenKey(token))
}

// IssueTokens generates new access and refresh tokens for the user
// The refresh token becomes the only active user refresh token, but previous one is not deleted here
func (m *TokenManager) IssueTokens(userID uuid.UUID) (models.TokenPair, error) {
	access, err := GenerateToken(BearerTokenBytes)
	if err != nil {
		return models.TokenPair{}, err
	}

	refresh, err := GenerateToken(BearerTokenBytes)
	if err != nil {
		return models.TokenPair{}, err
	}

	m.kv.Set(UserRefreshTokenKey(userID), refresh, m.cfg.RefreshTTL)
	m.kv.Set(RefreshTokenKey(refresh), userID.String(), m.cfg.RefreshTTL)
	m.kv.Set(AccessTokenKey(access), userID.String(), m.cfg.AccessTTL)

	return models.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(m.cfg.AccessTTL / time.Second),
		TokenType:    models.TokenTypeBearer,
	}, nil
}

func (m *TokenManager) IssueEmailVerificationToken(userID uuid.UUID) (string, error) {
	token, err := GenerateToken(EmailVerificationTokenBytes)
	if err != nil {
		return "", err
	}

	m.kv.Set(EmailVerificationTokenKey(token), userID.String(), m.cfg.EmailVerificationTTL)

	return token, nil
}

func (m *TokenManager) getUser(ctx context.Context, key string, notFound error) (uuid.UUID, error) {
	value, err := m.kv.Get(ctx, key)

	switch {
	case errors.Is(err, kvstore.ErrNotFound):
		return uuid.Nil, notFound
	case err != nil:
		return uuid.Nil, fmt.Errorf("error while reading token. Err: %w", err)
	}

	userID, err := uuid.Parse(value)
	if err != nil {
		// Value was not written by the manager, treat the token as unknown
		return uuid.Nil, notFound
	}

	return userID, nil
}
