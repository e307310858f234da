package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/gopherauth/internal/handlers/middleware"
	"github.com/nkiryanov/gopherauth/internal/logger"
	"github.com/nkiryanov/gopherauth/internal/models"
	"github.com/nkiryanov/gopherauth/internal/service/auth/tokenmanager"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(authService authService, logger logger.Logger) http.Handler {
	withAuth := middleware.AuthMiddleware(authService, tokenmanager.BearerTokenLength)

	mux := http.NewServeMux()

	mux.Handle("POST /accounts", handleCreateAccount(authService, logger))
	mux.Handle("POST /accounts/verify/resend", handleResendVerification(authService, logger))
	mux.Handle("POST /accounts/verify/{token}", handleVerifyEmail(authService, logger))
	mux.Handle("GET /accounts/me", withAuth(handleAccountMe(authService, logger)))

	mux.Handle("POST /auth/login", handleLogin(authService, logger))
	mux.Handle("POST /auth/logout", withAuth(handleLogout(authService, logger)))
	mux.Handle("POST /auth/refresh", handleRefresh(authService, logger))

	handler := chain(mux,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type authService interface {
	// Register user with not verified email
	// Has to return apperrors.ErrUserAlreadyExists if user already exists
	CreateAccount(ctx context.Context, email string, password models.Secret) (models.User, error)

	// Send new verification token if user exists and not verified
	ResendVerification(ctx context.Context, email string) error

	// Has to return apperrors.ErrInvalidCredentials if token unknown or expired
	VerifyEmail(ctx context.Context, token string) error

	// Login user with email and password
	// Has to return apperrors.ErrUserNotFound, apperrors.ErrUserNotVerified or apperrors.ErrInvalidCredentials on failure
	Login(ctx context.Context, email string, password models.Secret) (models.TokenPair, error)

	Logout(ctx context.Context, accessToken string, userID uuid.UUID) error

	// Refresh tokens using refresh token
	// Has to return apperrors.ErrInvalidCredentials if token unknown or expired
	Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error)

	// Resolve access token to user id
	// Has to return apperrors.ErrInvalidCredentials if token unknown or expired
	Authenticate(ctx context.Context, accessToken string) (uuid.UUID, error)

	GetUser(ctx context.Context, userID uuid.UUID) (models.User, error)
}
