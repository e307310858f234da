package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/gopherauth/internal/apperrors"
	"github.com/nkiryanov/gopherauth/internal/handlers/authctx"
	"github.com/nkiryanov/gopherauth/internal/handlers/render"
	"github.com/nkiryanov/gopherauth/internal/logger"
	"github.com/nkiryanov/gopherauth/internal/models"
	"github.com/nkiryanov/gopherauth/internal/service/auth/tokenmanager"
)

const refreshTokenHeader = "X-Refresh-Token"

func handleLogin(s authService, logger logger.Logger) http.Handler {
	type request struct {
		Username string `form:"username" validate:"required"`
		Password string `form:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindFormAndValidate(w, r, func(form func(string) string) request {
			return request{Username: form("username"), Password: form("password")}
		})
		if err != nil {
			return
		}

		pair, err := s.Login(r.Context(), data.Username, models.NewSecret(data.Password))
		switch {
		case errors.Is(err, apperrors.ErrUserNotFound),
			errors.Is(err, apperrors.ErrUserNotVerified),
			errors.Is(err, apperrors.ErrInvalidCredentials):
			render.ServiceError(w, "Invalid credentials!", http.StatusUnauthorized)
			return
		case err != nil:
			logger.Error("Login failed", "error", err)
			render.InternalError(w)
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		render.JSON(w, pair)
	})
}

func handleLogout(s authService, logger logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, _ := authctx.FromContext(r.Context())

		if err := s.Logout(r.Context(), session.AccessToken, session.UserID); err != nil {
			logger.Error("Logout failed", "user_id", session.UserID, "error", err)
			render.InternalError(w)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

func handleRefresh(s authService, logger logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refresh := r.Header.Get(refreshTokenHeader)
		if len(refresh) != tokenmanager.BearerTokenLength {
			render.InvalidTokenLength(w, tokenmanager.BearerTokenLength)
			return
		}

		pair, err := s.Refresh(r.Context(), refresh)
		switch {
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			logger.Warn("Invalid refresh token")
			render.ServiceError(w, "Invalid refresh token!", http.StatusUnauthorized)
			return
		case err != nil:
			logger.Error("Refresh failed", "error", err)
			render.InternalError(w)
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		render.JSON(w, pair)
	})
}
