package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/gopherauth/internal/apperrors"
	"github.com/nkiryanov/gopherauth/internal/handlers/authctx"
	"github.com/nkiryanov/gopherauth/internal/handlers/render"
	"github.com/nkiryanov/gopherauth/internal/logger"
	"github.com/nkiryanov/gopherauth/internal/models"
	"github.com/nkiryanov/gopherauth/internal/service/auth/tokenmanager"
)

type accountResponse struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

func newAccountResponse(u models.User) accountResponse {
	return accountResponse{
		ID:            u.ID,
		Email:         u.Email,
		EmailVerified: u.IsEmailVerified,
		CreatedAt:     u.CreatedAt,
	}
}

func handleCreateAccount(s authService, logger logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required,email,max=320"`
		Password string `json:"password" validate:"required,strong_password"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		user, err := s.CreateAccount(r.Context(), data.Email, models.NewSecret(data.Password))
		switch {
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.ServiceError(w, "User with that login already exist!", http.StatusConflict)
			return
		case err != nil:
			logger.Error("Account not created", "error", err)
			render.InternalError(w)
			return
		}

		render.JSONWithStatus(w, newAccountResponse(user), http.StatusCreated)
	})
}

func handleVerifyEmail(s authService, logger logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.PathValue("token")
		if len(token) != tokenmanager.EmailVerificationTokenLength {
			render.InvalidTokenLength(w, tokenmanager.EmailVerificationTokenLength)
			return
		}

		err := s.VerifyEmail(r.Context(), token)
		switch {
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			render.ServiceError(w, "Invalid or expired verification token!", http.StatusBadRequest)
			return
		case err != nil:
			logger.Error("Email not verified", "error", err)
			render.InternalError(w)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

// Always accepted: response must not reveal whether the email is registered
func handleResendVerification(s authService, logger logger.Logger) http.Handler {
	type request struct {
		Email string `json:"email" validate:"required,email"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		if err := s.ResendVerification(r.Context(), data.Email); err != nil {
			logger.Error("Verification not resent", "error", err)
			render.InternalError(w)
			return
		}

		w.WriteHeader(http.StatusAccepted)
	})
}

func handleAccountMe(s authService, logger logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, _ := authctx.FromContext(r.Context())

		user, err := s.GetUser(r.Context(), session.UserID)
		switch {
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "Invalid access token!", http.StatusUnauthorized)
			return
		case err != nil:
			logger.Error("User not loaded", "user_id", session.UserID, "error", err)
			render.InternalError(w)
			return
		}

		render.JSON(w, newAccountResponse(user))
	})
}
