package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/nkiryanov/gopherauth/internal/apperrors"
	"github.com/nkiryanov/gopherauth/internal/handlers/authctx"
	"github.com/nkiryanov/gopherauth/internal/handlers/render"
)

const bearerScheme = "Bearer"

type authenticator interface {
	// Resolve access token to the user id
	// Has to return apperrors.ErrInvalidCredentials if token unknown
	Authenticate(ctx context.Context, accessToken string) (uuid.UUID, error)
}

// AuthMiddleware authenticates request by bearer token of exactly tokenLength chars
// Authenticated session is available to next handler with authctx.FromContext
func AuthMiddleware(a authenticator, tokenLength int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok || len(token) != tokenLength {
				unauthorized(w)
				return
			}

			userID, err := a.Authenticate(r.Context(), token)
			switch {
			case errors.Is(err, apperrors.ErrInvalidCredentials):
				unauthorized(w)
				return
			case err != nil:
				render.InternalError(w)
				return
			}

			ctx := authctx.New(r.Context(), authctx.Session{UserID: userID, AccessToken: token})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", bearerScheme)
	render.ServiceError(w, "Invalid access token!", http.StatusUnauthorized)
}
