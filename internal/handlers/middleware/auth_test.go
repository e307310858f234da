package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/gopherauth/internal/apperrors"
	"github.com/nkiryanov/gopherauth/internal/handlers/authctx"
)

// Allow to use a function as authenticator
type authFunc func(ctx context.Context, token string) (uuid.UUID, error)

func (f authFunc) Authenticate(ctx context.Context, token string) (uuid.UUID, error) {
	return f(ctx, token)
}

const tokenLength = 43

func TestAuthMiddleware(t *testing.T) {
	userID := uuid.New()
	validToken := strings.Repeat("a", tokenLength)

	// Simple handler that try to get session from context
	// If ok write user id and token to response
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Must always be true cause middleware has to set session or write error to response
		s, ok := authctx.FromContext(r.Context())
		require.True(t, ok)

		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte(s.UserID.String() + " " + s.AccessToken))
		require.NoError(t, err, "should write session to response")
	})

	do := func(t *testing.T, a authenticator, authorization string) (int, string, http.Header) {
		srv := httptest.NewServer(AuthMiddleware(a, tokenLength)(handler))
		defer srv.Close()

		req, err := http.NewRequest(http.MethodGet, srv.URL+"/test", nil)
		require.NoError(t, err)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err, "should make request to test server")
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err, "should read response body")
		defer resp.Body.Close() // nolint:errcheck

		return resp.StatusCode, string(body), resp.Header
	}

	t.Run("auth ok", func(t *testing.T) {
		a := authFunc(func(ctx context.Context, token string) (uuid.UUID, error) {
			require.Equal(t, validToken, token)
			return userID, nil
		})

		code, body, _ := do(t, a, "Bearer "+validToken)

		require.Equalf(t, http.StatusOK, code, "should return status OK. Resp: %s", body)
		require.Equal(t, userID.String()+" "+validToken, body)
	})

	t.Run("scheme case insensitive", func(t *testing.T) {
		a := authFunc(func(ctx context.Context, token string) (uuid.UUID, error) {
			return userID, nil
		})

		code, _, _ := do(t, a, "bearer "+validToken)

		require.Equal(t, http.StatusOK, code)
	})

	t.Run("auth fail", func(t *testing.T) {
		a := authFunc(func(ctx context.Context, token string) (uuid.UUID, error) {
			return uuid.Nil, apperrors.ErrInvalidCredentials
		})

		code, body, header := do(t, a, "Bearer "+validToken)

		require.Equalf(t, http.StatusUnauthorized, code, "should return status Unauthorized. Resp: %s", body)
		require.Equal(t, "Bearer", header.Get("WWW-Authenticate"))
		require.JSONEq(t,
			`{
				"error": "service_error",
				"message": "Invalid access token!"
			}`,
			body,
		)
	})

	t.Run("store failure", func(t *testing.T) {
		a := authFunc(func(ctx context.Context, token string) (uuid.UUID, error) {
			return uuid.Nil, errors.New("connection refused")
		})

		code, _, _ := do(t, a, "Bearer "+validToken)

		require.Equal(t, http.StatusInternalServerError, code)
	})

	t.Run("rejected without authenticator call", func(t *testing.T) {
		tests := []struct {
			name          string
			authorization string
		}{
			{"no header", ""},
			{"not bearer", "Basic " + validToken},
			{"no token", "Bearer"},
			{"short token", "Bearer " + validToken[1:]},
			{"long token", "Bearer " + validToken + "a"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				var calls atomic.Int32
				a := authFunc(func(ctx context.Context, token string) (uuid.UUID, error) {
					calls.Add(1)
					return userID, nil
				})

				code, _, _ := do(t, a, tt.authorization)

				require.Equal(t, http.StatusUnauthorized, code)
				require.Zero(t, calls.Load(), "authenticator must not be called")
			})
		}
	})
}
