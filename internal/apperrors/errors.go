package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")
	ErrUserNotVerified   = errors.New("user email is not verified")

	// Generic authentication failure: wrong password, unknown or expired token
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Storage level unique constraint violation
	// Services translate it to domain errors, handlers never see it
	ErrDuplicateKey = errors.New("duplicate key")

	ErrRefreshTokenNotFound           = errors.New("refresh token not found")
	ErrAccessTokenNotFound            = errors.New("access token not found")
	ErrEmailVerificationTokenNotFound = errors.New("email verification token not found")
)
