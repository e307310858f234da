package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/nkiryanov/gopherauth/internal/models"
)

// User repository interface
type UserRepo interface {
	// Create user with unverified email
	// If user with the email exists already has to return error apperrors.ErrDuplicateKey
	CreateUser(ctx context.Context, email string, hashedPassword []byte) (models.User, error)

	// Get user by it's id or email
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	// Mark user email as verified. Verifying already verified email is ok
	// If user not found must return apperrors.ErrUserNotFound
	VerifyEmail(ctx context.Context, userID uuid.UUID) error
}

type Storage interface {
	User() UserRepo

	// Run fn in transaction
	// Commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
