package auth

import (
	"context"
	"crypto/sha256"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"github.com/nkiryanov/gopherauth/internal/models"
)

// Bcrypt password hasher
// Hashing is cpu bound, so no more than 'workers' hashes are calculated at once
type BcryptHasher struct {
	cost    int
	workers *semaphore.Weighted
}

// NewBcryptHasher returns hasher with bcrypt.DefaultCost
// If workers <= 0 GOMAXPROCS is used
func NewBcryptHasher(workers int) *BcryptHasher {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	return &BcryptHasher{
		cost:    bcrypt.DefaultCost,
		workers: semaphore.NewWeighted(int64(workers)),
	}
}

// Password is pre-hashed with sha256 so bcrypt's 72 bytes limit is not hit
func prehash(password models.Secret) []byte {
	sum := sha256.Sum256([]byte(password.Value()))
	return sum[:]
}

func (h *BcryptHasher) Hash(ctx context.Context, password models.Secret) ([]byte, error) {
	if err := h.workers.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("hasher busy. Err: %w", err)
	}
	defer h.workers.Release(1)

	hash, err := bcrypt.GenerateFromPassword(prehash(password), h.cost)
	if err != nil {
		return nil, fmt.Errorf("error while hashing password. Err: %w", err)
	}

	return hash, nil
}

// Compare returns true only if password matches the digest
// Malformed digest or cancelled context are reported as mismatch
func (h *BcryptHasher) Compare(ctx context.Context, digest []byte, password models.Secret) bool {
	if err := h.workers.Acquire(ctx, 1); err != nil {
		return false
	}
	defer h.workers.Release(1)

	return bcrypt.CompareHashAndPassword(digest, prehash(password)) == nil
}
