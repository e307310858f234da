package authctx

import (
	"context"

	"github.com/google/uuid"
)

// Session of authenticated request
type Session struct {
	UserID      uuid.UUID
	AccessToken string
}

type ctxKey struct{}

// Create a new context with the session
func New(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// Extract the session from the context
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}
