package auth

import (
	"context"

	"github.com/nkiryanov/gopherauth/internal/logger"
	"github.com/nkiryanov/gopherauth/internal/models"
)

// LogNotifier writes verification token to the log instead of sending email
// Suitable for development only
type LogNotifier struct {
	logger logger.Logger
}

func NewLogNotifier(l logger.Logger) *LogNotifier {
	return &LogNotifier{logger: l}
}

func (n *LogNotifier) NotifyEmailVerification(ctx context.Context, user models.User, token string) error {
	n.logger.Info("Email verification requested",
		"user_id", user.ID,
		"email", user.Email,
		"verify_path", "/accounts/verify/"+token,
	)
	return nil
}
