package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/gopherauth/internal/logger"
)

const (
	CodeRetryAfter = "retry-after"
	CodeRejected   = "rejected"
	CodeUnknown    = "unknown"
)

const (
	defaultRequestTimeout = 5 * time.Second
	defaultRetryAfter     = 60 * time.Second
)

// Delivery error
// RetryAfter is set if the receiver asked to slow down
type Error struct {
	Code string

	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("code: %s, retry_after: %s, error: %v", e.Code, e.RetryAfter, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message with email verification token
type Message struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Token  string    `json:"token"`
}

// WebhookClient posts messages as json to the mail relay
type WebhookClient struct {
	URL string

	client *http.Client
	logger logger.Logger
}

func NewWebhookClient(url string, l logger.Logger) *WebhookClient {
	return &WebhookClient{
		URL:    url,
		client: &http.Client{},
		logger: l,
	}
}

func (c *WebhookClient) Send(ctx context.Context, m Message) error {
	body, err := json.Marshal(m)
	if err != nil {
		return &Error{Code: CodeUnknown, Err: fmt.Errorf("failed to encode message: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, defaultRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return &Error{Code: CodeUnknown, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &Error{Code: CodeUnknown, Err: fmt.Errorf("failed to send request: %w", err)}
	}
	defer resp.Body.Close() // nolint:errcheck

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		c.logger.Debug("Verification message delivered", "user_id", m.UserID)
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return c.processRetryAfter(resp)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &Error{Code: CodeRejected, Err: fmt.Errorf("message rejected with status code %d", resp.StatusCode)}
	default:
		c.logger.Warn("Failed to deliver message", "status_code", resp.StatusCode, "user_id", m.UserID)
		return &Error{Code: CodeUnknown, Err: fmt.Errorf("unknown status code %d", resp.StatusCode)}
	}
}

func (c *WebhookClient) processRetryAfter(resp *http.Response) error {
	retryAfter := defaultRetryAfter

	header := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		retryAfter = time.Duration(seconds) * time.Second
	}

	c.logger.Warn("Mail relay throttled", "retry_after", retryAfter)
	return &Error{Code: CodeRetryAfter, RetryAfter: retryAfter, Err: fmt.Errorf("retry after %s", retryAfter)}
}
