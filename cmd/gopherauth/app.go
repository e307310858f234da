package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nkiryanov/gopherauth/internal/db"
	"github.com/nkiryanov/gopherauth/internal/handlers"
	"github.com/nkiryanov/gopherauth/internal/kvstore"
	"github.com/nkiryanov/gopherauth/internal/logger"
	"github.com/nkiryanov/gopherauth/internal/repository/postgres"
	"github.com/nkiryanov/gopherauth/internal/service/auth"
	"github.com/nkiryanov/gopherauth/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/gopherauth/internal/service/notifier"
)

const shutdownTimeout = 5 * time.Second

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger     logger.Logger
	pool       *pgxpool.Pool
	redis      *redis.Client
	dispatcher *notifier.Dispatcher
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Connect to the token store
	redisClient, err := kvstore.Connect(ctx, c.RedisURL, c.RedisPoolSize)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("error while connecting to redis. Err: %w", err)
	}

	// Verification messages go to the mail relay if configured
	var (
		verificationNotifier auth.Notifier = auth.NewLogNotifier(logger)
		dispatcher           *notifier.Dispatcher
	)
	if c.NotifyWebhookURL != "" {
		dispatcher = notifier.NewDispatcher(
			notifier.Config{CountWorkers: c.NotifyWorkers},
			notifier.NewWebhookClient(c.NotifyWebhookURL, logger),
			logger,
		)
		verificationNotifier = dispatcher
	}

	// Initialize services
	authService, err := auth.NewService(
		auth.Config{
			Tokens: tokenmanager.Config{
				AccessTTL:            c.AccessTTL,
				RefreshTTL:           c.RefreshTTL,
				EmailVerificationTTL: c.VerificationTTL,
			},
			MinResponseTime: c.MinResponseTime,
			Hasher:          auth.NewBcryptHasher(c.HashWorkers),
		},
		kvstore.NewRedisStore(redisClient),
		postgres.NewStorage(pool),
		verificationNotifier,
		logger,
	)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    handlers.NewRouter(authService, logger),
		logger:     logger,
		pool:       pool,
		redis:      redisClient,
		dispatcher: dispatcher,
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
// Notification dispatcher and store connections are closed when server stopped
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.close()

	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	// Dispatcher stops together with the server
	var dispatcherStopped <-chan struct{}
	if s.dispatcher != nil {
		dispatcherStopped = s.dispatcher.Run(srvCtx)
	} else {
		closed := make(chan struct{})
		close(closed)
		dispatcherStopped = closed
	}

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-dispatcherStopped

	return err
}

func (s *ServerApp) close() {
	s.pool.Close()
	if err := s.redis.Close(); err != nil {
		s.logger.Warn("Redis client not closed", "error", err)
	}
}
