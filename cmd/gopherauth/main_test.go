package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/gopherauth/internal/testutil"
)

func Test_run(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	rd := testutil.StartRedisContainer(t)
	t.Cleanup(rd.Terminate)

	port, err := testutil.RandomPort()
	require.NoError(t, err, "failed to get random port to start server")
	listenAddr := fmt.Sprintf("localhost:%d", port)

	t.Run("stop on context done", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		t.Cleanup(cancel)

		// Server has to accept connections until stopped
		served := make(chan bool, 1)
		go func() {
			deadline := time.Now().Add(time.Second)
			for time.Now().Before(deadline) {
				conn, err := net.Dial("tcp", listenAddr)
				if err == nil {
					_ = conn.Close()
					served <- true
					return
				}
				time.Sleep(50 * time.Millisecond)
			}
			served <- false
		}()

		err := run(ctx, os.Getenv, os.Getwd, []string{
			"--address", listenAddr,
			"--log-level", "debug",
			"--environment", "dev",
			"--database", pg.DSN,
			"--redis", rd.URL,
		})

		require.NoError(t, err, "on correct stop should not return error")
		require.True(t, <-served, "server should accept connections")
	})

	t.Run("stop with mail relay configured", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		t.Cleanup(cancel)

		err := run(ctx, os.Getenv, os.Getwd, []string{
			"--address", listenAddr,
			"--environment", "dev",
			"--database", pg.DSN,
			"--redis", rd.URL,
			"--notify-webhook", "http://localhost:1/verify",
			"--notify-workers", "2",
		})

		require.NoError(t, err, "dispatcher should stop together with server")
	})

	t.Run("fail without redis", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		t.Cleanup(cancel)

		err := run(ctx, func(string) string { return "" }, os.Getwd, []string{
			"--address", listenAddr,
			"--database", pg.DSN,
		})

		require.Error(t, err, "redis url is required")
	})

	t.Run("fail if redis not reachable", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		t.Cleanup(cancel)

		redisPort, err := testutil.RandomPort()
		require.NoError(t, err)

		err = run(ctx, func(string) string { return "" }, os.Getwd, []string{
			"--address", listenAddr,
			"--database", pg.DSN,
			"--redis", fmt.Sprintf("redis://localhost:%d/0", redisPort),
		})

		require.Error(t, err)
	})
}
