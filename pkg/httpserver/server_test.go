package httpserver_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/apprendschap/packkit/pkg/httpserver"
)

func TestRunShutsDownOnContextCancel(t *testing.T) {
	t.Parallel()

	cfg := httpserver.Config{
		Addr:            "127.0.0.1:0",
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		IdleTimeout:     time.Second,
		ShutdownTimeout: time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- httpserver.Run(ctx, cfg, http.NewServeMux(), nil)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after context cancellation")
	}
}

func TestRunReturnsListenError(t *testing.T) {
	t.Parallel()

	cfg := httpserver.Config{Addr: "256.256.256.256:0", ShutdownTimeout: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := httpserver.Run(ctx, cfg, http.NewServeMux(), nil)
	require.Error(t, err)
}
