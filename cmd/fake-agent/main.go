// ABOUTME: Minimal fake downstream agent for local and E2E testing of courier-gateway.
// ABOUTME: Usage: fake-agent [-addr localhost:8000] [-anon-per-minute 5] [-auth-per-minute 60]
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	addr := flag.String("addr", "localhost:8000", "HTTP listen address")
	anonPerMinute := flag.Int("anon-per-minute", 5, "Requests per minute shared by all anonymous callers")
	authPerMinute := flag.Int("auth-per-minute", 60, "Requests per minute for each bearer token")
	delay := flag.Duration("delay", 0, "Artificial latency added to every reply")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := run(*addr, limits{
		AnonymousPerMinute:     *anonPerMinute,
		AuthenticatedPerMinute: *authPerMinute,
	}, *delay, logger); err != nil {
		logger.Error("fake-agent failed", "error", err)
		os.Exit(1)
	}
}

func run(addr string, l limits, delay time.Duration, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := &http.Server{
		Addr:              addr,
		Handler:           newAgent(l, delay, logger).routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("fake-agent listening", "addr", addr,
			"anon_per_minute", l.AnonymousPerMinute,
			"auth_per_minute", l.AuthenticatedPerMinute)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
