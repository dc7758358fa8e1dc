// Command gg-web serves the guarded GastroGuide views on a local HTTP port.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/gastroguide/internal/app"
	"github.com/and161185/gastroguide/internal/config"
	"github.com/and161185/gastroguide/internal/server/web"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, wires the client and serves until SIGINT/SIGTERM.
func main() {
	cfg, _, err := config.Load("gg-web", os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	logger, _ := zap.NewProduction()
	if cfg.Debug {
		logger, _ = zap.NewDevelopment()
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Listen),
		zap.String("storage", cfg.Backend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, app.OnSessionExpired(func(redirect string) {
		logger.Info("session expired", zap.String("redirect", redirect))
	}))
	if err != nil {
		logger.Fatal("init", zap.Error(err))
	}
	defer a.Close()

	lis, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}
	srv := &http.Server{
		Handler:           web.New(a).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", lis.Addr().String()))
		errCh <- srv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("forced shutdown", zap.Error(err))
			_ = srv.Close()
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			a.Close()
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
