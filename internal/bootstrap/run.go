package bootstrap

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/healthquiz/quiz-api/config"
)

// RunOptions groups everything needed to run the enabled services.
type RunOptions struct {
	Config   *config.AppConfig
	Services *ServiceContainer
	Logger   *slog.Logger
}

// RunServicesWithShutdown starts the enabled services and blocks until a
// shutdown signal arrives or a service fails.
func RunServicesWithShutdown(ctx context.Context, opts RunOptions) error {
	enabled, err := EnabledServices(opts.Config)
	if err != nil {
		return err
	}

	serviceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(enabled))

	var server *http.Server
	if config.IsHTTPEnabled(enabled) {
		server = StartHTTPServer(opts.Config, opts.Services, opts.Logger, errCh)
	}

	if config.IsSweeperEnabled(enabled) {
		go func() {
			if err := opts.Services.Sweeper.Run(serviceCtx); err != nil {
				errCh <- err
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		opts.Logger.InfoContext(serviceCtx, "shutdown signal received", "signal", sig.String())
	case runErr = <-errCh:
		opts.Logger.ErrorContext(serviceCtx, "service failed", "error", runErr)
	case <-serviceCtx.Done():
	}

	cancel()

	if err := ShutdownHTTPServer(ctx, server, opts.Logger); err != nil {
		opts.Logger.ErrorContext(ctx, "HTTP server shutdown failed", "error", err)
		if runErr == nil {
			runErr = err
		}
	}

	return runErr
}
