package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/healthquiz/quiz-api/config"
	httpx "github.com/healthquiz/quiz-api/internal/http"
)

// StartHTTPServer builds the router and starts the HTTP server in the
// background. Listen failures surface on errCh.
func StartHTTPServer(cfg *config.AppConfig, services *ServiceContainer, logger *slog.Logger, errCh chan<- error) *http.Server {
	router := httpx.NewRouter(httpx.RouterServices{
		Auth:     services.Auth,
		Quiz:     services.Quiz,
		Codes:    services.Codes,
		Payments: services.Payments,
		AdminKey: cfg.Security.AdminKey,
		Logger:   logger,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	return server
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	if server == nil {
		return nil
	}

	if logger != nil {
		logger.Info("shutting down HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if logger != nil {
		logger.Info("HTTP server stopped")
	}
	return nil
}
