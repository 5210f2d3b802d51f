package main

import (
	"context"
	"log/slog"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/healthquiz/quiz-api/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "starting quiz-api",
		"services", cfg.Services,
		"dev", cfg.IsDev,
	)

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{DBConfig: cfg.Postgres, Logger: logger})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close database failed", "error", cerr)
		}
	}()

	var redisClient redis.UniversalClient
	if cfg.Security.ThrottleEnabled {
		client, rerr := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{RedisConfig: cfg.Redis, Logger: logger})
		if rerr != nil {
			// The throttle is protective, not load bearing; run without it.
			logger.WarnContext(ctx, "redis unavailable, login throttle disabled", "error", rerr)
		} else {
			redisClient = client
			defer func() {
				if cerr := client.Close(); cerr != nil {
					logger.ErrorContext(ctx, "close redis failed", "error", cerr)
				}
			}()
		}
	}

	if cfg.Postgres.RunMigrationsOnStart {
		if err = bootstrap.RunMigrations(ctx, db, logger); err != nil {
			return err
		}
	} else {
		logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
	}

	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config:      &cfg,
		DB:          db,
		RedisClient: redisClient,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	if err = services.Codes.EnsureSeedCodes(ctx); err != nil {
		// Seeding is a convenience for fresh databases; startup continues.
		logger.WarnContext(ctx, "access code seeding failed", "error", err)
	}

	return bootstrap.RunServicesWithShutdown(ctx, bootstrap.RunOptions{
		Config:   &cfg,
		Services: services,
		Logger:   logger,
	})
}
