// Command erpsync runs the ERP to sink synchronization pipeline: the fetch
// scheduler, the dispatch worker, the stuck-job reaper, and the HTTP control
// surface, selected by the SERVICES environment variable.
package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/owt-mfg/erpsync/internal/bootstrap"
)

func main() {
	logger := bootstrap.InitLogger()
	if err := run(logger); err != nil {
		logger.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	if err := bootstrap.ValidateServiceConfig(&cfg); err != nil {
		return err
	}

	logger.Info("starting erpsync",
		slog.String("services", strings.Join(bootstrap.GetEnabledServices(&cfg), ",")),
		slog.Bool("dev", cfg.IsDev),
	)

	ctx := context.Background()

	db, err := bootstrap.ConnectDB(ctx, &cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if cfg.Postgres.RunMigrationsOnStart {
		if err := bootstrap.RunMigrations(ctx, db, logger); err != nil {
			return err
		}
	}

	redisClient, err := bootstrap.ConnectRedis(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	services, err := bootstrap.BuildServices(&cfg, db, redisClient, logger)
	if err != nil {
		return err
	}

	return services.Run(ctx)
}
