// cmd/migrate/main.go
package main

import (
	"context"
	"time"

	"tenant-ledger/internal/config"
	"tenant-ledger/internal/repository/postgres"
	"tenant-ledger/internal/util"
	"tenant-ledger/pkg/db"
)

func main() {
	logger := util.GetLogger()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	util.InitLogger(util.LoggerConfig{Level: cfg.LogLevel, Environment: cfg.Env})
	logger = util.GetLogger()

	database, err := db.NewPostgresDB(cfg.DB)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := postgres.Migrate(ctx, database); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}
	logger.Info().Msg("schema is up to date")
}
