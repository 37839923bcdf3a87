package main

import (
	"context"
	"flag"
	"log"

	"jobharvest/common/database"
	"jobharvest/common/database/schema"
	"jobharvest/common/database/schema/migrations"
	"jobharvest/services/harvester/internal/config"

	"go.uber.org/zap"
)

func main() {
	down := flag.Bool("down", false, "roll back the most recently applied migration instead of applying pending ones")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	if cfg.ClickHouseDSN == "" {
		logger.Fatal("CLICKHOUSE_DSN is required to run migrations")
	}

	ctx := context.Background()

	db, err := database.New(ctx, database.Options{
		DSN:             cfg.ClickHouseDSN,
		MaxOpenConns:    cfg.ClickHouseMaxOpenConns,
		MaxIdleConns:    cfg.ClickHouseMaxIdleConns,
		ConnMaxLifetime: cfg.ClickHouseConnMaxLife,
		Username:        cfg.ClickHouseUsername,
		Password:        cfg.ClickHousePassword,
		Database:        cfg.ClickHouseDatabase,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to connect to ClickHouse", zap.Error(err))
	}
	defer db.Close()

	migrator := schema.NewMigrator(db.Conn(), logger)

	if *down {
		migration, ok, err := migrator.RollbackLatest(ctx, migrations.All)
		if err != nil {
			logger.Fatal("Failed to roll back migration", zap.Int("version", migration.Version), zap.Error(err))
		}
		if !ok {
			logger.Info("No applied migrations to roll back")
			return
		}
		logger.Info("Rolled back migration", zap.Int("version", migration.Version))
		return
	}

	applied, err := migrator.Migrate(ctx, migrations.All)
	if err != nil {
		logger.Fatal("Failed to apply migrations", zap.Int("applied", applied), zap.Error(err))
	}

	logger.Info("All migrations completed successfully", zap.Int("applied", applied))
}
