package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"jobharvest/common/cache"
	"jobharvest/common/cache/memory"
	"jobharvest/common/cache/redis"
	"jobharvest/common/database"
	"jobharvest/common/telemetry"
	"jobharvest/services/harvester/internal/api"
	"jobharvest/services/harvester/internal/config"
	"jobharvest/services/harvester/internal/enrich"
	"jobharvest/services/harvester/internal/harvest"
	"jobharvest/services/harvester/internal/messaging"
	"jobharvest/services/harvester/internal/normalizer"
	"jobharvest/services/harvester/internal/sink"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

const serviceName = "jobharvest-harvester"

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if strings.EqualFold(cfg.Env, "development") {
		return zap.NewDevelopment()
	}
	zcfg := zap.NewProductionConfig()
	if level, err := zap.ParseAtomicLevel(cfg.LogLevel); err == nil {
		zcfg.Level = level
	}
	return zcfg.Build()
}

func newDetailCache(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) cache.Cache {
	opts := cache.Options{
		DefaultTTL:    cfg.CacheTTL,
		KeyPrefix:     "jobharvest:",
		RedisURL:      cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	}

	if cfg.RedisAddr == "" {
		opts.CleanupInterval = cache.DefaultOptions().CleanupInterval
		c := memory.New(opts)
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return c.Close() }})
		return c
	}

	c := redis.New(opts)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if !cfg.EnrichDetails {
				return nil
			}
			return c.Ping(ctx)
		},
		OnStop: func(context.Context) error { return c.Close() },
	})
	logger.Info("using redis detail cache", zap.String("addr", cfg.RedisAddr))
	return c
}

func newListingClient(logger *zap.Logger, cfg *config.Config, detailCache cache.Cache) api.ListingClient {
	return api.NewListingClient(logger, cfg, nil, detailCache)
}

func newNormalizer(cfg *config.Config) *normalizer.Normalizer {
	return normalizer.New(cfg.JobURLPrefix)
}

func newLoop(client api.ListingClient, n *normalizer.Normalizer, logger *zap.Logger, cfg *config.Config) *harvest.Loop {
	return harvest.NewLoop(client, n, logger, harvest.OptionsFromConfig(cfg))
}

func newEnricher(client api.ListingClient, logger *zap.Logger, cfg *config.Config) harvest.Enricher {
	if !cfg.EnrichDetails {
		return nil
	}
	return enrich.NewDetailEnricher(client, logger, cfg.PageDelay)
}

func newResultSink(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (sink.ResultSink, error) {
	csvSink := sink.NewCSVSink(cfg.ResolveOutputPath(time.Now()))
	var secondary []sink.ResultSink

	if cfg.NATSURL != "" {
		publisher, err := messaging.NewPublisher(logger, cfg)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: func(context.Context) error {
			publisher.Close()
			return nil
		}})
		secondary = append(secondary, sink.NewNATSSink(publisher))
	}

	if cfg.ClickHouseDSN != "" {
		db, err := database.New(context.Background(), database.Options{
			DSN:             cfg.ClickHouseDSN,
			MaxOpenConns:    cfg.ClickHouseMaxOpenConns,
			MaxIdleConns:    cfg.ClickHouseMaxIdleConns,
			ConnMaxLifetime: cfg.ClickHouseConnMaxLife,
			Username:        cfg.ClickHouseUsername,
			Password:        cfg.ClickHousePassword,
			Database:        cfg.ClickHouseDatabase,
		}, logger)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return db.Close() }})
		secondary = append(secondary, sink.NewClickHouseSink(db, logger))
	}

	logger.Info("persisting harvest",
		zap.String("csv_path", csvSink.Path()),
		zap.Int("secondary_sinks", len(secondary)))
	return sink.NewFanout(logger, csvSink, secondary...), nil
}

func registerTracer(lc fx.Lifecycle, cfg *config.Config) error {
	shutdown, err := telemetry.InitTracer(context.Background(), telemetry.Options{
		ServiceName:  serviceName,
		CollectorURL: cfg.OTelCollectorURL,
	})
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{OnStop: shutdown})
	return nil
}

type harvestRunner interface {
	Run(ctx context.Context) (harvest.Summary, error)
}

// runHarvest runs one harvest and returns the process exit code. Zero records
// and a harvest aborted by a failed fetch both exit 0; only an error returned
// by the runner (unexpected fetch failure or a failed persist) exits 1.
func runHarvest(ctx context.Context, runner harvestRunner, logger *zap.Logger) int {
	summary, err := runner.Run(ctx)
	if err != nil {
		logger.Error("job harvest failed", zap.Error(err))
		return 1
	}
	if s := summary.Session; s != nil && s.State == harvest.StateAborted {
		logger.Warn("harvest ended early, partial result kept",
			zap.String("reason", string(s.StopReason)),
			zap.Error(s.Err))
	}
	return 0
}

func run() int {
	outPath := flag.String("out", "", "CSV output path (default: <HARVEST_OUTPUT_DIR>/<HARVEST_OUTPUT_PREFIX>_<timestamp>.csv)")
	flag.Parse()

	loadConfig := func() (*config.Config, error) {
		cfg, err := config.LoadConfig()
		if err != nil {
			return nil, err
		}
		if *outPath != "" {
			cfg.OutputPath = *outPath
		}
		return cfg, nil
	}

	var (
		runner *harvest.Runner
		logger *zap.Logger
	)
	app := fx.New(
		fx.NopLogger,
		fx.Provide(
			loadConfig,
			newLogger,
			newDetailCache,
			newListingClient,
			newNormalizer,
			newLoop,
			newEnricher,
			newResultSink,
			harvest.NewRunner,
		),
		fx.Invoke(registerTracer),
		fx.Populate(&runner, &logger),
	)
	if err := app.Err(); err != nil {
		log.Printf("failed to initialize harvester: %v", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()
	if err := app.Start(startCtx); err != nil {
		logger.Error("failed to start harvester", zap.Error(err))
		return 1
	}

	logger.Info("starting job harvester")
	code := runHarvest(context.Background(), runner, logger)

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil {
		logger.Warn("shutdown completed with error", zap.Error(err))
	}
	return code
}

func main() {
	os.Exit(run())
}
