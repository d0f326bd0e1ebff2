// Package app assembles the Clover service: config in, wired HTTP server
// out. Every collaborator is constructed here and injected explicitly.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	aliasrepo "github.com/Ramsey-B/clover/internal/repositories/alias"
	archiverepo "github.com/Ramsey-B/clover/internal/repositories/archive"
	ingestionrepo "github.com/Ramsey-B/clover/internal/repositories/ingestion"
	playerrepo "github.com/Ramsey-B/clover/internal/repositories/player"
	unresolvedrepo "github.com/Ramsey-B/clover/internal/repositories/unresolved"
	valuebundlerepo "github.com/Ramsey-B/clover/internal/repositories/valuebundle"

	"github.com/Ramsey-B/clover/config"
	archivesvc "github.com/Ramsey-B/clover/pkg/archive"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/integrity"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/logging"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/resolver"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/tracing/exporters"
	archiveroutes "github.com/Ramsey-B/clover/pkg/routes/archive"
	"github.com/Ramsey-B/clover/pkg/routes/health"
	resolutionroutes "github.com/Ramsey-B/clover/pkg/routes/resolution"
	unresolvedroutes "github.com/Ramsey-B/clover/pkg/routes/unresolved"
	valuesroutes "github.com/Ramsey-B/clover/pkg/routes/values"
)

// App is the assembled service
type App struct {
	Echo    *echo.Echo
	Logger  ectologger.Logger
	Health  *health.Checker
	Archive *archivesvc.Service

	cfg      config.Config
	db       *sqlx.DB
	redis    *redis.Client
	producer *kafka.Producer
	tracer   *sdktrace.TracerProvider
}

// New wires the full service from config. The caller owns the lifecycle:
// Start to serve, Close to tear down.
func New(cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.LogLevel, cfg.PrettyLogs)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	var tracerProvider *sdktrace.TracerProvider
	if cfg.TracingEnabled {
		exporter, err := newSpanExporter(context.Background(), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create span exporter: %w", err)
		}
		tracerProvider = sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		otel.SetTracerProvider(tracerProvider)
		tracing.SetTracer(tracerProvider.Tracer(cfg.AppName))
	}

	db, err := database.Connect(database.Config{
		Driver:          cfg.DatabaseDriver,
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		UserName:        cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}
	migrations := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})
	if err := migrations.Migrate(cfg.DatabaseName, driver); err != nil {
		return nil, err
	}

	redisClient, err := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		return nil, err
	}
	locker := redis.NewLocker(redisClient, "clover:")

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaOutputTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, logger)
	emitter := events.NewEmitter(producer, logger)

	dbInstance := database.NewDatabaseInstance(db, logger)
	players := playerrepo.NewRepository(dbInstance, logger)
	aliases := aliasrepo.NewRepository(dbInstance, logger)
	unresolved := unresolvedrepo.NewRepository(dbInstance, logger)
	archives := archiverepo.NewRepository(dbInstance, logger)
	ingestion := ingestionrepo.NewRepository(dbInstance, logger)
	bundles := valuebundlerepo.NewRepository(dbInstance, logger)

	resolverSvc := resolver.NewService(players, aliases, unresolved, matching.NewScorer(), locker, emitter, logger, resolver.Config{
		MinMatchScore:      cfg.MinMatchScore,
		AutoApplyThreshold: cfg.AutoApplyThreshold,
		AmbiguityMargin:    cfg.AmbiguityMargin,
		PositionBonus:      resolver.DefaultConfig().PositionBonus,
		TeamBonus:          resolver.DefaultConfig().TeamBonus,
		MaxCandidates:      cfg.MaxCandidates,
	})
	guard := integrity.NewGuard(cfg.IntegrityEnforcement, logger)
	archiveSvc := archivesvc.NewService(archives, ingestion, locker, emitter, logger, cfg.ArchivePageSize)

	e := echo.New()
	e.HideBanner = true
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	checker := health.NewChecker(dbInstance, redisClient, cfg.Version)
	checker.RegisterRoutes(e)

	v1 := e.Group("/api/v1")
	resolutionroutes.NewHandler(resolverSvc, logger).RegisterRoutes(v1)
	unresolvedroutes.NewHandler(unresolved, logger).RegisterRoutes(v1)
	archiveroutes.NewHandler(archiveSvc, logger).RegisterRoutes(v1)
	valuesroutes.NewHandler(bundles, guard, logger).RegisterRoutes(v1)

	checker.SetReady(true)

	return &App{
		Echo:     e,
		Logger:   logger,
		Health:   checker,
		Archive:  archiveSvc,
		cfg:      cfg,
		db:       db,
		redis:    redisClient,
		producer: producer,
		tracer:   tracerProvider,
	}, nil
}

func newSpanExporter(ctx context.Context, cfg config.Config) (sdktrace.SpanExporter, error) {
	if cfg.TracingExporter == "console" {
		return &exporters.ConsoleExporter{}, nil
	}
	return exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
		Endpoint: cfg.OTLPEndpoint,
		Protocol: cfg.OTLPProtocol,
		Insecure: cfg.OTLPInsecure,
		Timeout:  time.Duration(cfg.OTLPTimeout) * time.Millisecond,
	})
}

// Start serves HTTP on the configured port, blocking until shutdown
func (a *App) Start() error {
	return a.Echo.Start(fmt.Sprintf(":%d", a.cfg.Port))
}

// Close tears down the app's connections
func (a *App) Close() {
	a.Health.SetReady(false)
	if err := a.producer.Close(); err != nil {
		a.Logger.WithError(err).Warn("Failed to close Kafka producer")
	}
	if err := a.redis.Close(); err != nil {
		a.Logger.WithError(err).Warn("Failed to close Redis client")
	}
	if err := a.db.Close(); err != nil {
		a.Logger.WithError(err).Warn("Failed to close database")
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(context.Background()); err != nil {
			a.Logger.WithError(err).Warn("Failed to shut down tracer provider")
		}
	}
}
