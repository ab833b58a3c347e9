package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"ice-route-service/internal/adapters/cache"
	"ice-route-service/internal/adapters/distance"
	"ice-route-service/internal/adapters/repositories"
	"ice-route-service/internal/adapters/solver"
	"ice-route-service/internal/adapters/telemetry"
	"ice-route-service/internal/api"
	"ice-route-service/internal/config"
	"ice-route-service/internal/platform/db"
	"ice-route-service/internal/platform/tracing"
	"ice-route-service/internal/ports"
	"ice-route-service/internal/services"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// main is the application composition root.
// It wires concrete adapters (Postgres or memory, Redis, ORS, Kafka) behind
// ports and starts the HTTP server.
func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "err", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ExporterURL: cfg.OTELExporterURL,
		ServiceName: cfg.OTELServiceName,
		SampleRate:  cfg.OTELSampleRate,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing shutdown failed", "err", err)
		}
	}()

	st, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	oracleOpts := []services.OracleOption{
		services.WithLiveTimeout(cfg.LiveTimeout),
		services.WithCacheBucket(cfg.DistanceCacheBucket),
		services.WithMatrixBatchSize(cfg.MatrixBatchSize),
		services.WithAverageSpeedMPH(cfg.AverageSpeedMPH),
		services.WithOracleLogger(logger),
	}
	if st.geocodes != nil {
		oracleOpts = append(oracleOpts, services.WithGeocodeCache(st.geocodes))
	}
	if st.distances != nil {
		oracleOpts = append(oracleOpts, services.WithDistanceCache(st.distances))
	}
	if cfg.ORSAPIKey != "" {
		provider, err := distance.NewORSMappingProvider(cfg.ORSAPIKey, distance.WithBaseURL(cfg.ORSBaseURL))
		if err != nil {
			return err
		}
		oracleOpts = append(oracleOpts, services.WithMappingProvider(provider))
		logger.Info("live mapping provider enabled", "base_url", cfg.ORSBaseURL)
	} else {
		logger.Warn("ORS_API_KEY not set, distances use local estimates")
	}
	oracle := services.NewOracle(oracleOpts...)

	builderOpts := []services.RouteBuilderOption{services.WithBuilderLogger(logger)}
	if cfg.SolverEnabled {
		builderOpts = append(builderOpts, services.WithSolver(solver.NewGuidedLocalSearch(), cfg.SolverTimeLimit))
	}
	builder := services.NewRouteBuilder(oracle, builderOpts...)

	planner := services.NewPlanner(st.repos, oracle, builder,
		services.WithUnitsPerCapacity(cfg.UnitsPerCapacity),
		services.WithPlannerLogger(logger),
	)
	lifecycle := services.NewLifecycle(st.repos.Routes, st.repos.Orders, oracle,
		services.WithMinutesPerStop(cfg.AverageMinutesPerStop),
		services.WithLifecycleLogger(logger),
	)

	if len(cfg.KafkaBrokers) > 0 {
		consumer, err := telemetry.NewKafkaConsumer(telemetry.Config{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTelemetryTopic,
			Group:   cfg.KafkaGroup,
		}, lifecycle, logger)
		if err != nil {
			return err
		}
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx); err != nil {
				logger.Error("telemetry consumer failed", "err", err)
			}
		}()
	}

	// Timeouts are tuned for cold-cache route planning (external API latency
	// plus the solver time limit).
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(api.Deps{Planner: planner, Lifecycle: lifecycle, Logger: logger}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
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

	logger.Info("shutting down server")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

type storage struct {
	repos     services.Repositories
	geocodes  ports.GeocodeCache
	distances ports.DistanceCache
	closers   []func() error
}

func (s *storage) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

// openStorage selects Postgres when DATABASE_URL is set and the seeded
// in-memory store otherwise. Redis, when configured, replaces the SQL
// distance cache.
func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (*storage, error) {
	st := &storage{}

	if cfg.DatabaseURL != "" {
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, conn.Close)

		n, err := db.Migrate(ctx, conn)
		if err != nil {
			st.close()
			return nil, err
		}
		logger.Info("database ready", "migrations_applied", n)

		st.repos = postgresRepos(conn)
		st.geocodes = cache.NewSQLGeocodeCache(conn, cache.WithGeocodeMaxAge(cfg.GeocodeCacheTTL))
		st.distances = cache.NewSQLDistanceCache(conn)
	} else {
		seed, err := repositories.LoadSeed(cfg.SeedPath)
		if err != nil {
			return nil, err
		}
		mem := repositories.NewMemoryStoreFromSeed(seed)
		st.repos = services.Repositories{Depots: mem, Vehicles: mem, Customers: mem, Orders: mem, Routes: mem}
		logger.Warn("DATABASE_URL not set, using in-memory store", "seed", cfg.SeedPath)
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			st.close()
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			st.close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		st.closers = append(st.closers, client.Close)
		st.distances = cache.NewRedisDistanceCache(client, cfg.DistanceCacheTTL)
		logger.Info("redis distance cache enabled")
	}

	return st, nil
}

func postgresRepos(conn *sql.DB) services.Repositories {
	fleet := repositories.NewPostgresFleetRepository(conn)
	return services.Repositories{
		Depots:    fleet,
		Vehicles:  fleet,
		Customers: fleet,
		Orders:    repositories.NewPostgresOrderRepository(conn),
		Routes:    repositories.NewPostgresRouteRepository(conn),
	}
}
