package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ycseeasy/explore-with-me/internal/api"
	"github.com/Ycseeasy/explore-with-me/internal/api/handlers"
	"github.com/Ycseeasy/explore-with-me/internal/audit"
	"github.com/Ycseeasy/explore-with-me/internal/auth"
	"github.com/Ycseeasy/explore-with-me/internal/config"
	"github.com/Ycseeasy/explore-with-me/internal/domain/categories"
	"github.com/Ycseeasy/explore-with-me/internal/domain/events"
	"github.com/Ycseeasy/explore-with-me/internal/domain/participation"
	"github.com/Ycseeasy/explore-with-me/internal/domain/users"
	"github.com/Ycseeasy/explore-with-me/internal/idempotency"
	"github.com/Ycseeasy/explore-with-me/internal/jobs"
	"github.com/Ycseeasy/explore-with-me/internal/metrics"
	"github.com/Ycseeasy/explore-with-me/internal/storage"
	"github.com/Ycseeasy/explore-with-me/internal/telemetry"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const dbMetricsInterval = 15 * time.Second

type serveFlags struct {
	host   string
	port   int
	driver string
}

func newServeCommand(global *globalFlags) *cobra.Command {
	flags := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server and begin accepting API requests.

The server will:
- Load configuration from environment variables (or --config file if provided)
- Open PostgreSQL (or in-memory) storage
- Start the river worker that reconciles confirmed request counters
- Publish notifications to RabbitMQ when AMQP_URL is set
- Honour Idempotency-Key on request submission when REDIS_URL is set
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with default configuration (from env vars)
  server serve

  # Start on a specific port with in-memory storage
  server serve --port 9090 --storage memory

  # Start with debug logging
  server serve --log-level debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig()
			if err != nil {
				return err
			}
			flags.apply(&cfg)
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&flags.host, "host", "", "server host address (default: 0.0.0.0)")
	cmd.Flags().IntVar(&flags.port, "port", 0, "server port (default: 8080)")
	cmd.Flags().StringVar(&flags.driver, "storage", "", "storage driver, postgres or memory (default: postgres)")
	return cmd
}

func (f *serveFlags) apply(cfg *config.Config) {
	if f.host != "" {
		cfg.Server.Host = f.host
	}
	if f.port != 0 {
		cfg.Server.Port = f.port
	}
	if f.driver != "" {
		cfg.Storage.Driver = f.driver
	}
}

func runServer(ctx context.Context, cfg config.Config) error {
	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("version", Version).Str("storage", cfg.Storage.Driver).Msg("starting explore-with-me server")

	metrics.Init(Version, GitCommit, BuildDate)

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("tracing init failed: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer be.Close()

	health := handlers.NewHealthChecker(Version, GitCommit)
	if be.pool != nil {
		collector := metrics.NewDBCollector(be.pool)
		go collector.Start(ctx, dbMetricsInterval)
		defer collector.Stop()
		health.AddCheck("database", handlers.PostgresCheck(be.pool)).
			AddCheck("migrations", handlers.MigrationsCheck(be.pool))
	} else {
		health.AddCheck("storage", handlers.PingCheck(be.repo, "storage", false))
	}

	pub := openPublisher(cfg, logger)
	defer func() {
		if err := pub.close(); err != nil {
			logger.Error().Err(err).Msg("notification publisher close error")
		}
	}()

	var idem handlers.IdempotencyStore
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		store := idempotency.NewStore(client, cfg.Redis.IdempotencyTTL)
		idem = store
		health.AddCheck("redis", handlers.PingCheck(store, "redis", true))
		logger.Info().Dur("ttl", cfg.Redis.IdempotencyTTL).Msg("idempotent request submission enabled")
	}

	reconciler := be.reconciler(cfg, logger)
	if cfg.Jobs.Enabled {
		stopJobs, err := startJobs(ctx, cfg, be, reconciler, logger)
		if err != nil {
			return err
		}
		defer stopJobs()
		if be.pool != nil {
			health.AddCheck("job_queue", handlers.JobQueueCheck(be.pool))
		}
	}

	router := api.NewRouter(api.Dependencies{
		Config:      cfg,
		Logger:      logger,
		Events:      events.NewService(be.repo.EventRepository(), be.repo, logger, events.WithPublisher(pub)),
		Submission:  participation.NewSubmissionService(be.repo, be.repo, logger, participation.WithPublisher(pub)),
		Admission:   participation.NewAdmissionEngine(be.repo, logger, participation.WithPublisher(pub)),
		Users:       users.NewService(be.repo.Users(), logger, users.WithRemover(storage.NewUserRemover(be.repo, pub, logger))),
		Categories:  categories.NewService(be.repo.Categories(), logger),
		JWT:         auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.Issuer),
		Idempotency: idem,
		Audit:       audit.NewLogger(logger),
		Health:      health,
		Version:     Version,
		GitCommit:   GitCommit,
		BuildDate:   BuildDate,
	})
	defer router.Close()

	server := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	return gracefulShutdown(server, cfg.Server.ShutdownTimeout, logger)
}

func gracefulShutdown(server *http.Server, timeout time.Duration, logger zerolog.Logger) error {
	logger.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// startJobs runs ledger reconciliation in the background: through river on
// postgres, through a ticker on the memory driver. The returned func stops it.
func startJobs(ctx context.Context, cfg config.Config, be *backend, reconciler *participation.Reconciler, logger zerolog.Logger) (func(), error) {
	if be.pool == nil {
		return startTicker(ctx, cfg.Jobs.ReconcileInterval, reconciler, logger), nil
	}

	workers, err := jobs.NewWorkers(reconciler, logger)
	if err != nil {
		return nil, err
	}
	client, err := jobs.NewClient(be.pool, jobs.ClientOptions{
		Workers:      workers,
		PeriodicJobs: jobs.NewPeriodicJobs(cfg.Jobs.ReconcileInterval),
		Hooks:        []rivertype.Hook{metrics.NewRiverMetricsHook()},
		MaxWorkers:   cfg.Jobs.MaxWorkers,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("river client init failed: %w", err)
	}
	if err := client.Start(ctx); err != nil {
		return nil, fmt.Errorf("river workers failed to start: %w", err)
	}
	logger.Info().Dur("interval", cfg.Jobs.ReconcileInterval).Msg("river background job workers started")
	return func() { stopRiver(client, logger) }, nil
}

func stopRiver(client *river.Client[pgx.Tx], logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Stop(ctx); err != nil {
		logger.Error().Err(err).Msg("river workers shutdown error")
		return
	}
	logger.Info().Msg("river workers stopped")
}

func startTicker(ctx context.Context, interval time.Duration, reconciler *participation.Reconciler, logger zerolog.Logger) func() {
	if interval <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				report, err := reconciler.ReconcileAll(ctx)
				if err != nil {
					logger.Error().Err(err).Msg("ledger reconciliation failed")
					continue
				}
				logger.Info().Int("checked", report.Checked).Int("corrected", report.Corrected).Msg("ledger reconciled")
			}
		}
	}()
	logger.Info().Dur("interval", interval).Msg("in-process ledger reconciliation started")
	return func() {
		cancel()
		<-done
	}
}
