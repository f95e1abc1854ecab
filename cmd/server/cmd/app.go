package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/Ycseeasy/explore-with-me/internal/config"
	"github.com/Ycseeasy/explore-with-me/internal/domain/participation"
	"github.com/Ycseeasy/explore-with-me/internal/notify"
	"github.com/Ycseeasy/explore-with-me/internal/notify/rabbitmq"
	"github.com/Ycseeasy/explore-with-me/internal/storage"
	"github.com/Ycseeasy/explore-with-me/internal/storage/memory"
	"github.com/Ycseeasy/explore-with-me/internal/storage/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// backend is the opened storage. pool is nil for the memory driver.
type backend struct {
	repo storage.Repository
	pool *pgxpool.Pool
}

func openBackend(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*backend, error) {
	switch cfg.Storage.Driver {
	case config.StorageMemory:
		logger.Warn().Msg("using in-memory storage, data is lost on restart")
		return &backend{repo: memory.New(memory.WithLockTimeout(cfg.Storage.LockTimeout))}, nil
	case config.StoragePostgres:
		pool, err := postgres.Connect(ctx, postgres.PoolConfig{
			URL:      cfg.Database.URL,
			MaxConns: int32(cfg.Database.MaxConnections),
			MinConns: int32(cfg.Database.MinConnections),
		})
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		repo, err := postgres.NewRepository(pool, postgres.WithLockTimeout(cfg.Storage.LockTimeout))
		if err != nil {
			pool.Close()
			return nil, err
		}
		return &backend{repo: repo, pool: pool}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func (b *backend) Close() {
	b.repo.Close()
}

func (b *backend) reconciler(cfg config.Config, logger zerolog.Logger) *participation.Reconciler {
	return participation.NewReconciler(b.repo, logger, cfg.Jobs.ReconcileWorkers, func(err error) bool {
		return errors.Is(err, storage.ErrContention)
	})
}

// publisher is the notification sink with its close hook.
type publisher struct {
	notify.Publisher
	close func() error
}

// openPublisher dials RabbitMQ when AMQP_URL is set. Without it, or when the
// broker is unreachable, notifications are dropped.
func openPublisher(cfg config.Config, logger zerolog.Logger) publisher {
	if cfg.AMQP.URL == "" {
		logger.Info().Msg("AMQP_URL not set, notifications disabled")
		return publisher{Publisher: notify.Nop{}, close: func() error { return nil }}
	}
	p, err := rabbitmq.Dial(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
	if err != nil {
		logger.Error().Err(err).Msg("rabbitmq unavailable, notifications disabled")
		return publisher{Publisher: notify.Nop{}, close: func() error { return nil }}
	}
	logger.Info().Str("exchange", cfg.AMQP.Exchange).Msg("notifications enabled")
	return publisher{Publisher: p, close: p.Close}
}
