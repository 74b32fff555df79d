package directory

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"outsy/internal/config"
	"outsy/internal/db"
)

// Open builds the backend named by cfg.DirectoryBackend. The returned close
// function releases its connections.
func Open(ctx context.Context, cfg config.Config, logger *zap.SugaredLogger) (Service, func(), error) {
	switch cfg.DirectoryBackend {
	case config.BackendMemory:
		logger.Infow("directory backend ready", "backend", cfg.DirectoryBackend)
		return NewMemory(), func() {}, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		logger.Infow("directory backend ready", "backend", cfg.DirectoryBackend, "addr", cfg.RedisAddr)
		return NewRedis(client), func() { _ = client.Close() }, nil

	case config.BackendPostgres:
		pool, err := db.New(cfg.PostgresURL, cfg.DBMaxConns, cfg.DBMaxIdleTime)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		pg := NewPostgres(pool, cfg.DirectoryPollInterval)
		if err := pg.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Infow("directory backend ready", "backend", cfg.DirectoryBackend, "poll_interval", cfg.DirectoryPollInterval)
		return pg, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown directory backend %q", cfg.DirectoryBackend)
	}
}
