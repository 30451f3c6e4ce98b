package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/redis/go-redis/v9"

	"merchant-onboarding/internal/common/config"
	"merchant-onboarding/internal/common/logger"
)

// Backends holds whichever storage backends are enabled and reachable. A nil
// field means the repository runs without it.
type Backends struct {
	DB     *sql.DB
	Cache  *redis.Client
	Search *ElasticsearchClient
}

// ConnectOptions tunes how hard Connect tries Postgres before giving up.
type ConnectOptions struct {
	PostgresAttempts int
	PostgresBackoff  time.Duration
}

// Connect opens every enabled backend. An unreachable backend is logged and
// left nil; Connect itself never fails.
func Connect(ctx context.Context, cfg config.DatabaseConfig, opts ConnectOptions, log logger.Logger) *Backends {
	log = log.WithFields(map[string]interface{}{"component": "database"})
	b := &Backends{}

	if cfg.Postgres.Enabled {
		db, err := openPostgresWithRetry(ctx, cfg.Postgres, opts, log)
		if err != nil {
			log.Warn("postgres unavailable, applications will be kept in memory", map[string]interface{}{"error": err.Error()})
		} else {
			b.DB = db
			log.Info("postgres connected", map[string]interface{}{"database": cfg.Postgres.Database})
		}
	}

	if cfg.Redis.Enabled {
		rdb, err := OpenRedis(ctx, cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, status cache disabled", map[string]interface{}{"error": err.Error()})
		} else {
			b.Cache = rdb
			log.Info("redis connected", map[string]interface{}{"address": cfg.Redis.Address})
		}
	}

	if cfg.Elasticsearch.Enabled {
		es, err := NewElasticsearch(cfg.Elasticsearch)
		if err == nil {
			err = es.Ping(ctx)
		}
		if err != nil {
			log.Warn("elasticsearch unavailable, search indexing disabled", map[string]interface{}{"error": err.Error()})
		} else {
			b.Search = es
			log.Info("elasticsearch connected", map[string]interface{}{"index": cfg.Elasticsearch.Index})
		}
	}

	return b
}

func openPostgresWithRetry(ctx context.Context, cfg config.PostgresConfig, opts ConnectOptions, log logger.Logger) (*sql.DB, error) {
	attempts := opts.PostgresAttempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := opts.PostgresBackoff

	var lastErr error
	for i := 1; i <= attempts; i++ {
		db, err := OpenPostgres(ctx, cfg)
		if err == nil {
			return db, nil
		}
		lastErr = err
		if i == attempts {
			break
		}
		log.Warn("postgres connection failed, retrying", map[string]interface{}{
			"attempt":     i,
			"maxAttempts": attempts,
			"nextRetryIn": delay.String(),
		})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		delay *= 2
	}
	return nil, lastErr
}

// Close releases every open backend.
func (b *Backends) Close() {
	if b.DB != nil {
		b.DB.Close()
	}
	if b.Cache != nil {
		b.Cache.Close()
	}
}
