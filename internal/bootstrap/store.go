package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/roomi-app/roomi-backend/config"
	"github.com/roomi-app/roomi-backend/internal/projects/repository"
)

// Stores holds the project store and the connection behind it.
type Stores struct {
	Projects repository.Store
	DB       *pgxpool.Pool
	Redis    *redis.Client
}

// OpenStores connects the backend selected by STORE_BACKEND.
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	switch cfg.Store.Backend {
	case config.StoreRedis:
		rdb, err := OpenRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return &Stores{Projects: repository.NewRedisStore(rdb), Redis: rdb}, nil

	case config.StorePostgres:
		pool, err := OpenDB(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		pg := repository.NewPostgresStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("db schema: %w", err)
		}
		return &Stores{Projects: pg, DB: pool}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

func (s *Stores) Close() {
	if s.Redis != nil {
		s.Redis.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
