package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/quernstone/portcullis/internal/core"
)

// redisKeyPrefix namespaces principal records in Redis.
const redisKeyPrefix = "principal:"

// Redis reads principal records stored as JSON under principal:<id>.
// It suits deployments where an external system provisions accounts.
type Redis struct {
	client *redis.Client
}

var _ core.Directory = (*Redis)(nil)

// RedisConfig carries the connection options for a Redis directory.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NewRedis connects to Redis and verifies the connection with a ping.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Redis{client: client}, nil
}

// FindByID translates redis.Nil into the directory miss sentinel; every
// other failure surfaces as an ordinary (transient) lookup error.
func (r *Redis) FindByID(ctx context.Context, id string) (*core.Principal, error) {
	raw, err := r.client.Get(ctx, redisKeyPrefix+id).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, core.ErrPrincipalNotFound
	case err != nil:
		return nil, fmt.Errorf("fetching principal %q: %w", id, err)
	}

	var p core.Principal
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decoding principal %q: %w", id, err)
	}
	if p.ID == "" {
		p.ID = id
	}
	return &p, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
