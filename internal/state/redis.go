package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"harvester/internal/model"
)

// RedisConfig configures the Redis store.
type RedisConfig struct {
	Address  string
	Password string
	Database int
	// Prefix is prepended to every key (e.g. "harvester:processed:").
	Prefix  string
	Timeout time.Duration
}

// Redis stores each record as a JSON string under Prefix+nttNo.
type Redis struct {
	cfg    RedisConfig
	client *redis.Client
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.Database,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Redis{cfg: cfg, client: client}, nil
}

func (r *Redis) key(nttNo string) string {
	return r.cfg.Prefix + nttNo
}

func (r *Redis) Get(ctx context.Context, nttNo string) (*model.ProcessedRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.key(nttNo)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load record from Redis: %w", err)
	}

	var rec model.ProcessedRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &rec, nil
}

func (r *Redis) Put(ctx context.Context, nttNo string, rec model.ProcessedRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := r.client.Set(ctx, r.key(nttNo), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save record to Redis: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
