// Package state persists the per-item processing records that make the
// pipeline idempotent across runs.
package state

import (
	"context"
	"fmt"
	"time"

	"harvester/internal/config"
	"harvester/internal/model"
)

// Store keeps one ProcessedRecord per source item id.
type Store interface {
	// Get returns the record for nttNo, or nil and no error when absent.
	Get(ctx context.Context, nttNo string) (*model.ProcessedRecord, error)
	// Put upserts the record for nttNo.
	Put(ctx context.Context, nttNo string, rec model.ProcessedRecord) error
	Close() error
}

// Open builds the Store selected by cfg.Backend.
func Open(cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemory(), nil
	case "redis":
		return NewRedis(RedisConfig{
			Address:  cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Database: cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
			Timeout:  5 * time.Second,
		})
	case "sqlite", "":
		return OpenSQLite(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
