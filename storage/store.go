// Package storage persists encoded engine state under a key.
package storage

import (
	"context"
	"fmt"

	"github.com/pthm-cable/tetrevo/config"
)

// Store saves and loads opaque state payloads.
type Store interface {
	Init(ctx context.Context) error
	Save(ctx context.Context, key string, data []byte) error
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
}

// NewStore builds the store named by cfg.Kind. The caller runs Init.
func NewStore(cfg config.StorageConfig) (Store, error) {
	switch cfg.Kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(cfg.Path), nil
	case "http":
		return NewHTTPStore(cfg.URL, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Kind)
	}
}

// CloseIfSupported closes stores that hold resources.
func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
