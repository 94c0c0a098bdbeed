// Package store selects and opens the result store backend named by the
// database configuration.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/natijti/internal/config"
	"github.com/JonMunkholm/natijti/internal/core"
	"github.com/JonMunkholm/natijti/internal/store/memory"
	"github.com/JonMunkholm/natijti/internal/store/postgres"
	"github.com/JonMunkholm/natijti/internal/store/sqlite"
)

// Backend is a core.Store that also accepts administrative writes.
type Backend interface {
	core.Store
	CreateSession(ctx context.Context, sess *core.ExamSession) error
	AddReference(ctx context.Context, kind core.RefKind, e *core.RefEntry) error
}

type migrator interface {
	Migrate(ctx context.Context) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

var (
	_ Backend = (*postgres.Store)(nil)
	_ Backend = (*sqlite.Store)(nil)
	_ Backend = (*memory.Store)(nil)
)

// Open connects to the configured backend. With cfg.Migrate set the schema
// is applied before returning.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Backend, error) {
	var (
		b   Backend
		err error
	)
	switch strings.ToLower(cfg.Driver) {
	case "postgres":
		b, err = postgres.Open(ctx, postgres.PoolConfig{
			URL:             cfg.URL,
			MaxConns:        cfg.MaxConns,
			MinConns:        cfg.MinConns,
			MaxConnLifetime: cfg.MaxConnLifetime,
			MaxConnIdleTime: cfg.MaxConnIdleTime,
		})
	case "sqlite":
		b, err = sqlite.Open(ctx, cfg.URL)
	case "memory":
		b = memory.New()
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Migrate {
		if err := Migrate(ctx, b); err != nil {
			_ = b.Close()
			return nil, err
		}
	}
	return b, nil
}

// Migrate applies the backend's schema. Backends without one are left alone.
func Migrate(ctx context.Context, b Backend) error {
	if m, ok := b.(migrator); ok {
		return m.Migrate(ctx)
	}
	return nil
}

// Ping checks the backend is reachable. Backends with no connection always
// report healthy.
func Ping(ctx context.Context, b Backend) error {
	if p, ok := b.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
