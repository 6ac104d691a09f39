// Package storage is the backend-agnostic load layer. Backends register a
// Factory under a kind ("csv", "postgres", "sqlite", "mssql") from init, and
// callers open one Repository per destination table through New.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Repository bulk-loads rows into one destination table.
type Repository interface {
	// CopyFrom inserts rows aligned to columns and reports how many landed.
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)
	// Exec runs a statement, typically DDL. File sinks ignore it.
	Exec(ctx context.Context, sql string) error
	Close()
}

// Config is what a Factory needs to open a Repository.
type Config struct {
	Kind string
	DSN  string
	// Dir is the output directory for file sinks.
	Dir string
	// Table is the destination, optionally schema-qualified.
	Table   string
	Columns []string
	Logger  *slog.Logger
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register adds or replaces the factory for kind.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = f
}

// New opens a Repository with the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: unsupported kind %q (registered: %v)", cfg.Kind, ListKinds())
	}
	repo, err := f(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s %s: %w", cfg.Kind, cfg.Table, err)
	}
	return repo, nil
}

// ListKinds returns the registered kinds, sorted.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
