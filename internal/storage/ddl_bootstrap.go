package storage

import (
	"context"
	"fmt"
	"sync"

	"cyberetl/internal/ddl"
)

var (
	ddlMu       sync.RWMutex
	ddlDialects = map[string]ddl.Dialect{}
)

// RegisterDDL registers the dialect used to create tables for kind. Backends
// without DDL (file sinks) simply do not register one.
func RegisterDDL(kind string, d ddl.Dialect) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlDialects[kind] = d
}

// EnsureTable renders td in kind's dialect and applies it through repo.
func EnsureTable(ctx context.Context, kind string, repo Repository, td ddl.TableDef) error {
	ddlMu.RLock()
	d, ok := ddlDialects[kind]
	ddlMu.RUnlock()
	if !ok {
		return fmt.Errorf("storage: no DDL dialect registered for kind %q", kind)
	}
	stmt, err := d.CreateTable(td)
	if err != nil {
		return err
	}
	if err := repo.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("storage: create %s: %w", td.FQN, err)
	}
	return nil
}

// SupportsDDL reports whether kind registered a dialect.
func SupportsDDL(kind string) bool {
	ddlMu.RLock()
	defer ddlMu.RUnlock()
	_, ok := ddlDialects[kind]
	return ok
}
