package sqlite

import (
	"context"

	"cyberetl/internal/dataset"
	"cyberetl/internal/ddl"
	"cyberetl/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

// wrappedRepo adapts *Repository to storage.Repository, closing the database
// through closeFn.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

var _ storage.Repository = (*wrappedRepo)(nil)

// Dialect renders SQLite DDL. Booleans are stored as 0/1 integers and
// timestamps as text.
var Dialect = ddl.Dialect{
	Name:  "sqlite",
	Quote: ddl.DoubleQuote,
	Type: func(k dataset.Kind) string {
		switch k {
		case dataset.KindInteger, dataset.KindBoolean:
			return "INTEGER"
		case dataset.KindFloat:
			return "REAL"
		default:
			return "TEXT"
		}
	},
}

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
	storage.RegisterDDL("sqlite", Dialect)
}
