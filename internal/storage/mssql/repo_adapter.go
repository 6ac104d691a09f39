package mssql

import (
	"context"
	"fmt"
	"strings"

	"cyberetl/internal/dataset"
	"cyberetl/internal/ddl"
	"cyberetl/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

var _ storage.Repository = (*wrappedRepo)(nil)

// Dialect renders SQL Server DDL. SQL Server has no CREATE TABLE IF NOT
// EXISTS, so the statement is guarded by OBJECT_ID.
var Dialect = ddl.Dialect{
	Name:  "mssql",
	Quote: msIdent,
	Type: func(k dataset.Kind) string {
		switch k {
		case dataset.KindInteger:
			return "BIGINT"
		case dataset.KindFloat:
			return "FLOAT"
		case dataset.KindBoolean:
			return "BIT"
		case dataset.KindTimestamp:
			return "DATETIME2"
		default:
			return "NVARCHAR(MAX)"
		}
	},
	Wrap: func(quotedFQN, body string) string {
		lit := strings.ReplaceAll(quotedFQN, "'", "''")
		return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\nBEGIN\n%s;\nEND", lit, body)
	},
}

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
	storage.RegisterDDL("mssql", Dialect)
}

// wrappedRepo adapts *Repository to storage.Repository and provides Close.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}
