// Package datasource defines where raw extract bytes come from.
package datasource

import (
	"context"
	"io"
	"time"
)

// Source opens a stream of raw bytes for one dataset.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Dated is implemented by sources that know when their data last changed.
// The monitor uses it for freshness checks.
type Dated interface {
	LastModified(ctx context.Context) (time.Time, error)
}
