// Package wrds extracts daily stock prices from the WRDS PostgreSQL service
// (CRSP daily stock file) with pgx.
package wrds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"cyberetl/internal/dataset"
	"cyberetl/internal/logging"
)

// DefaultTable is the CRSP daily stock file.
const DefaultTable = "crsp.dsf"

// Querier is the part of *pgxpool.Pool the extractor uses.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Options tunes an Extractor. Zero values take defaults.
type Options struct {
	Table string
	// Retries is the number of attempts after the first (default 3).
	Retries int
	// RetryDelay is the first backoff, doubled per attempt (default 1s).
	RetryDelay time.Duration
	Logger     *slog.Logger
}

// Extractor runs the stock price query.
type Extractor struct {
	q          Querier
	table      string
	retries    int
	retryDelay time.Duration
	log        *slog.Logger

	// wait blocks for d or until ctx is done; replaced in tests.
	wait func(ctx context.Context, d time.Duration) error
}

// New returns an Extractor over q.
func New(q Querier, opt Options) *Extractor {
	if opt.Table == "" {
		opt.Table = DefaultTable
	}
	if opt.Retries <= 0 {
		opt.Retries = 3
	}
	if opt.RetryDelay <= 0 {
		opt.RetryDelay = time.Second
	}
	return &Extractor{
		q:          q,
		table:      opt.Table,
		retries:    opt.Retries,
		retryDelay: opt.RetryDelay,
		log:        logging.OrDefault(opt.Logger),
		wait:       waitContext,
	}
}

// Connect opens a pool for dsn and returns an Extractor plus a Close
// function.
func Connect(ctx context.Context, dsn string, opt Options) (*Extractor, func(), error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, nil, fmt.Errorf("wrds: dsn must not be empty")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("wrds: pgxpool: %w", err)
	}
	return New(pool, opt), pool.Close, nil
}

// Query returns the SQL for the configured table. ABS(prc) undoes CRSP's
// negative bid/ask midpoint convention.
func (e *Extractor) Query() string {
	ident := pgx.Identifier(strings.Split(e.table, ".")).Sanitize()
	return "SELECT date, permno AS company_id, ABS(prc) AS closing_price, vol AS trading_volume, ret " +
		"FROM " + ident + " WHERE date BETWEEN $1 AND $2"
}

// StockPrices fetches prices between start and end inclusive. The "ret"
// column is dropped; returns are recomputed downstream from closing prices.
func (e *Extractor) StockPrices(ctx context.Context, start, end time.Time) (*dataset.Dataset, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("wrds: end %s before start %s", end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	var lastErr error
	for attempt := 0; attempt <= e.retries; attempt++ {
		ds, err := e.fetch(ctx, start, end)
		if err == nil {
			e.log.Info("wrds: extracted", "table", e.table, "rows", ds.Len(),
				"start", start.Format(time.DateOnly), "end", end.Format(time.DateOnly))
			return ds, nil
		}
		lastErr = err
		if ctx.Err() != nil || !transient(err) || attempt == e.retries {
			break
		}
		d := e.retryDelay << attempt
		e.log.Warn("wrds: retrying", "attempt", attempt+1, "of", e.retries+1, "backoff", d, "err", err)
		if werr := e.wait(ctx, d); werr != nil {
			return nil, werr
		}
	}
	return nil, fmt.Errorf("wrds: stock prices: %w", lastErr)
}

func (e *Extractor) fetch(ctx context.Context, start, end time.Time) (*dataset.Dataset, error) {
	rows, err := e.q.Query(ctx, e.Query(), start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ds := dataset.New("stock_prices",
		dataset.Column{Name: "company_id", Kind: dataset.KindInteger},
		dataset.Column{Name: "date", Kind: dataset.KindTimestamp},
		dataset.Column{Name: "closing_price", Kind: dataset.KindFloat},
		dataset.Column{Name: "trading_volume", Kind: dataset.KindInteger},
	)
	fields := rows.FieldDescriptions()
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		rec := make(dataset.Record, len(vals))
		for i, v := range vals {
			name := fields[i].Name
			if name == "ret" {
				continue
			}
			rec[name] = normalize(v)
		}
		ds.Append(rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ds, nil
}

// normalize flattens driver types that the dataset helpers do not know.
func normalize(v any) any {
	switch t := v.(type) {
	case int32:
		return int64(t)
	case float32:
		return float64(t)
	case pgtype.Numeric:
		// NUMERIC columns (prc, vol on some WRDS tables) come back undecoded.
		f, err := t.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	}
	return v
}

// transient reports whether err is worth retrying: connection failures and
// server-side errors of class 08 (connection) or 57 (operator intervention).
func transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		code := pgErr.Code
		return strings.HasPrefix(code, "08") || strings.HasPrefix(code, "57") || strings.HasPrefix(code, "53")
	}
	return true
}

func waitContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
