package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cyberetl/internal/dataset"
	"cyberetl/internal/logging"
)

// DefaultBatchSize is used when a caller passes a non-positive batch size
// to LoadDataset.
const DefaultBatchSize = 5000

// CopyFn is a backend's bulk insert: it inserts rows aligned to columns and
// returns the number inserted.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadBatches drains rows from in, groups them into batches of batchSize and
// calls copyFn per non-empty batch. It returns the running total and the
// first error. A canceled ctx returns (total, ctx.Err()).
func LoadBatches(
	ctx context.Context,
	log *slog.Logger,
	columns []string,
	in <-chan []any,
	batchSize int,
	copyFn CopyFn,
) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}
	log = logging.OrDefault(log)

	var (
		total   int64
		batches int
		batch   = make([][]any, 0, batchSize)
		start   = time.Now()
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := copyFn(ctx, columns, batch)
		total += n
		batch = batch[:0]
		if err != nil {
			log.Error("loader: copy failed", "batch", batches+1, "inserted", n, "total", total, "err", err)
			return err
		}
		batches++
		log.Debug("loader: batch flushed", "batch", batches, "inserted", n, "total", total,
			"elapsed", time.Since(start).Truncate(time.Millisecond))
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		case row, ok := <-in:
			if !ok {
				if err := flush(); err != nil {
					return total, err
				}
				return total, nil
			}
			batch = append(batch, row)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
}

// LoadDataset streams ds into repo in batches. Values of typed columns are
// converted to their kind so SQL drivers receive int64/float64/bool/time
// rather than CSV strings; values that do not convert are sent unchanged.
func LoadDataset(ctx context.Context, log *slog.Logger, repo Repository, ds *dataset.Dataset, batchSize int) (int64, error) {
	if ds.Empty() {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	columns := ds.ColumnNames()
	kinds := make([]dataset.Kind, len(columns))
	for i, c := range columns {
		kinds[i] = ds.KindOf(c)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	in := make(chan []any, batchSize)
	go func() {
		defer close(in)
		for _, r := range ds.Rows {
			row := make([]any, len(columns))
			for i, c := range columns {
				row[i] = storageValue(r[c], kinds[i])
			}
			select {
			case in <- row:
			case <-ctx.Done():
				return
			}
		}
	}()
	return LoadBatches(ctx, log, columns, in, batchSize, repo.CopyFrom)
}

func storageValue(v any, k dataset.Kind) any {
	if dataset.IsNull(v) {
		return nil
	}
	if k == dataset.KindUnknown {
		return v
	}
	if cv, ok := dataset.Convert(v, k); ok {
		return cv
	}
	return v
}
