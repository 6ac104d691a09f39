// Package csvfile is a storage backend that writes each table to
// <dir>/output_<table>_<YYYYMMDD>.csv. It is the default sink and needs no
// database.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"cyberetl/internal/storage"
)

// nowFn stamps the output file name; tests replace it.
var nowFn = time.Now

// FileName returns the output name for table on day.
func FileName(table string, day time.Time) string {
	base := strings.NewReplacer(".", "_", "/", "_", string(os.PathSeparator), "_").Replace(table)
	return fmt.Sprintf("output_%s_%s.csv", base, day.Format("20060102"))
}

// Writer appends rows to one CSV file. The header is written with the first
// batch, so an empty dataset produces no file.
type Writer struct {
	mu     sync.Mutex
	path   string
	f      *os.File
	w      *csv.Writer
	header []string
}

// Open prepares a Writer for table under dir, creating dir if needed.
func Open(dir, table string) (*Writer, error) {
	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("csvfile: table must not be empty")
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("csvfile: mkdir %s: %w", dir, err)
	}
	return &Writer{path: filepath.Join(dir, FileName(table, nowFn()))}, nil
}

// Path is the file the writer targets.
func (w *Writer) Path() string { return w.path }

// CopyFrom writes rows aligned to columns. Later batches must carry the
// same columns as the first.
func (w *Writer) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		f, err := os.Create(w.path)
		if err != nil {
			return 0, fmt.Errorf("csvfile: create %s: %w", w.path, err)
		}
		w.f = f
		w.w = csv.NewWriter(f)
		w.header = append([]string(nil), columns...)
		if err := w.w.Write(w.header); err != nil {
			return 0, fmt.Errorf("csvfile: write header: %w", err)
		}
	} else if !sameColumns(w.header, columns) {
		return 0, fmt.Errorf("csvfile: columns %v differ from header %v", columns, w.header)
	}

	rec := make([]string, len(columns))
	for i, row := range rows {
		if len(row) != len(columns) {
			return int64(i), fmt.Errorf("csvfile: row %d has %d values for %d columns", i, len(row), len(columns))
		}
		for j, v := range row {
			rec[j] = formatValue(v)
		}
		if err := w.w.Write(rec); err != nil {
			return int64(i), fmt.Errorf("csvfile: write row %d: %w", i, err)
		}
	}
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return 0, fmt.Errorf("csvfile: flush: %w", err)
	}
	return int64(len(rows)), nil
}

// Exec is a no-op; a CSV file has no schema to create.
func (w *Writer) Exec(context.Context, string) error { return nil }

// Close flushes and closes the file.
func (w *Writer) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return
	}
	w.w.Flush()
	_ = w.f.Close()
	w.f = nil
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format("2006-01-02")
		}
		return t.Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func init() {
	storage.Register("csv", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return Open(cfg.Dir, cfg.Table)
	})
}
