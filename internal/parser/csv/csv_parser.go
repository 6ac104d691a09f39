// Package csv reads delimited text into a dataset. Rows that do not parse or
// that have the wrong width are skipped and counted rather than failing the
// whole file, since vendor extracts (CRSP dumps, incident trackers) routinely
// carry a handful of broken lines.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"cyberetl/internal/dataset"
	"cyberetl/internal/logging"
)

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// DefaultSkipLogLimit bounds how many skipped rows are logged individually.
const DefaultSkipLogLimit = 100

// Options configures Parse. The zero value reads a comma-separated file
// without a header.
type Options struct {
	// HasHeader indicates whether the first row contains column headers.
	HasHeader bool

	// Comma is the field delimiter; ',' when zero.
	Comma rune

	// TrimSpace trims surrounding whitespace from every cell.
	TrimSpace bool

	// ExpectedFields, when > 0, enforces a fixed width. With a header the
	// header width is enforced regardless.
	ExpectedFields int

	// HeaderMap maps raw header text to column names. Unmapped headers are
	// lower-cased with spaces replaced by underscores.
	HeaderMap map[string]string

	// Kinds declares column kinds on the resulting dataset.
	Kinds map[string]dataset.Kind

	// SkipLogLimit caps per-row skip logging; DefaultSkipLogLimit when zero.
	SkipLogLimit int

	Logger *slog.Logger
}

// Parser binds Options to a reusable parser value. It is not safe for
// concurrent use.
type Parser struct{ opt Options }

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

// Parse reads r into a dataset called name.
func (p *Parser) Parse(r io.Reader, name string) (*dataset.Dataset, int, error) {
	return Parse(r, name, p.opt)
}

// Parse consumes CSV from r and returns the dataset plus the number of rows
// skipped for malformed quoting or width mismatches. Empty cells become nil.
func Parse(r io.Reader, name string, opt Options) (*dataset.Dataset, int, error) {
	log := logging.OrDefault(opt.Logger)
	limit := opt.SkipLogLimit
	if limit <= 0 {
		limit = DefaultSkipLogLimit
	}

	cr := csv.NewReader(r)
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	// Width is enforced below so a bad row is skipped, not fatal.
	cr.FieldsPerRecord = -1

	var headers []string
	if opt.HasHeader {
		h, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, 0, fmt.Errorf("csv: %s: empty input", name)
			}
			return nil, 0, fmt.Errorf("csv: %s: read header: %w", name, err)
		}
		headers = NormalizeHeaders(h, opt.HeaderMap)
		if dup := firstDuplicate(headers); dup != "" {
			return nil, 0, fmt.Errorf("csv: %s: duplicate column %q", name, dup)
		}
	} else if opt.ExpectedFields > 0 {
		headers = make([]string, opt.ExpectedFields)
		for i := range headers {
			headers[i] = fmt.Sprintf("col_%d", i)
		}
	}

	width := len(headers)
	if width == 0 {
		width = opt.ExpectedFields
	}

	ds := dataset.New(name)
	for _, h := range headers {
		ds.SetColumn(h, opt.Kinds[h])
	}

	skipped := 0
	skip := func(line int, reason string) {
		if skipped < limit {
			log.Warn("csv: skipping row", "dataset", name, "line", line, "reason", reason)
		}
		skipped++
	}

	for line := 1; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return nil, skipped, fmt.Errorf("csv: %s: read: %w", name, err)
			}
			skip(line, err.Error())
			continue
		}
		if width > 0 && len(row) != width {
			skip(line, fmt.Sprintf("expected %d fields, got %d", width, len(row)))
			continue
		}

		rec := make(dataset.Record, len(row))
		for i, val := range row {
			if opt.TrimSpace {
				val = strings.TrimSpace(val)
			}
			rec[keyFor(i, headers)] = emptyToNil(val)
		}
		ds.Append(rec)
	}
	if skipped > 0 {
		log.Warn("csv: rows skipped", "dataset", name, "skipped", skipped, "kept", ds.Len())
	}
	return ds, skipped, nil
}

// keyFor returns the column key for index idx, using headers when available,
// otherwise synthesizing a "col_N" name.
func keyFor(idx int, headers []string) string {
	if idx < len(headers) && headers[idx] != "" {
		return headers[idx]
	}
	return fmt.Sprintf("col_%d", idx)
}

func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// NormalizeHeaders maps raw header cells to column names via headerMap, or
// by lower-casing and replacing spaces with underscores. A BOM on the first
// cell is dropped.
func NormalizeHeaders(h []string, headerMap map[string]string) []string {
	res := make([]string, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if i == 0 {
			c = strings.TrimPrefix(c, utf8BOM)
		}
		if m, ok := headerMap[c]; ok {
			res[i] = m
			continue
		}
		res[i] = strings.ReplaceAll(strings.ToLower(c), " ", "_")
	}
	return res
}

func firstDuplicate(cols []string) string {
	seen := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			return c
		}
		seen[c] = struct{}{}
	}
	return ""
}
