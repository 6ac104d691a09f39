// Package extract builds the dataset collection from the sources configured
// in a pipeline: local files, HTTP downloads and the WRDS stock query.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"cyberetl/internal/config"
	"cyberetl/internal/dataset"
	"cyberetl/internal/datasource"
	"cyberetl/internal/datasource/file"
	"cyberetl/internal/datasource/httpds"
	"cyberetl/internal/extract/wrds"
	"cyberetl/internal/logging"
	csvparser "cyberetl/internal/parser/csv"
	"cyberetl/internal/transformer"
	"cyberetl/internal/transformer/builtin"
)

// Result is the outcome of an extraction.
type Result struct {
	Data dataset.Collection
	// Skipped counts unparseable rows per dataset.
	Skipped map[string]int
	// Modified holds each source's last-change time, when it reports one.
	Modified map[string]time.Time
	// Missing lists optional datasets that could not be extracted.
	Missing []string
}

// StockFetcher is the WRDS query the "wrds" source kind runs.
type StockFetcher interface {
	StockPrices(ctx context.Context, start, end time.Time) (*dataset.Dataset, error)
}

// Function variables used as test seams.
var (
	openSourceFn  = openSource
	connectWRDSFn = func(ctx context.Context, p config.Pipeline, log *slog.Logger) (StockFetcher, func(), error) {
		w := p.Extract.WRDS
		return wrds.Connect(ctx, w.DSN, wrds.Options{
			Table:      w.Table,
			Retries:    w.Retries,
			RetryDelay: time.Duration(w.RetryDelayMS) * time.Millisecond,
			Logger:     log,
		})
	}
	nowFn = time.Now
)

// Load extracts every dataset in p. Up to p.Runtime.Parallelism datasets are
// read at once. A failing optional dataset is logged and skipped; a failing
// required one aborts the extraction.
func Load(ctx context.Context, p config.Pipeline, log *slog.Logger) (*Result, error) {
	log = logging.OrDefault(log)
	res := &Result{
		Data:     dataset.Collection{},
		Skipped:  map[string]int{},
		Modified: map[string]time.Time{},
	}

	var (
		wrdsOnce  sync.Once
		fetcher   StockFetcher
		closeWRDS func()
		wrdsErr   error
	)
	stocks := func(ctx context.Context) (StockFetcher, error) {
		wrdsOnce.Do(func() { fetcher, closeWRDS, wrdsErr = connectWRDSFn(ctx, p, log) })
		return fetcher, wrdsErr
	}
	defer func() {
		if closeWRDS != nil {
			closeWRDS()
			log.Debug("extract: wrds connection closed")
		}
	}()

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.Runtime.Parallelism, 1))
	for _, d := range p.Datasets {
		d := d
		g.Go(func() error {
			start := time.Now()
			out, err := loadOne(gctx, p, d, stocks, log)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if d.Optional && gctx.Err() == nil {
					log.Warn("extract: optional dataset skipped", "dataset", d.Name, "err", err)
					res.Missing = append(res.Missing, d.Name)
					return nil
				}
				return fmt.Errorf("extract: %s: %w", d.Name, err)
			}
			res.Data[d.Name] = out.ds
			if out.skipped > 0 {
				res.Skipped[d.Name] = out.skipped
			}
			if !out.modified.IsZero() {
				res.Modified[d.Name] = out.modified
			}
			log.Info("extract: dataset loaded", "dataset", d.Name, "source", d.Source.Kind,
				"rows", out.ds.Len(), "skipped", out.skipped,
				"elapsed", time.Since(start).Truncate(time.Millisecond))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

type extracted struct {
	ds       *dataset.Dataset
	skipped  int
	modified time.Time
}

func loadOne(
	ctx context.Context,
	p config.Pipeline,
	d config.Dataset,
	stocks func(context.Context) (StockFetcher, error),
	log *slog.Logger,
) (extracted, error) {
	chain, kinds, err := BuildSteps(d.Steps)
	if err != nil {
		return extracted{}, err
	}

	var out extracted
	if d.Source.Kind == "wrds" {
		start, end, err := p.Extract.Window()
		if err != nil {
			return extracted{}, err
		}
		f, err := stocks(ctx)
		if err != nil {
			return extracted{}, err
		}
		if out.ds, err = f.StockPrices(ctx, start, end); err != nil {
			return extracted{}, err
		}
		// The query runs now, so the data is as fresh as the extraction.
		out.modified = nowFn()
	} else {
		src, err := openSourceFn(d, log)
		if err != nil {
			return extracted{}, err
		}
		if out.ds, out.skipped, err = parse(ctx, src, d, log); err != nil {
			return extracted{}, err
		}
		if dated, ok := src.(datasource.Dated); ok {
			if t, err := dated.LastModified(ctx); err == nil {
				out.modified = t
			} else {
				log.Debug("extract: no modification time", "dataset", d.Name, "err", err)
			}
		}
	}
	out.ds.Name = d.Name

	transformer.ApplyTo(out.ds, chain)
	for col, k := range kinds {
		out.ds.SetColumn(col, k)
	}
	return out, nil
}

func parse(ctx context.Context, src datasource.Source, d config.Dataset, log *slog.Logger) (*dataset.Dataset, int, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer rc.Close()
	return csvparser.Parse(rc, d.Name, ParserOptions(d.Parser.Options, log))
}

// ParserOptions maps a dataset's parser options onto the CSV parser.
func ParserOptions(o config.Options, log *slog.Logger) csvparser.Options {
	kinds := map[string]dataset.Kind{}
	for col, typ := range o.StringMap("types") {
		kinds[col] = dataset.ParseKind(typ)
	}
	return csvparser.Options{
		HasHeader:      o.Bool("has_header", true),
		Comma:          o.Rune("comma", ','),
		TrimSpace:      o.Bool("trim_space", true),
		ExpectedFields: o.Int("expected_fields", 0),
		HeaderMap:      o.StringMap("header_map"),
		Kinds:          kinds,
		Logger:         log,
	}
}

func openSource(d config.Dataset, log *slog.Logger) (datasource.Source, error) {
	switch d.Source.Kind {
	case "file":
		return file.NewLocal(d.Source.File.Path), nil
	case "http":
		h := d.Source.HTTP
		c := httpds.NewClient(httpds.Config{
			Timeout:            time.Duration(h.TimeoutSeconds) * time.Second,
			MaxRetries:         h.MaxRetries,
			InsecureSkipVerify: h.InsecureSkipVerify,
			Logger:             log,
		})
		headers := http.Header{}
		for k, v := range h.Headers {
			headers.Set(k, v)
		}
		return httpds.NewSource(c, h.URL, headers), nil
	default:
		return nil, fmt.Errorf("unsupported source.kind=%s", d.Source.Kind)
	}
}

// BuildSteps turns configured steps into a transform chain. It also returns
// the column kinds coerce steps produce, so the dataset can declare them.
func BuildSteps(steps []config.Step) (transformer.Chain, map[string]dataset.Kind, error) {
	c := transformer.Chain{}
	kinds := map[string]dataset.Kind{}
	for _, s := range steps {
		switch s.Kind {
		case "normalize":
			c = append(c, builtin.Normalize{BlankToNil: s.Options.Bool("blank_to_nil", false)})
		case "upper":
			c = append(c, builtin.Upper{Fields: s.Options.StringSlice("fields")})
		case "coerce":
			co := builtin.Coerce{
				Types:  s.Options.StringMap("types"),
				Layout: s.Options.String("layout", ""),
				Keep:   s.Options.Bool("keep", false),
			}
			for col, k := range co.Kinds() {
				kinds[col] = k
			}
			c = append(c, co)
		case "dedupe":
			c = append(c, builtin.DeDup{
				Keys:         s.Options.StringSlice("keys"),
				Policy:       s.Options.String("policy", "keep-first"),
				PreferFields: s.Options.StringSlice("prefer_fields"),
			})
		case "require":
			c = append(c, builtin.Require{Fields: s.Options.StringSlice("fields")})
		default:
			return nil, nil, fmt.Errorf("unsupported step.kind=%s", s.Kind)
		}
	}
	return c, kinds, nil
}
