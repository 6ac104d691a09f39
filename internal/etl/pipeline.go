// Package etl runs the disclosure-analysis pipeline: extract, transform,
// validate, monitor and load, timing and logging each step.
package etl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"cyberetl/internal/config"
	"cyberetl/internal/dataset"
	"cyberetl/internal/ddl"
	"cyberetl/internal/derive"
	"cyberetl/internal/extract"
	"cyberetl/internal/logging"
	"cyberetl/internal/metrics"
	"cyberetl/internal/monitor"
	"cyberetl/internal/report"
	"cyberetl/internal/schema"
	"cyberetl/internal/storage"
	"cyberetl/internal/validate"
)

// DefaultJob names the run in logs and metrics when config.job is empty.
const DefaultJob = "cyberetl"

// Outcome is what a run produced. Fields are set as far as the run got.
type Outcome struct {
	Data          dataset.Collection
	Report        *report.Report
	MonitorIssues []string
	Stock         *monitor.StockSummary
	Companies     *monitor.CompanySummary
	// Loaded counts rows written per dataset.
	Loaded map[string]int64
}

// Pipeline executes one configured run.
type Pipeline struct {
	Config   config.Pipeline
	Logger   *slog.Logger
	Notifier monitor.Notifier

	// Test seams.
	extractFn       func(ctx context.Context, p config.Pipeline, log *slog.Logger) (*extract.Result, error)
	newRepositoryFn func(ctx context.Context, cfg storage.Config) (storage.Repository, error)
	nowFn           func() time.Time
}

// New returns a Pipeline for cfg. n may be nil, in which case alerts are
// logged only.
func New(cfg config.Pipeline, n monitor.Notifier, log *slog.Logger) *Pipeline {
	return &Pipeline{
		Config:          cfg,
		Logger:          logging.OrDefault(log),
		Notifier:        n,
		extractFn:       extract.Load,
		newRepositoryFn: storage.New,
		nowFn:           time.Now,
	}
}

func (p *Pipeline) job() string {
	if p.Config.Job != "" {
		return p.Config.Job
	}
	return DefaultJob
}

// step runs fn as the named step, recording its duration and outcome.
func (p *Pipeline) step(name string, fn func() error) error {
	start := time.Now()
	p.Logger.Info("etl: step started", "step", name)
	err := fn()
	d := time.Since(start)
	metrics.RecordStep(p.job(), name, err, d)
	if err != nil {
		p.Logger.Error("etl: step failed", "step", name, "elapsed", d.Truncate(time.Millisecond), "err", err)
		return &StepError{Step: name, Err: err}
	}
	p.Logger.Info("etl: step completed", "step", name, "elapsed", d.Truncate(time.Millisecond))
	return nil
}

// Run executes the pipeline. Validation and monitor failures only stop the
// load when validation.fail_on_error is set; otherwise they are logged and
// the data is loaded for review.
func (p *Pipeline) Run(ctx context.Context) (*Outcome, error) {
	start := time.Now()
	out := &Outcome{Loaded: map[string]int64{}}
	var ext *extract.Result

	p.Logger.Info("etl: pipeline started", "job", p.job(), "datasets", len(p.Config.Datasets))

	if err := p.step("extract", func() error {
		var err error
		if ext, err = p.extractFn(ctx, p.Config, p.Logger); err != nil {
			return err
		}
		if len(ext.Data) == 0 {
			return fmt.Errorf("no datasets extracted")
		}
		for name, ds := range ext.Data {
			metrics.RecordRecords(p.job(), name, "extracted", ds.Len())
			metrics.RecordRecords(p.job(), name, "skipped", ext.Skipped[name])
		}
		return nil
	}); err != nil {
		return out, err
	}

	if err := p.step("transform", func() error {
		var err error
		out.Data, err = p.transform(ext.Data)
		return err
	}); err != nil {
		return out, err
	}

	var validationErr error
	if err := p.step("validate", func() error {
		rep, err := p.validate(ctx, out)
		out.Report = rep
		if err != nil {
			return err
		}
		if !rep.Passed() {
			n := len(rep.Errors())
			validationErr = fmt.Errorf("validation FAILED with %d errors: %w", n, ErrDataQuality)
			if p.Config.Validation.FailOnError {
				return validationErr
			}
			p.Logger.Warn("etl: data validation issues detected, review required", "errors", n)
		}
		return nil
	}); err != nil {
		return out, err
	}

	if err := p.step("monitor", func() error {
		out.MonitorIssues = p.monitor(ext, out.Data)
		if len(out.MonitorIssues) == 0 {
			return nil
		}
		if p.Config.Validation.FailOnError {
			return fmt.Errorf("%d monitor issues: %w", len(out.MonitorIssues), ErrDataQuality)
		}
		p.Logger.Warn("etl: monitor issues detected, loading anyway", "issues", len(out.MonitorIssues))
		return nil
	}); err != nil {
		return out, err
	}

	if err := p.step("load", func() error { return p.load(ctx, out) }); err != nil {
		return out, err
	}

	p.Logger.Info("etl: pipeline completed", "job", p.job(),
		"validation", statusOf(out.Report), "clean", validationErr == nil && len(out.MonitorIssues) == 0,
		"elapsed", time.Since(start).Truncate(time.Millisecond))
	return out, nil
}

func statusOf(r *report.Report) report.Status {
	if r == nil {
		return ""
	}
	return r.OverallStatus
}

// transform applies the configured derivations. Input datasets are not
// mutated; derived datasets replace them in the returned collection.
func (p *Pipeline) transform(in dataset.Collection) (dataset.Collection, error) {
	cfg := p.Config.Transform
	out := make(dataset.Collection, len(in)+1)
	for k, v := range in {
		out[k] = v
	}

	if ds := out[schema.StockPrices]; cfg.Returns && ds != nil {
		r, err := derive.CalculateReturns(ds)
		if err != nil {
			return nil, err
		}
		out[schema.StockPrices] = r
		p.Logger.Info("etl: returns calculated", "rows", r.Len())
	}
	if ds := out[schema.Companies]; cfg.CleanCompanies && ds != nil {
		c, err := derive.CleanCompanies(ds)
		if err != nil {
			return nil, err
		}
		p.Logger.Info("etl: companies cleaned", "before", ds.Len(), "after", c.Len())
		out[schema.Companies] = c
	}
	if cm := cfg.CyberMentions; cm != nil && out[schema.SECFilings] != nil {
		field := cm.TextField
		if field == "" {
			field = "filing_text"
		}
		tagged, ok := derive.TagCyberMentions(out[schema.SECFilings], field, derive.NewKeywordMatcher(cm.Keywords...))
		if ok {
			out[schema.SECFilings] = tagged
		} else {
			p.Logger.Warn("etl: filings have no text column, cyber mentions not tagged", "field", field)
		}
	}
	if dc := cfg.Disclosure; dc != nil {
		inc, fil := out[schema.CybersecurityIncidents], out[schema.SECFilings]
		if inc == nil || fil == nil {
			p.Logger.Warn("etl: disclosure classification needs incidents and filings; skipped")
		} else {
			d, err := derive.ClassifyDisclosureSpeed(inc, fil, derive.DisclosureOptions{
				ImmediateDays: dc.ImmediateDays,
				BusinessDays:  dc.BusinessDays,
			})
			if err != nil {
				return nil, err
			}
			out[derive.DisclosureAnalysis] = d
		}
	}
	return out, nil
}

// Registry returns the builtin contracts merged with those in
// validation.schemas_path.
func Registry(v config.Validation) (*schema.Registry, error) {
	reg := schema.Builtin()
	if v.SchemasPath == "" {
		return reg, nil
	}
	extra, err := schema.LoadContracts(v.SchemasPath)
	if err != nil {
		return nil, err
	}
	return reg.With(extra...)
}

func (p *Pipeline) validate(ctx context.Context, out *Outcome) (*report.Report, error) {
	vc := p.Config.Validation
	reg, err := Registry(vc)
	if err != nil {
		return nil, err
	}
	v := validate.New(reg, p.Logger)
	v.StrictUnknown = vc.StrictUnknownSchema

	agg := report.NewAggregator(v)
	agg.Parallelism = vc.Parallelism
	agg.Logger = p.Logger
	rep, err := agg.Run(ctx, out.Data)
	if err != nil {
		return nil, err
	}
	for name, r := range rep.DatasetResults {
		metrics.RecordValidation(p.job(), name, r.Passed, len(r.Errors))
		if !r.Passed {
			p.Logger.Warn("etl: dataset failed validation", "dataset", name, "errors", len(r.Errors))
		}
	}

	if ds := out.Data[schema.StockPrices]; ds != nil && !ds.Empty() {
		s := monitor.SummarizeStock(ds)
		out.Stock = &s
		p.Logger.Info("etl: stock data quality", "rows", s.Rows, "missing_prices", s.MissingPrices,
			"missing_volume", s.MissingVolume, "negative_prices", s.NegativePrices, "date_range", s.DateRange)
		if s.HighMissingPrices() {
			p.Logger.Warn("etl: high missing price data", "missing_prices", s.MissingPrices)
		}
	}
	if ds := out.Data[schema.Companies]; ds != nil && !ds.Empty() {
		c := monitor.SummarizeCompanies(ds)
		out.Companies = &c
		p.Logger.Info("etl: company data quality", "rows", c.Rows,
			"duplicate_tickers", c.DuplicateTickers, "missing_names", c.MissingNames)
	}

	if path := p.Config.Report.Path; path != "" {
		if err := rep.WriteFile(path); err != nil {
			return rep, err
		}
		p.Logger.Info("etl: report written", "path", path, "status", rep.OverallStatus)
	}
	return rep, nil
}

// monitor runs freshness, record count and integrity checks and returns
// every issue found.
func (p *Pipeline) monitor(ext *extract.Result, data dataset.Collection) []string {
	mc := p.Config.Monitor
	m := monitor.New(p.job(), p.Notifier, p.Logger)
	var issues []string
	add := func(err error) {
		if err != nil {
			issues = append(issues, err.Error())
		}
	}

	if maxAge := mc.MaxAge(); maxAge > 0 {
		for _, name := range sortedKeys(ext.Modified) {
			add(m.CheckFreshness(name, ext.Modified[name], maxAge))
		}
	}
	names := sortedKeys(mc.MinRecords)
	for _, n := range sortedKeys(mc.MaxRecords) {
		if !slices.Contains(names, n) {
			names = append(names, n)
		}
	}
	for _, name := range names {
		n := 0
		if ds := data[name]; ds != nil {
			n = ds.Len()
		}
		add(m.CheckRecordCount(name, n, mc.MinRecords[name], mc.MaxRecords[name]))
	}
	for _, rule := range p.Config.Validation.Integrity {
		msgs := monitor.CheckIntegrity(data[rule.Dataset], monitor.IntegrityRule{
			Required:   rule.Required,
			Unique:     rule.Unique,
			MaxNullPct: rule.MaxNullPct,
		})
		for _, msg := range msgs {
			issues = append(issues, rule.Dataset+": "+msg)
		}
		if len(msgs) > 0 {
			m.Alert("integrity", "Data Integrity Alert", fmt.Sprintf("%s: %d integrity issues", rule.Dataset, len(msgs)))
		}
	}
	for _, is := range issues {
		p.Logger.Warn("etl: monitor issue", "issue", is)
	}
	return issues
}

// load writes each selected dataset to its own table.
func (p *Pipeline) load(ctx context.Context, out *Outcome) error {
	sc := p.Config.Storage
	kind := sc.Kind
	if kind == "" {
		p.Logger.Warn("etl: no storage configured; nothing loaded")
		return nil
	}
	reg, err := Registry(p.Config.Validation)
	if err != nil {
		return err
	}

	names := sortedKeys(out.Data)
	if len(sc.Datasets) > 0 {
		names = slices.DeleteFunc(names, func(n string) bool { return !slices.Contains(sc.Datasets, n) })
	}
	var errs []error
	for _, name := range names {
		ds := out.Data[name]
		if ds == nil || ds.Empty() {
			p.Logger.Debug("etl: empty dataset not loaded", "dataset", name)
			continue
		}
		table := name
		if sc.DB.Schema != "" && kind != "csv" {
			table = sc.DB.Schema + "." + name
		}
		n, err := p.loadOne(ctx, kind, table, ds, reg)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		out.Loaded[name] = n
		metrics.RecordRecords(p.job(), name, "loaded", int(n))
		p.Logger.Info("etl: dataset loaded", "dataset", name, "storage", kind, "table", table, "rows", n)
	}
	return errors.Join(errs...)
}

func (p *Pipeline) loadOne(ctx context.Context, kind, table string, ds *dataset.Dataset, reg *schema.Registry) (int64, error) {
	sc := p.Config.Storage
	repo, err := p.newRepositoryFn(ctx, storage.Config{
		Kind:    kind,
		DSN:     sc.DB.DSN,
		Dir:     sc.Dir,
		Table:   table,
		Columns: ds.ColumnNames(),
		Logger:  p.Logger,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	defer repo.Close()

	if sc.DB.AutoCreateTable && storage.SupportsDDL(kind) {
		var contract *schema.Contract
		if c, ok := reg.Lookup(ds.Name); ok {
			contract = &c
		}
		if err := storage.EnsureTable(ctx, kind, repo, ddl.FromDataset(table, ds, contract)); err != nil {
			return 0, err
		}
	}
	return storage.LoadDataset(ctx, p.Logger, repo, ds, sc.BatchSize)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
