package config

import (
	"fmt"
	"strings"
	"time"

	"cyberetl/internal/dataset"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single lint finding. Path is a dotted path into the config
// (e.g. "datasets[1].source.file.path").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

var (
	knownSources  = map[string]struct{}{"file": {}, "http": {}, "wrds": {}}
	knownParsers  = map[string]struct{}{"csv": {}}
	knownSteps    = map[string]struct{}{"normalize": {}, "upper": {}, "coerce": {}, "dedupe": {}, "require": {}}
	knownStorages = map[string]struct{}{"csv": {}, "postgres": {}, "sqlite": {}, "mssql": {}}
)

// ValidatePipeline lints p without mutating it. Callers decide whether
// warnings are fatal.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue
	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{SeverityError, "job", "job must not be empty; it labels metrics and log lines"})
	}
	issues = append(issues, validateDatasets(p)...)
	issues = append(issues, validateValidation(p)...)
	issues = append(issues, validateMonitor(p.Monitor)...)
	issues = append(issues, validateStorage(p)...)
	if p.Runtime.Parallelism < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.parallelism", "parallelism must not be negative"})
	}
	return issues
}

func validateDatasets(p Pipeline) []Issue {
	var issues []Issue
	if len(p.Datasets) == 0 {
		return append(issues, Issue{SeverityError, "datasets", "at least one dataset is required"})
	}
	seen := map[string]bool{}
	usesWRDS := false
	for i, d := range p.Datasets {
		base := fmt.Sprintf("datasets[%d]", i)
		if strings.TrimSpace(d.Name) == "" {
			issues = append(issues, Issue{SeverityError, base + ".name", "dataset name must not be empty"})
		} else if seen[d.Name] {
			issues = append(issues, Issue{SeverityError, base + ".name", fmt.Sprintf("duplicate dataset %q", d.Name)})
		}
		seen[d.Name] = true

		s := d.Source
		if _, ok := knownSources[s.Kind]; !ok {
			issues = append(issues, Issue{SeverityError, base + ".source.kind", fmt.Sprintf("unknown source kind %q; want file, http or wrds", s.Kind)})
		}
		switch s.Kind {
		case "file":
			if strings.TrimSpace(s.File.Path) == "" {
				issues = append(issues, Issue{SeverityError, base + ".source.file.path", "file source requires a non-empty path"})
			}
		case "http":
			if !strings.HasPrefix(s.HTTP.URL, "http://") && !strings.HasPrefix(s.HTTP.URL, "https://") {
				issues = append(issues, Issue{SeverityError, base + ".source.http.url", "http source requires an http(s) url"})
			}
			if s.HTTP.InsecureSkipVerify {
				issues = append(issues, Issue{SeverityWarning, base + ".source.http.insecure_skip_verify", "TLS verification is disabled"})
			}
		case "wrds":
			usesWRDS = true
		}

		if s.Kind != "wrds" {
			if _, ok := knownParsers[d.Parser.Kind]; !ok {
				issues = append(issues, Issue{SeverityError, base + ".parser.kind", fmt.Sprintf("unknown parser kind %q; want csv", d.Parser.Kind)})
			}
		}
		for f, typ := range d.Parser.Options.StringMap("types") {
			if dataset.ParseKind(typ) == dataset.KindUnknown {
				issues = append(issues, Issue{SeverityError, base + ".parser.options.types." + f, fmt.Sprintf("unknown type %q", typ)})
			}
		}
		for j, st := range d.Steps {
			path := fmt.Sprintf("%s.steps[%d]", base, j)
			if _, ok := knownSteps[st.Kind]; !ok {
				issues = append(issues, Issue{SeverityError, path + ".kind", fmt.Sprintf("unknown step kind %q", st.Kind)})
				continue
			}
			switch st.Kind {
			case "dedupe", "require", "upper":
				key := "fields"
				if st.Kind == "dedupe" {
					key = "keys"
				}
				if len(st.Options.StringSlice(key)) == 0 {
					issues = append(issues, Issue{SeverityError, path + ".options." + key, st.Kind + " requires a non-empty " + key + " list"})
				}
			case "coerce":
				if len(st.Options.StringMap("types")) == 0 {
					issues = append(issues, Issue{SeverityWarning, path + ".options.types", "coerce has no types; it does nothing"})
				}
			}
		}
	}
	if usesWRDS {
		issues = append(issues, validateExtract(p.Extract)...)
	}
	return issues
}

func validateExtract(e Extract) []Issue {
	var issues []Issue
	if strings.TrimSpace(e.WRDS.DSN) == "" {
		issues = append(issues, Issue{SeverityError, "extract.wrds.dsn", "a wrds source requires extract.wrds.dsn"})
	}
	start, end, err := e.Window()
	if err != nil {
		path := "extract.start_date"
		if strings.HasPrefix(err.Error(), "extract.end_date") {
			path = "extract.end_date"
		}
		return append(issues, Issue{SeverityError, path, "dates must be YYYY-MM-DD"})
	}
	if end.Before(start) {
		issues = append(issues, Issue{SeverityError, "extract.end_date", "end_date is before start_date"})
	}
	if e.WRDS.Retries < 0 {
		issues = append(issues, Issue{SeverityError, "extract.wrds.retries", "retries must not be negative"})
	}
	return issues
}

func validateValidation(p Pipeline) []Issue {
	var issues []Issue
	v := p.Validation
	if v.Parallelism < 0 {
		issues = append(issues, Issue{SeverityError, "validation.parallelism", "parallelism must not be negative"})
	}
	if !v.FailOnError {
		issues = append(issues, Issue{SeverityWarning, "validation.fail_on_error", "failed validation will not block the load step"})
	}
	for i, r := range v.Integrity {
		path := fmt.Sprintf("validation.integrity[%d]", i)
		if _, ok := p.Dataset(r.Dataset); !ok {
			issues = append(issues, Issue{SeverityWarning, path + ".dataset", fmt.Sprintf("dataset %q is not configured", r.Dataset)})
		}
		if r.MaxNullPct < 0 || r.MaxNullPct > 100 {
			issues = append(issues, Issue{SeverityError, path + ".max_null_pct", "max_null_pct must be within [0, 100]"})
		}
	}
	return issues
}

func validateMonitor(m Monitor) []Issue {
	var issues []Issue
	if m.MaxAgeHours < 0 {
		issues = append(issues, Issue{SeverityError, "monitor.max_age_hours", "max_age_hours must not be negative"})
	}
	for name, lo := range m.MinRecords {
		if hi, ok := m.MaxRecords[name]; ok && hi < lo {
			issues = append(issues, Issue{SeverityError, "monitor.max_records." + name, fmt.Sprintf("max %d is below min %d", hi, lo)})
		}
	}
	if m.AlertEmail != "" && m.SMTPAddr == "" {
		issues = append(issues, Issue{SeverityWarning, "monitor.smtp_addr", "alert_email is set without smtp_addr; alerts will only be logged"})
	}
	return issues
}

func validateStorage(p Pipeline) []Issue {
	var issues []Issue
	s := p.Storage
	if s.Kind == "" {
		return append(issues, Issue{SeverityWarning, "storage.kind", "no storage configured; datasets will not be loaded"})
	}
	if _, ok := knownStorages[s.Kind]; !ok {
		return append(issues, Issue{SeverityError, "storage.kind", fmt.Sprintf("unknown storage kind %q", s.Kind)})
	}
	if s.Kind == "csv" {
		if strings.TrimSpace(s.Dir) == "" {
			issues = append(issues, Issue{SeverityWarning, "storage.dir", "csv output goes to the working directory"})
		}
	} else if strings.TrimSpace(s.DB.DSN) == "" {
		issues = append(issues, Issue{SeverityError, "storage.db.dsn", "storage.db.dsn must not be empty"})
	}
	if s.BatchSize < 0 {
		issues = append(issues, Issue{SeverityError, "storage.batch_size", "batch_size must not be negative"})
	}
	for i, name := range s.Datasets {
		if _, ok := p.Dataset(name); !ok && name != "disclosure_analysis" {
			issues = append(issues, Issue{SeverityWarning, fmt.Sprintf("storage.datasets[%d]", i), fmt.Sprintf("dataset %q is not configured", name)})
		}
	}
	return issues
}

// MaxAge converts MaxAgeHours to a duration; zero disables freshness checks.
func (m Monitor) MaxAge() time.Duration {
	return time.Duration(m.MaxAgeHours * float64(time.Hour))
}
