package config

import (
	"strings"
	"testing"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(t *testing.T, issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

func minimalPipeline() Pipeline {
	return Pipeline{
		Job: "cyber",
		Datasets: []Dataset{{
			Name:   "companies",
			Source: Source{Kind: "file", File: SourceFile{Path: "companies.csv"}},
			Parser: Parser{Kind: "csv", Options: Options{"has_header": true}},
		}},
		Validation: Validation{FailOnError: true},
		Storage:    Storage{Kind: "csv", Dir: "out"},
	}
}

func TestValidatePipeline_ValidMinimal(t *testing.T) {
	if issues := ValidatePipeline(minimalPipeline()); len(issues) != 0 {
		t.Fatalf("expected no issues; got %+v", issues)
	}
}

func TestValidatePipeline_Issues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(p *Pipeline)
		sev    IssueSeverity
		path   string
		msg    string
	}{
		{"missing job", func(p *Pipeline) { p.Job = " " }, SeverityError, "job", "must not be empty"},
		{"no datasets", func(p *Pipeline) { p.Datasets = nil }, SeverityError, "datasets", "at least one"},
		{"duplicate dataset", func(p *Pipeline) { p.Datasets = append(p.Datasets, p.Datasets[0]) }, SeverityError, "datasets[1].name", "duplicate"},
		{"unknown source", func(p *Pipeline) { p.Datasets[0].Source.Kind = "s3" }, SeverityError, "datasets[0].source.kind", "unknown source"},
		{"empty file path", func(p *Pipeline) { p.Datasets[0].Source.File.Path = "" }, SeverityError, "datasets[0].source.file.path", "non-empty path"},
		{"bad http url", func(p *Pipeline) {
			p.Datasets[0].Source = Source{Kind: "http", HTTP: SourceHTTP{URL: "ftp://x"}}
		}, SeverityError, "datasets[0].source.http.url", "http(s)"},
		{"insecure http", func(p *Pipeline) {
			p.Datasets[0].Source = Source{Kind: "http", HTTP: SourceHTTP{URL: "https://x", InsecureSkipVerify: true}}
		}, SeverityWarning, "datasets[0].source.http.insecure_skip_verify", "disabled"},
		{"unknown parser", func(p *Pipeline) { p.Datasets[0].Parser.Kind = "xml" }, SeverityError, "datasets[0].parser.kind", "want csv"},
		{"bad type", func(p *Pipeline) {
			p.Datasets[0].Parser.Options["types"] = map[string]any{"company_id": "uuid"}
		}, SeverityError, "datasets[0].parser.options.types.company_id", "unknown type"},
		{"unknown step", func(p *Pipeline) { p.Datasets[0].Steps = []Step{{Kind: "validate"}} }, SeverityError, "datasets[0].steps[0].kind", "unknown step"},
		{"dedupe without keys", func(p *Pipeline) { p.Datasets[0].Steps = []Step{{Kind: "dedupe", Options: Options{}}} }, SeverityError, "datasets[0].steps[0].options.keys", "non-empty keys"},
		{"wrds without dsn", func(p *Pipeline) {
			p.Datasets[0].Source = Source{Kind: "wrds"}
			p.Extract = Extract{StartDate: "2023-01-01", EndDate: "2023-02-01"}
		}, SeverityError, "extract.wrds.dsn", "requires"},
		{"wrds bad dates", func(p *Pipeline) {
			p.Datasets[0].Source = Source{Kind: "wrds"}
			p.Extract = Extract{StartDate: "2023/01/01", EndDate: "2023-02-01", WRDS: WRDS{DSN: "x"}}
		}, SeverityError, "extract.start_date", "YYYY-MM-DD"},
		{"wrds inverted window", func(p *Pipeline) {
			p.Datasets[0].Source = Source{Kind: "wrds"}
			p.Extract = Extract{StartDate: "2023-03-01", EndDate: "2023-02-01", WRDS: WRDS{DSN: "x"}}
		}, SeverityError, "extract.end_date", "before start_date"},
		{"fail_on_error off", func(p *Pipeline) { p.Validation.FailOnError = false }, SeverityWarning, "validation.fail_on_error", "will not block"},
		{"integrity pct", func(p *Pipeline) {
			p.Validation.Integrity = []IntegrityRule{{Dataset: "companies", MaxNullPct: 150}}
		}, SeverityError, "validation.integrity[0].max_null_pct", "[0, 100]"},
		{"integrity unknown dataset", func(p *Pipeline) {
			p.Validation.Integrity = []IntegrityRule{{Dataset: "filings"}}
		}, SeverityWarning, "validation.integrity[0].dataset", "not configured"},
		{"record bounds", func(p *Pipeline) {
			p.Monitor.MinRecords = map[string]int{"companies": 10}
			p.Monitor.MaxRecords = map[string]int{"companies": 5}
		}, SeverityError, "monitor.max_records.companies", "below min"},
		{"alert without smtp", func(p *Pipeline) { p.Monitor.AlertEmail = "sec@example.com" }, SeverityWarning, "monitor.smtp_addr", "only be logged"},
		{"db without dsn", func(p *Pipeline) { p.Storage = Storage{Kind: "postgres"} }, SeverityError, "storage.db.dsn", "must not be empty"},
		{"unknown storage", func(p *Pipeline) { p.Storage.Kind = "mysql" }, SeverityError, "storage.kind", "unknown storage"},
		{"no storage", func(p *Pipeline) { p.Storage = Storage{} }, SeverityWarning, "storage.kind", "not be loaded"},
		{"negative runtime", func(p *Pipeline) { p.Runtime.Parallelism = -1 }, SeverityError, "runtime.parallelism", "negative"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := minimalPipeline()
			tc.mutate(&p)
			issues := ValidatePipeline(p)
			if !hasIssue(t, issues, tc.sev, tc.path, tc.msg) {
				t.Fatalf("expected %s at %s containing %q; got %+v", tc.sev, tc.path, tc.msg, issues)
			}
		})
	}
}

func TestIssue_Error(t *testing.T) {
	got := Issue{SeverityError, "job", "missing"}.Error()
	if got != "error at job: missing" {
		t.Fatalf("Error()=%q", got)
	}
}
