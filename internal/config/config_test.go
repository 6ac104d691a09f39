package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const samplePipeline = `{
  "job": "cyber_disclosure",
  "datasets": [
    { "name": "companies",
      "source": { "kind": "file", "file": { "path": "data/companies.csv" } },
      "parser": { "kind": "csv", "options": { "has_header": true, "comma": ";", "header_map": { "Ticker": "ticker" } } },
      "steps": [ { "kind": "dedupe", "options": { "keys": ["ticker"], "policy": "keep-first" } } ] },
    { "name": "stock_prices", "source": { "kind": "wrds" } }
  ],
  "extract": { "start_date": "2023-01-01", "end_date": "2023-12-31", "wrds": { "dsn": "${CYBERETL_TEST_DSN}" } },
  "transform": { "returns": true, "disclosure": { "immediate_days": 4 } },
  "validation": { "fail_on_error": true, "integrity": [ { "dataset": "companies", "unique": ["ticker"], "max_null_pct": 10 } ] },
  "monitor": { "max_age_hours": 36, "min_records": { "companies": 1 } },
  "storage": { "kind": "sqlite", "db": { "dsn": "file:out.db", "auto_create_table": true } },
  "report": { "path": "report.json" }
}`

func TestDecode(t *testing.T) {
	t.Setenv("CYBERETL_TEST_DSN", "postgres://wrds-pgdata.wharton.upenn.edu:9737/wrds")

	p, err := Decode([]byte(samplePipeline))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.Job != "cyber_disclosure" || len(p.Datasets) != 2 {
		t.Fatalf("job=%q datasets=%d", p.Job, len(p.Datasets))
	}
	if got := p.Extract.WRDS.DSN; got != "postgres://wrds-pgdata.wharton.upenn.edu:9737/wrds" {
		t.Fatalf("dsn=%q; want expanded env value", got)
	}
	c, ok := p.Dataset("companies")
	if !ok {
		t.Fatalf("companies dataset missing")
	}
	if r := c.Parser.Options.Rune("comma", ','); r != ';' {
		t.Fatalf("comma=%q; want ';'", r)
	}
	if got := c.Parser.Options.StringMap("header_map"); !reflect.DeepEqual(got, map[string]string{"Ticker": "ticker"}) {
		t.Fatalf("header_map=%v", got)
	}
	if got := c.Steps[0].Options.StringSlice("keys"); !reflect.DeepEqual(got, []string{"ticker"}) {
		t.Fatalf("keys=%v", got)
	}
	if p.Transform.Disclosure == nil || p.Transform.Disclosure.ImmediateDays != 4 || p.Transform.CyberMentions != nil {
		t.Fatalf("transform=%+v", p.Transform)
	}
	if p.Monitor.MaxAge().Hours() != 36 {
		t.Fatalf("max age=%v; want 36h", p.Monitor.MaxAge())
	}
	start, end, err := p.Extract.Window()
	if err != nil || start.Year() != 2023 || end.Month() != 12 {
		t.Fatalf("window=%v..%v err=%v", start, end, err)
	}
	if issues := ValidatePipeline(p); HasErrors(issues) {
		t.Fatalf("unexpected errors: %+v", issues)
	}
}

func TestDecode_RejectsUnknownKeys(t *testing.T) {
	_, err := Decode([]byte(`{"job": "x", "storgae": {}}`))
	if err == nil || !strings.Contains(err.Error(), "storgae") {
		t.Fatalf("err=%v; want unknown field error", err)
	}
}

func TestDecode_DollarEscape(t *testing.T) {
	p, err := Decode([]byte(`{"job": "cost$$center"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.Job != "cost$center" {
		t.Fatalf("job=%q; want cost$center", p.Job)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.json")
	if err := os.WriteFile(path, []byte(`{"job":"j","datasets":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := Load(path)
	if err != nil || p.Job != "j" {
		t.Fatalf("Load=%+v err=%v", p, err)
	}
	if _, err := Load(path + ".missing"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestOptions(t *testing.T) {
	t.Parallel()
	o := Options{
		"s":   "v",
		"b":   true,
		"f":   float64(7),
		"i":   3,
		"arr": []any{"a", 1, "b"},
		"m":   map[string]any{"k": "v", "n": 1},
	}
	if o.String("s", "") != "v" || o.String("b", "def") != "def" {
		t.Fatalf("String")
	}
	if !o.Bool("b", false) || o.Bool("s", false) {
		t.Fatalf("Bool")
	}
	if o.Int("f", 0) != 7 || o.Int("i", 0) != 3 || o.Int("s", -1) != -1 {
		t.Fatalf("Int")
	}
	if o.Rune("s", 'x') != 'v' || o.Rune("missing", 'x') != 'x' {
		t.Fatalf("Rune")
	}
	if got := o.StringSlice("arr"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("StringSlice=%v", got)
	}
	if got := o.StringMap("m"); !reflect.DeepEqual(got, map[string]string{"k": "v"}) {
		t.Fatalf("StringMap=%v", got)
	}
	if o.Any("missing") != nil {
		t.Fatalf("Any")
	}

	var empty Options
	if err := empty.UnmarshalJSON([]byte("null")); err != nil || empty == nil {
		t.Fatalf("UnmarshalJSON(null)=%v, %v", empty, err)
	}
}
