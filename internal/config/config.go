// Package config defines the JSON pipeline file for cyberetl runs.
//
// Field names mirror the JSON keys used in configs/*.json. Decoding is plain
// encoding/json; parser and transform steps carry a free-form Options bag
// read through typed helpers.
//
// Example (trimmed):
//
//	{
//	  "job": "cyber_disclosure_daily",
//	  "datasets": [
//	    { "name": "companies",
//	      "source": { "kind": "file", "file": { "path": "data/companies.csv" } },
//	      "parser": { "kind": "csv", "options": { "has_header": true } } }
//	  ],
//	  "validation": { "fail_on_error": true },
//	  "storage": { "kind": "csv", "dir": "out" }
//	}
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Pipeline is the top-level object decoded from a pipeline file.
type Pipeline struct {
	// Job names the run for metrics labels and log lines.
	Job string `json:"job"`

	Datasets   []Dataset  `json:"datasets"`
	Extract    Extract    `json:"extract"`
	Transform  Transform  `json:"transform"`
	Validation Validation `json:"validation"`
	Monitor    Monitor    `json:"monitor"`
	Storage    Storage    `json:"storage"`
	Report     Report     `json:"report"`
	Runtime    Runtime    `json:"runtime"`
}

// Dataset binds one named input to a source, a parser and an optional
// per-dataset record transform chain.
type Dataset struct {
	Name string `json:"name"`

	// Optional datasets that fail to open are logged and skipped.
	Optional bool `json:"optional"`

	Source Source `json:"source"`
	Parser Parser `json:"parser"`

	// Steps run in order on the parsed records before derivations.
	Steps []Step `json:"steps"`
}

// Source identifies where a dataset's bytes come from.
type Source struct {
	// Kind is "file", "http" or "wrds".
	Kind string     `json:"kind"`
	File SourceFile `json:"file"`
	HTTP SourceHTTP `json:"http"`
}

// SourceFile holds configuration for the "file" source kind.
type SourceFile struct {
	Path string `json:"path"`
}

// SourceHTTP holds configuration for the "http" source kind.
type SourceHTTP struct {
	URL                string            `json:"url"`
	Headers            map[string]string `json:"headers"`
	TimeoutSeconds     int               `json:"timeout_seconds"`
	MaxRetries         int               `json:"max_retries"`
	InsecureSkipVerify bool              `json:"insecure_skip_verify"`
}

// Parser selects how raw bytes become records. Only "csv" exists today.
//
// CSV option keys: has_header (bool), comma (string), trim_space (bool),
// expected_fields (int), header_map (object), types (object).
type Parser struct {
	Kind    string  `json:"kind"`
	Options Options `json:"options"`
}

// Step is one record transform: "normalize", "upper", "coerce", "dedupe" or
// "require".
type Step struct {
	Kind    string  `json:"kind"`
	Options Options `json:"options"`
}

// Extract holds the date window and the WRDS connection used by "wrds"
// sources.
type Extract struct {
	// StartDate and EndDate are YYYY-MM-DD and bound the WRDS query.
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	WRDS      WRDS   `json:"wrds"`
}

// WRDS configures the CRSP daily stock file query.
type WRDS struct {
	DSN string `json:"dsn"`
	// Table defaults to crsp.dsf.
	Table string `json:"table"`
	// Retries is the number of attempts after the first; default 3.
	Retries int `json:"retries"`
	// RetryDelayMS is the first backoff; default 1000.
	RetryDelayMS int `json:"retry_delay_ms"`
}

// Window parses StartDate and EndDate.
func (e Extract) Window() (start, end time.Time, err error) {
	if start, err = time.Parse(time.DateOnly, e.StartDate); err != nil {
		return start, end, fmt.Errorf("extract.start_date: %w", err)
	}
	if end, err = time.Parse(time.DateOnly, e.EndDate); err != nil {
		return start, end, fmt.Errorf("extract.end_date: %w", err)
	}
	return start, end, nil
}

// Transform toggles the analysis derivations run after extraction.
type Transform struct {
	// Returns adds daily returns to stock_prices.
	Returns bool `json:"returns"`

	// CleanCompanies standardizes tickers and governance scores.
	CleanCompanies bool `json:"clean_companies"`

	// CyberMentions tags sec_filings; nil disables it.
	CyberMentions *CyberMentions `json:"cyber_mentions"`

	// Disclosure builds disclosure_analysis; nil disables it.
	Disclosure *Disclosure `json:"disclosure"`
}

// CyberMentions configures keyword tagging on filings.
type CyberMentions struct {
	TextField string   `json:"text_field"`
	Keywords  []string `json:"keywords"`
}

// Disclosure configures disclosure-speed classification.
type Disclosure struct {
	ImmediateDays int  `json:"immediate_days"`
	BusinessDays  bool `json:"business_days"`
}

// Validation configures the validation gate.
type Validation struct {
	// SchemasPath points at a JSON or YAML contracts file merged over the
	// built-in schemas.
	SchemasPath         string `json:"schemas_path"`
	StrictUnknownSchema bool   `json:"strict_unknown_schema"`
	Parallelism         int    `json:"parallelism"`

	// FailOnError blocks the load step when the report is FAILED.
	FailOnError bool `json:"fail_on_error"`

	Integrity []IntegrityRule `json:"integrity"`
}

// IntegrityRule is a monitor-level data integrity check for one dataset.
type IntegrityRule struct {
	Dataset    string   `json:"dataset"`
	Required   []string `json:"required"`
	Unique     []string `json:"unique"`
	MaxNullPct float64  `json:"max_null_pct"`
}

// Monitor configures freshness, volume checks and alert delivery.
type Monitor struct {
	MaxAgeHours float64        `json:"max_age_hours"`
	MinRecords  map[string]int `json:"min_records"`
	MaxRecords  map[string]int `json:"max_records"`

	AlertEmail string `json:"alert_email"`
	SMTPAddr   string `json:"smtp_addr"`
	SMTPFrom   string `json:"smtp_from"`
	SMTPUser   string `json:"smtp_user"`
	SMTPPass   string `json:"smtp_pass"`
}

// Storage selects the sink for loaded datasets.
type Storage struct {
	// Kind is "csv", "postgres", "sqlite" or "mssql".
	Kind string `json:"kind"`

	// Dir is the output directory for the csv sink.
	Dir string   `json:"dir"`
	DB  DBConfig `json:"db"`

	// Datasets limits which datasets are loaded; empty loads all.
	Datasets  []string `json:"datasets"`
	BatchSize int      `json:"batch_size"`
}

// DBConfig configures the SQL sinks. Tables are named after datasets,
// optionally inside Schema.
type DBConfig struct {
	DSN             string `json:"dsn"`
	Schema          string `json:"schema"`
	AutoCreateTable bool   `json:"auto_create_table"`
}

// Report configures the validation report output.
type Report struct {
	// Path, when set, receives the JSON report.
	Path string `json:"path"`
}

// Runtime controls concurrency.
type Runtime struct {
	// Parallelism bounds concurrent extraction; 1 when zero.
	Parallelism int `json:"parallelism"`
}

// Load reads a pipeline file, expanding ${VAR} references from the
// environment before decoding. Unknown keys are rejected.
func Load(path string) (Pipeline, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Decode(b)
}

// Decode expands environment references in b and decodes it.
func Decode(b []byte) (Pipeline, error) {
	expanded := os.Expand(string(b), func(k string) string {
		// "$$" escapes a literal dollar sign.
		if k == "$" {
			return "$"
		}
		return os.Getenv(k)
	})
	var p Pipeline
	dec := json.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Pipeline{}, fmt.Errorf("config: decode: %w", err)
	}
	return p, nil
}

// Dataset returns the configured dataset called name.
func (p Pipeline) Dataset(name string) (Dataset, bool) {
	for _, d := range p.Datasets {
		if d.Name == name {
			return d, true
		}
	}
	return Dataset{}, false
}

// Options is a small helper to fetch typed values from arbitrary JSON maps.
// It performs minimal coercion and returns the provided default when a key
// is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if s, ok := o[key].(string); ok {
		return s
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if b, ok := o[key].(bool); ok {
		return b
	}
	return def
}

// Int returns the int value for key or def. JSON numbers decode as float64.
func (o Options) Int(key string, def int) int {
	switch n := o[key].(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return def
}

// Rune returns the first rune of a string value, for delimiter settings.
func (o Options) Rune(key string, def rune) rune {
	if s, ok := o[key].(string); ok && s != "" {
		return []rune(s)[0]
	}
	return def
}

// StringMap returns the string-valued entries of an object value. The
// result is never nil.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if m, ok := o[key].(map[string]any); ok {
		for k, v := range m {
			if s, ok := v.(string); ok {
				res[k] = s
			}
		}
	}
	return res
}

// StringSlice returns the string elements of an array value, or nil.
func (o Options) StringSlice(key string) []string {
	switch vv := o[key].(type) {
	case []any:
		out := make([]string, 0, len(vv))
		for _, x := range vv {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return vv
	}
	return nil
}

// Any returns the raw value for key.
func (o Options) Any(key string) any { return o[key] }

// UnmarshalJSON decodes a missing or null options object to an empty map.
func (o *Options) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	var tmp map[string]any
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
