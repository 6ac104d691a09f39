package validate

import (
	"errors"
	"strings"
	"testing"

	"cyberetl/internal/dataset"
	"cyberetl/internal/schema"
)

func companies(ids ...any) *dataset.Dataset {
	ds := dataset.New(schema.Companies, dataset.Column{Name: "company_id"})
	for _, id := range ids {
		ds.Append(dataset.Record{"company_id": id})
	}
	return ds
}

func incidents(pairs ...[2]any) *dataset.Dataset {
	ds := dataset.New(schema.CybersecurityIncidents,
		dataset.Column{Name: "breach_date"}, dataset.Column{Name: "disclosure_date"})
	for _, p := range pairs {
		ds.Append(dataset.Record{"breach_date": p[0], "disclosure_date": p[1]})
	}
	return ds
}

func TestReferentialIntegrity(t *testing.T) {
	v := newValidator()
	coll := dataset.Collection{
		schema.Companies:   companies("1", "2"),
		schema.StockPrices: stockPrices(priceRow("1", "5"), priceRow("10", "5"), priceRow(int64(9), "5"), priceRow("10", "5"), priceRow(nil, "5")),
	}
	res := v.CheckCrossTable(coll, DefaultConstraints()...)
	if res.Passed {
		t.Fatalf("expected orphan ids to fail")
	}
	if len(res.Errors) != 1 {
		t.Fatalf("errors=%v; want one message for all orphans", res.Errors)
	}
	if want := "stock_prices reference invalid company_id values (2): [9, 10]"; res.Errors[0] != want {
		t.Fatalf("error=%q; want %q", res.Errors[0], want)
	}
}

func TestReferentialIntegrity_MixedRepresentations(t *testing.T) {
	v := newValidator()
	coll := dataset.Collection{
		schema.Companies:   companies(int64(1), 2.0),
		schema.StockPrices: stockPrices(priceRow("1", "5"), priceRow("2", "5")),
	}
	if res := v.CheckCrossTable(coll, DefaultConstraints()...); !res.Passed {
		t.Fatalf("errors=%v", res.Errors)
	}
}

func TestReferentialIntegrity_SkippedWithoutParent(t *testing.T) {
	v := newValidator()
	coll := dataset.Collection{schema.StockPrices: stockPrices(priceRow("99", "5"))}
	if res := v.CheckCrossTable(coll, DefaultConstraints()...); !res.Passed {
		t.Fatalf("errors=%v", res.Errors)
	}
}

func TestTemporalOrder(t *testing.T) {
	v := newValidator()
	cases := []struct {
		name string
		rows [][2]any
		pass bool
	}{
		{"before", [][2]any{{"2023-03-10", "2023-03-01"}}, false},
		{"equal", [][2]any{{"2023-03-10", "2023-03-10"}}, true},
		{"null disclosure", [][2]any{{"2023-03-10", nil}}, true},
		{"after", [][2]any{{"2023-03-10", "2023-04-01"}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			coll := dataset.Collection{schema.CybersecurityIncidents: incidents(tc.rows...)}
			res := v.CheckCrossTable(coll, DefaultConstraints()...)
			if res.Passed != tc.pass {
				t.Fatalf("Passed=%v; want %v (errors=%v)", res.Passed, tc.pass, res.Errors)
			}
		})
	}
}

func TestTemporalOrder_CountsRows(t *testing.T) {
	v := newValidator()
	coll := dataset.Collection{schema.CybersecurityIncidents: incidents(
		[2]any{"2023-03-10", "2023-03-01"},
		[2]any{"2023-05-10", "2023-05-09"},
		[2]any{"2023-05-10", "2023-05-11"},
	)}
	res := v.CheckCrossTable(coll, DefaultConstraints()...)
	if len(res.Errors) != 1 || res.Errors[0] != "Found 2 incidents with disclosure before breach" {
		t.Fatalf("errors=%v", res.Errors)
	}
}

type panicky struct{}

func (panicky) Name() string { return "panicky" }
func (panicky) Check(dataset.Collection) ([]string, error) {
	var m map[string]int
	m["boom"]++
	return nil, nil
}

type failing struct{}

func (failing) Name() string { return "failing" }
func (failing) Check(dataset.Collection) ([]string, error) { return nil, errors.New("bad input") }

func TestCheckCrossTable_ErrorsAreContained(t *testing.T) {
	v := newValidator()
	coll := dataset.Collection{
		// breach_date absent: constraint cannot run.
		schema.CybersecurityIncidents: func() *dataset.Dataset {
			ds := dataset.New(schema.CybersecurityIncidents)
			ds.Append(dataset.Record{"disclosure_date": "2023-01-01"})
			return ds
		}(),
		schema.Companies:   companies("1"),
		schema.StockPrices: stockPrices(priceRow("2", "5")),
	}
	cs := append([]Constraint{panicky{}, failing{}}, DefaultConstraints()...)
	res := v.CheckCrossTable(coll, cs...)
	if res.Passed {
		t.Fatalf("expected failure")
	}
	if len(res.Errors) != 4 {
		t.Fatalf("errors=%v; want 4 (panic, error, orphan, missing column)", res.Errors)
	}
	if !strings.HasPrefix(res.Errors[0], "panicky: panic:") {
		t.Fatalf("errors[0]=%q", res.Errors[0])
	}
	if res.Errors[1] != "failing: bad input" {
		t.Fatalf("errors[1]=%q", res.Errors[1])
	}
	if !strings.Contains(res.Errors[3], "column breach_date missing") {
		t.Fatalf("errors[3]=%q", res.Errors[3])
	}
}

func TestCheckCrossTable_NoConstraints(t *testing.T) {
	res := newValidator().CheckCrossTable(nil)
	if !res.Passed || res.Errors == nil {
		t.Fatalf("got %+v; want passed with empty errors", res)
	}
}
