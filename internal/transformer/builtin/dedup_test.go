package builtin

import (
	"reflect"
	"testing"

	"cyberetl/internal/dataset"
)

func mk(ticker string, fields map[string]any) dataset.Record {
	r := dataset.Record{"ticker": ticker}
	for k, v := range fields {
		r[k] = v
	}
	return r
}

func TestDeDupKeepFirst(t *testing.T) {
	in := []dataset.Record{
		mk("AAPL", map[string]any{"company_name": "A"}),
		mk("AAPL", map[string]any{"company_name": "B"}),
		mk("MSFT", map[string]any{"company_name": "C"}),
	}
	got := DeDup{Keys: []string{"ticker"}, Policy: KeepFirst}.Apply(in)
	want := []dataset.Record{
		mk("AAPL", map[string]any{"company_name": "A"}),
		mk("MSFT", map[string]any{"company_name": "C"}),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("keep-first: got %#v want %#v", got, want)
	}
}

func TestDeDupKeepLast(t *testing.T) {
	in := []dataset.Record{
		mk("AAPL", map[string]any{"company_name": "A"}),
		mk("MSFT", map[string]any{"company_name": "C"}),
		mk("AAPL", map[string]any{"company_name": "B"}),
	}
	got := DeDup{Keys: []string{"ticker"}}.Apply(in)
	want := []dataset.Record{
		mk("MSFT", map[string]any{"company_name": "C"}),
		mk("AAPL", map[string]any{"company_name": "B"}),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("keep-last: got %#v want %#v", got, want)
	}
}

func TestDeDupMostComplete(t *testing.T) {
	in := []dataset.Record{
		mk("AAPL", map[string]any{"sector": nil}),
		mk("AAPL", map[string]any{"sector": "Tech", "governance_score": 7.0}),
		mk("AAPL", map[string]any{"sector": ""}),
	}
	got := DeDup{Keys: []string{"ticker"}, Policy: MostComplete}.Apply(in)
	if len(got) != 1 || got[0]["sector"] != "Tech" {
		t.Fatalf("most-complete: got %#v", got)
	}
}

func TestDeDupUnkeyedPassThrough(t *testing.T) {
	in := []dataset.Record{
		{"company_name": "no ticker"},
		mk("AAPL", nil),
		mk("AAPL", nil),
	}
	got := DeDup{Keys: []string{"ticker"}, Policy: KeepFirst}.Apply(in)
	if len(got) != 2 || got[1]["company_name"] != "no ticker" {
		t.Fatalf("unkeyed: got %#v", got)
	}
}

func TestDeDupNoKeys(t *testing.T) {
	in := []dataset.Record{mk("A", nil), mk("A", nil)}
	if got := (DeDup{}).Apply(in); len(got) != 2 {
		t.Fatalf("no keys should be a no-op; got %d", len(got))
	}
}
