package csv_test

import (
	"strings"
	"testing"

	"cyberetl/internal/dataset"
	"cyberetl/internal/logging"
	"cyberetl/internal/parser"
	pcsv "cyberetl/internal/parser/csv"
)

var _ parser.Parser = (*pcsv.Parser)(nil)

func TestParse_HeaderNormalization(t *testing.T) {
	in := "\uFEFFCompany ID,Date, Closing Price ,Trading Volume\n" +
		"1,2023-01-03, 125.07 ,1000\n" +
		"2,2023-01-03,,\n"
	ds, skipped, err := pcsv.Parse(strings.NewReader(in), "stock_prices", pcsv.Options{
		HasHeader: true,
		TrimSpace: true,
		Logger:    logging.Discard(),
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if skipped != 0 {
		t.Fatalf("skipped=%d; want 0", skipped)
	}
	want := []string{"company_id", "date", "closing_price", "trading_volume"}
	if got := ds.ColumnNames(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("columns=%v; want %v", got, want)
	}
	if v := ds.Rows[0]["closing_price"]; v != "125.07" {
		t.Fatalf("closing_price=%q; want 125.07", v)
	}
	if v := ds.Rows[1]["closing_price"]; v != nil {
		t.Fatalf("empty cell=%v; want nil", v)
	}
}

func TestParse_SkipsBadRows(t *testing.T) {
	in := "ticker,company_name\n" +
		"AAPL,Apple\n" +
		"MSFT\n" +
		"GOOG,\"Alphabet\"x\n" +
		"AMZN,Amazon\n"
	ds, skipped, err := pcsv.Parse(strings.NewReader(in), "companies", pcsv.Options{
		HasHeader: true,
		Logger:    logging.Discard(),
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if skipped != 2 || ds.Len() != 2 {
		t.Fatalf("skipped=%d rows=%d; want 2 2", skipped, ds.Len())
	}
	if ds.Rows[1]["ticker"] != "AMZN" {
		t.Fatalf("row 1=%v", ds.Rows[1])
	}
}

func TestParse_HeaderMapAndKinds(t *testing.T) {
	in := "PERMNO;DATE\n10107;20230103\n"
	p := pcsv.NewParser(pcsv.Options{
		HasHeader: true,
		Comma:     ';',
		HeaderMap: map[string]string{"PERMNO": "company_id"},
		Kinds:     map[string]dataset.Kind{"company_id": dataset.KindInteger},
		Logger:    logging.Discard(),
	})
	ds, _, err := p.Parse(strings.NewReader(in), "stock_prices")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ds.Rows[0]["company_id"] != "10107" || ds.Rows[0]["date"] != "20230103" {
		t.Fatalf("row=%v", ds.Rows[0])
	}
	if k := ds.Columns[0].Kind; k != dataset.KindInteger {
		t.Fatalf("kind=%q; want integer", k)
	}
}

func TestParse_NoHeader(t *testing.T) {
	ds, skipped, err := pcsv.Parse(strings.NewReader("a,b\nc\n"), "x", pcsv.Options{ExpectedFields: 2, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if skipped != 1 || ds.Rows[0]["col_1"] != "b" {
		t.Fatalf("skipped=%d rows=%v", skipped, ds.Rows)
	}
}

func TestParse_Errors(t *testing.T) {
	if _, _, err := pcsv.Parse(strings.NewReader(""), "x", pcsv.Options{HasHeader: true}); err == nil {
		t.Fatalf("expected error for empty input")
	}
	if _, _, err := pcsv.Parse(strings.NewReader("a,A\n1,2\n"), "x", pcsv.Options{HasHeader: true}); err == nil {
		t.Fatalf("expected duplicate column error")
	}
}
