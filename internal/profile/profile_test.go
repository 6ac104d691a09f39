package profile

import (
	"math"
	"testing"

	"cyberetl/internal/dataset"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestPercentile(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	cases := []struct{ p, want float64 }{
		{0, 1}, {50, 3}, {95, 4.8}, {100, 5}, {25, 2},
	}
	for _, tc := range cases {
		if got := percentile(x, tc.p); !approx(got, tc.want) {
			t.Fatalf("percentile(%v)=%v; want %v", tc.p, got, tc.want)
		}
	}
	if x[0] != 1 || x[4] != 5 {
		t.Fatalf("percentile mutated its input")
	}
}

func TestSummarize(t *testing.T) {
	s := summarize([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if s.Count != 8 || !approx(s.Mean, 5) || s.Min != 2 || s.Max != 9 {
		t.Fatalf("stats=%+v", s)
	}
	// sample std: sqrt(32/7)
	if !approx(s.Std, math.Sqrt(32.0/7.0)) {
		t.Fatalf("Std=%v; want %v", s.Std, math.Sqrt(32.0/7.0))
	}
	// p95 = 7 + 0.65*(9-7) = 8.3; only 9 exceeds it.
	if s.Outliers != 1 {
		t.Fatalf("Outliers=%d; want 1", s.Outliers)
	}
	if one := summarize([]float64{3}); one.Std != 0 || one.Outliers != 0 {
		t.Fatalf("single value stats=%+v", one)
	}
}

func sample() *dataset.Dataset {
	ds := dataset.New("stock_prices",
		dataset.Column{Name: "company_id"},
		dataset.Column{Name: "closing_price", Kind: dataset.KindFloat},
		dataset.Column{Name: "ticker"},
		dataset.Column{Name: "flag"},
	)
	ds.Append(dataset.Record{"company_id": "1", "closing_price": 10.0, "ticker": "AAPL", "flag": true})
	ds.Append(dataset.Record{"company_id": "1", "closing_price": 10.0, "ticker": "AAPL", "flag": true})
	ds.Append(dataset.Record{"company_id": "2", "closing_price": nil, "ticker": "", "flag": false})
	ds.Append(dataset.Record{"company_id": "3", "closing_price": 30.0, "ticker": "IBM", "flag": nil})
	return ds
}

func TestCompute(t *testing.T) {
	p := Compute(sample(), "stock_prices")
	if p.RecordCount != 4 || p.ColumnCount != 4 {
		t.Fatalf("counts=%d/%d; want 4/4", p.RecordCount, p.ColumnCount)
	}
	if p.DuplicateRows != 1 {
		t.Fatalf("DuplicateRows=%d; want 1", p.DuplicateRows)
	}
	if p.NullCounts["closing_price"] != 1 || p.NullCounts["ticker"] != 1 || p.NullCounts["flag"] != 1 || p.NullCounts["company_id"] != 0 {
		t.Fatalf("NullCounts=%v", p.NullCounts)
	}
	if _, ok := p.Numeric["ticker"]; ok {
		t.Fatalf("ticker profiled as numeric")
	}
	if _, ok := p.Numeric["flag"]; ok {
		t.Fatalf("booleans must not be numeric")
	}
	cp, ok := p.Numeric["closing_price"]
	if !ok || cp.Count != 3 || !approx(cp.Mean, 50.0/3.0) {
		t.Fatalf("closing_price stats=%+v", cp)
	}
	id, ok := p.Numeric["company_id"]
	if !ok || id.Count != 4 || id.Max != 3 {
		t.Fatalf("numeric text column stats=%+v ok=%v", id, ok)
	}
	if p.MemoryBytes <= 0 || p.MemoryMB <= 0 {
		t.Fatalf("memory estimate=%d", p.MemoryBytes)
	}
}

func TestCompute_HashCollisionsDoNotMerge(t *testing.T) {
	orig := hashFn
	hashFn = func([]byte) uint64 { return 42 }
	defer func() { hashFn = orig }()

	ds := dataset.New("x")
	ds.Append(dataset.Record{"a": "1"})
	ds.Append(dataset.Record{"a": "2"})
	ds.Append(dataset.Record{"a": "1"})
	if got := Compute(ds, "x").DuplicateRows; got != 1 {
		t.Fatalf("DuplicateRows=%d; want 1", got)
	}
}

func TestCompute_NullVersusEmptyString(t *testing.T) {
	ds := dataset.New("x", dataset.Column{Name: "a"})
	ds.Append(dataset.Record{"a": nil})
	ds.Append(dataset.Record{"a": ""})
	if got := Compute(ds, "x").DuplicateRows; got != 0 {
		t.Fatalf("DuplicateRows=%d; want 0", got)
	}
}

func TestCompute_Deterministic(t *testing.T) {
	a := Compute(sample(), "s")
	b := Compute(sample(), "s")
	if a.MemoryBytes != b.MemoryBytes || a.DuplicateRows != b.DuplicateRows || len(a.Numeric) != len(b.Numeric) {
		t.Fatalf("profiles differ: %+v vs %+v", a, b)
	}
}

func TestCompute_NonFiniteValuesCountedApart(t *testing.T) {
	ds := dataset.New("stock_prices", dataset.Column{Name: "closing_price", Kind: dataset.KindFloat})
	ds.Append(dataset.Record{"closing_price": 100.5})
	ds.Append(dataset.Record{"closing_price": math.Inf(1)})
	ds.Append(dataset.Record{"closing_price": 99.5})
	// Text columns from CSV: "inf" parses as a float.
	txt := dataset.New("raw")
	txt.Append(dataset.Record{"v": "1"})
	txt.Append(dataset.Record{"v": "-inf"})
	txt.Append(dataset.Record{"v": "3"})

	s := Compute(ds, "stock_prices").Numeric["closing_price"]
	if s.Count != 2 || s.NonFinite != 1 || !approx(s.Mean, 100) || s.Max != 100.5 {
		t.Fatalf("stats=%+v; want 2 finite values and 1 non-finite", s)
	}
	ts, ok := Compute(txt, "raw").Numeric["v"]
	if !ok || ts.Count != 2 || ts.NonFinite != 1 || !approx(ts.Mean, 2) {
		t.Fatalf("text stats=%+v ok=%v", ts, ok)
	}
	for _, f := range []float64{s.Mean, s.Std, s.Min, s.Max, ts.Mean, ts.Std} {
		if math.IsInf(f, 0) || math.IsNaN(f) {
			t.Fatalf("non-finite stat leaked: %+v %+v", s, ts)
		}
	}
}
