package csvfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cyberetl/internal/storage"
)

func fixedNow(t *testing.T) {
	t.Helper()
	orig := nowFn
	nowFn = func() time.Time { return time.Date(2024, 1, 31, 15, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { nowFn = orig })
}

func TestFileName(t *testing.T) {
	got := FileName("analytics.stock_prices", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	if want := "output_analytics_stock_prices_20240131.csv"; got != want {
		t.Fatalf("FileName=%q; want %q", got, want)
	}
}

func TestWriter_CopyFrom(t *testing.T) {
	fixedNow(t)
	dir := t.TempDir()

	repo, err := storage.New(context.Background(), storage.Config{Kind: "csv", Dir: dir, Table: "sec_filings"})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	cols := []string{"company_id", "filing_date", "cybersecurity_mention", "returns"}
	day := time.Date(2023, 3, 3, 0, 0, 0, 0, time.UTC)
	if _, err := repo.CopyFrom(context.Background(), cols, [][]any{{int64(1), day, true, 0.1}}); err != nil {
		t.Fatalf("CopyFrom: %v", err)
	}
	n, err := repo.CopyFrom(context.Background(), cols, [][]any{{int64(2), "2023-03-04", false, nil}})
	if err != nil || n != 1 {
		t.Fatalf("CopyFrom second batch n=%d err=%v", n, err)
	}
	if _, err := repo.CopyFrom(context.Background(), cols[:2], [][]any{{int64(3), day}}); err == nil {
		t.Fatalf("column mismatch must fail")
	}
	if err := repo.Exec(context.Background(), "CREATE TABLE x"); err != nil {
		t.Fatalf("Exec must be a no-op: %v", err)
	}
	repo.Close()

	b, err := os.ReadFile(filepath.Join(dir, "output_sec_filings_20240131.csv"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	want := "company_id,filing_date,cybersecurity_mention,returns\n1,2023-03-03,true,0.1\n2,2023-03-04,false,\n"
	if string(b) != want {
		t.Fatalf("file=\n%s\nwant\n%s", b, want)
	}
}

func TestWriter_EmptyWritesNothing(t *testing.T) {
	fixedNow(t)
	dir := t.TempDir()
	w, err := Open(dir, "companies")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if n, err := w.CopyFrom(context.Background(), []string{"ticker"}, nil); n != 0 || err != nil {
		t.Fatalf("n=%d err=%v", n, err)
	}
	w.Close()
	if _, err := os.Stat(w.Path()); !os.IsNotExist(err) {
		t.Fatalf("empty load must not create %s (err=%v)", w.Path(), err)
	}
	if _, err := Open(dir, " "); err == nil {
		t.Fatalf("blank table must fail")
	}
}

func TestFormatValue(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"x", "x"},
		{int64(5), "5"},
		{1.5, "1.5"},
		{true, "true"},
		{time.Date(2023, 3, 3, 10, 30, 0, 0, time.UTC), "2023-03-03T10:30:00Z"},
	}
	for _, c := range cases {
		if got := formatValue(c.in); got != c.want {
			t.Fatalf("formatValue(%#v)=%q; want %q", c.in, got, c.want)
		}
	}
}
