// Package derive holds the disclosure-analysis transformations: daily
// returns, disclosure-speed classification, cybersecurity keyword tagging,
// company cleanup and event-study windows.
//
// Functions never mutate their inputs; they return new datasets.
package derive

import (
	"fmt"
	"time"

	"cyberetl/internal/dataset"
)

func requireColumns(ds *dataset.Dataset, cols ...string) error {
	if ds == nil {
		return fmt.Errorf("dataset is nil")
	}
	for _, c := range cols {
		if !ds.HasColumn(c) {
			return fmt.Errorf("%s: column %s missing", ds.Name, c)
		}
	}
	return nil
}

// companyLess orders company ids numerically when both parse as integers.
func companyLess(a, b any) (less, equal bool) {
	ai, aok := dataset.AsInt(a)
	bi, bok := dataset.AsInt(b)
	if aok && bok {
		return ai < bi, ai == bi
	}
	as, bs := dataset.AsString(a), dataset.AsString(b)
	return as < bs, as == bs
}

func timeOf(v any) time.Time {
	t, _ := dataset.AsTime(v)
	return t
}

// CalculateReturns sorts stock prices by (company_id, date) and adds a
// returns column holding the percentage change of closing_price against the
// previous row of the same company. The first row of each company, and rows
// where either price is null or the previous price is zero, get nil.
func CalculateReturns(stock *dataset.Dataset) (*dataset.Dataset, error) {
	if err := requireColumns(stock, "company_id", "date", "closing_price"); err != nil {
		return nil, fmt.Errorf("calculate returns: %w", err)
	}
	out := stock.Clone()
	out.Sort(func(a, b dataset.Record) bool {
		less, eq := companyLess(a["company_id"], b["company_id"])
		if !eq {
			return less
		}
		return timeOf(a["date"]).Before(timeOf(b["date"]))
	})
	out.SetColumn("returns", dataset.KindFloat)

	var prev dataset.Record
	for _, r := range out.Rows {
		r["returns"] = nil
		if prev != nil {
			if _, same := companyLess(prev["company_id"], r["company_id"]); same {
				p, pok := dataset.AsFloat(prev["closing_price"])
				c, cok := dataset.AsFloat(r["closing_price"])
				if pok && cok && p != 0 {
					r["returns"] = c/p - 1
				}
			}
		}
		prev = r
	}
	return out, nil
}
