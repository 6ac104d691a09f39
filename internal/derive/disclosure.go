package derive

import (
	"fmt"
	"time"

	"cyberetl/internal/dataset"
	"cyberetl/internal/schema"
)

// DisclosureAnalysis is the name of the dataset ClassifyDisclosureSpeed
// produces.
const DisclosureAnalysis = "disclosure_analysis"

// DefaultImmediateDays is the largest gap still classified as Immediate.
const DefaultImmediateDays = 4

// DisclosureOptions tunes ClassifyDisclosureSpeed.
type DisclosureOptions struct {
	// ImmediateDays defaults to DefaultImmediateDays when zero.
	ImmediateDays int
	// BusinessDays counts weekdays instead of calendar days.
	BusinessDays bool
}

// ClassifyDisclosureSpeed left-joins incidents to filings on company_id and
// adds days_to_disclosure (filing_date - breach_date) and disclosure_speed.
// Incidents without a matching filing, or with a null date on either side,
// are Unknown. Columns present on both sides other than company_id get _x
// (incident) and _y (filing) suffixes.
func ClassifyDisclosureSpeed(incidents, filings *dataset.Dataset, opts DisclosureOptions) (*dataset.Dataset, error) {
	if err := requireColumns(incidents, "company_id", "breach_date"); err != nil {
		return nil, fmt.Errorf("classify disclosure speed: %w", err)
	}
	if err := requireColumns(filings, "company_id", "filing_date"); err != nil {
		return nil, fmt.Errorf("classify disclosure speed: %w", err)
	}
	limit := opts.ImmediateDays
	if limit == 0 {
		limit = DefaultImmediateDays
	}

	left, right := incidents.ColumnNames(), filings.ColumnNames()
	rightSet := make(map[string]bool, len(right))
	for _, c := range right {
		rightSet[c] = true
	}
	leftSet := make(map[string]bool, len(left))
	for _, c := range left {
		leftSet[c] = true
	}
	leftName := func(c string) string {
		if c != "company_id" && rightSet[c] {
			return c + "_x"
		}
		return c
	}
	rightName := func(c string) string {
		if leftSet[c] {
			return c + "_y"
		}
		return c
	}

	out := dataset.New(DisclosureAnalysis)
	for _, c := range incidents.Columns {
		out.SetColumn(leftName(c.Name), c.Kind)
	}
	for _, c := range filings.Columns {
		if c.Name == "company_id" {
			continue
		}
		out.SetColumn(rightName(c.Name), c.Kind)
	}
	out.SetColumn("days_to_disclosure", dataset.KindInteger)
	out.SetColumn("disclosure_speed", dataset.KindString)

	byCompany := make(map[string][]dataset.Record)
	for _, f := range filings.Rows {
		if dataset.IsNull(f["company_id"]) {
			continue
		}
		k := joinKey(f["company_id"])
		byCompany[k] = append(byCompany[k], f)
	}

	for _, inc := range incidents.Rows {
		var matches []dataset.Record
		if !dataset.IsNull(inc["company_id"]) {
			matches = byCompany[joinKey(inc["company_id"])]
		}
		if len(matches) == 0 {
			matches = []dataset.Record{nil}
		}
		for _, f := range matches {
			row := make(dataset.Record, len(left)+len(right)+2)
			for _, c := range left {
				row[leftName(c)] = inc[c]
			}
			for _, c := range right {
				if c == "company_id" {
					continue
				}
				var v any
				if f != nil {
					v = f[c]
				}
				row[rightName(c)] = v
			}
			days, ok := daysBetween(inc["breach_date"], filingDate(f), opts.BusinessDays)
			switch {
			case !ok:
				row["days_to_disclosure"] = nil
				row["disclosure_speed"] = schema.SpeedUnknown
			case days <= int64(limit):
				row["days_to_disclosure"] = days
				row["disclosure_speed"] = schema.SpeedImmediate
			default:
				row["days_to_disclosure"] = days
				row["disclosure_speed"] = schema.SpeedDelayed
			}
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

func filingDate(f dataset.Record) any {
	if f == nil {
		return nil
	}
	return f["filing_date"]
}

func joinKey(v any) string {
	if n, ok := dataset.AsInt(v); ok {
		return fmt.Sprint(n)
	}
	return dataset.AsString(v)
}

// daysBetween returns the whole days from a to b, floored like a timedelta.
func daysBetween(a, b any, business bool) (int64, bool) {
	from, ok := dataset.AsTime(a)
	if !ok {
		return 0, false
	}
	to, ok := dataset.AsTime(b)
	if !ok {
		return 0, false
	}
	if business {
		return businessDays(from, to), true
	}
	d := to.Sub(from)
	days := int64(d / (24 * time.Hour))
	if d < 0 && d%(24*time.Hour) != 0 {
		days--
	}
	return days, true
}

// businessDays counts weekdays in (from, to]; negative when to is earlier.
func businessDays(from, to time.Time) int64 {
	sign := int64(1)
	if to.Before(from) {
		from, to = to, from
		sign = -1
	}
	from = truncateDay(from)
	to = truncateDay(to)
	var n int64
	for d := from.AddDate(0, 0, 1); !d.After(to); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n++
		}
	}
	return sign * n
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
