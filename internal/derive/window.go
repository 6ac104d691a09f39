package derive

import (
	"fmt"

	"cyberetl/internal/dataset"
)

// DefaultWindowDays is the event-study half width.
const DefaultWindowDays = 3

// EventWindow returns the stock rows dated within windowDays calendar days
// of incidentDate (inclusive on both ends), with event_day marking rows on
// the incident date itself.
func EventWindow(stock *dataset.Dataset, incidentDate any, windowDays int) (*dataset.Dataset, error) {
	if err := requireColumns(stock, "date"); err != nil {
		return nil, fmt.Errorf("event window: %w", err)
	}
	if windowDays < 0 {
		return nil, fmt.Errorf("event window: negative window %d", windowDays)
	}
	day, ok := dataset.AsTime(incidentDate)
	if !ok {
		return nil, fmt.Errorf("event window: incident date %v is not a date", incidentDate)
	}
	start, end := day.AddDate(0, 0, -windowDays), day.AddDate(0, 0, windowDays)

	out := dataset.New(stock.Name, stock.Columns...)
	out.SetColumn("event_day", dataset.KindBoolean)
	for _, r := range stock.Rows {
		d, ok := dataset.AsTime(r["date"])
		if !ok || d.Before(start) || d.After(end) {
			continue
		}
		cp := make(dataset.Record, len(r)+1)
		for k, v := range r {
			cp[k] = v
		}
		cp["event_day"] = d.Equal(day)
		out.Rows = append(out.Rows, cp)
	}
	return out, nil
}
