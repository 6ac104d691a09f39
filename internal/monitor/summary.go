package monitor

import (
	"fmt"
	"time"

	"cyberetl/internal/dataset"
)

// MissingPriceThreshold is the share of missing closing prices above which
// stock data is flagged.
const MissingPriceThreshold = 0.05

// StockSummary counts common problems in stock price data.
type StockSummary struct {
	Rows           int    `json:"rows"`
	MissingPrices  int    `json:"missing_prices"`
	MissingVolume  int    `json:"missing_volume"`
	NegativePrices int    `json:"negative_prices"`
	DateRange      string `json:"date_range"`
}

// HighMissingPrices reports whether missing prices exceed
// MissingPriceThreshold of all rows.
func (s StockSummary) HighMissingPrices() bool {
	return float64(s.MissingPrices) > float64(s.Rows)*MissingPriceThreshold
}

// SummarizeStock fills a StockSummary from stock_prices.
func SummarizeStock(ds *dataset.Dataset) StockSummary {
	s := StockSummary{Rows: ds.Len()}
	var lo, hi time.Time
	for _, r := range ds.Rows {
		if p, ok := dataset.AsFloat(r["closing_price"]); !ok {
			s.MissingPrices++
		} else if p < 0 {
			s.NegativePrices++
		}
		if dataset.IsNull(r["trading_volume"]) {
			s.MissingVolume++
		}
		if t, ok := dataset.AsTime(r["date"]); ok {
			if lo.IsZero() || t.Before(lo) {
				lo = t
			}
			if t.After(hi) {
				hi = t
			}
		}
	}
	if !lo.IsZero() {
		s.DateRange = fmt.Sprintf("%s to %s", lo.Format(time.DateOnly), hi.Format(time.DateOnly))
	}
	return s
}

// CompanySummary counts common problems in company reference data.
type CompanySummary struct {
	Rows             int `json:"rows"`
	DuplicateTickers int `json:"duplicate_tickers"`
	MissingNames     int `json:"missing_names"`
}

// SummarizeCompanies fills a CompanySummary from companies.
func SummarizeCompanies(ds *dataset.Dataset) CompanySummary {
	s := CompanySummary{Rows: ds.Len(), DuplicateTickers: duplicates(ds.Values("ticker"))}
	for _, v := range ds.Values("company_name") {
		if dataset.IsNull(v) {
			s.MissingNames++
		}
	}
	return s
}
