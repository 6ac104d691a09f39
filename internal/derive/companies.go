package derive

import (
	"fmt"

	"cyberetl/internal/dataset"
	"cyberetl/internal/transformer"
	"cyberetl/internal/transformer/builtin"
)

// companyCleanup trims every string, upper-cases tickers, keeps the first
// row per ticker and coerces governance_score to a float (nil when it does
// not parse). Tickers are normalized before de-duplication so " aapl" and
// "AAPL" collapse.
var companyCleanup = transformer.Chain{
	builtin.Normalize{},
	builtin.Upper{Fields: []string{"ticker"}},
	builtin.DeDup{Keys: []string{"ticker"}, Policy: builtin.KeepFirst},
	builtin.Coerce{Types: map[string]string{"governance_score": "float"}},
}

// CleanCompanies standardizes company records.
func CleanCompanies(companies *dataset.Dataset) (*dataset.Dataset, error) {
	if err := requireColumns(companies, "ticker", "company_name"); err != nil {
		return nil, fmt.Errorf("clean companies: %w", err)
	}
	out := transformer.ApplyTo(companies.Clone(), companyCleanup)
	if out.HasColumn("governance_score") {
		out.SetColumn("governance_score", dataset.KindFloat)
	}
	return out, nil
}
