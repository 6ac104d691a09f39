package schema

import "cyberetl/internal/dataset"

// Dataset names with a builtin contract.
const (
	Companies              = "companies"
	StockPrices            = "stock_prices"
	SECFilings             = "sec_filings"
	CybersecurityIncidents = "cybersecurity_incidents"
)

// Disclosure speed labels.
const (
	SpeedImmediate = "Immediate"
	SpeedDelayed   = "Delayed"
	SpeedUnknown   = "Unknown"
)

// FilingTypes are the accepted SEC form types.
var FilingTypes = []string{"8-K", "10-K", "10-Q", "20-F"}

// BuiltinContracts returns fresh copies of the four disclosure-analysis
// contracts.
func BuiltinContracts() []Contract {
	return []Contract{
		{
			Name: Companies,
			Fields: []Field{
				// Key for stock_prices referential integrity. Optional so
				// ticker-only company lists still validate.
				{Name: "company_id", Type: dataset.KindInteger, Nullable: true, Checks: []Check{Gt(0)}},
				{Name: "ticker", Type: dataset.KindString, Checks: []Check{
					Matches(`^[A-Z]{1,10}$`),
					Length(-1, 10),
				}},
				{Name: "company_name", Type: dataset.KindString, Checks: []Check{
					Length(1, 255),
					Excludes("<", ">"),
				}},
				{Name: "sector", Type: dataset.KindString, Nullable: true, Checks: []Check{Length(-1, 100)}},
				{Name: "governance_score", Type: dataset.KindFloat, Nullable: true, Checks: []Check{Range(0, 10, false, false)}},
			},
		},
		{
			Name: StockPrices,
			Fields: []Field{
				{Name: "company_id", Type: dataset.KindInteger, Checks: []Check{Gt(0)}},
				{Name: "date", Type: dataset.KindTimestamp},
				{Name: "closing_price", Type: dataset.KindFloat, Checks: []Check{Gt(0), Lt(10000)}},
				{Name: "trading_volume", Type: dataset.KindInteger, Checks: []Check{Ge(0), Lt(1e12)}},
				{Name: "returns", Type: dataset.KindFloat, Nullable: true, Checks: []Check{Range(-1, 1, false, false)}},
			},
		},
		{
			Name: SECFilings,
			Fields: []Field{
				{Name: "company_id", Type: dataset.KindInteger, Checks: []Check{Gt(0)}},
				{Name: "filing_date", Type: dataset.KindTimestamp},
				{Name: "filing_type", Type: dataset.KindString, Checks: []Check{In(FilingTypes...)}},
				{Name: "cybersecurity_mention", Type: dataset.KindBoolean},
				{Name: "disclosure_speed", Type: dataset.KindString, Nullable: true, Checks: []Check{
					In(SpeedImmediate, SpeedDelayed, SpeedUnknown),
				}},
			},
		},
		{
			Name: CybersecurityIncidents,
			Fields: []Field{
				{Name: "company_id", Type: dataset.KindInteger, Checks: []Check{Gt(0)}},
				{Name: "breach_date", Type: dataset.KindTimestamp},
				{Name: "disclosure_date", Type: dataset.KindTimestamp, Nullable: true},
				{Name: "incident_type", Type: dataset.KindString, Nullable: true},
				{Name: "records_affected", Type: dataset.KindInteger, Nullable: true, Checks: []Check{Ge(0)}},
			},
		},
	}
}

// Builtin returns a registry holding BuiltinContracts.
func Builtin() *Registry {
	r, err := NewRegistry(BuiltinContracts()...)
	if err != nil {
		panic("schema: builtin contracts: " + err.Error())
	}
	return r
}
