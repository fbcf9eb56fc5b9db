package matching

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

// Terms applies flat annual interest over the term. ratePct is a percentage.
func Terms(amount, ratePct decimal.Decimal, termMonths int) (total, monthly decimal.Decimal) {
	if termMonths <= 0 {
		termMonths = 1
	}
	months := decimal.NewFromInt(int64(termMonths))
	interest := amount.Mul(ratePct).Div(hundred).Mul(months).Div(twelve)
	total = amount.Add(interest).Round(2)
	monthly = total.Div(months).Round(2)
	return total, monthly
}
