package ledger

import "github.com/shopspring/decimal"

// EpsilonQty is the tolerance used for all quantity comparisons, absorbing
// floating-point drift from repeated partial matches.
const EpsilonQty = 1e-9

// Output precision, in decimal places.
const (
	CurrencyPlaces = 2
	RatioPlaces    = 4
	QuantityPlaces = 6
)

// Round rounds half away from zero to the given number of decimal places.
func Round(value float64, places int32) float64 {
	return decimal.NewFromFloat(value).Round(places).InexactFloat64()
}
