package session

import (
	"math"
	"time"
)

// PricedConsumption is the monetary value of one consumed energy delta,
// as resolved by a pricing implementation.
type PricedConsumption struct {
	PricingSource string  `json:"pricing_source" bson:"pricing_source"`
	Amount        float64 `json:"amount" bson:"amount"`
	RoundedAmount float64 `json:"rounded_amount" bson:"rounded_amount"`
	CurrencyCode  string  `json:"currency_code" bson:"currency_code"`
}

// Pricing converts an energy delta into a currency amount using an already
// resolved rate. Implementations must be pure with respect to their inputs:
// pricing the same delta twice yields the same rounded result. A failing
// implementation degrades the affected interval to "no price"; it never
// breaks the metering itself.
type Pricing interface {
	ComputePrice(energyDeltaWh float64, since time.Time) (*PricedConsumption, error)
}

// Round6 rounds a currency amount to 6 decimal places, the precision kept
// on interval prices and transaction totals.
func Round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
