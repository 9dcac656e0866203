package billing

import (
	"evcore/entity/tariff"
	"evcore/session"
	"evcore/utility"
	"time"

	"github.com/cockroachdb/apd/v3"
)

const pricingSourceTariff = "tariff"

// TariffPricing prices consumed energy against a resolved tariff. The rate
// lookup honors element restrictions (time of day, day of week); the price
// math runs on exact decimals so that pricing the same delta twice always
// yields the same 6-decimal result.
type TariffPricing struct {
	tariff *tariff.Tariff
}

func NewTariffPricing(t *tariff.Tariff) *TariffPricing {
	return &TariffPricing{tariff: t}
}

func (p *TariffPricing) ComputePrice(energyDeltaWh float64, since time.Time) (*session.PricedConsumption, error) {
	if p.tariff == nil {
		return nil, utility.Err("pricing: no tariff resolved")
	}
	rate := p.rateAt(since)

	ctx := apd.BaseContext.WithPrecision(25)
	var delta, perKwh, amount, rounded apd.Decimal
	if _, err := delta.SetFloat64(energyDeltaWh); err != nil {
		return nil, err
	}
	if _, err := perKwh.SetFloat64(rate); err != nil {
		return nil, err
	}
	if _, err := ctx.Mul(&amount, &delta, &perKwh); err != nil {
		return nil, err
	}
	if _, err := ctx.Quo(&amount, &amount, apd.New(1000, 0)); err != nil {
		return nil, err
	}
	if _, err := ctx.Quantize(&rounded, &amount, -6); err != nil {
		return nil, err
	}

	exact, err := amount.Float64()
	if err != nil {
		return nil, err
	}
	roundedValue, err := rounded.Float64()
	if err != nil {
		return nil, err
	}
	return &session.PricedConsumption{
		PricingSource: pricingSourceTariff,
		Amount:        exact,
		RoundedAmount: roundedValue,
		CurrencyCode:  p.tariff.Currency,
	}, nil
}

// rateAt picks the energy rate valid at the given moment: the sum of the
// energy components of every element whose restrictions admit the moment.
func (p *TariffPricing) rateAt(moment time.Time) float64 {
	var total float64
	for _, element := range p.tariff.Elements {
		if !admits(element.Restrictions, moment) {
			continue
		}
		for _, component := range element.PriceComponents {
			if component.IsEnergy() {
				total += component.Price
			}
		}
	}
	return total
}

func admits(r *tariff.Restrictions, moment time.Time) bool {
	if r == nil {
		return true
	}
	if r.DayOfWeek != "" {
		days := map[string]time.Weekday{
			"MONDAY": time.Monday, "TUESDAY": time.Tuesday, "WEDNESDAY": time.Wednesday,
			"THURSDAY": time.Thursday, "FRIDAY": time.Friday, "SATURDAY": time.Saturday, "SUNDAY": time.Sunday,
		}
		if day, ok := days[r.DayOfWeek]; ok && moment.Weekday() != day {
			return false
		}
	}
	clock := moment.Format("15:04")
	if r.StartTime != "" && clock < r.StartTime {
		return false
	}
	if r.EndTime != "" && clock >= r.EndTime {
		return false
	}
	return true
}
