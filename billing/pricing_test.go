package billing

import (
	"evcore/entity/tariff"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTariff(pricePerKwh float64) *tariff.Tariff {
	return &tariff.Tariff{
		Id:       "t-standard",
		Currency: "EUR",
		Elements: []*tariff.Element{
			{
				PriceComponents: []*tariff.PriceComponent{
					{Type: tariff.Energy, Price: pricePerKwh, StepSize: 1},
				},
			},
		},
	}
}

func TestComputePrice(t *testing.T) {
	moment := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("prices an energy delta per kWh", func(t *testing.T) {
		pricing := NewTariffPricing(testTariff(0.25))
		priced, err := pricing.ComputePrice(500, moment)
		require.NoError(t, err)
		assert.Equal(t, 0.125, priced.RoundedAmount)
		assert.Equal(t, "EUR", priced.CurrencyCode)
		assert.Equal(t, "tariff", priced.PricingSource)
	})

	t.Run("result is rounded to six decimals", func(t *testing.T) {
		pricing := NewTariffPricing(testTariff(0.123456789))
		priced, err := pricing.ComputePrice(1, moment)
		require.NoError(t, err)
		assert.Equal(t, 0.000123, priced.RoundedAmount)
	})

	t.Run("identical inputs always price identically", func(t *testing.T) {
		pricing := NewTariffPricing(testTariff(0.217))
		first, err := pricing.ComputePrice(333.333, moment)
		require.NoError(t, err)
		second, err := pricing.ComputePrice(333.333, moment)
		require.NoError(t, err)
		assert.Equal(t, first.RoundedAmount, second.RoundedAmount)
	})

	t.Run("missing tariff is an error", func(t *testing.T) {
		pricing := NewTariffPricing(nil)
		_, err := pricing.ComputePrice(500, moment)
		assert.Error(t, err)
	})
}

func TestRateRestrictions(t *testing.T) {
	weekday := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)  // Wednesday
	saturday := time.Date(2024, 5, 4, 10, 0, 0, 0, time.UTC) // Saturday
	night := time.Date(2024, 5, 1, 2, 0, 0, 0, time.UTC)

	t.Run("day of week restriction selects the element", func(t *testing.T) {
		tf := testTariff(0.30)
		tf.Elements[0].Restrictions = &tariff.Restrictions{DayOfWeek: "SATURDAY"}
		pricing := NewTariffPricing(tf)

		priced, err := pricing.ComputePrice(1000, weekday)
		require.NoError(t, err)
		assert.Equal(t, 0.0, priced.RoundedAmount)

		priced, err = pricing.ComputePrice(1000, saturday)
		require.NoError(t, err)
		assert.Equal(t, 0.30, priced.RoundedAmount)
	})

	t.Run("time window restriction selects the element", func(t *testing.T) {
		tf := testTariff(0.30)
		tf.Elements[0].Restrictions = &tariff.Restrictions{StartTime: "08:00", EndTime: "20:00"}
		pricing := NewTariffPricing(tf)

		priced, err := pricing.ComputePrice(1000, night)
		require.NoError(t, err)
		assert.Equal(t, 0.0, priced.RoundedAmount)

		priced, err = pricing.ComputePrice(1000, weekday)
		require.NoError(t, err)
		assert.Equal(t, 0.30, priced.RoundedAmount)
	})
}
