package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedPricing struct {
	perKwh float64
	fail   bool
}

func (p *fixedPricing) ComputePrice(energyDeltaWh float64, _ time.Time) (*PricedConsumption, error) {
	if p.fail {
		return nil, fmt.Errorf("rate service unavailable")
	}
	amount := energyDeltaWh * p.perKwh / 1000
	return &PricedConsumption{
		PricingSource: "fixed",
		Amount:        amount,
		RoundedAmount: Round6(amount),
		CurrencyCode:  "EUR",
	}, nil
}

func TestPricedConsumption(t *testing.T) {
	t.Run("every interval carries a rounded price", func(t *testing.T) {
		tr := newTestTransaction(1000)
		tr.SetPricing(&fixedPricing{perKwh: 0.25})
		require.NoError(t, tr.AddSample(energySample(t0.Add(15*time.Minute), 1500)))
		require.NoError(t, tr.AddSample(energySample(t0.Add(30*time.Minute), 2500)))

		intervals := tr.Consumption()
		require.Len(t, intervals, 2)
		require.NotNil(t, intervals[0].Price)
		assert.Equal(t, 0.125, *intervals[0].Price)
		require.NotNil(t, intervals[1].Price)
		assert.Equal(t, 0.25, *intervals[1].Price)
		assert.Equal(t, 0.375, tr.TotalPrice())
	})

	t.Run("stop freezes the total price and currency", func(t *testing.T) {
		tr := newTestTransaction(1000)
		tr.SetPricing(&fixedPricing{perKwh: 0.25})
		require.NoError(t, tr.AddSample(energySample(t0.Add(15*time.Minute), 1500)))
		require.NoError(t, tr.StopCharging(nil, "D5F3A9B1", 2000, t0.Add(30*time.Minute)))

		require.NotNil(t, tr.Stop.TotalPrice)
		assert.Equal(t, 0.25, *tr.Stop.TotalPrice)
		assert.Equal(t, "EUR", tr.Stop.PriceUnit)
		assert.Equal(t, 0.25, tr.TotalPrice())
	})

	t.Run("a failing port degrades to unpriced intervals", func(t *testing.T) {
		tr := newTestTransaction(1000)
		tr.SetPricing(&fixedPricing{fail: true})
		require.NoError(t, tr.AddSample(energySample(t0.Add(15*time.Minute), 1500)))

		intervals := tr.Consumption()
		require.Len(t, intervals, 1)
		assert.Nil(t, intervals[0].Price)
		assert.Equal(t, 0.0, tr.TotalPrice())
	})

	t.Run("no port means no pricing fields", func(t *testing.T) {
		tr := newTestTransaction(1000)
		require.NoError(t, tr.AddSample(energySample(t0.Add(15*time.Minute), 1500)))
		require.NoError(t, tr.StopCharging(nil, "D5F3A9B1", 2000, t0.Add(30*time.Minute)))

		assert.Nil(t, tr.Stop.TotalPrice)
		assert.Equal(t, 0.0, tr.TotalPrice())
	})
}
