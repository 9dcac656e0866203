package session

import (
	"evcore/models"
	"evcore/types"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func energySample(at time.Time, valueWh float64) MeterSample {
	return MeterSample{
		Timestamp: at,
		Measurand: types.MeasurandEnergyActiveImportRegister,
		Context:   types.ReadingContextSamplePeriodic,
		Value:     valueWh,
		Unit:      types.UnitOfMeasureWh,
	}
}

func socSample(at time.Time, percent float64) MeterSample {
	return MeterSample{
		Timestamp: at,
		Measurand: types.MeasurandSoC,
		Context:   types.ReadingContextSamplePeriodic,
		Value:     percent,
		Unit:      types.UnitOfMeasurePercent,
	}
}

func newTestTransaction(meterStart int) *Transaction {
	return NewTransaction(42, "cp001", 1, nil, "D5F3A9B1", meterStart, t0)
}

func TestConsumptionIntervals(t *testing.T) {
	t.Run("single sample yields one interval", func(t *testing.T) {
		tr := newTestTransaction(1000)
		require.NoError(t, tr.AddSample(energySample(t0.Add(15*time.Minute), 1500)))

		intervals := tr.Consumption()
		require.Len(t, intervals, 1)
		assert.Equal(t, 900.0, intervals[0].DiffSecs)
		assert.Equal(t, 2000.0, intervals[0].PowerW)
		assert.Equal(t, 500.0, intervals[0].CumulatedWh)

		assert.Equal(t, 2000, tr.CurrentPowerW())
		assert.Equal(t, 500, tr.TotalEnergyWh())
		assert.True(t, tr.IsLoading())
	})

	t.Run("counter reset is repaired with a carried offset", func(t *testing.T) {
		tr := newTestTransaction(1000)
		require.NoError(t, tr.AddSample(energySample(t0.Add(15*time.Minute), 1500)))
		require.NoError(t, tr.AddSample(energySample(t0.Add(30*time.Minute), 200)))

		intervals := tr.Consumption()
		require.Len(t, intervals, 2)
		assert.Equal(t, 800.0, intervals[1].PowerW)
		assert.Equal(t, 700.0, intervals[1].CumulatedWh)
		assert.Equal(t, 700, tr.TotalEnergyWh())
	})

	t.Run("equal timestamps yield a zero power interval", func(t *testing.T) {
		tr := newTestTransaction(1000)
		require.NoError(t, tr.AddSample(energySample(t0, 1200)))

		intervals := tr.Consumption()
		require.Len(t, intervals, 1)
		assert.Equal(t, 0.0, intervals[0].DiffSecs)
		assert.Equal(t, 0.0, intervals[0].PowerW)
		assert.Equal(t, 200.0, intervals[0].CumulatedWh)
	})

	t.Run("interval count equals series length minus one", func(t *testing.T) {
		tr := newTestTransaction(1000)
		values := []float64{1100, 1250, 1400, 90, 300}
		for i, v := range values {
			at := t0.Add(time.Duration(i+1) * 5 * time.Minute)
			require.NoError(t, tr.AddSample(energySample(at, v)))
		}
		// synthetic start point plus five samples
		assert.Len(t, tr.Consumption(), len(values))
	})

	t.Run("cumulated energy telescopes over interval deltas", func(t *testing.T) {
		tr := newTestTransaction(1000)
		values := []float64{1100, 1250, 50, 600}
		for i, v := range values {
			at := t0.Add(time.Duration(i+1) * 5 * time.Minute)
			require.NoError(t, tr.AddSample(energySample(at, v)))
		}
		intervals := tr.Consumption()
		sum := 0.0
		for _, interval := range intervals {
			sum += interval.PowerW * interval.DiffSecs / 3600
		}
		assert.InDelta(t, sum, intervals[len(intervals)-1].CumulatedWh, 1e-9)
	})

	t.Run("out of order arrival is reordered by timestamp", func(t *testing.T) {
		tr := newTestTransaction(1000)
		require.NoError(t, tr.AddSample(energySample(t0.Add(10*time.Minute), 1600)))
		require.NoError(t, tr.AddSample(energySample(t0.Add(5*time.Minute), 1300)))

		intervals := tr.Consumption()
		require.Len(t, intervals, 2)
		for _, interval := range intervals {
			assert.GreaterOrEqual(t, interval.DiffSecs, 0.0)
			assert.GreaterOrEqual(t, interval.PowerW, 0.0)
		}
		assert.Equal(t, 300.0, intervals[0].DiffSecs)
		assert.Equal(t, 300.0, intervals[0].CumulatedWh)
		assert.Equal(t, 600.0, intervals[1].CumulatedWh)
		assert.Equal(t, 600, tr.TotalEnergyWh())
	})

	t.Run("non energy measurands are ignored", func(t *testing.T) {
		tr := newTestTransaction(1000)
		require.NoError(t, tr.AddSample(MeterSample{
			Timestamp: t0.Add(5 * time.Minute),
			Measurand: types.MeasurandPowerActiveImport,
			Context:   types.ReadingContextSamplePeriodic,
			Value:     7000,
		}))
		assert.Empty(t, tr.Consumption())
	})
}

func TestInactivity(t *testing.T) {
	t.Run("two consecutive idle intervals accumulate", func(t *testing.T) {
		tr := newTestTransaction(1000)
		require.NoError(t, tr.AddSample(energySample(t0.Add(5*time.Minute), 1000)))
		require.NoError(t, tr.AddSample(energySample(t0.Add(10*time.Minute), 1000)))

		assert.Equal(t, 600, tr.InactivitySecs())
	})

	t.Run("an isolated idle interval does not count", func(t *testing.T) {
		tr := newTestTransaction(1000)
		require.NoError(t, tr.AddSample(energySample(t0.Add(5*time.Minute), 1000)))
		require.NoError(t, tr.AddSample(energySample(t0.Add(10*time.Minute), 1500)))

		assert.Equal(t, 0, tr.InactivitySecs())
	})
}

func TestStateOfCharge(t *testing.T) {
	t.Run("battery level is matched to the covering interval", func(t *testing.T) {
		tr := newTestTransaction(1000)
		require.NoError(t, tr.AddSample(socSample(t0.Add(10*time.Minute), 55)))
		require.NoError(t, tr.AddSample(energySample(t0.Add(15*time.Minute), 1500)))

		intervals := tr.Consumption()
		require.Len(t, intervals, 1)
		require.NotNil(t, intervals[0].StateOfCharge)
		assert.Equal(t, 55, *intervals[0].StateOfCharge)

		require.NotNil(t, tr.StartSoC())
		assert.Equal(t, 55, *tr.StartSoC())
		require.NotNil(t, tr.CurrentSoC())
		assert.Equal(t, 55, *tr.CurrentSoC())
	})

	t.Run("no battery samples leave the level absent", func(t *testing.T) {
		tr := newTestTransaction(1000)
		require.NoError(t, tr.AddSample(energySample(t0.Add(15*time.Minute), 1500)))

		intervals := tr.Consumption()
		require.Len(t, intervals, 1)
		assert.Nil(t, intervals[0].StateOfCharge)
		assert.Nil(t, tr.StartSoC())
	})
}

func TestIsLoading(t *testing.T) {
	t.Run("reports loading before any interval exists", func(t *testing.T) {
		tr := newTestTransaction(1000)
		assert.True(t, tr.IsLoading())
	})

	t.Run("reports idle when recent intervals carry no power", func(t *testing.T) {
		tr := newTestTransaction(1000)
		require.NoError(t, tr.AddSample(energySample(t0.Add(5*time.Minute), 1500)))
		require.NoError(t, tr.AddSample(energySample(t0.Add(10*time.Minute), 1500)))
		require.NoError(t, tr.AddSample(energySample(t0.Add(15*time.Minute), 1500)))
		assert.False(t, tr.IsLoading())
	})

	t.Run("never loading once stopped", func(t *testing.T) {
		tr := newTestTransaction(1000)
		require.NoError(t, tr.AddSample(energySample(t0.Add(5*time.Minute), 1500)))
		require.NoError(t, tr.StopCharging(nil, "D5F3A9B1", 1600, t0.Add(10*time.Minute)))
		assert.False(t, tr.IsLoading())
		assert.Equal(t, 0, tr.CurrentPowerW())
	})
}

func TestStopCharging(t *testing.T) {
	t.Run("freezes totals into the stop record", func(t *testing.T) {
		tr := newTestTransaction(1000)
		require.NoError(t, tr.AddSample(energySample(t0.Add(15*time.Minute), 1500)))
		require.NoError(t, tr.AddSample(socSample(t0.Add(20*time.Minute), 80)))
		require.NoError(t, tr.StopCharging(nil, "D5F3A9B1", 2000, t0.Add(30*time.Minute)))

		require.NotNil(t, tr.Stop)
		assert.Equal(t, 1000, tr.Stop.TotalConsumptionWh)
		assert.Equal(t, 1800, tr.Stop.TotalDurationSecs)
		assert.False(t, tr.Active())
		assert.Equal(t, 1000, tr.TotalEnergyWh())
		require.NotNil(t, tr.Stop.EndSoC)
		assert.Equal(t, 80, *tr.Stop.EndSoC)
	})

	t.Run("stop with no samples yields zero totals", func(t *testing.T) {
		tr := newTestTransaction(1000)
		require.NoError(t, tr.StopCharging(nil, "D5F3A9B1", 1000, t0.Add(time.Minute)))

		assert.Equal(t, 0, tr.Stop.TotalConsumptionWh)
		assert.Equal(t, 60, tr.Stop.TotalDurationSecs)
		assert.Nil(t, tr.Stop.StartSoC)
	})

	t.Run("double stop is rejected", func(t *testing.T) {
		tr := newTestTransaction(1000)
		require.NoError(t, tr.StopCharging(nil, "D5F3A9B1", 1200, t0.Add(time.Minute)))
		assert.Error(t, tr.StopCharging(nil, "D5F3A9B1", 1300, t0.Add(2*time.Minute)))
	})

	t.Run("samples after stop are rejected", func(t *testing.T) {
		tr := newTestTransaction(1000)
		require.NoError(t, tr.StopCharging(nil, "D5F3A9B1", 1200, t0.Add(time.Minute)))
		assert.Error(t, tr.AddSample(energySample(t0.Add(2*time.Minute), 9000)))
		assert.Equal(t, 200, tr.TotalEnergyWh())
	})
}

func TestRemoteStop(t *testing.T) {
	t.Run("marks intent without stopping", func(t *testing.T) {
		tr := newTestTransaction(1000)
		require.NoError(t, tr.RequestRemoteStop("OPERATOR", t0.Add(time.Minute)))
		assert.True(t, tr.Active())
		assert.True(t, tr.Summary().RemoteStopRequested)
	})

	t.Run("rejected on a finished transaction", func(t *testing.T) {
		tr := newTestTransaction(1000)
		require.NoError(t, tr.StopCharging(nil, "D5F3A9B1", 1000, t0.Add(time.Minute)))
		assert.Error(t, tr.RequestRemoteStop("OPERATOR", t0.Add(2*time.Minute)))
	})
}

func TestViews(t *testing.T) {
	t.Run("full view is an independent copy", func(t *testing.T) {
		tr := newTestTransaction(1000)
		require.NoError(t, tr.AddSample(energySample(t0.Add(15*time.Minute), 1500)))
		require.NoError(t, tr.StopCharging(nil, "D5F3A9B1", 2000, t0.Add(30*time.Minute)))

		details := tr.Full()
		details.Samples[0].Value = 99999
		details.Stop.TotalConsumptionWh = -1
		details.Consumption[0].PowerW = -1

		assert.Equal(t, 1500.0, tr.Samples[0].Value)
		assert.Equal(t, 1000, tr.Stop.TotalConsumptionWh)
		assert.Equal(t, 2000.0, tr.Consumption()[0].PowerW)
	})

	t.Run("summary carries identifiers and totals", func(t *testing.T) {
		tr := newTestTransaction(1000)
		require.NoError(t, tr.AddSample(energySample(t0.Add(15*time.Minute), 1500)))

		summary := tr.Summary()
		assert.Equal(t, 42, summary.Id)
		assert.Equal(t, "cp001", summary.ChargePointId)
		assert.Equal(t, 1, summary.ConnectorId)
		assert.True(t, summary.Active)
		assert.Equal(t, 500, summary.TotalEnergyWh)
		assert.Equal(t, 2000, summary.CurrentPowerW)
		assert.NotEmpty(t, summary.SessionId)
	})
}

func TestUserSnapshot(t *testing.T) {
	user := &models.User{
		UserId:            "u-1",
		Username:          "alice",
		Name:              "Alice",
		Role:              "driver",
		Password:          "secret",
		Address:           "Main Street 1",
		VerificationToken: "tok",
		IsDeleted:         true,
	}
	snapshot := NewUserSnapshot(user)
	assert.Equal(t, "u-1", snapshot.UserId)
	assert.Equal(t, "alice", snapshot.Username)
	assert.Equal(t, "Alice", snapshot.Name)
	assert.Equal(t, "driver", snapshot.Role)
}

func TestRepairResets(t *testing.T) {
	t.Run("corrected series is non decreasing", func(t *testing.T) {
		start := StartRecord{MeterStart: 1000, Timestamp: t0}
		samples := []MeterSample{
			energySample(t0.Add(1*time.Minute), 1500),
			energySample(t0.Add(2*time.Minute), 200),
			energySample(t0.Add(3*time.Minute), 100),
			energySample(t0.Add(4*time.Minute), 2000),
		}
		series := buildEnergySeries(start, nil, samples)
		require.Len(t, series, 5)
		for i := 1; i < len(series); i++ {
			assert.GreaterOrEqual(t, series[i].Corrected, series[i-1].Corrected)
		}
	})

	t.Run("first point is taken verbatim", func(t *testing.T) {
		start := StartRecord{MeterStart: 1000, Timestamp: t0}
		series := buildEnergySeries(start, nil, nil)
		require.Len(t, series, 1)
		assert.Equal(t, 1000.0, series[0].Corrected)
	})
}

func TestNewMeterSample(t *testing.T) {
	t.Run("normalizes kilo units", func(t *testing.T) {
		sample, ok := NewMeterSample(t0, types.SampledValue{
			Value:     "1.5",
			Measurand: types.MeasurandEnergyActiveImportRegister,
			Context:   types.ReadingContextSamplePeriodic,
			Unit:      types.UnitOfMeasureKWh,
		})
		require.True(t, ok)
		assert.Equal(t, 1500.0, sample.Value)
		assert.Equal(t, types.UnitOfMeasureWh, sample.Unit)
	})

	t.Run("defaults the measurand to the energy register", func(t *testing.T) {
		sample, ok := NewMeterSample(t0, types.SampledValue{Value: "42"})
		require.True(t, ok)
		assert.Equal(t, types.MeasurandEnergyActiveImportRegister, sample.Measurand)
	})

	t.Run("rejects unparsable values", func(t *testing.T) {
		_, ok := NewMeterSample(t0, types.SampledValue{Value: "n/a"})
		assert.False(t, ok)
	})

	t.Run("rejects a zero timestamp", func(t *testing.T) {
		_, ok := NewMeterSample(time.Time{}, types.SampledValue{Value: "42"})
		assert.False(t, ok)
	})
}
