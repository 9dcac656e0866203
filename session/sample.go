package session

import (
	"evcore/types"
	"evcore/utility"
	"time"
)

// MeterSample is a single hardware reading reported by a charge point
// within a transaction. Recorded as received, never mutated.
type MeterSample struct {
	Timestamp time.Time            `json:"timestamp" bson:"timestamp"`
	Measurand types.Measurand      `json:"measurand" bson:"measurand"`
	Context   types.ReadingContext `json:"context" bson:"context"`
	Value     float64              `json:"value" bson:"value"`
	Unit      types.UnitOfMeasure  `json:"unit,omitempty" bson:"unit,omitempty"`
}

// NewMeterSample converts an OCPP sampled value into a meter sample.
// Values reported in kilo-units are normalized to base units. Returns false
// for readings that cannot be parsed; those are skipped, not fatal.
func NewMeterSample(timestamp time.Time, value types.SampledValue) (MeterSample, bool) {
	if timestamp.IsZero() {
		return MeterSample{}, false
	}
	v, err := utility.ToFloat(value.Value)
	if err != nil {
		return MeterSample{}, false
	}
	measurand := value.Measurand
	if measurand == "" {
		measurand = types.MeasurandEnergyActiveImportRegister
	}
	unit := value.Unit
	switch unit {
	case types.UnitOfMeasureKWh:
		v *= 1000
		unit = types.UnitOfMeasureWh
	case types.UnitOfMeasureKW:
		v *= 1000
		unit = types.UnitOfMeasureW
	}
	return MeterSample{
		Timestamp: timestamp,
		Measurand: measurand,
		Context:   value.Context,
		Value:     v,
		Unit:      unit,
	}, true
}

// isEnergyRegister reports whether the sample is a reading of the cumulative
// energy import counter taken on a periodic or clock-aligned schedule.
func (s MeterSample) isEnergyRegister() bool {
	if s.Measurand != types.MeasurandEnergyActiveImportRegister {
		return false
	}
	return s.Context == types.ReadingContextSamplePeriodic || s.Context == types.ReadingContextSampleClock
}

// isStateOfCharge reports whether the sample carries the vehicle battery
// level, either sampled periodically or attached to a transaction boundary.
func (s MeterSample) isStateOfCharge() bool {
	if s.Measurand != types.MeasurandSoC {
		return false
	}
	switch s.Context {
	case types.ReadingContextSamplePeriodic, types.ReadingContextTransactionBegin, types.ReadingContextTransactionEnd:
		return true
	}
	return false
}
