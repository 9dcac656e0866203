package session

import "time"

// ConsumptionInterval is the derived consumption between two consecutive
// points of the repaired energy series. Timestamp is the end of the
// interval; CumulatedWh counts from the meter-start value.
type ConsumptionInterval struct {
	Timestamp     time.Time `json:"timestamp" bson:"timestamp"`
	DiffSecs      float64   `json:"diff_secs" bson:"diff_secs"`
	PowerW        float64   `json:"power_w" bson:"power_w"`
	CumulatedWh   float64   `json:"cumulated_wh" bson:"cumulated_wh"`
	StateOfCharge *int      `json:"state_of_charge,omitempty" bson:"state_of_charge,omitempty"`
	Price         *float64  `json:"price,omitempty" bson:"price,omitempty"`
}

// computeIntervals derives one consumption interval per consecutive pair of
// energy series points. A series shorter than two points yields nothing;
// the leading synthetic point alone never produces an interval. Returns the
// intervals and the currency code reported by the pricing port, if any.
func computeIntervals(series []seriesPoint, soc []MeterSample, meterStart float64, pricing Pricing) ([]ConsumptionInterval, string) {
	if len(series) < 2 {
		return nil, ""
	}
	intervals := make([]ConsumptionInterval, 0, len(series)-1)
	currency := ""
	for i := 1; i < len(series); i++ {
		prev := series[i-1]
		cur := series[i]
		diffSecs := cur.Timestamp.Sub(prev.Timestamp).Seconds()
		if diffSecs < 0 {
			// out-of-order points are a defect in the source stream;
			// never turn them into a negative-power interval
			continue
		}
		// average power over the interval; equal timestamps yield 0 W
		multiplier := 0.0
		if diffSecs > 0 {
			multiplier = 3600 / diffSecs
		}
		delta := cur.Corrected - prev.Corrected
		interval := ConsumptionInterval{
			Timestamp:     cur.Timestamp,
			DiffSecs:      diffSecs,
			PowerW:        delta * multiplier,
			CumulatedWh:   cur.Corrected - meterStart,
			StateOfCharge: matchStateOfCharge(soc, prev.Timestamp, cur.Timestamp),
		}
		if pricing != nil {
			if priced, err := pricing.ComputePrice(delta, prev.Timestamp); err == nil && priced != nil {
				amount := Round6(priced.RoundedAmount)
				interval.Price = &amount
				currency = priced.CurrencyCode
			}
		}
		intervals = append(intervals, interval)
	}
	return intervals, currency
}

// matchStateOfCharge picks the battery level for an energy interval: the
// latest battery sample whose timestamp falls within [from, to]. No
// interpolation; a sparse battery series simply leaves gaps.
func matchStateOfCharge(soc []MeterSample, from, to time.Time) *int {
	var match *MeterSample
	for i := range soc {
		s := &soc[i]
		if s.Timestamp.Before(from) || s.Timestamp.After(to) {
			continue
		}
		if match == nil || !s.Timestamp.Before(match.Timestamp) {
			match = s
		}
	}
	if match == nil {
		return nil
	}
	level := int(match.Value)
	return &level
}
