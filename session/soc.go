package session

import "sort"

// buildSoCSeries filters the battery level samples and orders them by time.
// The battery reports on its own, usually sparser schedule and is matched
// to energy intervals later; the two series are kept independent.
func buildSoCSeries(samples []MeterSample) []MeterSample {
	series := make([]MeterSample, 0, len(samples))
	for _, s := range samples {
		if s.Timestamp.IsZero() {
			continue
		}
		if !s.isStateOfCharge() {
			continue
		}
		series = append(series, s)
	}
	sort.SliceStable(series, func(i, j int) bool {
		return series[i].Timestamp.Before(series[j].Timestamp)
	})
	return series
}
