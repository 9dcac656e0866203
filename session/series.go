package session

import (
	"sort"
	"time"
)

// seriesPoint is one point of the reconstructed energy register series.
// Raw holds the value as reported by the hardware, Corrected the value
// after counter-reset repair.
type seriesPoint struct {
	Timestamp time.Time
	Raw       float64
	Corrected float64
}

// buildEnergySeries assembles the ordered energy register series for a
// transaction: a synthetic leading point at the meter-start value, every
// periodic or clock-aligned energy register sample, and, once the
// transaction is finished, a synthetic trailing point at the meter-stop
// value. The result is sorted by timestamp (stable, so equal timestamps
// keep arrival order) and reset-repaired into a non-decreasing series.
func buildEnergySeries(start StartRecord, stop *StopRecord, samples []MeterSample) []seriesPoint {
	points := make([]seriesPoint, 0, len(samples)+2)
	points = append(points, seriesPoint{Timestamp: start.Timestamp, Raw: start.MeterStart})
	for _, s := range samples {
		if s.Timestamp.IsZero() {
			continue
		}
		if !s.isEnergyRegister() {
			continue
		}
		points = append(points, seriesPoint{Timestamp: s.Timestamp, Raw: s.Value})
	}
	if stop != nil {
		points = append(points, seriesPoint{Timestamp: stop.Timestamp, Raw: stop.MeterStop})
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	repairResets(points)
	return points
}

// repairResets rebuilds a monotonic series from a counter that can restart
// near zero after a charge point reboot. A raw value below the previous
// corrected value marks a restart: the previous corrected value is added to
// a running offset carried through the rest of the walk. Several restarts
// within one transaction accumulate additively.
func repairResets(points []seriesPoint) {
	if len(points) == 0 {
		return
	}
	points[0].Corrected = points[0].Raw
	offset := 0.0
	for i := 1; i < len(points); i++ {
		if points[i].Raw < points[i-1].Corrected {
			offset += points[i-1].Corrected
		}
		points[i].Corrected = points[i].Raw + offset
	}
}
