package session

import (
	"evcore/models"
	"evcore/utility"
	"fmt"
	"math"
	"time"
)

// Transaction is a single charging session on one connector. It owns the
// raw sample list and the start/stop records; every other party works with
// copies obtained through Summary or Full.
//
// The engine assumes a single writer: the transport layer delivers events
// for one active transaction in arrival order. Concurrent embedders must
// serialize access externally.
type Transaction struct {
	Id            int                `json:"transaction_id" bson:"transaction_id"`
	SessionId     string             `json:"session_id" bson:"session_id"`
	ChargePointId string             `json:"charge_point_id" bson:"charge_point_id"`
	ConnectorId   int                `json:"connector_id" bson:"connector_id"`
	Start         StartRecord        `json:"start" bson:"start"`
	Stop          *StopRecord        `json:"stop,omitempty" bson:"stop,omitempty"`
	RemoteStop    *RemoteStopRequest `json:"remote_stop,omitempty" bson:"remote_stop,omitempty"`
	Samples       []MeterSample      `json:"meter_samples" bson:"meter_samples"`

	pricing Pricing
	cache   *derived
}

// derived holds everything recomputed lazily from the raw samples. It is
// dropped on every mutation and rebuilt on the next read.
type derived struct {
	series    []seriesPoint
	soc       []MeterSample
	intervals []ConsumptionInterval
	currency  string
}

func NewTransaction(id int, chargePointId string, connectorId int, user *models.User, idTag string, meterStart int, timestamp time.Time) *Transaction {
	return &Transaction{
		Id:            id,
		SessionId:     utility.NewUUID(),
		ChargePointId: chargePointId,
		ConnectorId:   connectorId,
		Start: StartRecord{
			MeterStart: float64(meterStart),
			Timestamp:  timestamp,
			IdTag:      idTag,
			User:       NewUserSnapshot(user),
		},
	}
}

// SetPricing attaches the pricing port. Without one, consumption is metered
// but carries no monetary amounts.
func (t *Transaction) SetPricing(pricing Pricing) {
	t.pricing = pricing
	t.cache = nil
}

func (t *Transaction) Active() bool {
	return t.Stop == nil
}

// AddSample appends a meter reading to the transaction. Samples without a
// timestamp are dropped; hardware telemetry is noisy and a bad reading must
// not take the session down. Samples on a finished transaction are refused.
func (t *Transaction) AddSample(sample MeterSample) error {
	if !t.Active() {
		return fmt.Errorf("transaction #%d is finished, meter sample rejected", t.Id)
	}
	if sample.Timestamp.IsZero() {
		return nil
	}
	t.Samples = append(t.Samples, sample)
	t.cache = nil
	return nil
}

// RequestRemoteStop notes that an operator asked for the session to end.
// The request replaces any earlier one and changes nothing else; the charge
// point still has to report the actual stop.
func (t *Transaction) RequestRemoteStop(idTag string, timestamp time.Time) error {
	if !t.Active() {
		return fmt.Errorf("transaction #%d is finished, remote stop rejected", t.Id)
	}
	t.RemoteStop = &RemoteStopRequest{IdTag: idTag, Timestamp: timestamp}
	return nil
}

// StopCharging finalizes the transaction: it computes the totals over the
// full series including the trailing meter-stop point, freezes them into
// the stop record and makes the transaction read-only. Stopping twice is an
// error.
func (t *Transaction) StopCharging(user *models.User, idTag string, meterStop int, timestamp time.Time) error {
	if t.Stop != nil {
		return fmt.Errorf("transaction #%d is already finished", t.Id)
	}
	stop := &StopRecord{
		MeterStop: float64(meterStop),
		Timestamp: timestamp,
		IdTag:     idTag,
		User:      NewUserSnapshot(user),
	}
	series := buildEnergySeries(t.Start, stop, t.Samples)
	soc := buildSoCSeries(t.Samples)
	intervals, currency := computeIntervals(series, soc, t.Start.MeterStart, t.pricing)

	if n := len(intervals); n > 0 {
		stop.TotalConsumptionWh = int(math.Floor(intervals[n-1].CumulatedWh))
	}
	stop.TotalDurationSecs = int(timestamp.Sub(t.Start.Timestamp).Seconds())
	stop.TotalInactivitySecs = inactivitySecs(intervals)
	if len(soc) > 0 {
		first := int(soc[0].Value)
		last := int(soc[len(soc)-1].Value)
		stop.StartSoC = &first
		stop.EndSoC = &last
	}
	if t.pricing != nil {
		total := totalPrice(intervals)
		stop.TotalPrice = &total
		stop.PriceUnit = currency
	}

	t.Stop = stop
	t.cache = &derived{series: series, soc: soc, intervals: intervals, currency: currency}
	return nil
}

func (t *Transaction) compute() *derived {
	if t.cache == nil {
		d := &derived{}
		d.series = buildEnergySeries(t.Start, t.Stop, t.Samples)
		d.soc = buildSoCSeries(t.Samples)
		d.intervals, d.currency = computeIntervals(d.series, d.soc, t.Start.MeterStart, t.pricing)
		t.cache = d
	}
	return t.cache
}

// Consumption returns a copy of the derived consumption intervals.
func (t *Transaction) Consumption() []ConsumptionInterval {
	return copyIntervals(t.compute().intervals)
}

// CurrentPowerW is the power drawn over the most recent interval, in whole
// watts. A finished transaction draws nothing.
func (t *Transaction) CurrentPowerW() int {
	if !t.Active() {
		return 0
	}
	intervals := t.compute().intervals
	if len(intervals) == 0 {
		return 0
	}
	return int(math.Floor(intervals[len(intervals)-1].PowerW))
}

// TotalEnergyWh is the consumed energy since meter start. While the
// transaction runs it follows the latest interval; once finished it is the
// frozen stop total and never changes again.
func (t *Transaction) TotalEnergyWh() int {
	if t.Stop != nil {
		return t.Stop.TotalConsumptionWh
	}
	intervals := t.compute().intervals
	if len(intervals) == 0 {
		return 0
	}
	return int(math.Floor(intervals[len(intervals)-1].CumulatedWh))
}

// DurationSecs is the session length: up to the latest meter reading while
// running, up to the stop timestamp once finished.
func (t *Transaction) DurationSecs() int {
	if t.Stop != nil {
		return t.Stop.TotalDurationSecs
	}
	series := t.compute().series
	if len(series) == 0 {
		return 0
	}
	last := series[len(series)-1].Timestamp
	return int(last.Sub(t.Start.Timestamp).Seconds())
}

// InactivitySecs is the accumulated time the cable was plugged without
// power being delivered.
func (t *Transaction) InactivitySecs() int {
	if t.Stop != nil {
		return t.Stop.TotalInactivitySecs
	}
	return inactivitySecs(t.compute().intervals)
}

// IsLoading reports whether the vehicle is still drawing power, judged by
// the average over the last two intervals. With no intervals computed yet
// the session reports as loading; the charge point has simply not sampled
// yet. A finished transaction never loads.
func (t *Transaction) IsLoading() bool {
	if !t.Active() {
		return false
	}
	intervals := t.compute().intervals
	n := len(intervals)
	if n == 0 {
		return true
	}
	window := 2
	if n < window {
		window = n
	}
	sum := 0.0
	for _, interval := range intervals[n-window:] {
		sum += interval.PowerW
	}
	return sum/float64(window) > 0
}

// TotalPrice is the sum of the interval prices, rounded to 6 decimals.
// Zero without a pricing port.
func (t *Transaction) TotalPrice() float64 {
	if t.Stop != nil && t.Stop.TotalPrice != nil {
		return *t.Stop.TotalPrice
	}
	return totalPrice(t.compute().intervals)
}

// StartSoC is the first reported battery level, if any.
func (t *Transaction) StartSoC() *int {
	if t.Stop != nil {
		return copyInt(t.Stop.StartSoC)
	}
	soc := t.compute().soc
	if len(soc) == 0 {
		return nil
	}
	level := int(soc[0].Value)
	return &level
}

// CurrentSoC is the latest reported battery level while the transaction
// runs; once finished it is the frozen end level.
func (t *Transaction) CurrentSoC() *int {
	if t.Stop != nil {
		return copyInt(t.Stop.EndSoC)
	}
	soc := t.compute().soc
	if len(soc) == 0 {
		return nil
	}
	level := int(soc[len(soc)-1].Value)
	return &level
}

// inactivitySecs sums the length of every idle interval that has an idle
// neighbour. A stalled span needs at least two consecutive zero-power
// samples; a single zero reading between active ones does not count.
func inactivitySecs(intervals []ConsumptionInterval) int {
	n := len(intervals)
	idle := func(i int) bool {
		return i >= 0 && i < n && intervals[i].PowerW == 0
	}
	total := 0.0
	for i := 0; i < n; i++ {
		if idle(i) && (idle(i-1) || idle(i+1)) {
			total += intervals[i].DiffSecs
		}
	}
	return int(total)
}

func totalPrice(intervals []ConsumptionInterval) float64 {
	sum := 0.0
	for _, interval := range intervals {
		if interval.Price != nil {
			sum += *interval.Price
		}
	}
	if math.IsNaN(sum) {
		return 0
	}
	return Round6(sum)
}
