package session

import "time"

// Summary is the cheap projection of a transaction: identifiers, status and
// totals, without the raw sample list or pricing internals. Safe to hand to
// the REST API and event publishing.
type Summary struct {
	Id                  int        `json:"transaction_id"`
	SessionId           string     `json:"session_id"`
	ChargePointId       string     `json:"charge_point_id"`
	ConnectorId         int        `json:"connector_id"`
	IdTag               string     `json:"id_tag"`
	Username            string     `json:"username"`
	Active              bool       `json:"active"`
	TimeStart           time.Time  `json:"time_start"`
	TimeStop            *time.Time `json:"time_stop,omitempty"`
	CurrentPowerW       int        `json:"current_power_w"`
	TotalEnergyWh       int        `json:"total_energy_wh"`
	TotalDurationSecs   int        `json:"total_duration_secs"`
	TotalInactivitySecs int        `json:"total_inactivity_secs"`
	IsLoading           bool       `json:"is_loading"`
	StateOfCharge       *int       `json:"state_of_charge,omitempty"`
	TotalPrice          *float64   `json:"total_price,omitempty"`
	PriceUnit           string     `json:"price_unit,omitempty"`
	RemoteStopRequested bool       `json:"remote_stop_requested"`
}

// Details is the full projection: the summary plus independently copied
// records, raw samples and consumption intervals. Mutating the returned
// value cannot corrupt the transaction.
type Details struct {
	Summary
	Start       StartRecord           `json:"start"`
	Stop        *StopRecord           `json:"stop,omitempty"`
	RemoteStop  *RemoteStopRequest    `json:"remote_stop,omitempty"`
	Samples     []MeterSample         `json:"meter_samples"`
	Consumption []ConsumptionInterval `json:"consumption"`
}

func (t *Transaction) Summary() Summary {
	s := Summary{
		Id:                  t.Id,
		SessionId:           t.SessionId,
		ChargePointId:       t.ChargePointId,
		ConnectorId:         t.ConnectorId,
		IdTag:               t.Start.IdTag,
		Username:            t.Start.User.Username,
		Active:              t.Active(),
		TimeStart:           t.Start.Timestamp,
		CurrentPowerW:       t.CurrentPowerW(),
		TotalEnergyWh:       t.TotalEnergyWh(),
		TotalDurationSecs:   t.DurationSecs(),
		TotalInactivitySecs: t.InactivitySecs(),
		IsLoading:           t.IsLoading(),
		StateOfCharge:       t.CurrentSoC(),
		RemoteStopRequested: t.RemoteStop != nil,
	}
	if t.Stop != nil {
		stopTime := t.Stop.Timestamp
		s.TimeStop = &stopTime
		s.TotalPrice = copyFloat(t.Stop.TotalPrice)
		s.PriceUnit = t.Stop.PriceUnit
	} else if t.pricing != nil {
		total := t.TotalPrice()
		s.TotalPrice = &total
		s.PriceUnit = t.compute().currency
	}
	return s
}

func (t *Transaction) Full() Details {
	d := Details{
		Summary:     t.Summary(),
		Start:       t.Start,
		Samples:     append([]MeterSample(nil), t.Samples...),
		Consumption: copyIntervals(t.compute().intervals),
	}
	if t.Stop != nil {
		stop := *t.Stop
		stop.StartSoC = copyInt(t.Stop.StartSoC)
		stop.EndSoC = copyInt(t.Stop.EndSoC)
		stop.TotalPrice = copyFloat(t.Stop.TotalPrice)
		d.Stop = &stop
	}
	if t.RemoteStop != nil {
		remoteStop := *t.RemoteStop
		d.RemoteStop = &remoteStop
	}
	return d
}

func copyIntervals(intervals []ConsumptionInterval) []ConsumptionInterval {
	if intervals == nil {
		return nil
	}
	out := make([]ConsumptionInterval, len(intervals))
	for i, interval := range intervals {
		interval.StateOfCharge = copyInt(interval.StateOfCharge)
		interval.Price = copyFloat(interval.Price)
		out[i] = interval
	}
	return out
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
