package counters

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var connectionsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "server",
	Name:      "connections_active",
	Help:      "Number of active ws connections",
}, []string{"location"})

var activeTransactionsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "server",
	Name:      "transactions_active",
	Help:      "Number of active charging transactions",
}, []string{"location"})

var errorCounts = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ocpp",
	Name:      "vendor_error_count",
	Help:      "Total number of errors by vendor code.",
}, []string{"location", "code", "charge_point_id"})

var transactionCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ocpp",
	Name:      "transaction_count",
	Help:      "Total number of transactions.",
}, []string{"location", "charge_point_id"})

var powerCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ocpp",
	Name:      "consumed_energy_wh",
	Help:      "Consumed energy in watt-hours.",
}, []string{"location", "charge_point_id"})

var powerRateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "ocpp",
	Name:      "current_power_rate",
	Help:      "Power rate on current transactions.",
}, []string{"location", "charge_point_id", "connector_id"})

func ObserveConnections(location string, count int) {
	if len(location) == 0 {
		return
	}
	connectionsGauge.With(prometheus.Labels{"location": location}).Set(float64(count))
}

func ObserveTransactions(location string, count int) {
	if len(location) == 0 {
		return
	}
	activeTransactionsGauge.With(prometheus.Labels{"location": location}).Set(float64(count))
}

func ObserveError(location, chargePointId, code string) {
	if len(location) == 0 || len(code) == 0 || len(chargePointId) == 0 {
		return
	}
	errorCounts.With(prometheus.Labels{"location": location, "code": code, "charge_point_id": chargePointId}).Inc()
}

func CountTransaction(location, chargePointId string) {
	if len(location) == 0 || len(chargePointId) == 0 {
		return
	}
	transactionCounter.With(
		prometheus.Labels{
			"location":        location,
			"charge_point_id": chargePointId,
		}).Inc()
}

func CountConsumedEnergy(location, chargePointId string, energyWh float64) {
	if len(location) == 0 || len(chargePointId) == 0 {
		return
	}
	powerCounter.With(
		prometheus.Labels{
			"location":        location,
			"charge_point_id": chargePointId,
		}).Add(energyWh)
}

func ObservePowerRate(location, chargePointId, connectorId string, powerW float64) {
	if len(location) == 0 {
		return
	}
	powerRateGauge.With(
		prometheus.Labels{
			"location":        location,
			"charge_point_id": chargePointId,
			"connector_id":    connectorId,
		}).Set(powerW)
}
