package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	refreshCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "viper_hass",
		Subsystem: "coordinator",
		Name:      "refresh_cycles_total",
		Help:      "Refresh cycles by outcome (success, failed, auth_failed).",
	}, []string{"account", "result"})

	vehicleFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "viper_hass",
		Subsystem: "coordinator",
		Name:      "vehicle_failures_total",
		Help:      "Per-vehicle fetch failures, including partial read failures.",
	}, []string{"account"})

	boostedState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "viper_hass",
		Subsystem: "coordinator",
		Name:      "boosted",
		Help:      "1 while boosted polling is active.",
	}, []string{"account"})
)
