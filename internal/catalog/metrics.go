package catalog

import "github.com/prometheus/client_golang/prometheus"

var (
	lookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "salon",
		Subsystem: "catalog",
		Name:      "lookups_total",
		Help:      "Service lookups by outcome (match, synthetic, miss).",
	}, []string{"result"})

	syncRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "salon",
		Subsystem: "catalog",
		Name:      "sync_runs_total",
		Help:      "Catalog sync runs by status.",
	}, []string{"status"})

	syncedServices = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "salon",
		Subsystem: "catalog",
		Name:      "synced_services",
		Help:      "Services written by the last successful sync.",
	})
)

func init() {
	prometheus.MustRegister(lookupsTotal, syncRunsTotal, syncedServices)
}

// RegisterMetrics registers catalog collectors with a custom registry.
func RegisterMetrics(reg prometheus.Registerer) {
	if reg == nil || reg == prometheus.DefaultRegisterer {
		return
	}
	reg.MustRegister(lookupsTotal, syncRunsTotal, syncedServices)
}
