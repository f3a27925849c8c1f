// Package metrics exposes Prometheus instrumentation for the poll loop.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var once sync.Once

var (
	pollCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "busalert_poll_cycles_total",
			Help: "Total number of completed poll cycles.",
		},
	)

	lookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "busalert_lookups_total",
			Help: "Per-subscription lookup outcomes, labeled by status.",
		},
		[]string{"status"}, // ok, no_seats, bad_city, bad_date, lookup_error
	)

	alertsSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "busalert_alerts_sent_total",
			Help: "Total number of availability alerts dispatched.",
		},
	)

	activeSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "busalert_active_subscriptions",
			Help: "Eligible subscriptions observed by the latest poll snapshot.",
		},
	)
)

// Register installs all collectors on the default registry. Safe to call
// more than once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			pollCyclesTotal,
			lookupsTotal,
			alertsSentTotal,
			activeSubscriptions,
		)
	})
}

func IncPollCycle()                 { pollCyclesTotal.Inc() }
func IncLookup(status string)       { lookupsTotal.WithLabelValues(status).Inc() }
func IncAlertSent()                 { alertsSentTotal.Inc() }
func SetActiveSubscriptions(n int)  { activeSubscriptions.Set(float64(n)) }
