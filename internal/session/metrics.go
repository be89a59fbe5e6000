package session

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_session_transitions_total",
			Help: "Session transitions applied, by operation and whether they changed state",
		},
		[]string{"op", "changed"},
	)

	persistFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_session_persist_failures_total",
			Help: "Session record writes that failed and were dropped",
		},
	)

	reloadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_session_reloads_total",
			Help: "Sessions reloaded after a profile change in another tab",
		},
	)

	openTabs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_session_open_tabs",
			Help: "Tabs currently holding a session",
		},
	)
)

func init() {
	prometheus.MustRegister(transitionsTotal, persistFailuresTotal, reloadsTotal, openTabs)
}

func observeTransition(op string, changed bool) {
	transitionsTotal.WithLabelValues(op, strconv.FormatBool(changed)).Inc()
}
