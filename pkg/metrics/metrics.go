package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Routing metrics
	PartitionsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "burrow_partitions_total",
			Help: "Number of partitions in the routing table",
		},
	)

	// Pub/sub metrics
	ChannelsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "burrow_channels_active",
			Help: "Number of channels currently mapped in the registry",
		},
	)

	PubSubEntriesActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "burrow_pubsub_entries_active",
			Help: "Number of live pub/sub pool entries",
		},
	)

	SubscribesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_subscribes_total",
			Help: "Total number of channel subscriptions by kind",
		},
		[]string{"kind"},
	)

	UnsubscribesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_unsubscribes_total",
			Help: "Total number of network unsubscribes issued",
		},
	)

	ResubscribesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_resubscribes_total",
			Help: "Total number of channels re-homed after a replica loss",
		},
	)

	// Checkout metrics
	CheckoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_checkouts_total",
			Help: "Total number of connection checkouts by operation",
		},
		[]string{"op"},
	)

	CheckoutTimeoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_checkout_timeouts_total",
			Help: "Total number of checkouts released by the operation timeout",
		},
	)

	PendingOperations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "burrow_pending_operations",
			Help: "Checkouts admitted by the shutdown latch and not yet released",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(PartitionsTotal)
	prometheus.MustRegister(ChannelsActive)
	prometheus.MustRegister(PubSubEntriesActive)
	prometheus.MustRegister(SubscribesTotal)
	prometheus.MustRegister(UnsubscribesTotal)
	prometheus.MustRegister(ResubscribesTotal)
	prometheus.MustRegister(CheckoutsTotal)
	prometheus.MustRegister(CheckoutTimeoutsTotal)
	prometheus.MustRegister(PendingOperations)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
