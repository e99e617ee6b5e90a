package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tablebook"

var (
	once sync.Once

	pageFetch = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_fetch_total",
			Help:      "Count of reservation page fetches by result.",
		},
		[]string{"result"},
	)

	staleResponses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_responses_total",
			Help:      "Count of page responses discarded because the feed generation advanced.",
		},
	)

	malformedRecords = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_records_total",
			Help:      "Count of records rejected at the merge boundary.",
		},
	)

	statusUpdate = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_update_total",
			Help:      "Count of reservation status updates by result.",
		},
		[]string{"result"},
	)

	debounceCoalesced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debounce_coalesced_total",
			Help:      "Count of filter reloads replaced by a later filter change.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(pageFetch, staleResponses, malformedRecords, statusUpdate, debounceCoalesced)
	})
}

func IncPageFetch(result string) {
	pageFetch.WithLabelValues(result).Inc()
}

func IncStaleResponse() {
	staleResponses.Inc()
}

func AddMalformedRecords(n int) {
	malformedRecords.Add(float64(n))
}

func IncStatusUpdate(result string) {
	statusUpdate.WithLabelValues(result).Inc()
}

func IncDebounceCoalesced() {
	debounceCoalesced.Inc()
}
