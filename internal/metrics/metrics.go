// Package metrics defines the directory's Prometheus metrics, grounded on the
// teacher's promauto-based registration pattern. HTTPMiddleware records the
// HTTP request metrics; the connector, refresh, search, vote and database
// collectors are registered but nothing in the repository updates them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "trustdirectory"

// Registry is the global Prometheus registry for all metrics.
var Registry = prometheus.NewRegistry()

// AppInfo exposes version information as labels (value is always 1).
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always set to 1, version info in labels)",
	},
	[]string{"version", "commit", "build_date"},
)

// ConnectorFetchTotal counts connector fetches by outcome.
var ConnectorFetchTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connector_fetch_total",
		Help:      "Total connector fetch attempts",
	},
	[]string{"source", "outcome"}, // outcome: success|error
)

// ConnectorRecordsFetched counts records successfully parsed per connector run.
var ConnectorRecordsFetched = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connector_records_fetched_total",
		Help:      "Total records parsed per connector",
	},
	[]string{"source"},
)

// RefreshDuration tracks how long a full ingestion refresh takes.
var RefreshDuration = promauto.With(Registry).NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "refresh_duration_seconds",
		Help:      "Duration of a full ingestion refresh in seconds",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	},
)

// RefreshFacilitiesTotal records the unique-facility count reported at the
// end of each refresh.
var RefreshFacilitiesTotal = promauto.With(Registry).NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "refresh_unique_facilities",
		Help:      "Unique facility count as of the last completed refresh",
	},
)

// SearchRequestsTotal counts search requests by outcome.
var SearchRequestsTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "search_requests_total",
		Help:      "Total facility search requests",
	},
	[]string{"outcome"}, // outcome: ok|invalid|error
)

// VotesTotal counts successfully applied votes by kind.
var VotesTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "votes_total",
		Help:      "Total votes successfully applied",
	},
	[]string{"kind"}, // kind: like|dislike
)

// VotesRateLimitedTotal counts votes rejected by the cooldown or rolling-window bucket.
var VotesRateLimitedTotal = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "votes_rate_limited_total",
		Help:      "Total votes rejected for exceeding the rate limit",
	},
)

// Init registers the default Go/process collectors and sets version info.
func Init(version, commit, buildDate string) {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	AppInfo.WithLabelValues(version, commit, buildDate).Set(1)
}
