// Package metrics defines the Prometheus instruments for the bot.
// All instruments register on the default registry via promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "karmabot"

// Event pipeline metrics
var (
	// EventsTotal counts inbound webhook deliveries by event type.
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Inbound webhook deliveries by event type",
		},
		[]string{"type"},
	)

	// TransactionsTotal counts accepted karma transactions by subject kind.
	TransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Accepted karma transactions by subject kind",
		},
		[]string{"kind"},
	)

	// AbortsTotal counts message derivations cut short, by reason.
	AbortsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aborts_total",
			Help:      "Message derivations cut short by reason",
		},
		[]string{"reason"},
	)

	// ProcessDurationSeconds tracks end-to-end message processing latency.
	ProcessDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "process_duration_seconds",
			Help:      "Message processing duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	// CommandsTotal counts slash-command and mention dispatches.
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Command dispatches by command name and source",
		},
		[]string{"command", "source"},
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "path"},
	)
)

// Slack client metrics
var (
	// SlackAPIRequestsTotal counts outbound Slack Web API calls by method
	// and outcome (ok, error, http status).
	SlackAPIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slack_api_requests_total",
			Help:      "Outbound Slack Web API calls by method and outcome",
		},
		[]string{"method", "outcome"},
	)

	// SlackAPIRetriesTotal counts retried Slack Web API calls.
	SlackAPIRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slack_api_retries_total",
			Help:      "Retried Slack Web API calls",
		},
	)

	// TokenLookupsTotal counts bot token resolutions by cache result.
	TokenLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_lookups_total",
			Help:      "Bot token resolutions by cache result",
		},
		[]string{"result"},
	)
)

// Handler serves the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
