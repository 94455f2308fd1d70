// Package metrics exposes the gateway's Prometheus instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request outcome labels.
const (
	OutcomeProxied      = "proxied"
	OutcomeUnauthorized = "unauthorized"
	OutcomeUnknownUser  = "unknown_user"
	OutcomeRateLimited  = "rate_limited"
	OutcomeLedgerErr    = "ledger_error"
	OutcomeUpstreamErr  = "upstream_error"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Proxied request attempts by outcome.",
		},
		[]string{"outcome"},
	)

	upstreamLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gateway_upstream_latency_seconds",
			Help:    "Time from forwarding a request upstream to receiving response headers.",
			Buckets: prometheus.DefBuckets,
		},
	)

	usageInputTokens = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_usage_input_tokens_total",
			Help: "Input tokens reported by upstream streamed responses.",
		},
	)

	usageOutputTokens = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_usage_output_tokens_total",
			Help: "Output tokens reported by upstream streamed responses.",
		},
	)

	usageUpdateFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_usage_update_failures_total",
			Help: "Ledger failures while attaching usage snapshots. The client response is unaffected, so this counter is the primary signal.",
		},
	)
)

// RecordRequest counts one inbound proxy request with its terminal outcome.
func RecordRequest(outcome string) {
	requestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveUpstreamLatency records the time to first upstream response.
func ObserveUpstreamLatency(d time.Duration) {
	upstreamLatency.Observe(d.Seconds())
}

// RecordUsage counts token usage extracted from one streamed response.
func RecordUsage(inputTokens, outputTokens int) {
	if inputTokens > 0 {
		usageInputTokens.Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		usageOutputTokens.Add(float64(outputTokens))
	}
}

// RecordUsageUpdateFailure counts a failed usage commit to the ledger.
func RecordUsageUpdateFailure() {
	usageUpdateFailures.Inc()
}
