// Package metrics exposes the Prometheus collectors for the matching engine
// and the HTTP surface. Collectors register with the default registry at
// init, and Handler serves them.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ==============================================================================
// Matching
// ==============================================================================

var (
	// CycleRuns counts batch cycles by outcome and trigger
	CycleRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nemesis_cycle_runs_total",
		Help: "Matching cycles by result and trigger",
	}, []string{"result", "trigger"})

	// CycleDuration tracks end-to-end cycle latency
	CycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nemesis_cycle_duration_seconds",
		Help:    "Matching cycle duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
	}, []string{"result"})

	// MatchesCreated counts committed match records
	MatchesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nemesis_matches_created_total",
		Help: "Match records committed to the ledger",
	}, []string{"kind"})

	// UsersSkipped counts population members left unmatched in a cycle
	UsersSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nemesis_users_skipped_total",
		Help: "Users left unmatched in a cycle by reason",
	}, []string{"reason"})

	// CandidateEdges records how many eligible pairs a cycle scored
	CandidateEdges = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nemesis_cycle_candidate_edges",
		Help:    "Eligible scored pairs per cycle",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})

	// PairConflicts counts appends rejected because the pair was committed
	// concurrently inside the window
	PairConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nemesis_ledger_pair_conflicts_total",
		Help: "Ledger appends rejected by the exclusion window guard",
	}, []string{"kind"})

	// FindEnemyRequests counts on-demand matching by outcome
	FindEnemyRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nemesis_find_enemy_total",
		Help: "On-demand matching requests by result",
	}, []string{"result"})

	// Notifications counts match notifications by outcome
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nemesis_notifications_total",
		Help: "Match notifications by result",
	}, []string{"result"})
)

// ==============================================================================
// HTTP
// ==============================================================================

var (
	// RateLimited counts requests rejected by a rate limiter scope
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nemesis_rate_limited_total",
		Help: "Requests rejected by rate limiting",
	}, []string{"scope"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nemesis_http_requests_total",
		Help: "HTTP requests by route and status class",
	}, []string{"route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nemesis_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

// Result label values
const (
	ResultSuccess     = "success"
	ResultConflict    = "conflict"
	ResultNoCandidate = "no_candidate"
	ResultError       = "error"
	ResultSkipped     = "skipped"
)

// ObserveCycle records the outcome of one cycle run.
func ObserveCycle(result, trigger string, started time.Time) {
	CycleRuns.WithLabelValues(result, trigger).Inc()
	CycleDuration.WithLabelValues(result).Observe(time.Since(started).Seconds())
}

// ObserveRequest records one served HTTP request.
func ObserveRequest(route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(route, statusClass(status)).Inc()
	httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
