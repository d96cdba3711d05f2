package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "controversy",
			Name:      "search_requests_total",
			Help:      "Total number of search API requests by outcome",
		},
		[]string{"status"},
	)

	RateLimitWaitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "controversy",
			Name:      "rate_limit_waits_total",
			Help:      "Number of times a run paused because an upstream API throttled it",
		},
		[]string{"service"},
	)

	ClassificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "controversy",
			Name:      "classifications_total",
			Help:      "Total number of tweet classifications by result",
		},
		[]string{"result"}, // "controversial" / "not_controversial" / "parse_error" / "error"
	)

	ProfilesAnalyzedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "controversy",
			Name:      "profiles_analyzed_total",
			Help:      "Total number of account analyses by status",
		},
		[]string{"status"},
	)

	FlaggedTweets = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "controversy",
			Name:      "flagged_tweets",
			Help:      "Number of controversial tweets found in the latest analysis of an account",
		},
		[]string{"username"},
	)
)
