package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "slidecoffee"

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	QuotaRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "quota_rejections_total", Help: "Generation requests refused by the quota guard, by limit kind."},
		[]string{"limit"},
	)
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "brew_runs_total", Help: "Finished generation runs by outcome."},
		[]string{"outcome"},
	)
	RunsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "brew_runs_in_flight", Help: "Generation runs currently streaming."},
	)
	SlidesGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "brew_slides_total", Help: "Slides emitted, split into generated and placeholder."},
		[]string{"kind"},
	)
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: namespace, Name: "brew_stage_duration_seconds", Help: "Wall time spent per pipeline stage.", Buckets: prometheus.ExponentialBuckets(0.05, 2, 12)},
		[]string{"stage"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(QuotaRejections)
	reg.MustRegister(RunsTotal)
	reg.MustRegister(RunsInFlight)
	reg.MustRegister(SlidesGenerated)
	reg.MustRegister(StageDuration)
}
