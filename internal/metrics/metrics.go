package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Generations        *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	RateLimited        *prometheus.CounterVec
}

var (
	once   sync.Once
	global *Metrics
)

func Global() *Metrics {
	once.Do(func() {
		global = New()
		prometheus.MustRegister(global.Generations, global.GenerationDuration, global.RateLimited)
	})
	return global
}

// New returns unregistered collectors, for tests and custom registries.
func New() *Metrics {
	return &Metrics{
		Generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "privatepilot",
			Name:      "generations_total",
			Help:      "Total generation calls by provider and outcome",
		}, []string{"provider", "outcome"}),
		GenerationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "privatepilot",
			Name:      "generation_duration_seconds",
			Help:      "Latency of provider generation calls",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		}, []string{"provider"}),
		RateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "privatepilot",
			Name:      "rate_limited_total",
			Help:      "Generation requests refused by the rate limiter",
		}, []string{"provider"}),
	}
}
