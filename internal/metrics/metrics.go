package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "engine_evaluations_total", Help: "Symbol evaluations run, by result"},
		[]string{"result"}, // candidate | rejected | skipped
	)
	RejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "engine_rejections_total", Help: "Pipeline rejections by stage"},
		[]string{"stage"}, // consensus | gate | quality | assembler
	)
	SignalsReleasedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "engine_signals_released_total", Help: "Signals released per tier"},
		[]string{"tier"},
	)
	OutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "engine_outcomes_total", Help: "Closed signal outcomes by terminal state"},
		[]string{"state"},
	)
	ActiveMonitors = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "engine_active_monitors", Help: "Signals currently being tracked"},
	)
	TierBufferSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "engine_tier_buffer_size", Help: "Buffered candidates per tier"},
		[]string{"tier"},
	)
	EvaluationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engine_evaluation_cycle_seconds",
			Help:    "Wall time of one full evaluation cycle",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		EvaluationsTotal,
		RejectionsTotal,
		SignalsReleasedTotal,
		OutcomesTotal,
		ActiveMonitors,
		TierBufferSize,
		EvaluationDuration,
	)
}

// Handler exposes the registry for mounting at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
