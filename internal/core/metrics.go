package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pipelineRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sheet2neon",
		Subsystem: "pipeline",
		Name:      "rows_total",
		Help:      "Rows processed by the pipeline, by entity and terminal state.",
	}, []string{"entity", "state"})

	pipelineRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sheet2neon",
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Pipeline runs, by entity and result (completed, interrupted).",
	}, []string{"entity", "result"})

	pipelineRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sheet2neon",
		Subsystem: "pipeline",
		Name:      "run_duration_seconds",
		Help:      "Wall time of pipeline runs.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
	}, []string{"entity"})
)

func recordRowMetric(entity string, state RowState) {
	pipelineRowsTotal.WithLabelValues(entity, state.String()).Inc()
}

func recordRunMetric(r RunReport) {
	result := "completed"
	if r.Interrupted {
		result = "interrupted"
	}
	pipelineRunsTotal.WithLabelValues(r.EntityType, result).Inc()
	pipelineRunDuration.WithLabelValues(r.EntityType).Observe(r.Duration().Seconds())
}
