// Package metrics exposes Prometheus instrumentation for the transcoding
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	JobsQueued = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vodforge",
		Name:      "jobs_queued",
		Help:      "Number of jobs waiting for a worker slot.",
	})

	JobsRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vodforge",
		Name:      "jobs_running",
		Help:      "Number of jobs currently transcoding.",
	})

	JobStartsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vodforge",
		Name:      "job_starts_total",
		Help:      "Total number of transcode jobs started.",
	})

	JobOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vodforge",
		Name:      "job_outcomes_total",
		Help:      "Total number of finished jobs by terminal state.",
	}, []string{"state"})

	EncodeDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vodforge",
		Name:      "encode_duration_seconds",
		Help:      "Duration of a single rendition encode in seconds.",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
	}, []string{"rendition"})

	SegmentsWrittenTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vodforge",
		Name:      "segments_written_total",
		Help:      "Total number of media segments written by the encoder.",
	})
)

// Register registers all collectors with the given registerer.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		JobsQueued,
		JobsRunning,
		JobStartsTotal,
		JobOutcomesTotal,
		EncodeDuration,
		SegmentsWrittenTotal,
	)
}
