// Package metrics provides Prometheus metrics for the merge queue
// notification pipeline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// notificationsSentTotal records the number of notification emails handed
	// to the mail provider.
	// Labels:
	//   - change_type: "created", "updated" or "deleted"
	//   - status: "sent" or "error"
	notificationsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mergeq_notifications_sent_total",
			Help: "Total number of notification emails handed to the mail provider",
		},
		[]string{"change_type", "status"},
	)

	// pipelineSkippedTotal records pipeline invocations that terminated in an
	// absorbing state without sending anything.
	// Labels:
	//   - reason: "disabled", "no_change", "queue_missing", "no_recipients",
	//     "error"
	pipelineSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mergeq_pipeline_skipped_total",
			Help: "Total number of pipeline invocations that stopped without sending",
		},
		[]string{"reason"},
	)

	// pipelineDuration records the wall-clock duration of one pipeline
	// invocation, from trigger delivery to dispatch completion.
	// Buckets cover the expected range of two document reads plus one
	// provider round trip.
	pipelineDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mergeq_pipeline_duration_seconds",
			Help:    "Duration of one notification pipeline invocation in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
	)
)

func init() {
	prometheus.MustRegister(
		notificationsSentTotal,
		pipelineSkippedTotal,
		pipelineDuration,
	)
}

// RecordNotificationsSent increments the sent counter by the number of
// recipients in a dispatch.
func RecordNotificationsSent(changeType, status string, count int) {
	notificationsSentTotal.WithLabelValues(changeType, status).Add(float64(count))
}

// RecordPipelineSkip increments the skip counter for an absorbing state.
func RecordPipelineSkip(reason string) {
	pipelineSkippedTotal.WithLabelValues(reason).Inc()
}

// RecordPipelineDuration records the duration of one pipeline invocation.
func RecordPipelineDuration(seconds float64) {
	pipelineDuration.Observe(seconds)
}
