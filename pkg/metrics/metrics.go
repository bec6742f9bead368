// Package metrics provides the Prometheus collectors for the telemetry
// pipeline.  Malformed frames and queue evictions are designed-for steady
// states, so they are counted here rather than surfaced as errors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FramesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "afo_frames_received_total",
		Help: "Telemetry frames received from the simulation host",
	})

	FramesMalformed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "afo_frames_malformed_total",
		Help: "Frames dropped for having the wrong byte length",
	})

	QueueEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "afo_queue_evictions_total",
		Help: "Samples evicted from the shared hand-off queue (drop-oldest)",
	})

	SamplesDispatched = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "afo_samples_dispatched_total",
		Help: "Samples fanned out to subscriber queues",
	})

	SubscriberEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "afo_subscriber_evictions_total",
		Help: "Samples dropped from individual subscriber queues (drop-oldest)",
	})

	SubscriberRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "afo_subscriber_rejections_total",
		Help: "Subscription attempts rejected by the concurrent-client cap",
	})

	ActiveSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "afo_active_subscribers",
		Help: "Currently connected push-channel subscribers",
	})

	ControlSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "afo_control_frames_sent_total",
		Help: "Control frames transmitted to the simulation host",
	})

	ControlThrottled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "afo_control_frames_throttled_total",
		Help: "Control sends dropped by the minimum-interval rate limit",
	})

	ControlFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "afo_control_frames_failed_total",
		Help: "Control sends that failed at the transport (fire-and-forget)",
	})

	AvgSampleInterval = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "afo_sample_avg_dt_seconds",
		Help: "Running mean of simulation-time deltas between samples",
	})
)

func init() {
	prometheus.MustRegister(
		FramesReceived,
		FramesMalformed,
		QueueEvictions,
		SamplesDispatched,
		SubscriberEvictions,
		SubscriberRejections,
		ActiveSubscribers,
		ControlSent,
		ControlThrottled,
		ControlFailed,
		AvgSampleInterval,
	)
}

// Handler returns the scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
