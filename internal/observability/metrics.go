package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal   *prometheus.CounterVec
	httpLatencySeconds  *prometheus.HistogramVec
	submissionsTotal    *prometheus.CounterVec
	proctorFramesTotal  *prometheus.CounterVec
	proctorAlertsTotal  *prometheus.CounterVec
	proctorDetectSecond prometheus.Histogram
	proctorTrackedGauge prometheus.Gauge
	proctorLogsTotal    *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors exposed on /metrics.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latency distribution of HTTP requests.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"method", "route"})

		submissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_submissions_total",
			Help: "Exam submissions by outcome.",
		}, []string{"outcome"})

		proctorFramesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_frames_total",
			Help: "Webcam frames received by outcome.",
		}, []string{"outcome"})

		proctorAlertsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_alerts_total",
			Help: "Proctoring alerts emitted by kind.",
		}, []string{"kind"})

		proctorDetectSecond = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "proctor_detect_duration_seconds",
			Help:    "Time spent decoding and running face detection on a frame.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		})

		proctorTrackedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "proctor_tracked_students",
			Help: "Students with in-memory proctoring state.",
		})

		proctorLogsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_logs_persisted_total",
			Help: "Proctor log entries handled by the persistence worker, by result.",
		}, []string{"result"})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, submissionsTotal,
			proctorFramesTotal, proctorAlertsTotal, proctorDetectSecond,
			proctorTrackedGauge, proctorLogsTotal,
		)
	})
}

// HTTPRequests exposes the counter for HTTP requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for HTTP requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// Submissions exposes the exam submission counter.
func Submissions() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsTotal
}

// ProctorFrames exposes the frame outcome counter.
func ProctorFrames() *prometheus.CounterVec {
	RegisterMetrics()
	return proctorFramesTotal
}

// ProctorAlerts exposes the alert counter.
func ProctorAlerts() *prometheus.CounterVec {
	RegisterMetrics()
	return proctorAlertsTotal
}

// ProctorDetectLatency exposes the detection latency histogram.
func ProctorDetectLatency() prometheus.Histogram {
	RegisterMetrics()
	return proctorDetectSecond
}

// ProctorTracked exposes the tracked-students gauge.
func ProctorTracked() prometheus.Gauge {
	RegisterMetrics()
	return proctorTrackedGauge
}

// ProctorLogs exposes the log persistence counter.
func ProctorLogs() *prometheus.CounterVec {
	RegisterMetrics()
	return proctorLogsTotal
}
