// Package metrics exposes Prometheus metrics for the analysis service
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/go-foa/internal/analysis"
)

const namespace = "go_foa"

// Metrics holds all collectors, registered on a private registry
type Metrics struct {
	registry *prometheus.Registry

	// Analysis metrics
	Analyses               *prometheus.CounterVec
	AnalysisDuration       prometheus.Histogram
	DegradedFrames         *prometheus.CounterVec
	EstimationFallbacks    prometheus.Counter
	ClassificationFailures prometheus.Counter
	Transcriptions         prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	UnavailableSkips       prometheus.Counter

	// Upload metrics
	UploadsRejected *prometheus.CounterVec
	UploadBytes     prometheus.Histogram

	// Feed metrics
	FeedClients   prometheus.Gauge
	FeedBroadcast prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers all metrics
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Analyses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Total number of analyses by result (ok, load_error)",
		}, []string{"result"}),
		AnalysisDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Time spent analyzing a recording, model calls included",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		DegradedFrames: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_frames_total",
			Help:      "Recordings that were not native 4-channel FOA, by reason",
		}, []string{"reason"}),
		EstimationFallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "estimation_fallbacks_total",
			Help:      "Direction or delay estimates replaced by their fallback value",
		}),
		ClassificationFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classification_failures_total",
			Help:      "Classifier calls that failed",
		}),
		Transcriptions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcriptions_total",
			Help:      "Transcripts produced",
		}),
		TranscriptionFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcription_failures_total",
			Help:      "Recognizer calls that failed",
		}),
		UnavailableSkips: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "service_unavailable_skips_total",
			Help:      "Model steps skipped because the service was not initialized",
		}),

		UploadsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_rejected_total",
			Help:      "Uploads rejected before analysis, by reason",
		}, []string{"reason"}),
		UploadBytes: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_size_bytes",
			Help:      "Size of accepted uploads",
			Buckets:   prometheus.ExponentialBuckets(64*1024, 4, 8),
		}),

		FeedClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_clients",
			Help:      "Connected report feed WebSocket clients",
		}),
		FeedBroadcast: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_reports_broadcast_total",
			Help:      "Reports broadcast on the live feed",
		}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// RecordAnalysis implements analysis.Recorder
func (m *Metrics) RecordAnalysis(o analysis.Outcome) {
	m.AnalysisDuration.Observe(o.Elapsed.Seconds())

	if o.Failed {
		m.Analyses.WithLabelValues("load_error").Inc()
		return
	}
	m.Analyses.WithLabelValues("ok").Inc()

	if o.Degraded != "" {
		m.DegradedFrames.WithLabelValues(string(o.Degraded)).Inc()
	}
	m.EstimationFallbacks.Add(float64(o.EstimationFallbacks))
	if o.ClassificationFailed {
		m.ClassificationFailures.Inc()
	}
	if o.Transcribed {
		m.Transcriptions.Inc()
	}
	if o.TranscriptionFailed {
		m.TranscriptionFailures.Inc()
	}
	if o.ServiceUnavailable {
		m.UnavailableSkips.Inc()
	}
}

// ObserveHTTP records one HTTP request
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the exposition handler for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
