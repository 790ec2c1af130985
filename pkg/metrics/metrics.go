package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Classification call latency in milliseconds.
	ClassifyLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "classify_call_latency_ms",
			Help:    "AI classification call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"outcome"},
	)

	// Gmail API call latency in milliseconds.
	MailboxCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailbox_call_latency_ms",
			Help:    "Mailbox provider call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"operation", "status"},
	)

	// HTTP request latency in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	EmailProcessedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_processed_count",
			Help: "Total number of emails processed by the import pipeline",
		},
		[]string{"status"}, // status: imported, skipped, spam, failed
	)

	TaskGenerationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "task_generation_count",
			Help: "Total number of tasks generated from classified emails",
		},
		[]string{"priority"},
	)

	ImportRunCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_run_count",
			Help: "Total number of import runs by terminal status",
		},
		[]string{"status"}, // status: completed, failed
	)

	TokensUsedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ai_tokens_used_total",
			Help: "Cumulative AI tokens reported by the provider",
		},
	)
)

// RecordClassifyLatency records one classification call.
func RecordClassifyLatency(outcome string, duration time.Duration) {
	ClassifyLatency.WithLabelValues(outcome).Observe(float64(duration.Milliseconds()))
}

// RecordMailboxCallLatency records one mailbox provider call.
func RecordMailboxCallLatency(operation, status string, duration time.Duration) {
	MailboxCallLatency.WithLabelValues(operation, status).Observe(float64(duration.Milliseconds()))
}

// RecordHTTPRequestDuration records one HTTP request.
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementEmailProcessed counts one processed email by outcome.
func IncrementEmailProcessed(status string) {
	EmailProcessedCount.WithLabelValues(status).Inc()
}

// IncrementTaskGeneration counts one generated task.
func IncrementTaskGeneration(priority string) {
	TaskGenerationCount.WithLabelValues(priority).Inc()
}

// IncrementImportRun counts one finished import run.
func IncrementImportRun(status string) {
	ImportRunCount.WithLabelValues(status).Inc()
}

// AddTokensUsed adds provider-reported token usage.
func AddTokensUsed(tokens int) {
	if tokens > 0 {
		TokensUsedTotal.Add(float64(tokens))
	}
}
