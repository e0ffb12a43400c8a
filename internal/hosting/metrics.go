package hosting

import (
	"sync"
	"time"
)

// Metrics holds counters for one hosting service.
type Metrics struct {
	mu sync.RWMutex

	// Publish metrics
	publishesTotal       int64
	publishBytesTotal    int64
	publishErrorsTotal   int64
	publishDurationTotal time.Duration

	// Serve metrics
	servesTotal     int64
	serveBytesTotal int64

	// HTTP metrics
	requestsTotal    int64
	requestErrors4xx int64
	requestErrors5xx int64
}

// RecordPublish records a successful publish
func (m *Metrics) RecordPublish(bytes int64, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishesTotal++
	m.publishBytesTotal += bytes
	m.publishDurationTotal += duration
}

// RecordPublishError records a failed publish
func (m *Metrics) RecordPublishError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishErrorsTotal++
}

// RecordServe records a file handed out by the listener
func (m *Metrics) RecordServe(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servesTotal++
	m.serveBytesTotal += bytes
}

// RecordRequest records an HTTP request
func (m *Metrics) RecordRequest(statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsTotal++

	if statusCode >= 500 {
		m.requestErrors5xx++
	} else if statusCode >= 400 {
		m.requestErrors4xx++
	}
}

// Snapshot returns a snapshot of current metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MetricsSnapshot{
		PublishesTotal:       m.publishesTotal,
		PublishBytesTotal:    m.publishBytesTotal,
		PublishErrorsTotal:   m.publishErrorsTotal,
		PublishAvgDurationMs: avgDuration(m.publishDurationTotal, m.publishesTotal),
		ServesTotal:          m.servesTotal,
		ServeBytesTotal:      m.serveBytesTotal,
		RequestsTotal:        m.requestsTotal,
		RequestErrors4xx:     m.requestErrors4xx,
		RequestErrors5xx:     m.requestErrors5xx,
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	PublishesTotal       int64   `json:"publishes_total"`
	PublishBytesTotal    int64   `json:"publish_bytes_total"`
	PublishErrorsTotal   int64   `json:"publish_errors_total"`
	PublishAvgDurationMs float64 `json:"publish_avg_duration_ms"`

	ServesTotal     int64 `json:"serves_total"`
	ServeBytesTotal int64 `json:"serve_bytes_total"`

	RequestsTotal    int64 `json:"requests_total"`
	RequestErrors4xx int64 `json:"request_errors_4xx"`
	RequestErrors5xx int64 `json:"request_errors_5xx"`
}

func avgDuration(total time.Duration, count int64) float64 {
	if count == 0 {
		return 0
	}
	return float64(total.Milliseconds()) / float64(count)
}
