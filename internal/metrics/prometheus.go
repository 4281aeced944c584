package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the transcription client
type Metrics struct {
	// Session metrics
	SessionsStarted prometheus.Counter
	SessionsClosed  prometheus.Counter
	SessionsFailed  *prometheus.CounterVec
	SessionDuration prometheus.Histogram
	StartLatency    prometheus.Histogram

	// Audio streaming metrics
	ChunksSent    prometheus.Counter
	BytesSent     prometheus.Counter
	ChunkSize     prometheus.Histogram
	AudioAckLag   prometheus.Gauge
	ForcedFlushes prometheus.Counter

	// Transcript metrics
	PartialTranscripts prometheus.Counter
	FinalTranscripts   prometheus.Counter
	ServerWarnings     prometheus.Counter
	TranscriptLatency  prometheus.Histogram

	// Endpoint detection metrics
	VADWindowsProcessed prometheus.Counter
	VADVoiceDetected    prometheus.Counter
	EndpointsDetected   prometheus.Counter

	// Event publishing metrics
	EventsPublished prometheus.Counter
	EventsFailed    prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Session metrics
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rt_sessions_started_total",
			Help: "Total number of transcription sessions started",
		}),
		SessionsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rt_sessions_closed_total",
			Help: "Total number of sessions that completed gracefully",
		}),
		SessionsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rt_sessions_failed_total",
			Help: "Total number of failed sessions",
		}, []string{"reason"}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rt_session_duration_seconds",
			Help:    "Duration of transcription sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17 minutes
		}),
		StartLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rt_session_start_latency_seconds",
			Help:    "Time from dial to session acknowledgment",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~10s
		}),

		// Audio streaming metrics
		ChunksSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rt_audio_chunks_sent_total",
			Help: "Total number of audio chunks sent",
		}),
		BytesSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rt_audio_bytes_sent_total",
			Help: "Total audio payload bytes sent",
		}),
		ChunkSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rt_audio_chunk_size_bytes",
			Help:    "Size of sent audio chunks in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 2, 10), // 256B to ~128KB
		}),
		AudioAckLag: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rt_audio_ack_lag_chunks",
			Help: "Sent chunks not yet acknowledged by the server",
		}),
		ForcedFlushes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rt_forced_utterance_flushes_total",
			Help: "Total number of early utterance flush requests",
		}),

		// Transcript metrics
		PartialTranscripts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rt_partial_transcripts_total",
			Help: "Total number of partial transcript events received",
		}),
		FinalTranscripts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rt_final_transcripts_total",
			Help: "Total number of final transcript events received",
		}),
		ServerWarnings: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rt_server_warnings_total",
			Help: "Total number of non-fatal server warnings received",
		}),
		TranscriptLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rt_transcript_latency_seconds",
			Help:    "Delay between audio time and transcript arrival",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),

		// Endpoint detection metrics
		VADWindowsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rt_vad_windows_processed_total",
			Help: "Total number of endpoint detection windows processed",
		}),
		VADVoiceDetected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rt_vad_voice_detected_total",
			Help: "Total number of windows classified as voice",
		}),
		EndpointsDetected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rt_endpoints_detected_total",
			Help: "Total number of utterance endpoints detected",
		}),

		// Event publishing metrics
		EventsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rt_events_published_total",
			Help: "Total number of transcript events published",
		}),
		EventsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rt_events_failed_total",
			Help: "Total number of transcript event publish failures",
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rt_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rt_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// RecordSessionStarted records a session acknowledgment and its latency
func (m *Metrics) RecordSessionStarted(startLatencySeconds float64) {
	m.SessionsStarted.Inc()
	m.StartLatency.Observe(startLatencySeconds)
}

// RecordSessionClosed records a graceful session completion
func (m *Metrics) RecordSessionClosed(durationSeconds float64) {
	m.SessionsClosed.Inc()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordSessionFailed records a failed session by failure reason
func (m *Metrics) RecordSessionFailed(reason string, durationSeconds float64) {
	m.SessionsFailed.WithLabelValues(reason).Inc()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordChunkSent records one sent audio chunk
func (m *Metrics) RecordChunkSent(sizeBytes int) {
	m.ChunksSent.Inc()
	m.BytesSent.Add(float64(sizeBytes))
	m.ChunkSize.Observe(float64(sizeBytes))
}

// SetAudioAckLag sets the current gap between sent and acknowledged chunks
func (m *Metrics) SetAudioAckLag(lag uint64) {
	m.AudioAckLag.Set(float64(lag))
}

// RecordForcedFlush increments the early-flush counter
func (m *Metrics) RecordForcedFlush() {
	m.ForcedFlushes.Inc()
}

// RecordTranscript records a received transcript event
func (m *Metrics) RecordTranscript(final bool) {
	if final {
		m.FinalTranscripts.Inc()
	} else {
		m.PartialTranscripts.Inc()
	}
}

// RecordServerWarning increments the warning counter
func (m *Metrics) RecordServerWarning() {
	m.ServerWarnings.Inc()
}

// RecordVADWindow records one endpoint detection window
func (m *Metrics) RecordVADWindow(hasVoice, endpoint bool) {
	m.VADWindowsProcessed.Inc()
	if hasVoice {
		m.VADVoiceDetected.Inc()
	}
	if endpoint {
		m.EndpointsDetected.Inc()
	}
}

// RecordEventPublished records a successful transcript event publish
func (m *Metrics) RecordEventPublished() {
	m.EventsPublished.Inc()
}

// RecordEventFailed records a failed transcript event publish
func (m *Metrics) RecordEventFailed() {
	m.EventsFailed.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}
