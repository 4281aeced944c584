package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Shunyalabsai/rt-client-go/internal/audio"
	"github.com/Shunyalabsai/rt-client-go/internal/events"
	"github.com/Shunyalabsai/rt-client-go/internal/metrics"
	"github.com/Shunyalabsai/rt-client-go/internal/vad"
	"github.com/Shunyalabsai/rt-client-go/rt"
)

// RunnerConfig configures a transcription run.
type RunnerConfig struct {
	Format        rt.AudioFormat
	Transcription rt.TranscriptionConfig

	// Detector enables utterance endpoint detection on outgoing audio.
	// Only meaningful for pcm_s16le input; nil disables it.
	Detector *vad.Detector

	// Publisher receives final transcripts; nil disables publishing.
	Publisher *events.Publisher

	// Metrics is optional.
	Metrics *metrics.Metrics

	// OnPartial and OnFinal observe transcript events in arrival order.
	// They run on the session's receive loop and must not block.
	OnPartial func(rt.TranscriptResult)
	OnFinal   func(rt.TranscriptResult)

	Logger *slog.Logger
}

// RunnerStats summarizes a finished or in-progress run.
type RunnerStats struct {
	ChunksSent  uint64  `json:"chunks_sent"`
	Partials    uint64  `json:"partials"`
	Finals      uint64  `json:"finals"`
	Endpoints   uint64  `json:"endpoints"`
	SessionID   string  `json:"session_id"`
	DurationSec float64 `json:"duration_sec"`
}

// Runner drives one transcription session end to end.
type Runner struct {
	cfg    RunnerConfig
	client *rt.Client
	logger *slog.Logger

	mu        sync.Mutex
	partials  uint64
	finals    uint64
	endpoints uint64
	startedAt time.Time
}

// NewRunner creates a runner around an unstarted client.
func NewRunner(client *rt.Client, cfg RunnerConfig) (*Runner, error) {
	if client == nil {
		return nil, fmt.Errorf("client cannot be nil")
	}
	if cfg.Detector != nil && cfg.Format.Encoding != rt.EncodingPCMS16LE {
		return nil, fmt.Errorf("endpoint detection requires pcm_s16le input, got %q", cfg.Format.Encoding)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Runner{
		cfg:    cfg,
		client: client,
		logger: cfg.Logger,
	}, nil
}

// Run streams the source through a session and blocks until the session
// completes or fails.
func (r *Runner) Run(ctx context.Context, source rt.Source) error {
	r.registerHandlers(ctx)

	r.mu.Lock()
	r.startedAt = time.Now()
	r.mu.Unlock()

	src := source
	if r.cfg.Detector != nil || r.cfg.Metrics != nil {
		src = &observedSource{runner: r, src: source}
	}

	err := r.client.Transcribe(ctx, src, r.cfg.Format, r.cfg.Transcription)

	if r.cfg.Metrics != nil {
		duration := r.elapsed()
		if err != nil {
			r.cfg.Metrics.RecordSessionFailed(failureReason(err), duration)
		} else {
			r.cfg.Metrics.RecordSessionClosed(duration)
		}
	}
	return err
}

// Stats returns a snapshot of the run.
func (r *Runner) Stats() RunnerStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	duration := float64(0)
	if !r.startedAt.IsZero() {
		duration = time.Since(r.startedAt).Seconds()
	}

	return RunnerStats{
		ChunksSent:  r.client.SeqNo(),
		Partials:    r.partials,
		Finals:      r.finals,
		Endpoints:   r.endpoints,
		SessionID:   r.client.SessionID(),
		DurationSec: duration,
	}
}

// elapsed returns seconds since the run began.
func (r *Runner) elapsed() float64 {
	r.mu.Lock()
	startedAt := r.startedAt
	r.mu.Unlock()
	if startedAt.IsZero() {
		return 0
	}
	return time.Since(startedAt).Seconds()
}

func (r *Runner) registerHandlers(ctx context.Context) {
	r.client.On(rt.ServerRecognitionStarted, func(*rt.ServerMessage) {
		if r.cfg.Metrics != nil {
			r.cfg.Metrics.RecordSessionStarted(r.elapsed())
		}
	})

	r.client.On(rt.ServerAddPartialTranscript, func(msg *rt.ServerMessage) {
		r.mu.Lock()
		r.partials++
		r.mu.Unlock()

		if r.cfg.Metrics != nil {
			r.cfg.Metrics.RecordTranscript(false)
		}
		if r.cfg.OnPartial != nil && msg.Transcript != nil {
			r.cfg.OnPartial(*msg.Transcript)
		}
	})

	r.client.On(rt.ServerAddTranscript, func(msg *rt.ServerMessage) {
		r.mu.Lock()
		r.finals++
		r.mu.Unlock()

		if r.cfg.Metrics != nil {
			r.cfg.Metrics.RecordTranscript(true)
		}
		if msg.Transcript == nil {
			return
		}
		if r.cfg.Metrics != nil {
			// Approximate: wall-clock time into the run minus the audio
			// time the transcript covers.
			if lag := r.elapsed() - msg.Transcript.EndTime; lag > 0 {
				r.cfg.Metrics.TranscriptLatency.Observe(lag)
			}
		}
		if r.cfg.OnFinal != nil {
			r.cfg.OnFinal(*msg.Transcript)
		}
		if r.cfg.Publisher != nil {
			event := events.TranscriptEvent{
				SessionID:  r.client.SessionID(),
				RequestID:  r.client.RequestID(),
				Final:      true,
				Transcript: msg.Transcript.Transcript,
				StartTime:  msg.Transcript.StartTime,
				EndTime:    msg.Transcript.EndTime,
				Language:   r.cfg.Transcription.Language,
				ReceivedAt: time.Now(),
			}
			if err := r.cfg.Publisher.Publish(ctx, event); err != nil {
				r.logger.Warn("transcript event publish failed",
					slog.String("error", err.Error()))
			}
		}
	})

	r.client.On(rt.ServerWarningMessage, func(*rt.ServerMessage) {
		if r.cfg.Metrics != nil {
			r.cfg.Metrics.RecordServerWarning()
		}
	})

	r.client.On(rt.ServerAudioAdded, func(*rt.ServerMessage) {
		if r.cfg.Metrics != nil {
			sent := r.client.SeqNo()
			acked := r.client.AckedSeqNo()
			if sent >= acked {
				r.cfg.Metrics.SetAudioAckLag(sent - acked)
			}
		}
	})
}

// observeChunk runs endpoint detection and metrics on one outgoing chunk.
func (r *Runner) observeChunk(chunk []byte) {
	if r.cfg.Metrics != nil {
		r.cfg.Metrics.RecordChunkSent(len(chunk))
	}

	if r.cfg.Detector == nil {
		return
	}
	samples := audio.BytesToSamples(chunk)
	if len(samples) == 0 {
		return
	}
	result, err := r.cfg.Detector.Process(samples, r.cfg.Format.SampleRate)
	if err != nil {
		r.logger.Warn("endpoint detection failed", slog.String("error", err.Error()))
		return
	}

	if r.cfg.Metrics != nil {
		r.cfg.Metrics.RecordVADWindow(result.HasVoice, result.Endpoint)
	}
	if !result.Endpoint {
		return
	}

	r.mu.Lock()
	r.endpoints++
	r.mu.Unlock()

	if err := r.client.ForceEndOfUtterance(); err != nil {
		r.logger.Warn("utterance flush failed", slog.String("error", err.Error()))
		return
	}
	if r.cfg.Metrics != nil {
		r.cfg.Metrics.RecordForcedFlush()
	}
	r.logger.Debug("utterance endpoint detected", slog.Float64("energy", float64(result.Energy)))
}

// observedSource taps chunks on their way to the sender.
type observedSource struct {
	runner *Runner
	src    rt.Source
}

func (o *observedSource) Next(ctx context.Context) ([]byte, error) {
	chunk, err := o.src.Next(ctx)
	if err != nil {
		return nil, err
	}
	o.runner.observeChunk(chunk)
	return chunk, nil
}

// failureReason maps a session error to a metric label.
func failureReason(err error) string {
	if errors.Is(err, rt.ErrSessionAborted) || errors.Is(err, context.Canceled) {
		return "aborted"
	}
	switch err.(type) {
	case *rt.TransportError:
		return "transport"
	case *rt.TimeoutError:
		return "timeout"
	case *rt.ProtocolError:
		return "protocol"
	case *rt.ServerError:
		return "server"
	default:
		return "other"
	}
}
