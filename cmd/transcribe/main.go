package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shunyalabsai/rt-client-go/internal/audio"
	"github.com/Shunyalabsai/rt-client-go/internal/config"
	"github.com/Shunyalabsai/rt-client-go/internal/events"
	"github.com/Shunyalabsai/rt-client-go/internal/metrics"
	"github.com/Shunyalabsai/rt-client-go/internal/server"
	"github.com/Shunyalabsai/rt-client-go/internal/stream"
	"github.com/Shunyalabsai/rt-client-go/internal/vad"
	"github.com/Shunyalabsai/rt-client-go/rt"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "rt-transcribe"
	serviceVersion    = "1.0.0"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	inputPath := flag.String("input", "-", "Audio input: WAV or raw PCM file, '-' for stdin")
	showPartials := flag.Bool("partials", false, "Print partial transcripts to stderr")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
		slog.String("input", *inputPath),
	)

	if err := run(cfg, logger, *inputPath, *showPartials); err != nil {
		logger.Error("Transcription failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, inputPath string, showPartials bool) error {
	data, err := readInput(inputPath)
	if err != nil {
		return err
	}

	format := rt.AudioFormat{
		Encoding:   rt.AudioEncoding(cfg.Audio.Encoding),
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
	}

	// WAV input carries its own sample rate and implies pcm_s16le.
	if audio.IsWAV(data) {
		if err := audio.ValidateWAV(data); err != nil {
			return fmt.Errorf("invalid WAV input: %w", err)
		}
		decoded, err := audio.DecodeWAV(data)
		if err != nil {
			return fmt.Errorf("failed to decode WAV input: %w", err)
		}
		data = decoded.Data
		format.Encoding = rt.EncodingPCMS16LE
		format.SampleRate = decoded.SampleRate
		logger.Info("WAV input decoded",
			slog.Int("sample_rate", decoded.SampleRate),
			slog.Float64("duration_sec", decoded.Duration()),
		)
	}

	chunkSize, err := audio.ChunkSize(format.Encoding, format.SampleRate, cfg.Audio.GetChunkDuration())
	if err != nil {
		return err
	}

	appMetrics := metrics.NewMetrics()

	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(server.HTTPServerConfig{
			Address: cfg.HTTP.Address,
			Port:    cfg.HTTP.Port,
		}, logger, nil, appMetrics)
		if err := httpServer.Start(); err != nil {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := httpServer.Stop(shutdownCtx); err != nil {
				logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
			}
		}()
	}

	var publisher *events.Publisher
	if cfg.Events.Enabled {
		publisher, err = events.NewPublisher(events.Config{
			Brokers: cfg.Events.Brokers,
			Topic:   cfg.Events.Topic,
		}, logger, appMetrics)
		if err != nil {
			return fmt.Errorf("failed to create event publisher: %w", err)
		}
		defer publisher.Close()
		logger.Info("Event publisher initialized",
			slog.String("topic", cfg.Events.Topic),
		)
	}

	var detector *vad.Detector
	if cfg.Endpointing.Enabled && format.Encoding == rt.EncodingPCMS16LE {
		detector, err = vad.NewDetector(vad.DetectorConfig{
			Threshold:  cfg.Endpointing.Threshold,
			Smoothing:  cfg.Endpointing.Smoothing,
			MinSpeech:  cfg.Endpointing.GetMinSpeechDuration(),
			MinSilence: cfg.Endpointing.GetMinSilenceDuration(),
		})
		if err != nil {
			return fmt.Errorf("failed to create endpoint detector: %w", err)
		}
		logger.Info("Endpoint detection enabled",
			slog.Float64("threshold", float64(cfg.Endpointing.Threshold)),
		)
	}

	client, err := rt.NewClient(rt.Config{
		URL:                    cfg.Service.URL,
		APIKey:                 cfg.Service.APIKey,
		StartTimeout:           cfg.Service.GetStartTimeout(),
		EndOfTranscriptTimeout: cfg.Service.GetEndOfTranscriptTimeout(),
		Logger:                 logger,
	})
	if err != nil {
		return err
	}

	runner, err := stream.NewRunner(client, stream.RunnerConfig{
		Format: format,
		Transcription: rt.TranscriptionConfig{
			Language:       cfg.Transcription.Language,
			OperatingPoint: cfg.Transcription.OperatingPoint,
			EnablePartials: cfg.Transcription.EnablePartials,
			MaxDelay:       cfg.Transcription.MaxDelay,
		},
		Detector:  detector,
		Publisher: publisher,
		Metrics:   appMetrics,
		OnPartial: func(result rt.TranscriptResult) {
			if showPartials {
				fmt.Fprintf(os.Stderr, "... %s\n", result.Transcript)
			}
		},
		OnFinal: func(result rt.TranscriptResult) {
			fmt.Println(result.Transcript)
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	var source rt.Source = rt.NewFileSource(bytes.NewReader(data), chunkSize)
	if cfg.Audio.Realtime {
		source = audio.NewPacedSource(source, cfg.Audio.GetChunkDuration())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = runner.Run(ctx, source)

	stats := runner.Stats()
	logger.Info("Transcription finished",
		slog.String("session_id", stats.SessionID),
		slog.Uint64("chunks_sent", stats.ChunksSent),
		slog.Uint64("partials", stats.Partials),
		slog.Uint64("finals", stats.Finals),
		slog.Uint64("endpoints", stats.Endpoints),
		slog.Float64("duration_sec", stats.DurationSec),
	)
	return err
}

// readInput loads the audio payload from a file or stdin.
func readInput(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file %s: %w", path, err)
	}
	return data, nil
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stdout":
		output = os.Stdout
	case "stderr", "":
		output = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stderr\n", cfg.Output, err)
			output = os.Stderr
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
