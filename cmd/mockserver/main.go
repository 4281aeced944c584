package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shunyalabsai/rt-client-go/internal/metrics"
	"github.com/Shunyalabsai/rt-client-go/internal/server"
	"github.com/Shunyalabsai/rt-client-go/rt/rttest"
)

const (
	serviceName    = "rt-mockserver"
	serviceVersion = "1.0.0"
)

func main() {
	address := flag.String("address", "127.0.0.1", "Bind address")
	port := flag.Int("port", 8080, "Bind port")
	apiKey := flag.String("api-key", "", "Require this bearer key on handshakes (empty accepts any)")
	sessionID := flag.String("session-id", "", "Fixed session id to return (empty assigns per session)")
	finalText := flag.String("final-text", "this is a mock transcript", "Final transcript returned on end of stream")
	partialEvery := flag.Int("partial-every", 3, "Emit a partial transcript every N audio chunks (0 disables)")
	ackAudio := flag.Bool("ack-audio", true, "Acknowledge audio chunks with AudioAdded")
	startDelay := flag.Duration("start-delay", 0, "Delay before acknowledging new sessions")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("address", fmt.Sprintf("%s:%d", *address, *port)),
	)

	scripted := rttest.NewServer(rttest.Behavior{
		SessionID:    *sessionID,
		RequireKey:   *apiKey,
		StartDelay:   *startDelay,
		AckAudio:     *ackAudio,
		PartialEvery: *partialEvery,
		PartialText:  *finalText,
		FinalText:    *finalText,
	})
	scripted.SetLogger(logger)

	appMetrics := metrics.NewMetrics()

	httpServer := server.NewHTTPServer(server.HTTPServerConfig{
		Address: *address,
		Port:    *port,
	}, logger, scripted, appMetrics)

	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Mock transcription server started",
		slog.String("endpoint", fmt.Sprintf("ws://%s:%d/v2", *address, *port)),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	sessions := scripted.Sessions()
	completed := 0
	for _, s := range sessions {
		if s.Completed {
			completed++
		}
	}
	logger.Info("Final statistics",
		slog.Int("sessions", len(sessions)),
		slog.Int("completed", completed),
	)

	logger.Info("Service stopped")
}
