package rttest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Behavior scripts how the server treats a session. The zero value is a
// well-behaved server that acknowledges the session, stays silent during
// audio, and completes the handshake-out on EndOfStream.
type Behavior struct {
	// SessionID is returned in RecognitionStarted. When empty the server
	// assigns "session-<n>".
	SessionID string

	// RequireKey, when set, rejects handshakes whose Authorization header
	// is not "Bearer <RequireKey>" with 401.
	RequireKey string

	// StartDelay postpones RecognitionStarted after a valid
	// StartRecognition arrives.
	StartDelay time.Duration

	// DropStartAck suppresses RecognitionStarted entirely, leaving the
	// client waiting.
	DropStartAck bool

	// TranscriptBeforeStart sends an AddTranscript instead of
	// RecognitionStarted, violating the protocol ordering.
	TranscriptBeforeStart bool

	// InjectAfterStart contains raw text frames sent verbatim right after
	// RecognitionStarted, before any audio is read. Useful for unknown
	// discriminants and malformed payloads.
	InjectAfterStart []string

	// AckAudio makes the server answer every binary frame with AudioAdded.
	AckAudio bool

	// PartialEvery, when positive, emits AddPartialTranscript with
	// PartialText after every PartialEvery-th audio chunk.
	PartialEvery int
	PartialText  string

	// WarnAfterChunks, when positive, emits a Warning with WarnReason
	// after that many chunks. The session continues.
	WarnAfterChunks int
	WarnReason      string

	// ErrorAfterChunks, when positive, emits a fatal Error with
	// ErrorReason after that many chunks and closes the connection.
	ErrorAfterChunks int
	ErrorReason      string

	// FinalText, when non-empty, is sent as an AddTranscript on
	// EndOfStream (and on ForceEndOfUtterance). EmptyFinal sends an
	// AddTranscript with an empty transcript instead.
	FinalText  string
	EmptyFinal bool

	// DropEndOfTranscript suppresses EndOfTranscript after EndOfStream,
	// leaving the client draining forever.
	DropEndOfTranscript bool
}

// SessionRecord captures what the server observed for one session.
type SessionRecord struct {
	ID             string
	ChunksReceived uint64
	LastSeqNo      uint64
	GotEndOfStream bool
	Completed      bool
}

// Server is a scripted transcription WebSocket endpoint. It implements
// http.Handler so tests can mount it on httptest.Server and binaries can
// mount it on a mux.
type Server struct {
	behavior Behavior
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	nextID   int
	sessions []*SessionRecord
}

// NewServer creates a scripted server with the given behavior.
func NewServer(behavior Behavior) *Server {
	return &Server{
		behavior: behavior,
		logger:   slog.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// SetLogger replaces the server's logger. Must be called before serving.
func (s *Server) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Sessions returns a snapshot of all sessions the server has seen.
func (s *Server) Sessions() []SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SessionRecord, len(s.sessions))
	for i, rec := range s.sessions {
		out[i] = *rec
	}
	return out
}

// ServeHTTP upgrades the request and runs the scripted session.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.behavior.RequireKey != "" {
		want := "Bearer " + s.behavior.RequireKey
		if r.Header.Get("Authorization") != want {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	s.runSession(conn, strings.TrimSuffix(r.URL.Path, "/"))
}

type clientEnvelope struct {
	Message   string `json:"message"`
	LastSeqNo uint64 `json:"last_seq_no"`
}

func (s *Server) runSession(conn *websocket.Conn, path string) {
	rec := s.newRecord()
	logger := s.logger.With(slog.String("session_id", rec.ID), slog.String("path", path))
	logger.Info("session accepted")

	// The first frame must be StartRecognition.
	messageType, data, err := conn.ReadMessage()
	if err != nil {
		logger.Info("connection dropped before start", slog.String("error", err.Error()))
		return
	}
	if messageType != websocket.TextMessage {
		s.sendError(conn, "expected StartRecognition")
		return
	}
	var start clientEnvelope
	if err := json.Unmarshal(data, &start); err != nil || start.Message != "StartRecognition" {
		s.sendError(conn, "expected StartRecognition")
		return
	}

	if s.behavior.StartDelay > 0 {
		time.Sleep(s.behavior.StartDelay)
	}
	switch {
	case s.behavior.DropStartAck:
		// Leave the client waiting; keep reading so the socket stays up.
		s.drain(conn)
		return
	case s.behavior.TranscriptBeforeStart:
		s.sendTranscript(conn, true, "too early")
		s.drain(conn)
		return
	}

	s.sendJSON(conn, map[string]any{"message": "RecognitionStarted", "id": rec.ID})
	for _, frame := range s.behavior.InjectAfterStart {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			return
		}
	}

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			logger.Info("connection closed", slog.String("error", err.Error()))
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			s.mu.Lock()
			rec.ChunksReceived++
			chunks := rec.ChunksReceived
			s.mu.Unlock()

			if s.behavior.AckAudio {
				s.sendJSON(conn, map[string]any{"message": "AudioAdded", "seq_no": chunks})
			}
			if s.behavior.PartialEvery > 0 && chunks%uint64(s.behavior.PartialEvery) == 0 {
				s.sendTranscript(conn, false, s.behavior.PartialText)
			}
			if s.behavior.WarnAfterChunks > 0 && chunks == uint64(s.behavior.WarnAfterChunks) {
				s.sendJSON(conn, map[string]any{"message": "Warning", "reason": s.behavior.WarnReason})
			}
			if s.behavior.ErrorAfterChunks > 0 && chunks == uint64(s.behavior.ErrorAfterChunks) {
				s.sendError(conn, s.behavior.ErrorReason)
				return
			}

		case websocket.TextMessage:
			var env clientEnvelope
			if err := json.Unmarshal(data, &env); err != nil {
				s.sendError(conn, fmt.Sprintf("malformed client message: %v", err))
				return
			}
			switch env.Message {
			case "EndOfStream":
				s.mu.Lock()
				rec.GotEndOfStream = true
				rec.LastSeqNo = env.LastSeqNo
				s.mu.Unlock()

				s.flushFinal(conn)
				if s.behavior.DropEndOfTranscript {
					s.drain(conn)
					return
				}
				s.sendJSON(conn, map[string]any{"message": "EndOfTranscript"})
				s.mu.Lock()
				rec.Completed = true
				s.mu.Unlock()
				logger.Info("session completed",
					slog.Uint64("chunks", rec.ChunksReceived),
					slog.Uint64("last_seq_no", rec.LastSeqNo),
				)
				return
			case "ForceEndOfUtterance":
				s.flushFinal(conn)
			default:
				logger.Warn("unexpected client message", slog.String("message", env.Message))
			}
		}
	}
}

func (s *Server) newRecord() *SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.behavior.SessionID
	if id == "" {
		id = fmt.Sprintf("session-%d", s.nextID)
	}
	rec := &SessionRecord{ID: id}
	s.sessions = append(s.sessions, rec)
	return rec
}

func (s *Server) flushFinal(conn *websocket.Conn) {
	if s.behavior.EmptyFinal {
		s.sendTranscript(conn, true, "")
		return
	}
	if s.behavior.FinalText != "" {
		s.sendTranscript(conn, true, s.behavior.FinalText)
	}
}

func (s *Server) sendTranscript(conn *websocket.Conn, final bool, text string) {
	message := "AddPartialTranscript"
	if final {
		message = "AddTranscript"
	}

	results := []map[string]any{}
	offset := 0.0
	for _, word := range strings.Fields(text) {
		results = append(results, map[string]any{
			"start_time": offset,
			"end_time":   offset + 0.3,
			"alternatives": []map[string]any{
				{"content": word, "confidence": 0.97},
			},
		})
		offset += 0.3
	}

	s.sendJSON(conn, map[string]any{
		"message": message,
		"metadata": map[string]any{
			"transcript": text,
			"start_time": 0.0,
			"end_time":   offset,
		},
		"results": results,
	})
}

func (s *Server) sendError(conn *websocket.Conn, reason string) {
	s.sendJSON(conn, map[string]any{"message": "Error", "reason": reason})
}

func (s *Server) sendJSON(conn *websocket.Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("marshal server message", slog.String("error", err.Error()))
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Debug("write failed", slog.String("error", err.Error()))
	}
}

// drain consumes frames until the peer goes away, without responding.
func (s *Server) drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
