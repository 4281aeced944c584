package rt

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

// Default bounds for the session lifecycle waits.
const (
	// DefaultStartTimeout bounds the wait for RecognitionStarted after
	// StartRecognition has been sent.
	DefaultStartTimeout = 5 * time.Second

	// DefaultEndOfTranscriptTimeout bounds the wait for EndOfTranscript
	// after EndOfStream has been sent. The protocol does not finish a
	// session until EndOfTranscript arrives, so a missing acknowledgment
	// is reported as a protocol violation instead of hanging forever.
	DefaultEndOfTranscriptTimeout = 30 * time.Second

	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 10 * time.Second
)

// Config contains client configuration.
type Config struct {
	// URL is the WebSocket endpoint, e.g. "wss://eu2.rt.shunyalabs.com/v2".
	URL string

	// APIKey is the bearer credential attached during the handshake. It is
	// not renegotiated mid-session.
	APIKey string

	// StartTimeout overrides DefaultStartTimeout when positive.
	StartTimeout time.Duration

	// EndOfTranscriptTimeout overrides DefaultEndOfTranscriptTimeout when
	// positive.
	EndOfTranscriptTimeout time.Duration

	// HandshakeTimeout bounds the WebSocket dial.
	HandshakeTimeout time.Duration

	// WriteTimeout bounds each outbound frame write.
	WriteTimeout time.Duration

	// Logger receives client logs. Defaults to slog.Default.
	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.StartTimeout <= 0 {
		c.StartTimeout = DefaultStartTimeout
	}
	if c.EndOfTranscriptTimeout <= 0 {
		c.EndOfTranscriptTimeout = DefaultEndOfTranscriptTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = defaultHandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Client is a single-session transcription protocol client. One Client
// owns one WebSocket connection for one session; it is not reusable after
// the session reaches a terminal state.
//
// Two flows share the connection: the caller-driven audio sender and the
// internal receive loop. Only the sender advances the sequence counter;
// only the receive loop advances the lifecycle state past AwaitingStart.
type Client struct {
	cfg       Config
	logger    *slog.Logger
	requestID string
	events    *dispatcher

	conn    *websocket.Conn
	writeMu sync.Mutex // gorilla/websocket allows one concurrent writer

	mu         sync.Mutex
	state      State
	seqNo      uint64
	ackedSeqNo uint64
	sessionID  string
	eosSent    bool
	err        error // first fatal error, set once

	dialed      bool
	started     chan struct{} // closed on RecognitionStarted
	startedOnce sync.Once
	done        chan struct{} // closed on EndOfTranscript or fatal error
	doneOnce    sync.Once
	recvDone    chan struct{} // closed when the receive loop exits
}

// NewClient creates a client for a single transcription session.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("rt: endpoint URL cannot be empty")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("rt: API key cannot be empty")
	}
	cfg = cfg.withDefaults()

	requestID := uuid.NewString()
	logger := cfg.Logger.With(slog.String("request_id", requestID))

	return &Client{
		cfg:       cfg,
		logger:    logger,
		requestID: requestID,
		events:    newDispatcher(logger),
		state:     StateConnecting,
		started:   make(chan struct{}),
		done:      make(chan struct{}),
		recvDone:  make(chan struct{}),
	}, nil
}

// On registers a handler for a server message kind. Handlers registered
// for the same kind run in registration order. Registration after the
// session started is allowed but racy with in-flight messages.
func (c *Client) On(t ServerMessageType, h Handler) {
	c.events.on(t, h)
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SeqNo returns the number of audio chunks sent so far.
func (c *Client) SeqNo() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seqNo
}

// AckedSeqNo returns the highest sequence number the server has
// acknowledged via AudioAdded, if it sends acknowledgments at all.
func (c *Client) AckedSeqNo() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ackedSeqNo
}

// SessionID returns the server-assigned session identifier, empty until
// RecognitionStarted arrives.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// RequestID returns the client-generated identifier attached to logs for
// correlating a session across systems.
func (c *Client) RequestID() string {
	return c.requestID
}

// Err returns the fatal session error, or nil if the session has not
// failed.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Done returns a channel closed when the session finishes, gracefully or
// not. Check Err afterwards to distinguish.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// StartSession dials the endpoint, sends StartRecognition, and waits for
// the server's RecognitionStarted acknowledgment. The wait is bounded by
// Config.StartTimeout; exceeding it fails the session with a
// TimeoutError, raised at or after the bound, never before.
func (c *Client) StartSession(ctx context.Context, format AudioFormat, config TranscriptionConfig) error {
	if err := format.Validate(); err != nil {
		return fmt.Errorf("rt: invalid audio format: %w", err)
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("rt: invalid transcription config: %w", err)
	}

	c.mu.Lock()
	if c.dialed {
		c.mu.Unlock()
		return fmt.Errorf("rt: session already started")
	}
	c.dialed = true
	c.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		terr := &TransportError{Op: "dial", Err: err}
		c.fail(terr)
		return terr
	}
	c.conn = conn

	payload, err := encodeStartRecognition(format, config)
	if err != nil {
		terr := &TransportError{Op: "write", Err: err}
		c.fail(terr)
		return terr
	}
	if err := c.write(websocket.TextMessage, payload); err != nil {
		terr := &TransportError{Op: "write", Err: err}
		c.fail(terr)
		return terr
	}

	c.mu.Lock()
	c.state = StateAwaitingStart
	c.mu.Unlock()

	c.logger.Info("recognition requested",
		slog.String("encoding", string(format.Encoding)),
		slog.Int("sample_rate", format.SampleRate),
		slog.String("language", config.Language),
		slog.Bool("enable_partials", config.EnablePartials),
	)

	go c.recvLoop()

	timer := time.NewTimer(c.cfg.StartTimeout)
	defer timer.Stop()

	select {
	case <-c.started:
		return nil
	case <-c.done:
		return c.Err()
	case <-timer.C:
		terr := &TimeoutError{Op: "recognition started", Timeout: c.cfg.StartTimeout}
		c.fail(terr)
		return terr
	case <-ctx.Done():
		c.fail(ctx.Err())
		return ctx.Err()
	}
}

// SendAudio streams one audio chunk as a binary frame and advances the
// sequence counter. It is rejected once the session is Ending or Closed.
// A failed send is fatal to the whole session: there is no per-chunk
// retry.
func (c *Client) SendAudio(ctx context.Context, chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	switch {
	case c.state == StateErrored:
		err := c.err
		c.mu.Unlock()
		return err
	case c.state == StateConnecting || c.state == StateAwaitingStart:
		c.mu.Unlock()
		return ErrSessionNotStarted
	case c.state != StateActive || c.eosSent:
		c.mu.Unlock()
		return ErrSessionClosed
	}
	c.mu.Unlock()

	if err := c.write(websocket.BinaryMessage, chunk); err != nil {
		terr := &TransportError{Op: "write", Err: err}
		c.fail(terr)
		return terr
	}

	c.mu.Lock()
	c.seqNo++
	seq := c.seqNo
	c.mu.Unlock()

	c.logger.Debug("audio chunk sent",
		slog.Uint64("seq_no", seq),
		slog.Int("size", len(chunk)),
	)
	return nil
}

// ForceEndOfUtterance asks the server to finalize the current utterance
// early, flushing a final transcript for the audio received so far.
func (c *Client) ForceEndOfUtterance() error {
	c.mu.Lock()
	switch {
	case c.state == StateErrored:
		err := c.err
		c.mu.Unlock()
		return err
	case c.state == StateConnecting || c.state == StateAwaitingStart:
		c.mu.Unlock()
		return ErrSessionNotStarted
	case c.state != StateActive || c.eosSent:
		c.mu.Unlock()
		return ErrSessionClosed
	}
	c.mu.Unlock()

	payload, err := encodeForceEndOfUtterance()
	if err != nil {
		return err
	}
	if err := c.write(websocket.TextMessage, payload); err != nil {
		terr := &TransportError{Op: "write", Err: err}
		c.fail(terr)
		return terr
	}
	c.logger.Debug("force end of utterance sent")
	return nil
}

// StopSession signals end-of-input by sending EndOfStream with the last
// sent sequence number, then waits for EndOfTranscript before releasing
// the connection. The session is not complete until that acknowledgment
// arrives; its absence within Config.EndOfTranscriptTimeout is reported
// as a ProtocolError.
func (c *Client) StopSession(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateErrored:
		err := c.err
		c.mu.Unlock()
		return err
	case StateClosed:
		c.mu.Unlock()
		return nil
	case StateConnecting, StateAwaitingStart:
		c.mu.Unlock()
		return ErrSessionNotStarted
	}
	alreadySent := c.eosSent
	seq := c.seqNo
	if !alreadySent {
		c.eosSent = true
		c.state = StateEnding
	}
	c.mu.Unlock()

	if !alreadySent {
		payload, err := encodeEndOfStream(seq)
		if err != nil {
			terr := &TransportError{Op: "write", Err: err}
			c.fail(terr)
			return terr
		}
		if err := c.write(websocket.TextMessage, payload); err != nil {
			terr := &TransportError{Op: "write", Err: err}
			c.fail(terr)
			return terr
		}
		c.logger.Info("end of stream sent", slog.Uint64("last_seq_no", seq))
	}

	timer := time.NewTimer(c.cfg.EndOfTranscriptTimeout)
	defer timer.Stop()

	select {
	case <-c.done:
	case <-timer.C:
		perr := &ProtocolError{Reason: fmt.Sprintf(
			"end of transcript not received within %v of end of stream", c.cfg.EndOfTranscriptTimeout)}
		c.fail(perr)
	case <-ctx.Done():
		c.fail(ctx.Err())
	}

	c.closeConn()
	<-c.recvDone
	return c.Err()
}

// Close aborts the session. If the session is Active it attempts a
// best-effort EndOfStream, then tears the connection down, unblocking
// both the sender and the receive loop. The session error is recorded
// as ErrSessionAborted so callers can tell an abort from a failure.
// Close after a graceful StopSession is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		c.closeConn()
		return nil
	}
	if c.state == StateErrored {
		c.mu.Unlock()
		c.closeConn()
		return nil
	}
	bestEffortEOS := c.state == StateActive && !c.eosSent
	seq := c.seqNo
	if bestEffortEOS {
		c.eosSent = true
	}
	recvStarted := c.dialed && c.conn != nil
	// Mark the abort before the best-effort write so server replies racing
	// the teardown cannot override the recorded error.
	c.state = StateErrored
	c.err = ErrSessionAborted
	c.mu.Unlock()

	if bestEffortEOS {
		if payload, err := encodeEndOfStream(seq); err == nil {
			// Ignore the result: the connection is going away regardless.
			_ = c.write(websocket.TextMessage, payload)
		}
	}

	c.logger.Info("session aborted", slog.Uint64("last_seq_no", seq))
	c.doneOnce.Do(func() { close(c.done) })
	c.closeConn()
	if recvStarted {
		<-c.recvDone
	}
	return nil
}

// Transcribe streams an entire audio source through the session: it
// starts the session, pumps chunks from the source, sends EndOfStream
// when the source is exhausted, and waits for completion. It returns when
// the session closes gracefully or fails.
func (c *Client) Transcribe(ctx context.Context, source Source, format AudioFormat, config TranscriptionConfig) error {
	if source == nil {
		return fmt.Errorf("rt: audio source cannot be nil")
	}

	if err := c.StartSession(ctx, format, config); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	// Receive-side watcher: surfaces server-reported failures so the pump
	// stops reading audio promptly instead of writing into a dead session.
	g.Go(func() error {
		select {
		case <-c.done:
			return c.Err()
		case <-gctx.Done():
			return nil
		}
	})

	// Audio pump: caller-paced sender flow. Context cancellation aborts
	// through Close so an Active session still gets its best-effort
	// EndOfStream and both flows wind down before returning.
	g.Go(func() error {
		for {
			chunk, err := source.Next(gctx)
			if err == io.EOF {
				return c.StopSession(ctx)
			}
			if err != nil {
				if gctx.Err() != nil {
					c.Close()
					return gctx.Err()
				}
				c.fail(err)
				return err
			}
			if err := c.SendAudio(gctx, chunk); err != nil {
				if gctx.Err() != nil {
					c.Close()
					return gctx.Err()
				}
				return err
			}
		}
	})

	return g.Wait()
}

// write serializes access to the connection; gorilla/websocket permits at
// most one concurrent writer.
func (c *Client) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// fail records the first fatal error, moves the session to StateErrored,
// and tears the connection down so both flows unblock. Later calls are
// no-ops; a session that already closed gracefully stays Closed.
func (c *Client) fail(err error) {
	c.mu.Lock()
	if c.state.Terminal() {
		c.mu.Unlock()
		return
	}
	c.state = StateErrored
	c.err = err
	c.mu.Unlock()

	c.logger.Error("session failed", slog.String("error", err.Error()))
	c.doneOnce.Do(func() { close(c.done) })
	c.closeConn()
}

func (c *Client) closeConn() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// recvLoop is the server-driven flow: it reads frames until the session
// terminates, decodes them, and hands them to the dispatcher in arrival
// order.
func (c *Client) recvLoop() {
	defer close(c.recvDone)

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			// Expected once the session already finished and the
			// connection was torn down locally.
			if c.State().Terminal() {
				return
			}
			c.fail(&TransportError{Op: "read", Err: err})
			return
		}
		if messageType != websocket.TextMessage {
			// The server never sends binary frames.
			continue
		}

		msg, err := decodeServerMessage(data)
		if err != nil {
			c.fail(err)
			return
		}
		if !msg.Type.known() {
			c.logger.Debug("ignoring unrecognized server message",
				slog.String("message", string(msg.Type)))
			continue
		}

		if err := c.handle(msg); err != nil {
			c.fail(err)
			return
		}
		if msg.Type == ServerEndOfTranscript {
			return
		}
	}
}

// handle applies a decoded message to the session state, then dispatches
// it. A non-nil return is a fatal session error.
func (c *Client) handle(msg *ServerMessage) error {
	switch msg.Type {
	case ServerRecognitionStarted:
		c.mu.Lock()
		if c.state != StateAwaitingStart {
			state := c.state
			c.mu.Unlock()
			return &ProtocolError{Reason: fmt.Sprintf("RecognitionStarted in state %s", state)}
		}
		c.state = StateActive
		c.sessionID = msg.SessionID
		c.mu.Unlock()
		c.logger.Info("session started", slog.String("session_id", msg.SessionID))
		c.events.dispatch(msg)
		c.startedOnce.Do(func() { close(c.started) })
		return nil

	case ServerAudioAdded:
		c.mu.Lock()
		if msg.SeqNo > c.ackedSeqNo {
			c.ackedSeqNo = msg.SeqNo
		}
		c.mu.Unlock()
		c.events.dispatch(msg)
		return nil

	case ServerAddPartialTranscript, ServerAddTranscript:
		c.mu.Lock()
		state := c.state
		c.mu.Unlock()
		if state != StateActive && state != StateEnding {
			return &ProtocolError{Reason: fmt.Sprintf("%s before RecognitionStarted", msg.Type)}
		}
		c.events.dispatch(msg)
		return nil

	case ServerEndOfTranscript:
		c.mu.Lock()
		if c.state != StateEnding {
			state := c.state
			c.mu.Unlock()
			return &ProtocolError{Reason: fmt.Sprintf("EndOfTranscript in state %s", state)}
		}
		c.state = StateClosed
		c.mu.Unlock()
		c.logger.Info("session closed", slog.String("session_id", c.SessionID()))
		c.events.dispatch(msg)
		c.doneOnce.Do(func() { close(c.done) })
		return nil

	case ServerWarningMessage:
		c.logger.Warn("server warning", slog.String("reason", msg.Reason))
		c.events.dispatch(msg)
		return nil

	case ServerErrorMessage:
		c.events.dispatch(msg)
		return &ServerError{Reason: msg.Reason}
	}

	return nil
}
