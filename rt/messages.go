package rt

import (
	"encoding/json"
	"fmt"
)

// Client message discriminants. Control messages are sent as JSON text
// frames; audio is sent as opaque binary frames and never wrapped in JSON.
const (
	MessageStartRecognition    = "StartRecognition"
	MessageEndOfStream         = "EndOfStream"
	MessageForceEndOfUtterance = "ForceEndOfUtterance"
)

// ServerMessageType identifies an inbound message by its discriminant.
type ServerMessageType string

// Server message discriminants.
const (
	ServerRecognitionStarted   ServerMessageType = "RecognitionStarted"
	ServerAudioAdded           ServerMessageType = "AudioAdded"
	ServerAddPartialTranscript ServerMessageType = "AddPartialTranscript"
	ServerAddTranscript        ServerMessageType = "AddTranscript"
	ServerEndOfTranscript      ServerMessageType = "EndOfTranscript"
	ServerErrorMessage         ServerMessageType = "Error"
	ServerWarningMessage       ServerMessageType = "Warning"
)

// known reports whether the discriminant is part of the protocol as
// understood by this client. Unknown discriminants are tolerated and
// skipped so that newer servers remain usable.
func (t ServerMessageType) known() bool {
	switch t {
	case ServerRecognitionStarted, ServerAudioAdded,
		ServerAddPartialTranscript, ServerAddTranscript,
		ServerEndOfTranscript, ServerErrorMessage, ServerWarningMessage:
		return true
	}
	return false
}

// AudioEncoding identifies the raw PCM encoding of streamed audio.
type AudioEncoding string

const (
	EncodingPCMS16LE AudioEncoding = "pcm_s16le" // 16-bit signed little-endian PCM
	EncodingPCMF32LE AudioEncoding = "pcm_f32le" // 32-bit float little-endian PCM
	EncodingMuLaw    AudioEncoding = "mulaw"     // 8-bit mu-law
)

// Valid reports whether the encoding is one of the supported values.
func (e AudioEncoding) Valid() bool {
	switch e {
	case EncodingPCMS16LE, EncodingPCMF32LE, EncodingMuLaw:
		return true
	}
	return false
}

// BytesPerSample returns the size of a single sample in this encoding.
func (e AudioEncoding) BytesPerSample() int {
	switch e {
	case EncodingPCMS16LE:
		return 2
	case EncodingPCMF32LE:
		return 4
	case EncodingMuLaw:
		return 1
	default:
		return 0
	}
}

// AudioFormat describes the audio that will be streamed for a session.
// It is fixed once the session starts.
type AudioFormat struct {
	Encoding   AudioEncoding `json:"encoding"`
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels,omitempty"`
}

// Validate checks the format against the supported encoding set.
func (f AudioFormat) Validate() error {
	if !f.Encoding.Valid() {
		return fmt.Errorf("unsupported audio encoding: %q", f.Encoding)
	}
	if f.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", f.SampleRate)
	}
	if f.Channels < 0 {
		return fmt.Errorf("channel count cannot be negative, got %d", f.Channels)
	}
	return nil
}

// TranscriptionConfig selects transcription behavior for a session.
// It is fixed once the session starts.
type TranscriptionConfig struct {
	Language       string  `json:"language"`
	OperatingPoint string  `json:"operating_point,omitempty"`
	EnablePartials bool    `json:"enable_partials"`
	MaxDelay       float64 `json:"max_delay,omitempty"` // seconds
}

// Validate checks the transcription options.
func (c TranscriptionConfig) Validate() error {
	if c.Language == "" {
		return fmt.Errorf("language cannot be empty")
	}
	if c.MaxDelay < 0 {
		return fmt.Errorf("max_delay cannot be negative, got %f", c.MaxDelay)
	}
	return nil
}

// wireAudioFormat is the on-wire shape of AudioFormat. The "type" field is
// always "raw": audio travels as unwrapped binary frames.
type wireAudioFormat struct {
	Type       string        `json:"type"`
	Encoding   AudioEncoding `json:"encoding"`
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels,omitempty"`
}

type startRecognitionMessage struct {
	Message             string              `json:"message"`
	AudioFormat         wireAudioFormat     `json:"audio_format"`
	TranscriptionConfig TranscriptionConfig `json:"transcription_config"`
}

type endOfStreamMessage struct {
	Message   string `json:"message"`
	LastSeqNo uint64 `json:"last_seq_no"`
}

type controlMessage struct {
	Message string `json:"message"`
}

// encodeStartRecognition builds the session-initialization message.
func encodeStartRecognition(f AudioFormat, c TranscriptionConfig) ([]byte, error) {
	return json.Marshal(startRecognitionMessage{
		Message: MessageStartRecognition,
		AudioFormat: wireAudioFormat{
			Type:       "raw",
			Encoding:   f.Encoding,
			SampleRate: f.SampleRate,
			Channels:   f.Channels,
		},
		TranscriptionConfig: c,
	})
}

// encodeEndOfStream builds the end-of-input message carrying the last
// sequence number the client sent.
func encodeEndOfStream(lastSeqNo uint64) ([]byte, error) {
	return json.Marshal(endOfStreamMessage{
		Message:   MessageEndOfStream,
		LastSeqNo: lastSeqNo,
	})
}

// encodeForceEndOfUtterance builds the utterance-flush request.
func encodeForceEndOfUtterance() ([]byte, error) {
	return json.Marshal(controlMessage{Message: MessageForceEndOfUtterance})
}

// Word is a word-level sub-result of a transcript event.
type Word struct {
	Content    string
	StartTime  float64 // seconds relative to stream start
	EndTime    float64
	Confidence float64
}

// TranscriptResult is a decoded partial or final transcript event.
// Partial results may be superseded by later partials covering an
// overlapping time span; the client delivers them as-is.
type TranscriptResult struct {
	Final      bool
	Transcript string
	StartTime  float64 // seconds relative to stream start
	EndTime    float64
	Words      []Word
}

// ServerMessage is a decoded inbound message. Fields beyond Type are
// populated depending on the discriminant.
type ServerMessage struct {
	Type       ServerMessageType
	SessionID  string            // RecognitionStarted
	SeqNo      uint64            // AudioAdded
	Reason     string            // Error, Warning
	Transcript *TranscriptResult // AddPartialTranscript, AddTranscript
	Raw        json.RawMessage   // full frame, for unrecognized fields
}

// Inbound wire shapes.

type wireEnvelope struct {
	Message string `json:"message"`
}

type wireRecognitionStarted struct {
	ID string `json:"id"`
}

type wireAudioAdded struct {
	SeqNo uint64 `json:"seq_no"`
}

type wireReason struct {
	Reason string `json:"reason"`
}

type wireTranscript struct {
	Metadata struct {
		Transcript string  `json:"transcript"`
		StartTime  float64 `json:"start_time"`
		EndTime    float64 `json:"end_time"`
	} `json:"metadata"`
	Results []struct {
		StartTime    float64 `json:"start_time"`
		EndTime      float64 `json:"end_time"`
		Alternatives []struct {
			Content    string  `json:"content"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"results"`
}

// decodeServerMessage parses an inbound text frame by its discriminant.
// A frame that is not valid JSON, or lacks a discriminant, is a protocol
// violation. A frame with an unrecognized discriminant decodes to a
// ServerMessage whose Type is not known; callers skip those.
func decodeServerMessage(data []byte) (*ServerMessage, error) {
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &ProtocolError{Reason: fmt.Sprintf("malformed message: %v", err)}
	}
	if env.Message == "" {
		return nil, &ProtocolError{Reason: "message without discriminant"}
	}

	msg := &ServerMessage{
		Type: ServerMessageType(env.Message),
		Raw:  json.RawMessage(data),
	}

	switch msg.Type {
	case ServerRecognitionStarted:
		var w wireRecognitionStarted
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, &ProtocolError{Reason: fmt.Sprintf("malformed RecognitionStarted: %v", err)}
		}
		msg.SessionID = w.ID

	case ServerAudioAdded:
		var w wireAudioAdded
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, &ProtocolError{Reason: fmt.Sprintf("malformed AudioAdded: %v", err)}
		}
		msg.SeqNo = w.SeqNo

	case ServerAddPartialTranscript, ServerAddTranscript:
		var w wireTranscript
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, &ProtocolError{Reason: fmt.Sprintf("malformed %s: %v", msg.Type, err)}
		}
		result := &TranscriptResult{
			Final:      msg.Type == ServerAddTranscript,
			Transcript: w.Metadata.Transcript,
			StartTime:  w.Metadata.StartTime,
			EndTime:    w.Metadata.EndTime,
		}
		for _, r := range w.Results {
			if len(r.Alternatives) == 0 {
				continue
			}
			// Only the top alternative is surfaced.
			result.Words = append(result.Words, Word{
				Content:    r.Alternatives[0].Content,
				StartTime:  r.StartTime,
				EndTime:    r.EndTime,
				Confidence: r.Alternatives[0].Confidence,
			})
		}
		msg.Transcript = result

	case ServerErrorMessage, ServerWarningMessage:
		var w wireReason
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, &ProtocolError{Reason: fmt.Sprintf("malformed %s: %v", msg.Type, err)}
		}
		msg.Reason = w.Reason

	case ServerEndOfTranscript:
		// No payload beyond the discriminant.
	}

	return msg, nil
}
