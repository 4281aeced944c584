package rt

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestEncodeStartRecognition(t *testing.T) {
	payload, err := encodeStartRecognition(
		AudioFormat{Encoding: EncodingPCMS16LE, SampleRate: 16000},
		TranscriptionConfig{Language: "en", EnablePartials: true, MaxDelay: 2},
	)
	if err != nil {
		t.Fatalf("Expected no error but got: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("Encoded message is not valid JSON: %v", err)
	}
	if decoded["message"] != "StartRecognition" {
		t.Errorf("Expected message 'StartRecognition', got %v", decoded["message"])
	}

	af, ok := decoded["audio_format"].(map[string]any)
	if !ok {
		t.Fatalf("Expected audio_format object, got %T", decoded["audio_format"])
	}
	if af["type"] != "raw" {
		t.Errorf("Expected audio_format type 'raw', got %v", af["type"])
	}
	if af["encoding"] != "pcm_s16le" {
		t.Errorf("Expected encoding 'pcm_s16le', got %v", af["encoding"])
	}
	if af["sample_rate"] != float64(16000) {
		t.Errorf("Expected sample_rate 16000, got %v", af["sample_rate"])
	}

	tc, ok := decoded["transcription_config"].(map[string]any)
	if !ok {
		t.Fatalf("Expected transcription_config object, got %T", decoded["transcription_config"])
	}
	if tc["language"] != "en" {
		t.Errorf("Expected language 'en', got %v", tc["language"])
	}
	if tc["enable_partials"] != true {
		t.Errorf("Expected enable_partials true, got %v", tc["enable_partials"])
	}
}

func TestEncodeEndOfStream(t *testing.T) {
	payload, err := encodeEndOfStream(42)
	if err != nil {
		t.Fatalf("Expected no error but got: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("Encoded message is not valid JSON: %v", err)
	}
	if decoded["message"] != "EndOfStream" {
		t.Errorf("Expected message 'EndOfStream', got %v", decoded["message"])
	}
	if decoded["last_seq_no"] != float64(42) {
		t.Errorf("Expected last_seq_no 42, got %v", decoded["last_seq_no"])
	}
}

func TestAudioEncodingBytesPerSample(t *testing.T) {
	tests := []struct {
		encoding AudioEncoding
		expected int
	}{
		{EncodingPCMS16LE, 2},
		{EncodingPCMF32LE, 4},
		{EncodingMuLaw, 1},
		{AudioEncoding("opus"), 0},
	}

	for _, tt := range tests {
		if got := tt.encoding.BytesPerSample(); got != tt.expected {
			t.Errorf("BytesPerSample(%q): expected %d, got %d", tt.encoding, tt.expected, got)
		}
	}
}

func TestAudioFormatValidate(t *testing.T) {
	tests := []struct {
		name        string
		format      AudioFormat
		expectError bool
		errorMsg    string
	}{
		{
			name:   "valid pcm_s16le",
			format: AudioFormat{Encoding: EncodingPCMS16LE, SampleRate: 16000},
		},
		{
			name:   "valid mulaw with channels",
			format: AudioFormat{Encoding: EncodingMuLaw, SampleRate: 8000, Channels: 1},
		},
		{
			name:        "unsupported encoding",
			format:      AudioFormat{Encoding: "opus", SampleRate: 16000},
			expectError: true,
			errorMsg:    "unsupported audio encoding",
		},
		{
			name:        "zero sample rate",
			format:      AudioFormat{Encoding: EncodingPCMS16LE},
			expectError: true,
			errorMsg:    "sample rate",
		},
		{
			name:        "negative channels",
			format:      AudioFormat{Encoding: EncodingPCMS16LE, SampleRate: 16000, Channels: -1},
			expectError: true,
			errorMsg:    "channel count",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.format.Validate()
			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

func TestTranscriptionConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		config      TranscriptionConfig
		expectError bool
	}{
		{
			name:   "valid minimal",
			config: TranscriptionConfig{Language: "en"},
		},
		{
			name:        "missing language",
			config:      TranscriptionConfig{},
			expectError: true,
		},
		{
			name:        "negative max delay",
			config:      TranscriptionConfig{Language: "en", MaxDelay: -1},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectError && err == nil {
				t.Errorf("Expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

func TestDecodeServerMessage(t *testing.T) {
	tests := []struct {
		name        string
		data        string
		expectError bool
		check       func(t *testing.T, msg *ServerMessage)
	}{
		{
			name: "recognition started",
			data: `{"message":"RecognitionStarted","id":"sess-1"}`,
			check: func(t *testing.T, msg *ServerMessage) {
				if msg.Type != ServerRecognitionStarted {
					t.Errorf("Expected RecognitionStarted, got %s", msg.Type)
				}
				if msg.SessionID != "sess-1" {
					t.Errorf("Expected session id 'sess-1', got %q", msg.SessionID)
				}
			},
		},
		{
			name: "audio added",
			data: `{"message":"AudioAdded","seq_no":7}`,
			check: func(t *testing.T, msg *ServerMessage) {
				if msg.Type != ServerAudioAdded {
					t.Errorf("Expected AudioAdded, got %s", msg.Type)
				}
				if msg.SeqNo != 7 {
					t.Errorf("Expected seq_no 7, got %d", msg.SeqNo)
				}
			},
		},
		{
			name: "partial transcript",
			data: `{"message":"AddPartialTranscript","metadata":{"transcript":"hello wor","start_time":0,"end_time":0.8},"results":[{"start_time":0,"end_time":0.4,"alternatives":[{"content":"hello","confidence":0.91}]}]}`,
			check: func(t *testing.T, msg *ServerMessage) {
				if msg.Type != ServerAddPartialTranscript {
					t.Errorf("Expected AddPartialTranscript, got %s", msg.Type)
				}
				if msg.Transcript == nil {
					t.Fatalf("Expected transcript payload, got nil")
				}
				if msg.Transcript.Final {
					t.Errorf("Expected non-final transcript")
				}
				if msg.Transcript.Transcript != "hello wor" {
					t.Errorf("Expected transcript 'hello wor', got %q", msg.Transcript.Transcript)
				}
				if len(msg.Transcript.Words) != 1 || msg.Transcript.Words[0].Content != "hello" {
					t.Errorf("Expected one word 'hello', got %+v", msg.Transcript.Words)
				}
			},
		},
		{
			name: "final transcript with empty text",
			data: `{"message":"AddTranscript","metadata":{"transcript":"","start_time":0,"end_time":0},"results":[]}`,
			check: func(t *testing.T, msg *ServerMessage) {
				if msg.Type != ServerAddTranscript {
					t.Errorf("Expected AddTranscript, got %s", msg.Type)
				}
				if msg.Transcript == nil {
					t.Fatalf("Expected transcript payload even for empty text, got nil")
				}
				if !msg.Transcript.Final {
					t.Errorf("Expected final transcript")
				}
				if msg.Transcript.Transcript != "" {
					t.Errorf("Expected empty transcript, got %q", msg.Transcript.Transcript)
				}
			},
		},
		{
			name: "result without alternatives is skipped",
			data: `{"message":"AddTranscript","metadata":{"transcript":"x","start_time":0,"end_time":1},"results":[{"start_time":0,"end_time":1,"alternatives":[]}]}`,
			check: func(t *testing.T, msg *ServerMessage) {
				if len(msg.Transcript.Words) != 0 {
					t.Errorf("Expected no words, got %+v", msg.Transcript.Words)
				}
			},
		},
		{
			name: "error message",
			data: `{"message":"Error","reason":"quota exceeded"}`,
			check: func(t *testing.T, msg *ServerMessage) {
				if msg.Type != ServerErrorMessage {
					t.Errorf("Expected Error, got %s", msg.Type)
				}
				if msg.Reason != "quota exceeded" {
					t.Errorf("Expected reason 'quota exceeded', got %q", msg.Reason)
				}
			},
		},
		{
			name: "warning message",
			data: `{"message":"Warning","reason":"high latency"}`,
			check: func(t *testing.T, msg *ServerMessage) {
				if msg.Type != ServerWarningMessage {
					t.Errorf("Expected Warning, got %s", msg.Type)
				}
			},
		},
		{
			name: "end of transcript",
			data: `{"message":"EndOfTranscript"}`,
			check: func(t *testing.T, msg *ServerMessage) {
				if msg.Type != ServerEndOfTranscript {
					t.Errorf("Expected EndOfTranscript, got %s", msg.Type)
				}
			},
		},
		{
			name: "unknown discriminant is tolerated",
			data: `{"message":"SpeakerDiarization","speakers":3}`,
			check: func(t *testing.T, msg *ServerMessage) {
				if msg.Type.known() {
					t.Errorf("Expected unknown message type, got %s", msg.Type)
				}
			},
		},
		{
			name:        "not json",
			data:        `this is not json`,
			expectError: true,
		},
		{
			name:        "missing discriminant",
			data:        `{"id":"sess-1"}`,
			expectError: true,
		},
		{
			name:        "malformed audio added",
			data:        `{"message":"AudioAdded","seq_no":"seven"}`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := decodeServerMessage([]byte(tt.data))
			if tt.expectError {
				if err == nil {
					t.Fatalf("Expected error but got none")
				}
				var perr *ProtocolError
				if !errors.As(err, &perr) {
					t.Errorf("Expected ProtocolError, got %T: %v", err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error but got: %v", err)
			}
			if tt.check != nil {
				tt.check(t, msg)
			}
		})
	}
}
