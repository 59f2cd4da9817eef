// Package protocol defines the wire frames exchanged with the remote
// interview coach over the live websocket channel.
//
// Every frame is a JSON object with a "type" field used for dispatch.
// Audio and image payloads travel base64-encoded inside the JSON body.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	ProtocolVersion1 = "1"

	// SpeakerUser and SpeakerAgent tag transcription deltas.
	SpeakerUser  = "user"
	SpeakerAgent = "agent"

	// Negotiated audio shapes. The coach accepts 16 kHz mono PCM in and
	// synthesizes 24 kHz mono PCM out.
	AudioInSampleRateHz  = 16000
	AudioOutSampleRateHz = 24000
)

// AudioFormat describes a negotiated PCM shape.
type AudioFormat struct {
	Encoding     string `json:"encoding"`
	SampleRateHz int    `json:"sample_rate_hz"`
	Channels     int    `json:"channels"`
}

// ToolDeclaration announces a client-side tool capability to the coach.
type ToolDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Schema      json.RawMessage `json:"schema,omitempty"`
}

// ClientSetup is the first frame on a new channel. It carries the session
// identity, the behavioral instruction built from the rehearsal config, the
// audio formats, and the declared tools.
type ClientSetup struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	SessionID       string            `json:"session_id"`
	Instruction     string            `json:"instruction"`
	AudioIn         AudioFormat       `json:"audio_in"`
	AudioOut        AudioFormat       `json:"audio_out"`
	Tools           []ToolDeclaration `json:"tools,omitempty"`
}

// ClientAudioFrame carries one block of raw microphone PCM.
type ClientAudioFrame struct {
	Type    string `json:"type"`
	Seq     int64  `json:"seq"`
	DataB64 string `json:"data_b64"`
}

// ClientImageFrame carries one compressed camera still.
type ClientImageFrame struct {
	Type     string `json:"type"`
	Seq      int64  `json:"seq"`
	MimeType string `json:"mime_type"`
	DataB64  string `json:"data_b64"`
}

// ClientToolResponse acknowledges a tool invocation, correlated by ID.
type ClientToolResponse struct {
	Type    string         `json:"type"`
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Output  map[string]any `json:"output,omitempty"`
	IsError bool           `json:"is_error,omitempty"`
}

// ClientControl carries session control operations ("finish").
type ClientControl struct {
	Type string `json:"type"`
	Op   string `json:"op"`
}

// ServerEvent is the interface implemented by all inbound frames.
type ServerEvent interface {
	serverEventType() string
}

// ReadyEvent signals that the coach accepted the setup frame.
type ReadyEvent struct {
	SessionID string `json:"session_id"`
}

func (ReadyEvent) serverEventType() string { return "ready" }

// TranscriptDeltaEvent carries incremental recognized text for one speaker.
type TranscriptDeltaEvent struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

func (TranscriptDeltaEvent) serverEventType() string { return "transcript_delta" }

// AudioChunkEvent carries one chunk of synthesized coach speech (PCM).
type AudioChunkEvent struct {
	Seq  int64
	Data []byte
}

func (AudioChunkEvent) serverEventType() string { return "audio_chunk" }

// ToolCallEvent asks the client to perform a named side effect and respond.
type ToolCallEvent struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

func (ToolCallEvent) serverEventType() string { return "tool_call" }

// TurnCompleteEvent delimits a finished conversation turn.
type TurnCompleteEvent struct{}

func (TurnCompleteEvent) serverEventType() string { return "turn_complete" }

// InterruptedEvent signals barge-in: the user started speaking while coach
// audio was still playing. Pending playback must be cancelled immediately.
type InterruptedEvent struct{}

func (InterruptedEvent) serverEventType() string { return "interrupted" }

// ErrorEvent is a terminal channel error with a human-readable reason.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (ErrorEvent) serverEventType() string { return "error" }

// GoAwayEvent signals an orderly remote close.
type GoAwayEvent struct {
	Reason string `json:"reason,omitempty"`
}

func (GoAwayEvent) serverEventType() string { return "goaway" }

// UnknownEvent preserves frames of an unrecognized type.
type UnknownEvent struct {
	Type string
	Raw  json.RawMessage
}

func (e UnknownEvent) serverEventType() string { return e.Type }

// NewAudioFrame builds an outbound audio_frame from raw PCM.
func NewAudioFrame(seq int64, pcm []byte) ClientAudioFrame {
	return ClientAudioFrame{
		Type:    "audio_frame",
		Seq:     seq,
		DataB64: base64.StdEncoding.EncodeToString(pcm),
	}
}

// NewImageFrame builds an outbound image_frame from encoded image bytes.
func NewImageFrame(seq int64, mimeType string, data []byte) ClientImageFrame {
	return ClientImageFrame{
		Type:     "image_frame",
		Seq:      seq,
		MimeType: mimeType,
		DataB64:  base64.StdEncoding.EncodeToString(data),
	}
}

// DecodeServerFrame decodes one inbound text frame into a typed event.
func DecodeServerFrame(data []byte) (ServerEvent, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode frame envelope: %w", err)
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, fmt.Errorf("frame missing type")
	}

	switch typ {
	case "ready":
		var ev ReadyEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode ready: %w", err)
		}
		return ev, nil
	case "transcript_delta":
		var ev TranscriptDeltaEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode transcript_delta: %w", err)
		}
		switch ev.Speaker {
		case SpeakerUser, SpeakerAgent:
		default:
			return nil, fmt.Errorf("transcript_delta has unknown speaker %q", ev.Speaker)
		}
		return ev, nil
	case "audio_chunk":
		var raw struct {
			Seq     int64  `json:"seq"`
			DataB64 string `json:"data_b64"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode audio_chunk: %w", err)
		}
		pcm, err := base64.StdEncoding.DecodeString(raw.DataB64)
		if err != nil {
			return nil, fmt.Errorf("decode audio_chunk payload: %w", err)
		}
		return AudioChunkEvent{Seq: raw.Seq, Data: pcm}, nil
	case "tool_call":
		var ev ToolCallEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode tool_call: %w", err)
		}
		if strings.TrimSpace(ev.ID) == "" {
			return nil, fmt.Errorf("tool_call missing id")
		}
		return ev, nil
	case "turn_complete":
		return TurnCompleteEvent{}, nil
	case "interrupted":
		return InterruptedEvent{}, nil
	case "error":
		var ev ErrorEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode error frame: %w", err)
		}
		return ev, nil
	case "goaway":
		var ev GoAwayEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode goaway: %w", err)
		}
		return ev, nil
	default:
		return UnknownEvent{Type: typ, Raw: append(json.RawMessage(nil), data...)}, nil
	}
}
