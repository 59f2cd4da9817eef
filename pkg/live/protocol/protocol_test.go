package protocol

import (
	"encoding/base64"
	"testing"
)

func TestDecodeServerFrame_TranscriptDelta(t *testing.T) {
	ev, err := DecodeServerFrame([]byte(`{"type":"transcript_delta","speaker":"user","text":"Hello"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	delta, ok := ev.(TranscriptDeltaEvent)
	if !ok {
		t.Fatalf("got %T, want TranscriptDeltaEvent", ev)
	}
	if delta.Speaker != SpeakerUser || delta.Text != "Hello" {
		t.Errorf("got %+v", delta)
	}
}

func TestDecodeServerFrame_UnknownSpeakerRejected(t *testing.T) {
	_, err := DecodeServerFrame([]byte(`{"type":"transcript_delta","speaker":"narrator","text":"x"}`))
	if err == nil {
		t.Fatal("expected error for unknown speaker")
	}
}

func TestDecodeServerFrame_AudioChunk(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	frame := `{"type":"audio_chunk","seq":7,"data_b64":"` + base64.StdEncoding.EncodeToString(pcm) + `"}`
	ev, err := DecodeServerFrame([]byte(frame))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	chunk := ev.(AudioChunkEvent)
	if chunk.Seq != 7 || len(chunk.Data) != 4 {
		t.Errorf("got %+v", chunk)
	}
}

func TestDecodeServerFrame_AudioChunkBadBase64(t *testing.T) {
	_, err := DecodeServerFrame([]byte(`{"type":"audio_chunk","seq":1,"data_b64":"%%%"}`))
	if err == nil {
		t.Fatal("expected decode error")
	}
}

func TestDecodeServerFrame_ToolCallRequiresID(t *testing.T) {
	_, err := DecodeServerFrame([]byte(`{"type":"tool_call","name":"show_feedback_cue","args":{}}`))
	if err == nil {
		t.Fatal("expected error for missing id")
	}

	ev, err := DecodeServerFrame([]byte(`{"type":"tool_call","id":"c1","name":"show_feedback_cue","args":{"cue":"Good"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	call := ev.(ToolCallEvent)
	if call.ID != "c1" || call.Name != "show_feedback_cue" {
		t.Errorf("got %+v", call)
	}
}

func TestDecodeServerFrame_ControlKinds(t *testing.T) {
	for frame, want := range map[string]string{
		`{"type":"turn_complete"}`:                      "turn_complete",
		`{"type":"interrupted"}`:                        "interrupted",
		`{"type":"error","code":"x","message":"boom"}`:  "error",
		`{"type":"goaway","reason":"session complete"}`: "goaway",
	} {
		ev, err := DecodeServerFrame([]byte(frame))
		if err != nil {
			t.Fatalf("decode %s: %v", frame, err)
		}
		if got := ev.serverEventType(); got != want {
			t.Errorf("frame %s decoded as %q, want %q", frame, got, want)
		}
	}
}

func TestDecodeServerFrame_UnknownPreserved(t *testing.T) {
	ev, err := DecodeServerFrame([]byte(`{"type":"heartbeat","n":1}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	unknown, ok := ev.(UnknownEvent)
	if !ok || unknown.Type != "heartbeat" {
		t.Errorf("got %#v", ev)
	}
}

func TestNewAudioFrame_RoundTrip(t *testing.T) {
	frame := NewAudioFrame(3, []byte{9, 8, 7})
	if frame.Type != "audio_frame" || frame.Seq != 3 {
		t.Errorf("got %+v", frame)
	}
	decoded, err := base64.StdEncoding.DecodeString(frame.DataB64)
	if err != nil || len(decoded) != 3 {
		t.Errorf("payload round trip failed: %v %v", decoded, err)
	}
}
