package session

import (
	"testing"
	"time"

	"github.com/mockmate/mockmate/pkg/live/protocol"
)

func newTestDemux(sink AudioSink) (*Demultiplexer, *TranscriptAggregator, *PlaybackScheduler) {
	transcript := NewTranscriptAggregator()
	playback, _, _ := newTestScheduler(sink)
	return &Demultiplexer{transcript: transcript, playback: playback}, transcript, playback
}

func TestRouteTranscriptDelta(t *testing.T) {
	d, transcript, _ := newTestDemux(&fakeSink{})
	var captions []string
	d.onCaption = func(speaker, delta string) { captions = append(captions, speaker+":"+delta) }

	d.Route(protocol.TranscriptDeltaEvent{Speaker: protocol.SpeakerAgent, Text: "Why this role?"})

	if got := transcript.Partial(protocol.SpeakerAgent); got != "Why this role?" {
		t.Fatalf("agent partial = %q", got)
	}
	if len(captions) != 1 || captions[0] != "agent:Why this role?" {
		t.Fatalf("captions = %v", captions)
	}
}

func TestRouteTurnComplete(t *testing.T) {
	d, _, _ := newTestDemux(&fakeSink{})
	var flushed []ConversationTurn
	d.onTurns = func(turns []ConversationTurn) { flushed = append(flushed, turns...) }

	d.Route(protocol.TranscriptDeltaEvent{Speaker: protocol.SpeakerUser, Text: "Done."})
	d.Route(protocol.TurnCompleteEvent{})

	if len(flushed) != 1 || flushed[0].Text != "Done." {
		t.Fatalf("flushed = %v, want single user turn", flushed)
	}
}

func TestRouteInterruptionCancelsPlaybackAndAgentPartial(t *testing.T) {
	sink := &fakeSink{}
	d, transcript, playback := newTestDemux(sink)
	interrupted := 0
	d.onInterrupt = func() { interrupted++ }

	d.Route(protocol.TranscriptDeltaEvent{Speaker: protocol.SpeakerAgent, Text: "As I was say"})
	d.Route(protocol.AudioChunkEvent{Seq: 1, Data: pcmFor(200 * time.Millisecond)})
	if got := playback.Pending(); got != 1 {
		t.Fatalf("pending before interruption = %d, want 1", got)
	}

	d.Route(protocol.InterruptedEvent{})

	if got := playback.Pending(); got != 0 {
		t.Fatalf("pending after interruption = %d, want 0", got)
	}
	if got := sink.flushCount(); got != 1 {
		t.Fatalf("flushes = %d, want 1", got)
	}
	if got := transcript.Partial(protocol.SpeakerAgent); got != "" {
		t.Fatalf("agent partial after interruption = %q, want empty", got)
	}
	if interrupted != 1 {
		t.Fatalf("interrupt callbacks = %d, want 1", interrupted)
	}
}

func TestRouteToolCallDispatch(t *testing.T) {
	d, _, _ := newTestDemux(&fakeSink{})
	var handled, fellBack []string
	d.RegisterTool(CueToolName, func(call protocol.ToolCallEvent) error {
		handled = append(handled, call.ID)
		return nil
	})
	d.fallback = func(call protocol.ToolCallEvent) error {
		fellBack = append(fellBack, call.ID)
		return nil
	}

	d.Route(protocol.ToolCallEvent{ID: "a", Name: CueToolName})
	d.Route(protocol.ToolCallEvent{ID: "b", Name: "unheard_of"})

	if len(handled) != 1 || handled[0] != "a" {
		t.Fatalf("handled = %v, want [a]", handled)
	}
	if len(fellBack) != 1 || fellBack[0] != "b" {
		t.Fatalf("fallback = %v, want [b]", fellBack)
	}
}

func TestRouteUnknownFrame(t *testing.T) {
	d, _, _ := newTestDemux(&fakeSink{})
	var drops []string
	d.onDrop = func(reason string) { drops = append(drops, reason) }

	d.Route(protocol.UnknownEvent{Type: "telemetry"})

	if len(drops) != 1 {
		t.Fatalf("drops = %v, want one entry", drops)
	}
}
