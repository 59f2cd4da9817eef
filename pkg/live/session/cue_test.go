package session

import (
	"sync"
	"testing"
	"time"

	"github.com/mockmate/mockmate/pkg/live/protocol"
)

type fakeResponder struct {
	mu    sync.Mutex
	resps []protocol.ClientToolResponse
}

func (r *fakeResponder) SendToolResponse(resp protocol.ClientToolResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resps = append(r.resps, resp)
	return nil
}

func (r *fakeResponder) responses() []protocol.ClientToolResponse {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.ClientToolResponse(nil), r.resps...)
}

func newTestBridge(t *testing.T) (*ToolCallBridge, *fakeResponder, *fakeTimers, *[]VisualCue, *int) {
	t.Helper()
	responder := &fakeResponder{}
	timers := &fakeTimers{}
	var published []VisualCue
	var expired int
	b := NewToolCallBridge(responder, 4500*time.Millisecond,
		func(cue VisualCue) { published = append(published, cue) },
		func() { expired++ },
	)
	b.after = timers.after
	return b, responder, timers, &published, &expired
}

func cueCall(id string, args map[string]any) protocol.ToolCallEvent {
	return protocol.ToolCallEvent{ID: id, Name: CueToolName, Args: args}
}

func TestValidInvocationPublishesAndAcks(t *testing.T) {
	b, responder, timers, published, _ := newTestBridge(t)

	err := b.HandleInvocation(cueCall("call-1", map[string]any{
		"cue": "Slow down a little", "sentiment": "constructive",
	}))
	if err != nil {
		t.Fatalf("HandleInvocation: %v", err)
	}

	resps := responder.responses()
	if len(resps) != 1 {
		t.Fatalf("acks = %d, want exactly 1", len(resps))
	}
	if resps[0].ID != "call-1" || resps[0].IsError {
		t.Fatalf("ack = %+v, want non-error ack for call-1", resps[0])
	}
	if len(*published) != 1 || (*published)[0].Sentiment != SentimentConstructive {
		t.Fatalf("published = %v, want one constructive cue", *published)
	}
	if timers.count() != 1 {
		t.Fatalf("expiry timers armed = %d, want 1", timers.count())
	}
}

func TestMalformedInvocationAcksError(t *testing.T) {
	cases := []struct {
		name string
		call protocol.ToolCallEvent
	}{
		{"missing cue text", cueCall("c1", map[string]any{"sentiment": "neutral"})},
		{"blank cue text", cueCall("c2", map[string]any{"cue": "  ", "sentiment": "neutral"})},
		{"bad sentiment", cueCall("c3", map[string]any{"cue": "Look up", "sentiment": "angry"})},
		{"unknown tool", protocol.ToolCallEvent{ID: "c4", Name: "launch_rocket", Args: map[string]any{}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, responder, _, published, _ := newTestBridge(t)
			if err := b.HandleInvocation(tc.call); err != nil {
				t.Fatalf("HandleInvocation: %v", err)
			}
			resps := responder.responses()
			if len(resps) != 1 {
				t.Fatalf("acks = %d, want exactly 1", len(resps))
			}
			if !resps[0].IsError {
				t.Fatalf("ack = %+v, want error ack", resps[0])
			}
			if len(*published) != 0 {
				t.Fatalf("published = %v, want none", *published)
			}
		})
	}
}

func TestSupersedingCueResetsExpiry(t *testing.T) {
	b, _, timers, published, expired := newTestBridge(t)

	b.HandleInvocation(cueCall("c1", map[string]any{"cue": "Sit up", "sentiment": "neutral"}))
	b.HandleInvocation(cueCall("c2", map[string]any{"cue": "Nice answer", "sentiment": "positive"}))

	if len(*published) != 2 {
		t.Fatalf("published = %d cues, want 2", len(*published))
	}
	if timers.count() != 2 {
		t.Fatalf("timers armed = %d, want 2", timers.count())
	}

	// Only the second cue's window is live; its expiry fires once.
	timers.fire(1)
	if *expired != 1 {
		t.Fatalf("expired = %d, want 1", *expired)
	}
}

func TestCloseSilencesExpiry(t *testing.T) {
	b, _, timers, _, expired := newTestBridge(t)

	b.HandleInvocation(cueCall("c1", map[string]any{"cue": "Sit up", "sentiment": "neutral"}))
	b.Close()
	b.Close()

	timers.fire(0)
	if *expired != 0 {
		t.Fatalf("expired after close = %d, want 0", *expired)
	}
}
