package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mockmate/mockmate/pkg/live/protocol"
)

// CueToolName is the single tool capability declared to the coach.
const CueToolName = "show_feedback_cue"

// Sentiment classifies a feedback cue.
type Sentiment string

const (
	SentimentPositive     Sentiment = "positive"
	SentimentNeutral      Sentiment = "neutral"
	SentimentConstructive Sentiment = "constructive"
)

func parseSentiment(s string) (Sentiment, bool) {
	switch Sentiment(strings.ToLower(strings.TrimSpace(s))) {
	case SentimentPositive:
		return SentimentPositive, true
	case SentimentNeutral:
		return SentimentNeutral, true
	case SentimentConstructive:
		return SentimentConstructive, true
	}
	return "", false
}

// VisualCue is a short, ephemeral, sentiment-tagged advisory for the UI.
type VisualCue struct {
	Text      string    `json:"text"`
	Sentiment Sentiment `json:"sentiment"`
}

// CueToolSchema is the declared payload schema for the cue tool.
func CueToolSchema() protocol.ToolDeclaration {
	return protocol.ToolDeclaration{
		Name:        CueToolName,
		Description: "Surface a short coaching cue to the candidate's screen.",
		Schema: []byte(`{"type":"object","properties":{` +
			`"cue":{"type":"string","description":"Short advisory text"},` +
			`"sentiment":{"type":"string","enum":["positive","neutral","constructive"]}},` +
			`"required":["cue","sentiment"]}`),
	}
}

// toolResponder sends tool acknowledgements back over the channel.
type toolResponder interface {
	SendToolResponse(resp protocol.ClientToolResponse) error
}

// ToolCallBridge handles inbound tool invocations. It always sends exactly
// one acknowledgement per invocation, valid payload or not; publishing the
// cue is best-effort and never blocks the ack.
type ToolCallBridge struct {
	responder toolResponder
	publish   func(VisualCue)
	expire    func()
	duration  time.Duration

	// after is injectable for tests.
	after func(d time.Duration, f func()) *time.Timer

	mu          sync.Mutex
	expiryTimer *time.Timer
	closed      bool
}

// NewToolCallBridge wires the bridge. publish surfaces a new cue; expire
// fires when a cue's display window elapses without supersession.
func NewToolCallBridge(responder toolResponder, duration time.Duration, publish func(VisualCue), expire func()) *ToolCallBridge {
	if duration <= 0 {
		duration = 4500 * time.Millisecond
	}
	return &ToolCallBridge{
		responder: responder,
		publish:   publish,
		expire:    expire,
		duration:  duration,
		after:     time.AfterFunc,
	}
}

// HandleInvocation processes one tool_call event. The acknowledgement is sent
// on every path: unknown tool and malformed payloads are acked as errors so
// the coach is never left waiting.
func (b *ToolCallBridge) HandleInvocation(call protocol.ToolCallEvent) error {
	cue, parseErr := cueFromArgs(call)

	resp := protocol.ClientToolResponse{
		Type: "tool_response",
		ID:   call.ID,
		Name: call.Name,
	}
	if parseErr != nil {
		resp.IsError = true
		resp.Output = map[string]any{"error": parseErr.Error()}
	} else {
		resp.Output = map[string]any{"displayed": true}
	}

	if parseErr == nil {
		b.publishCue(cue)
	}

	return b.responder.SendToolResponse(resp)
}

func cueFromArgs(call protocol.ToolCallEvent) (VisualCue, error) {
	if call.Name != CueToolName {
		return VisualCue{}, fmt.Errorf("unknown tool %q", call.Name)
	}
	text, _ := call.Args["cue"].(string)
	if strings.TrimSpace(text) == "" {
		return VisualCue{}, fmt.Errorf("cue text is required")
	}
	raw, _ := call.Args["sentiment"].(string)
	sentiment, ok := parseSentiment(raw)
	if !ok {
		return VisualCue{}, fmt.Errorf("unknown sentiment %q", raw)
	}
	return VisualCue{Text: strings.TrimSpace(text), Sentiment: sentiment}, nil
}

// publishCue surfaces a cue and resets the expiry window, cancelling the
// pending expiry of any cue it supersedes.
func (b *ToolCallBridge) publishCue(cue VisualCue) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if b.expiryTimer != nil {
		b.expiryTimer.Stop()
	}
	b.expiryTimer = b.after(b.duration, b.onExpiry)
	b.mu.Unlock()

	if b.publish != nil {
		b.publish(cue)
	}
}

func (b *ToolCallBridge) onExpiry() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.expiryTimer = nil
	b.mu.Unlock()

	if b.expire != nil {
		b.expire()
	}
}

// Close cancels any pending expiry timer. Safe to call more than once.
func (b *ToolCallBridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	if b.expiryTimer != nil {
		b.expiryTimer.Stop()
		b.expiryTimer = nil
	}
}
