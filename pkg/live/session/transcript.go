package session

import (
	"strings"
	"sync"

	"github.com/mockmate/mockmate/pkg/live/protocol"
)

// ConversationTurn is one finalized utterance attributed to a single speaker.
// Turns are immutable once created and are appended to an ordered history
// that is never reordered or mutated in place.
type ConversationTurn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// TranscriptAggregator accumulates per-speaker partial transcription buffers
// and flushes them into ConversationTurns on turn boundaries.
type TranscriptAggregator struct {
	mu sync.Mutex

	userPartial  strings.Builder
	agentPartial strings.Builder
	history      []ConversationTurn
}

// NewTranscriptAggregator returns an empty aggregator.
func NewTranscriptAggregator() *TranscriptAggregator {
	return &TranscriptAggregator{}
}

// AppendDelta appends raw text to the given speaker's partial buffer.
// Deltas are concatenated in arrival order with no trimming or deduplication.
func (a *TranscriptAggregator) AppendDelta(speaker, text string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch speaker {
	case protocol.SpeakerUser:
		a.userPartial.WriteString(text)
	case protocol.SpeakerAgent:
		a.agentPartial.WriteString(text)
	}
}

// OnTurnBoundary trims both partial buffers and, for each non-empty one,
// appends a ConversationTurn to the history in the fixed order user then
// agent. Both buffers are cleared atomically with the flush. The newly
// created turns are returned in append order.
func (a *TranscriptAggregator) OnTurnBoundary() []ConversationTurn {
	a.mu.Lock()
	defer a.mu.Unlock()

	var flushed []ConversationTurn
	if text := strings.TrimSpace(a.userPartial.String()); text != "" {
		flushed = append(flushed, ConversationTurn{Speaker: protocol.SpeakerUser, Text: text})
	}
	if text := strings.TrimSpace(a.agentPartial.String()); text != "" {
		flushed = append(flushed, ConversationTurn{Speaker: protocol.SpeakerAgent, Text: text})
	}
	a.userPartial.Reset()
	a.agentPartial.Reset()
	a.history = append(a.history, flushed...)
	return flushed
}

// OnInterruption clears only the agent's partial buffer. Barge-in means the
// coach's in-flight speech must stop; the user's recognized speech so far
// stays valid.
func (a *TranscriptAggregator) OnInterruption() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.agentPartial.Reset()
}

// Partial returns the current partial text for a speaker.
func (a *TranscriptAggregator) Partial(speaker string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch speaker {
	case protocol.SpeakerUser:
		return a.userPartial.String()
	case protocol.SpeakerAgent:
		return a.agentPartial.String()
	}
	return ""
}

// History returns a copy of the ordered turn history.
func (a *TranscriptAggregator) History() []ConversationTurn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]ConversationTurn(nil), a.history...)
}
