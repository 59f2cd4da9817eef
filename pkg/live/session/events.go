package session

// Event is the interface for all session events surfaced to the UI layer.
type Event interface {
	// EventType returns the event type string for serialization.
	EventType() string
}

// StateChangedEvent is emitted on every lifecycle transition.
type StateChangedEvent struct {
	From State `json:"from"`
	To   State `json:"to"`
}

func (e *StateChangedEvent) EventType() string { return "state.changed" }

// SessionOpenEvent is emitted once the coach has accepted the setup frame
// and capture/playback are running.
type SessionOpenEvent struct {
	SessionID string `json:"session_id"`
}

func (e *SessionOpenEvent) EventType() string { return "session.open" }

// CaptionDeltaEvent carries live (not yet finalized) recognized text.
type CaptionDeltaEvent struct {
	Speaker string `json:"speaker"`
	Delta   string `json:"delta"`
}

func (e *CaptionDeltaEvent) EventType() string { return "caption.delta" }

// TurnFinalizedEvent is emitted when a turn boundary flushes a finished turn.
type TurnFinalizedEvent struct {
	Turn ConversationTurn `json:"turn"`
}

func (e *TurnFinalizedEvent) EventType() string { return "turn.finalized" }

// InterruptedEvent is emitted when barge-in cancels pending coach speech.
type InterruptedEvent struct{}

func (e *InterruptedEvent) EventType() string { return "interrupted" }

// CuePublishedEvent is emitted when a feedback cue goes up.
type CuePublishedEvent struct {
	Cue VisualCue `json:"cue"`
}

func (e *CuePublishedEvent) EventType() string { return "cue.published" }

// CueExpiredEvent is emitted when a cue's display window elapses without a
// superseding cue.
type CueExpiredEvent struct{}

func (e *CueExpiredEvent) EventType() string { return "cue.expired" }

// MuteChangedEvent is emitted when the capture path is muted or unmuted.
type MuteChangedEvent struct {
	Muted bool `json:"muted"`
}

func (e *MuteChangedEvent) EventType() string { return "mute.changed" }

// ErrorEvent carries the terminal failure reason for the ERROR state.
type ErrorEvent struct {
	Reason string `json:"reason"`
}

func (e *ErrorEvent) EventType() string { return "error" }

// ClosedEvent is emitted after teardown completes.
type ClosedEvent struct {
	Reason string `json:"reason,omitempty"`
}

func (e *ClosedEvent) EventType() string { return "session.closed" }
