package session

import (
	"github.com/mockmate/mockmate/pkg/live/protocol"
)

// ToolHandler processes one tool invocation. Handlers must always arrange
// for an acknowledgement to be sent.
type ToolHandler func(call protocol.ToolCallEvent) error

// Demultiplexer classifies inbound channel events and routes each to exactly
// one consumer. Events are processed strictly in arrival order; routing may
// enqueue an outbound acknowledgement but never blocks on delivery of it.
type Demultiplexer struct {
	transcript *TranscriptAggregator
	playback   *PlaybackScheduler
	tools      map[string]ToolHandler
	fallback   ToolHandler

	// Callbacks into the controller.
	onCaption   func(speaker, delta string)
	onTurns     func(turns []ConversationTurn)
	onInterrupt func()
	onDrop      func(reason string)
}

// RegisterTool installs a handler for a declared tool name. Dispatch is a
// name-keyed lookup so additional tools slot in without restructuring.
func (d *Demultiplexer) RegisterTool(name string, handler ToolHandler) {
	if d.tools == nil {
		d.tools = make(map[string]ToolHandler)
	}
	d.tools[name] = handler
}

// Route processes one inbound event.
func (d *Demultiplexer) Route(event protocol.ServerEvent) {
	switch e := event.(type) {
	case protocol.ToolCallEvent:
		handler := d.tools[e.Name]
		if handler == nil {
			handler = d.fallback
		}
		if handler != nil {
			_ = handler(e)
		}

	case protocol.TranscriptDeltaEvent:
		d.transcript.AppendDelta(e.Speaker, e.Text)
		if d.onCaption != nil {
			d.onCaption(e.Speaker, e.Text)
		}

	case protocol.TurnCompleteEvent:
		turns := d.transcript.OnTurnBoundary()
		if d.onTurns != nil {
			d.onTurns(turns)
		}

	case protocol.InterruptedEvent:
		d.transcript.OnInterruption()
		d.playback.CancelAll()
		if d.onInterrupt != nil {
			d.onInterrupt()
		}

	case protocol.AudioChunkEvent:
		d.playback.Enqueue(e.Data)

	case protocol.UnknownEvent:
		if d.onDrop != nil {
			d.onDrop("unknown frame type " + e.Type)
		}
	}
}
