package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mockmate/mockmate/pkg/live/protocol"
)

// State is the controller lifecycle state.
type State int

const (
	StateIdle State = iota
	StateAcquiring
	StateOpen
	StateClosing
	StateClosed
	StateError
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateAcquiring:
		return "ACQUIRING"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Devices acquires the local hardware handles for one session. The handles
// returned are owned exclusively by the controller until teardown.
type Devices interface {
	OpenMic(blockDuration time.Duration) (AudioSource, error)
	// OpenCamera may return (nil, nil) when no camera is available; the
	// session then runs audio-only.
	OpenCamera() (FrameSource, error)
	OpenSpeaker() (AudioSink, error)
}

// Controller owns one live rehearsal session: the channel, the device
// handles, all timers, and the producer/consumer goroutines. At most one
// session is open at a time; Start tears down any previous session first.
type Controller struct {
	dial    Dialer
	devices Devices
	opts    Options

	events chan Event

	// now is injectable for tests.
	now func() time.Time

	mu        sync.Mutex
	state     State
	sessionID string
	startedAt time.Time
	tornDown  bool

	// Snapshot taken at teardown so the transcript survives a remote close.
	lastTurns   []ConversationTurn
	lastElapsed string
	hasResult   bool

	ch         Channel
	mic        AudioSource
	camera     FrameSource
	sink       AudioSink
	capture    *CaptureEncoder
	playback   *PlaybackScheduler
	transcript *TranscriptAggregator
	bridge     *ToolCallBridge
	demux      *Demultiplexer
}

// NewController creates an idle controller.
func NewController(dial Dialer, devices Devices, opts Options) *Controller {
	return &Controller{
		dial:    dial,
		devices: devices,
		opts:    opts.withDefaults(),
		events:  make(chan Event, 128),
		now:     time.Now,
		state:   StateIdle,
	}
}

// Events yields session events for the UI layer.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the identifier of the current (or last) session.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Start acquires the devices, opens the coach channel, and brings the
// session to OPEN. Any previous session is fully torn down first, so Start
// is safe to call again after a finish or an error.
func (c *Controller) Start(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	c.teardown("restart")

	c.mu.Lock()
	c.tornDown = false
	c.hasResult = false
	c.lastTurns = nil
	c.lastElapsed = ""
	c.sessionID = uuid.NewString()
	c.mu.Unlock()
	c.setState(StateAcquiring)

	if err := c.acquire(ctx, cfg); err != nil {
		c.fail(err.Error())
		return err
	}

	c.mu.Lock()
	c.startedAt = c.now()
	capture := c.capture
	events := c.ch.Events()
	sessionID := c.sessionID
	c.mu.Unlock()

	capture.Start()
	go c.loop(events)

	c.setState(StateOpen)
	c.emit(&SessionOpenEvent{SessionID: sessionID})
	return nil
}

// acquire opens the hardware and the channel and wires the sub-components.
// Partial acquisitions are released by the caller via fail → teardown.
func (c *Controller) acquire(ctx context.Context, cfg Config) error {
	mic, err := c.devices.OpenMic(c.opts.BlockDuration)
	if err != nil {
		return fmt.Errorf("acquire microphone: %w", err)
	}
	c.mu.Lock()
	c.mic = mic
	c.mu.Unlock()

	camera, err := c.devices.OpenCamera()
	if err != nil {
		return fmt.Errorf("acquire camera: %w", err)
	}
	c.mu.Lock()
	c.camera = camera
	c.mu.Unlock()

	sink, err := c.devices.OpenSpeaker()
	if err != nil {
		return fmt.Errorf("acquire speaker: %w", err)
	}
	c.mu.Lock()
	c.sink = sink
	sessionID := c.sessionID
	c.mu.Unlock()

	inSpec := CaptureAudioSpec()
	outSpec := PlaybackAudioSpec()
	setup := protocol.ClientSetup{
		Type:            "setup",
		ProtocolVersion: protocol.ProtocolVersion1,
		SessionID:       sessionID,
		Instruction:     cfg.Instruction(),
		AudioIn: protocol.AudioFormat{
			Encoding:     "pcm_s16le",
			SampleRateHz: inSpec.SampleRate,
			Channels:     inSpec.Channels,
		},
		AudioOut: protocol.AudioFormat{
			Encoding:     "pcm_s16le",
			SampleRateHz: outSpec.SampleRate,
			Channels:     outSpec.Channels,
		},
		Tools: []protocol.ToolDeclaration{CueToolSchema()},
	}

	ch, err := c.dial(ctx, setup)
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}

	if err := c.awaitReady(ctx, ch); err != nil {
		_ = ch.Close()
		return err
	}

	transcript := NewTranscriptAggregator()
	playback := NewPlaybackScheduler(outSpec, sink)
	bridge := NewToolCallBridge(ch, c.opts.CueDuration,
		func(cue VisualCue) { c.emit(&CuePublishedEvent{Cue: cue}) },
		func() { c.emit(&CueExpiredEvent{}) },
	)
	demux := &Demultiplexer{
		transcript: transcript,
		playback:   playback,
		fallback:   bridge.HandleInvocation,
		onCaption: func(speaker, delta string) {
			c.emit(&CaptionDeltaEvent{Speaker: speaker, Delta: delta})
		},
		onTurns: func(turns []ConversationTurn) {
			for _, turn := range turns {
				c.emit(&TurnFinalizedEvent{Turn: turn})
			}
		},
		onInterrupt: func() { c.emit(&InterruptedEvent{}) },
		onDrop:      func(reason string) { c.debug("DEMUX", reason) },
	}
	demux.RegisterTool(CueToolName, bridge.HandleInvocation)

	capture := NewCaptureEncoder(mic, camera, ch, c.opts, c.debugf)

	c.mu.Lock()
	c.ch = ch
	c.transcript = transcript
	c.playback = playback
	c.bridge = bridge
	c.demux = demux
	c.capture = capture
	c.mu.Unlock()
	return nil
}

// awaitReady consumes channel events until the coach signals ready.
func (c *Controller) awaitReady(ctx context.Context, ch Channel) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-ch.Events():
			if !ok {
				return fmt.Errorf("channel closed before ready")
			}
			switch e := event.(type) {
			case protocol.ReadyEvent:
				return nil
			case protocol.ErrorEvent:
				return fmt.Errorf("channel error before ready: %s", e.Message)
			case protocol.GoAwayEvent:
				return fmt.Errorf("channel closed before ready: %s", e.Reason)
			default:
				// Pre-ready frames of other kinds are not expected; skip.
			}
		}
	}
}

// loop is the single consumer for inbound events, preserving arrival order.
func (c *Controller) loop(events <-chan protocol.ServerEvent) {
	for event := range events {
		switch e := event.(type) {
		case protocol.ErrorEvent:
			c.debug("SESSION", "channel error: "+e.Message)
			c.fail(e.Message)
			return
		case protocol.GoAwayEvent:
			c.debug("SESSION", "remote close: "+e.Reason)
			c.remoteClose(e.Reason)
			return
		default:
			c.mu.Lock()
			demux := c.demux
			c.mu.Unlock()
			if demux != nil {
				demux.Route(event)
			}
		}
	}
}

// ToggleMute flips the capture mute. It affects only the capture path;
// playback and demultiplexing are untouched. Returns the new state.
func (c *Controller) ToggleMute() bool {
	c.mu.Lock()
	capture := c.capture
	c.mu.Unlock()
	if capture == nil {
		return false
	}
	muted := !capture.Muted()
	capture.SetMuted(muted)
	c.emit(&MuteChangedEvent{Muted: muted})
	return muted
}

// Finish ends the session, returning the accumulated turn history and the
// elapsed duration formatted as MM:SS.
func (c *Controller) Finish() ([]ConversationTurn, string, error) {
	c.mu.Lock()
	if c.state != StateOpen || c.transcript == nil {
		state := c.state
		c.mu.Unlock()
		return nil, "", fmt.Errorf("cannot finish in state %s", state)
	}
	transcript := c.transcript
	ch := c.ch
	elapsed := c.now().Sub(c.startedAt)
	c.mu.Unlock()

	c.setState(StateClosing)

	turns := transcript.History()
	if ch != nil {
		_ = ch.SendControl("finish")
	}
	c.teardown("finished")
	c.setState(StateClosed)
	c.emit(&ClosedEvent{Reason: "finished"})
	return turns, FormatElapsed(elapsed), nil
}

// Result returns the turn history and MM:SS duration of the most recently
// ended session. It covers sessions the remote side closed, where Finish is
// no longer callable but the transcript is still worth grading.
func (c *Controller) Result() ([]ConversationTurn, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasResult {
		return nil, "", false
	}
	return append([]ConversationTurn(nil), c.lastTurns...), c.lastElapsed, true
}

// fail moves the session to ERROR after a full teardown. The reason is
// surfaced on the event channel; no automatic retry is attempted.
func (c *Controller) fail(reason string) {
	c.teardown("error")
	c.setState(StateError)
	c.emit(&ErrorEvent{Reason: reason})
}

// remoteClose handles an orderly goaway from the coach.
func (c *Controller) remoteClose(reason string) {
	c.setState(StateClosing)
	c.teardown("remote close")
	c.setState(StateClosed)
	c.emit(&ClosedEvent{Reason: reason})
}

// teardown releases everything the session owns: capture producers and
// their timers, device handles, pending playback, the cue expiry timer, and
// the channel. Safe to call multiple times and from both the finish and
// error paths; hardware handles are never double-released.
func (c *Controller) teardown(reason string) {
	c.mu.Lock()
	if c.tornDown {
		c.mu.Unlock()
		return
	}
	c.tornDown = true
	if c.transcript != nil {
		c.lastTurns = c.transcript.History()
		c.lastElapsed = FormatElapsed(c.now().Sub(c.startedAt))
		c.hasResult = true
	}
	capture := c.capture
	mic := c.mic
	camera := c.camera
	sink := c.sink
	playback := c.playback
	bridge := c.bridge
	ch := c.ch
	c.capture = nil
	c.mic = nil
	c.camera = nil
	c.sink = nil
	c.playback = nil
	c.bridge = nil
	c.demux = nil
	c.ch = nil
	c.mu.Unlock()

	c.debug("SESSION", "teardown: "+reason)

	if capture != nil {
		capture.Stop()
	}
	if mic != nil {
		_ = mic.Close()
	}
	if camera != nil {
		_ = camera.Close()
	}
	if playback != nil {
		playback.CancelAll()
	}
	if bridge != nil {
		bridge.Close()
	}
	if ch != nil {
		_ = ch.Close()
	}
	if closer, ok := sink.(io.Closer); ok {
		_ = closer.Close()
	}
}

func (c *Controller) setState(next State) {
	c.mu.Lock()
	prev := c.state
	c.state = next
	c.mu.Unlock()

	if prev != next {
		c.debug("SESSION", fmt.Sprintf("state: %s -> %s", prev, next))
		c.emit(&StateChangedEvent{From: prev, To: next})
	}
}

// emit sends an event without blocking the caller; a slow UI consumer loses
// events rather than stalling the session.
func (c *Controller) emit(event Event) {
	select {
	case c.events <- event:
	default:
	}
}

func (c *Controller) debug(category, message string) {
	if c.opts.Debug {
		timestamp := time.Now().Format("15:04:05.000")
		fmt.Fprintf(os.Stderr, "%s [%-8s] %s\n", timestamp, category, message)
	}
}

func (c *Controller) debugf(category, format string, args ...any) {
	if c.opts.Debug {
		c.debug(category, fmt.Sprintf(format, args...))
	}
}

// FormatElapsed renders a duration as MM:SS.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
