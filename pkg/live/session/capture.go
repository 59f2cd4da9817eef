package session

import (
	"bytes"
	"image"
	"image/jpeg"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mockmate/mockmate/pkg/live/protocol"
)

// FramePolicy controls outbound video backpressure.
type FramePolicy string

const (
	// FramePolicyDrop skips a capture tick while the previous frame's
	// encode/send is still in flight. Latency stays bounded, but sustained
	// slow encodes starve the coach of visual context.
	FramePolicyDrop FramePolicy = "drop"

	// FramePolicyQueue waits for the in-flight frame instead, degrading the
	// effective frame rate rather than dropping frames.
	FramePolicyQueue FramePolicy = "queue"
)

// AudioSource produces fixed-size blocks of raw microphone PCM.
type AudioSource interface {
	// Blocks yields capture blocks in capture order. The channel closes when
	// the source is closed.
	Blocks() <-chan []byte
	Close() error
}

// FrameSource holds the most recent camera frame. Older frames are never
// buffered; only the latest matters.
type FrameSource interface {
	// Latest returns the newest frame, or ok=false if none has arrived yet.
	Latest() (image.Image, bool)
	Close() error
}

// CaptureEncoder turns live hardware input into outbound protocol frames.
// The audio and video paths are independent producers; neither waits for
// acknowledgement before producing the next unit.
type CaptureEncoder struct {
	mic    AudioSource
	camera FrameSource
	ch     Channel

	frameInterval time.Duration
	jpegQuality   int
	policy        FramePolicy

	muted         atomic.Bool
	frameInFlight atomic.Bool

	audioSeq atomic.Int64
	videoSeq atomic.Int64

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup

	debugf func(category, format string, args ...any)
}

// NewCaptureEncoder wires the capture paths. camera may be nil for
// audio-only rehearsals.
func NewCaptureEncoder(mic AudioSource, camera FrameSource, ch Channel, opts Options, debugf func(category, format string, args ...any)) *CaptureEncoder {
	opts = opts.withDefaults()
	if debugf == nil {
		debugf = func(string, string, ...any) {}
	}
	return &CaptureEncoder{
		mic:           mic,
		camera:        camera,
		ch:            ch,
		frameInterval: opts.FrameInterval,
		jpegQuality:   opts.JPEGQuality,
		policy:        opts.FramePolicy,
		stop:          make(chan struct{}),
		debugf:        debugf,
	}
}

// Start launches the audio and video producers.
func (c *CaptureEncoder) Start() {
	c.wg.Add(1)
	go c.audioLoop()
	if c.camera != nil {
		c.wg.Add(1)
		go c.videoLoop()
	}
}

// Stop halts both producers and waits for them to exit. Idempotent.
func (c *CaptureEncoder) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	c.wg.Wait()
}

// SetMuted toggles the capture mute. While muted, microphone blocks are
// dropped before encoding rather than sent as silence, so no bandwidth is
// spent and the coach's turn-taking signal is not fed.
func (c *CaptureEncoder) SetMuted(muted bool) {
	c.muted.Store(muted)
}

// Muted reports the current mute state.
func (c *CaptureEncoder) Muted() bool {
	return c.muted.Load()
}

func (c *CaptureEncoder) audioLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.stop:
			return
		case block, ok := <-c.mic.Blocks():
			if !ok {
				return
			}
			if c.muted.Load() {
				continue
			}
			seq := c.audioSeq.Add(1)
			if err := c.ch.SendAudioFrame(protocol.NewAudioFrame(seq, block)); err != nil {
				c.debugf("CAPTURE", "audio frame %d dropped: %v", seq, err)
			}
		}
	}
}

func (c *CaptureEncoder) videoLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.captureFrame()
		}
	}
}

// captureFrame grabs the latest camera frame, compresses it, and sends it.
// Under FramePolicyDrop a tick is skipped while a previous frame is still in
// flight; under FramePolicyQueue the send runs inline so ticks back up and
// the frame rate degrades instead.
func (c *CaptureEncoder) captureFrame() {
	frame, ok := c.camera.Latest()
	if !ok {
		return
	}

	switch c.policy {
	case FramePolicyQueue:
		c.encodeAndSend(frame)
	default:
		if !c.frameInFlight.CompareAndSwap(false, true) {
			c.debugf("CAPTURE", "video frame skipped, previous still in flight")
			return
		}
		go func() {
			defer c.frameInFlight.Store(false)
			c.encodeAndSend(frame)
		}()
	}
}

func (c *CaptureEncoder) encodeAndSend(frame image.Image) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: c.jpegQuality}); err != nil {
		c.debugf("CAPTURE", "jpeg encode failed: %v", err)
		return
	}
	seq := c.videoSeq.Add(1)
	if err := c.ch.SendImageFrame(protocol.NewImageFrame(seq, "image/jpeg", buf.Bytes())); err != nil {
		c.debugf("CAPTURE", "image frame %d dropped: %v", seq, err)
	}
}
