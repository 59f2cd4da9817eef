package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mockmate/mockmate/pkg/live/protocol"
)

const defaultConnectTimeout = 15 * time.Second

// Channel is the bidirectional message channel to the remote coach. The
// websocket implementation below is the production one; tests substitute
// fakes.
type Channel interface {
	SendAudioFrame(frame protocol.ClientAudioFrame) error
	SendImageFrame(frame protocol.ClientImageFrame) error
	SendToolResponse(resp protocol.ClientToolResponse) error
	SendControl(op string) error

	// Events yields inbound events in arrival order. The channel is closed
	// after an error, goaway, or Close.
	Events() <-chan protocol.ServerEvent

	Close() error
}

// Dialer opens a Channel for a session. The production dialer is
// DialAgent; tests inject fakes.
type Dialer func(ctx context.Context, setup protocol.ClientSetup) (Channel, error)

// wsChannel is the gorilla/websocket Channel implementation.
type wsChannel struct {
	conn *websocket.Conn

	events   chan protocol.ServerEvent
	done     chan struct{}
	shutdown chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool
}

// DialAgent connects to the coach endpoint, performs the setup handshake,
// and starts the read loop. The returned channel is ready once the coach's
// ready event has been observed on Events().
func DialAgent(url string) Dialer {
	return func(ctx context.Context, setup protocol.ClientSetup) (Channel, error) {
		dialer := websocket.DefaultDialer
		if dialer == nil {
			dialer = &websocket.Dialer{}
		}

		dialCtx := ctx
		var cancel context.CancelFunc
		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			dialCtx, cancel = context.WithTimeout(ctx, defaultConnectTimeout)
			defer cancel()
		}

		conn, resp, err := dialer.DialContext(dialCtx, url, nil)
		if err != nil {
			if resp != nil {
				return nil, fmt.Errorf("dial %s (status %d): %w", url, resp.StatusCode, err)
			}
			return nil, fmt.Errorf("dial %s: %w", url, err)
		}

		ch := &wsChannel{
			conn:     conn,
			events:   make(chan protocol.ServerEvent, 256),
			done:     make(chan struct{}),
			shutdown: make(chan struct{}),
		}
		if err := ch.sendJSON(setup); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("send setup: %w", err)
		}
		go ch.readLoop()
		return ch, nil
	}
}

func (c *wsChannel) SendAudioFrame(frame protocol.ClientAudioFrame) error {
	return c.sendJSON(frame)
}

func (c *wsChannel) SendImageFrame(frame protocol.ClientImageFrame) error {
	return c.sendJSON(frame)
}

func (c *wsChannel) SendToolResponse(resp protocol.ClientToolResponse) error {
	return c.sendJSON(resp)
}

func (c *wsChannel) SendControl(op string) error {
	return c.sendJSON(protocol.ClientControl{Type: "control", Op: op})
}

func (c *wsChannel) sendJSON(v any) error {
	if c.closed.Load() {
		return fmt.Errorf("channel is closed")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsChannel) Events() <-chan protocol.ServerEvent {
	return c.events
}

func (c *wsChannel) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.shutdown)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(2*time.Second))
		c.writeMu.Unlock()
		_ = c.conn.Close()
	})
	<-c.done
	return nil
}

// readLoop decodes inbound frames in arrival order. The loop exits on any
// transport error or a normal remote close; a frame that fails to decode is
// dropped, not fatal.
func (c *wsChannel) readLoop() {
	defer close(c.done)
	defer close(c.events)

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.emit(protocol.GoAwayEvent{Reason: "remote close"})
				return
			}
			if !c.closed.Load() {
				c.emit(protocol.ErrorEvent{Code: "channel_error", Message: err.Error()})
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		event, err := protocol.DecodeServerFrame(data)
		if err != nil {
			// One malformed frame (a bad audio payload, say) must not take
			// down the session or the frames behind it.
			c.emit(protocol.UnknownEvent{Type: "undecodable", Raw: append([]byte(nil), data...)})
			continue
		}
		c.emit(event)
	}
}

// emit delivers in order; it blocks rather than drops, because the consumer
// loop owns ordering guarantees and drains promptly. The shutdown case keeps
// Close from deadlocking when the consumer has already stopped draining.
func (c *wsChannel) emit(event protocol.ServerEvent) {
	select {
	case c.events <- event:
	case <-c.shutdown:
	}
}
