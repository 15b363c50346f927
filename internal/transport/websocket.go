// Package transport connects a chat session to the server over a websocket.
// Inbound frames are decoded into chat events and handed, in arrival order,
// to a single Handler from the read goroutine. Malformed frames are logged
// and dropped there, so the handler only ever sees well-formed events.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"chat-window/internal/chat"
	"chat-window/internal/types"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

var (
	ErrNotConnected     = errors.New("transport not connected")
	ErrConnClosed       = errors.New("transport connection closed")
	ErrAlreadyConnected = errors.New("transport already connected")
)

// Handler receives decoded events. chat.State implements it.
type Handler interface {
	Handle(chat.Event) error
}

// Client is a single websocket connection. It is not reusable: once closed,
// create a new Client (and a new chat.State) for the next session.
type Client struct {
	dialer *websocket.Dialer
	logger *zap.Logger

	mu      sync.RWMutex
	conn    *websocket.Conn
	handler Handler
	send    chan []byte
	done    chan struct{}

	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewClient(logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		logger: logger.Named("transport"),
	}
}

// Connect dials url and starts the read and write pumps. The handler receives
// an OpenEvent before any frame and a CloseEvent when the connection ends.
func (c *Client) Connect(ctx context.Context, url string, handler Handler) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}

	conn, _, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	c.conn = conn
	c.handler = handler
	c.send = make(chan []byte, sendBuffer)
	c.done = make(chan struct{})
	c.mu.Unlock()

	c.logger.Info("connected", zap.String("url", url))
	c.deliver(chat.OpenEvent{})

	c.wg.Add(2)
	go c.writePump(conn)
	go c.readPump(conn)
	return nil
}

// Send queues env for the write pump. A nil error means the envelope was
// queued on a live connection, not that the server received it.
func (c *Client) Send(ctx context.Context, env types.Envelope) error {
	c.mu.RLock()
	send, done := c.send, c.done
	c.mu.RUnlock()
	if send == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s: %w", env.Type, err)
	}

	select {
	case send <- data:
	case <-done:
		return ErrConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	// the write pump may have stopped while env was being queued
	select {
	case <-done:
		return ErrConnClosed
	default:
		return nil
	}
}

// Done is closed once the connection has shut down. It is nil before Connect.
func (c *Client) Done() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.done
}

// Close sends a close frame, tears the connection down and waits for both
// pumps to exit. It must not be called from inside Handler.Handle.
func (c *Client) Close() error {
	c.mu.RLock()
	done := c.done
	c.mu.RUnlock()
	if done == nil {
		return ErrNotConnected
	}

	c.shutdown()
	c.wg.Wait()
	return nil
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *Client) closing() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client) readPump(conn *websocket.Conn) {
	var cause error
	defer func() {
		c.shutdown()
		c.deliver(chat.CloseEvent{Err: cause})
		c.wg.Done()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !c.closing() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				cause = err
				c.logger.Warn("connection lost", zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		c.dispatch(data)
	}
}

func (c *Client) writePump(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
		c.wg.Done()
	}()

	for {
		select {
		case message := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("write failed", zap.Error(err))
				c.shutdown()
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}

		case <-c.done:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// dispatch splits a frame into envelopes. The server may batch several
// queued envelopes into one frame, one per line.
func (c *Client) dispatch(frame []byte) {
	for _, line := range bytes.Split(frame, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		ev, err := decodeEvent(line)
		if err != nil {
			c.logger.Warn("dropping invalid frame", zap.Error(err), zap.ByteString("frame", truncate(line, 256)))
			continue
		}
		c.deliver(ev)
	}
}

func (c *Client) deliver(ev chat.Event) {
	if c.handler == nil {
		return
	}
	err := c.handler.Handle(ev)
	switch {
	case err == nil:
	case errors.Is(err, chat.ErrDuplicateID):
		// history is replayed on every connect
		c.logger.Debug("ignoring duplicate message", zap.Error(err))
	default:
		c.logger.Warn("event rejected", zap.String("event", fmt.Sprintf("%T", ev)), zap.Error(err))
	}
}

func decodeEvent(data []byte) (chat.Event, error) {
	env, err := types.ParseEnvelope(data)
	if err != nil {
		return nil, err
	}

	switch env.Type {
	case types.TypeMessage:
		msg, err := types.DecodeMessage(env)
		if err != nil {
			return nil, err
		}
		return chat.MessageEvent{Message: msg}, nil

	case types.TypeReactionUpdated:
		update, err := types.DecodeReactionUpdate(env)
		if err != nil {
			return nil, err
		}
		return chat.ReactionEvent{Update: update}, nil

	case types.TypeError:
		text, err := types.DecodeError(env)
		if err != nil {
			return nil, err
		}
		return chat.ErrorEvent{Message: text}, nil
	}
	return nil, fmt.Errorf("%w: unknown type %q", types.ErrInvalidPayload, env.Type)
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
