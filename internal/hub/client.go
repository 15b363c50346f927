package hub

import (
	"errors"
	"sync"
	"time"

	"chat-window/internal/middleware"
	"chat-window/internal/models"
	"chat-window/internal/types"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	maxMessageSize  = 2048
	sendBuffer      = 256
	warningInterval = 3 * time.Second
)

// maxBatchBytes caps one outbound frame, well under the 64KB read limit of
// transport.Client.
const maxBatchBytes = 32 * 1024

// Client is one websocket connection as seen by the hub.
type Client struct {
	ID     string
	UserID string

	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	limiter     *middleware.RateLimiter
	lastWarning time.Time
	logger      *zap.Logger

	// holds a slot from reserveSlot until the hub registers it
	reserved bool

	mu     sync.Mutex
	closed bool
}

func newClient(h *Hub, conn *websocket.Conn, userID string) *Client {
	id := uuid.NewString()
	return &Client{
		ID:      id,
		UserID:  userID,
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		limiter: middleware.NewRatelimiter(h.opts.RateLimitPerMinute),
		logger:  h.logger.With(zap.String("client", id), zap.String("user", userID)),
	}
}

// WritePump drains the send queue. Envelopes that queued up while a frame
// was being written go out together in the next frame, one per line.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.writeBatch(message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeBatch writes first plus whatever is already queued behind it. A frame
// never grows past maxBatchBytes; the rest spills into further frames.
func (c *Client) writeBatch(first []byte) error {
	for msg := first; msg != nil; {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		w, err := c.conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return err
		}
		w.Write(msg)
		size := len(msg)
		msg = nil

		for n := len(c.send); n > 0; n-- {
			next, ok := <-c.send
			if !ok {
				break
			}
			if size+1+len(next) > maxBatchBytes {
				msg = next
				break
			}
			w.Write([]byte{'\n'})
			w.Write(next)
			size += 1 + len(next)
		}

		if err := w.Close(); err != nil {
			return err
		}
	}
	return nil
}

// ReadPump handles intents until the connection drops.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("unexpected close", zap.Error(err))
			}
			return
		}

		env, err := types.ParseEnvelope(data)
		if err != nil {
			c.logger.Debug("invalid frame", zap.Error(err))
			c.sendError("Invalid message format")
			continue
		}

		switch env.Type {
		case types.TypeSendMessage:
			c.handleSendMessage(env)
		case types.TypeAddReaction:
			c.handleAddReaction(env)
		default:
			c.logger.Debug("unknown message type", zap.String("type", string(env.Type)))
		}
	}
}

func (c *Client) handleSendMessage(env types.Envelope) {
	if !c.limiter.Allow() {
		c.hub.metrics.RateLimited.Inc()
		c.logger.Info("rate limit exceeded")
		if time.Since(c.lastWarning) > warningInterval {
			c.lastWarning = time.Now()
			c.sendError("Rate limit exceeded. Please slow down.")
		}
		return
	}

	var req types.SendMessageRequest
	if err := env.Decode(&req); err != nil {
		c.sendError("Invalid message format")
		return
	}

	text, err := models.ValidateText(req.Text)
	if err != nil {
		c.sendError(err.Error())
		return
	}

	if _, err := c.hub.Post(expandEmote(text), req.AuthorName); err != nil {
		if errors.Is(err, ErrHubClosed) {
			return
		}
		c.sendError(err.Error())
	}
}

func (c *Client) handleAddReaction(env types.Envelope) {
	var req types.AddReactionRequest
	if err := env.Decode(&req); err != nil {
		c.sendError("Invalid reaction format")
		return
	}

	if _, err := c.hub.React(req.MessageID, req.Emoji, c.UserID); err != nil {
		switch {
		case errors.Is(err, ErrMessageNotFound):
			c.sendError("Message not found")
		case errors.Is(err, ErrEmptyEmoji):
			c.sendError(err.Error())
		case errors.Is(err, ErrHubClosed):
		default:
			c.logger.Warn("failed to toggle reaction", zap.Error(err))
		}
	}
}

// sendError answers only this client without blocking the read loop.
func (c *Client) sendError(text string) {
	payload, err := encode(types.TypeError, types.ErrorPayload{Error: text})
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- payload:
	default:
		c.logger.Debug("dropping error reply, buffer full")
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
