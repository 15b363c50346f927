// Package hub is the development chat server. It stores recent messages,
// confirms send_message and add_reaction intents by broadcasting message and
// reaction_updated frames to every connected client, and replays history to
// clients as they join.
package hub

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"chat-window/internal/models"
	"chat-window/internal/types"

	"go.uber.org/zap"
)

const (
	broadcastBuffer = 256
	replayTimeout   = time.Second
)

var ErrHubClosed = errors.New("hub is shut down")

type Options struct {
	MaxClients         int
	RateLimitPerMinute int
}

type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	// slots held by connections still being upgraded
	reserved int

	store   *Store
	metrics *Metrics
	logger  *zap.Logger
	opts    Options

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	quit       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
}

func New(store *Store, metrics *Metrics, logger *zap.Logger, opts Options) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if opts.MaxClients < 1 {
		opts.MaxClients = 50
	}
	if opts.RateLimitPerMinute < 1 {
		opts.RateLimitPerMinute = 20
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		store:      store,
		metrics:    metrics,
		logger:     logger.Named("hub"),
		opts:       opts,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, broadcastBuffer),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Store() *Store {
	return h.store
}

// ClientCount is safe to call from any goroutine.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// reserveSlot claims room for one more client, counting connections that
// passed the check but are not registered yet.
func (h *Hub) reserveSlot() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients)+h.reserved >= h.opts.MaxClients {
		return false
	}
	h.reserved++
	return true
}

func (h *Hub) releaseSlot() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.reserved > 0 {
		h.reserved--
	}
}

// Run owns client registration and fan-out until Stop is called.
func (h *Hub) Run() {
	defer close(h.done)
	h.logger.Info("main loop started")

	for {
		select {
		case <-h.quit:
			h.logger.Info("quit signal received, closing client connections")
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for c := range h.clients {
				clients = append(clients, c)
			}
			h.mu.RUnlock()
			for _, c := range clients {
				h.cleanupClient(c)
			}
			return

		case c := <-h.register:
			h.mu.Lock()
			if c.reserved {
				c.reserved = false
				h.reserved--
			}
			h.clients[c] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			h.metrics.Clients.Inc()
			h.logger.Info("client registered",
				zap.String("client", c.ID), zap.String("user", c.UserID), zap.Int("active", total))
			h.replayHistory(c)

		case c := <-h.unregister:
			h.cleanupClient(c)

		case payload := <-h.broadcast:
			h.mu.RLock()
			var slow []*Client
			for c := range h.clients {
				select {
				case c.send <- payload:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.RUnlock()

			for _, c := range slow {
				h.logger.Warn("client buffer full, evicting slow consumer", zap.String("client", c.ID))
				h.metrics.Evicted.Inc()
				h.cleanupClient(c)
			}
		}
	}
}

// Stop shuts the loop down and waits for it to exit. Connected clients get
// a close frame. Run must have been started.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
	})
	<-h.done
}

// replayHistory queues the stored messages for a new client. It runs on the
// loop goroutine so no broadcast can overtake the history.
func (h *Hub) replayHistory(c *Client) {
	history := h.store.GetAll()
	if len(history) == 0 {
		return
	}
	h.logger.Debug("replaying history", zap.String("client", c.ID), zap.Int("messages", len(history)))

	timer := time.NewTimer(replayTimeout)
	defer timer.Stop()

	for _, msg := range history {
		payload, err := encode(types.TypeMessage, msg)
		if err != nil {
			h.logger.Error("failed to encode history message", zap.Int64("id", msg.ID), zap.Error(err))
			continue
		}
		timer.Reset(replayTimeout)
		select {
		case c.send <- payload:
		case <-timer.C:
			h.logger.Warn("history replay timed out, evicting client", zap.String("client", c.ID))
			h.metrics.Evicted.Inc()
			h.cleanupClient(c)
			return
		}
	}
}

func (h *Hub) cleanupClient(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	remaining := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}

	c.closeSend()
	h.metrics.Clients.Dec()
	h.logger.Info("session closed", zap.String("client", c.ID), zap.Int("active", remaining))
}

// Register hands c to the loop. It returns ErrHubClosed after Stop.
func (h *Hub) Register(c *Client) error {
	if h.stopped() {
		return ErrHubClosed
	}
	select {
	case h.register <- c:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

func (h *Hub) stopped() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish broadcasts one envelope to every connected client.
func (h *Hub) Publish(msgType types.MessageType, data any) error {
	payload, err := encode(msgType, data)
	if err != nil {
		return err
	}
	if h.stopped() {
		return ErrHubClosed
	}
	select {
	case h.broadcast <- payload:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

// Post stores a message and broadcasts it.
func (h *Hub) Post(text, author string) (models.Message, error) {
	msg, err := h.store.Add(text, author)
	if err != nil {
		return models.Message{}, err
	}
	h.metrics.Messages.Inc()
	h.logger.Debug("new message",
		zap.Int64("id", msg.ID), zap.String("author", msg.AuthorName), zap.Int("length", len(msg.Text)))

	if err := h.Publish(types.TypeMessage, msg); err != nil {
		return msg, err
	}
	return msg, nil
}

// React toggles userID's emoji on a message and broadcasts the result.
func (h *Hub) React(messageID int64, emoji, userID string) (models.ReactionAction, error) {
	emoji = strings.TrimSpace(emoji)
	action, msg, err := h.store.ToggleReaction(messageID, emoji, userID)
	if err != nil {
		return "", err
	}
	h.metrics.Reactions.WithLabelValues(string(action)).Inc()
	h.logger.Debug("reaction toggled",
		zap.Int64("id", messageID), zap.String("emoji", emoji), zap.String("user", userID), zap.String("action", string(action)))

	err = h.Publish(types.TypeReactionUpdated, types.ReactionUpdated{
		MessageID: messageID,
		Emoji:     emoji,
		ReactorID: userID,
		Action:    string(action),
		Message:   &msg,
	})
	return action, err
}

func encode(msgType types.MessageType, data any) ([]byte, error) {
	env, err := types.NewEnvelope(msgType, data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}
