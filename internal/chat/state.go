// Package chat holds the client-side state of one chat session: the confirmed
// message history, its reactions, and the connection status. Inbound events
// mutate it through Handle; intents are forwarded to the transport and only
// show up here once the server confirms them.
package chat

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"chat-window/internal/models"
	"chat-window/internal/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Status int32

const (
	StatusUninitialized Status = iota
	StatusLoading
	StatusReady
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusClosed:
		return "closed"
	}
	return fmt.Sprintf("status(%d)", int32(s))
}

// Sender delivers outbound envelopes to the server.
type Sender interface {
	Send(ctx context.Context, env types.Envelope) error
}

type Option func(*State)

func WithLogger(logger *zap.Logger) Option {
	return func(s *State) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAuthorName sets the display name attached to outgoing messages.
func WithAuthorName(name string) Option {
	return func(s *State) {
		s.authorName = models.NormalizeAuthor(name)
	}
}

// WithObserver registers fn to be called after every event Handle applies.
// It runs on the transport goroutine without any lock held.
func WithObserver(fn func(Event)) Option {
	return func(s *State) {
		s.observer = fn
	}
}

// State is the authoritative message list for one session.
type State struct {
	mu         sync.RWMutex
	id         string
	sender     Sender
	logger     *zap.Logger
	authorName string
	observer   func(Event)

	status  Status
	byID    map[int64]*models.Message
	ordered []*models.Message
	lastErr string
}

// New creates an uninitialized session that sends intents through sender.
func New(sender Sender, opts ...Option) *State {
	s := &State{
		id:         uuid.NewString(),
		sender:     sender,
		logger:     zap.NewNop(),
		authorName: models.DefaultAuthorName,
		byID:       make(map[int64]*models.Message),
		ordered:    make([]*models.Message, 0, 64),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("session", s.id))
	return s
}

func (s *State) ID() string { return s.id }

func (s *State) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// LastServerError is the text of the most recent error frame, if any.
func (s *State) LastServerError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Start moves a new session into Loading.
func (s *State) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case StatusUninitialized:
		s.status = StatusLoading
		s.logger.Debug("session loading")
		return nil
	case StatusClosed:
		return ErrSessionClosed
	}
	return fmt.Errorf("%w: status is %s", ErrAlreadyStarted, s.status)
}

// Handle applies one inbound event. Events must be handed in arrival order.
func (s *State) Handle(ev Event) error {
	var err error
	switch e := ev.(type) {
	case OpenEvent:
		err = s.open()
	case MessageEvent:
		err = s.IngestMessage(e.Message)
	case ReactionEvent:
		u := e.Update
		err = s.IngestReactionUpdate(u.MessageID, u.Emoji, u.ReactorID, u.Action)
	case ErrorEvent:
		s.mu.Lock()
		s.lastErr = e.Message
		s.mu.Unlock()
		s.logger.Warn("server reported error", zap.String("error", e.Message))
	case CloseEvent:
		s.close(e.Err)
	default:
		err = fmt.Errorf("%w: unknown event %T", ErrInvalidPayload, ev)
	}

	if err == nil && s.observer != nil {
		s.observer(ev)
	}
	return err
}

func (s *State) open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case StatusClosed:
		return ErrSessionClosed
	case StatusReady:
		return nil
	case StatusUninitialized:
		return fmt.Errorf("%w: open before Start", ErrNotReady)
	}
	s.status = StatusReady
	s.logger.Info("session ready")
	return nil
}

func (s *State) close(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusClosed {
		return
	}
	s.status = StatusClosed
	if cause != nil {
		s.logger.Info("session closed", zap.Error(cause), zap.Int("messages", len(s.ordered)))
		return
	}
	s.logger.Info("session closed", zap.Int("messages", len(s.ordered)))
}

// IngestMessage adds a confirmed message. A message whose id is already known
// is rejected with ErrDuplicateID and leaves the state untouched.
func (s *State) IngestMessage(msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusClosed {
		return ErrSessionClosed
	}
	if _, ok := s.byID[msg.ID]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateID, msg.ID)
	}

	stored := msg.Clone()
	idx, _ := slices.BinarySearchFunc(s.ordered, &stored, func(a, b *models.Message) int {
		return models.Compare(*a, *b)
	})
	s.ordered = slices.Insert(s.ordered, idx, &stored)
	s.byID[stored.ID] = &stored

	s.logger.Debug("message ingested",
		zap.Int64("id", stored.ID),
		zap.String("author", stored.AuthorName),
		zap.Int("position", idx),
	)
	return nil
}

// IngestReactionUpdate applies a confirmed reaction change. Adding a reactor
// that is already present and removing one that is absent are both no-ops.
func (s *State) IngestReactionUpdate(messageID int64, emoji, reactorID string, action models.ReactionAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusClosed {
		return ErrSessionClosed
	}
	msg, ok := s.byID[messageID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrMessageNotFound, messageID)
	}

	var changed bool
	switch action {
	case models.ReactionAdd:
		changed = msg.Reactions.Add(emoji, reactorID)
	case models.ReactionRemove:
		changed = msg.Reactions.Remove(emoji, reactorID)
	default:
		return fmt.Errorf("%w: reaction action %q", ErrInvalidPayload, action)
	}

	s.logger.Debug("reaction applied",
		zap.Int64("message", messageID),
		zap.String("emoji", emoji),
		zap.String("reactor", reactorID),
		zap.String("action", string(action)),
		zap.Bool("changed", changed),
	)
	return nil
}

// OrderedMessages returns a snapshot of the history sorted by creation time,
// ties broken by id. The caller owns the returned slice.
func (s *State) OrderedMessages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Message, len(s.ordered))
	for i, msg := range s.ordered {
		out[i] = msg.Clone()
	}
	return out
}

// MessagesSince returns, in order, the messages created strictly after ts.
func (s *State) MessagesSince(ts int64) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start, _ := slices.BinarySearchFunc(s.ordered, ts, func(m *models.Message, ts int64) int {
		if m.CreatedAt <= ts {
			return -1
		}
		return 1
	})

	out := make([]models.Message, 0, len(s.ordered)-start)
	for _, msg := range s.ordered[start:] {
		out = append(out, msg.Clone())
	}
	return out
}

// Message looks up a single message by id.
func (s *State) Message(id int64) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.byID[id]
	if !ok {
		return models.Message{}, false
	}
	return msg.Clone(), true
}

func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ordered)
}

// ReactionCounts derives the per-emoji reactor counts of a message, in
// display order.
func (s *State) ReactionCounts(messageID int64) ([]models.ReactionCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.byID[messageID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrMessageNotFound, messageID)
	}
	return msg.Reactions.Counts(), nil
}
