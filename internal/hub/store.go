package hub

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"chat-window/internal/models"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrEmptyEmoji      = errors.New("emoji cannot be empty")
)

// Store keeps the most recent messages in posting order and assigns ids.
type Store struct {
	mu       sync.RWMutex
	messages []*models.Message
	byID     map[int64]*models.Message
	lastID   int64
	limit    int
	now      func() time.Time
}

func NewStore(limit int) *Store {
	if limit < 1 {
		limit = 1000
	}
	return &Store{
		byID:  make(map[int64]*models.Message),
		limit: limit,
		now:   time.Now,
	}
}

// Add validates text and appends a new message. The oldest messages are
// dropped once the store holds more than its limit.
func (s *Store) Add(text, author string) (models.Message, error) {
	text, err := models.ValidateText(text)
	if err != nil {
		return models.Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID++
	msg := &models.Message{
		ID:         s.lastID,
		AuthorName: models.NormalizeAuthor(author),
		CreatedAt:  s.now().Unix(),
		Text:       text,
	}
	s.messages = append(s.messages, msg)
	s.byID[msg.ID] = msg

	if over := len(s.messages) - s.limit; over > 0 {
		for _, old := range s.messages[:over] {
			delete(s.byID, old.ID)
		}
		s.messages = append([]*models.Message(nil), s.messages[over:]...)
	}
	return msg.Clone(), nil
}

func (s *Store) GetAll() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Clone()
	}
	return out
}

func (s *Store) GetSince(timestamp int64) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Message
	for _, m := range s.messages {
		if m.CreatedAt > timestamp {
			out = append(out, m.Clone())
		}
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// ToggleReaction adds userID to the emoji's reactors, or removes it when it is
// already there. It returns the action taken and the updated message.
func (s *Store) ToggleReaction(messageID int64, emoji, userID string) (models.ReactionAction, models.Message, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return "", models.Message{}, ErrEmptyEmoji
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.byID[messageID]
	if !ok {
		return "", models.Message{}, fmt.Errorf("%w: %d", ErrMessageNotFound, messageID)
	}

	action := models.ReactionAdd
	if msg.Reactions.Has(emoji, userID) {
		msg.Reactions.Remove(emoji, userID)
		action = models.ReactionRemove
	} else {
		msg.Reactions.Add(emoji, userID)
	}
	return action, msg.Clone(), nil
}
