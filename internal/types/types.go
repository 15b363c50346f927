package types

import (
	"chat-window/internal/models"
)

type SendMessageRequest struct {
	Text       string `json:"text"`
	AuthorName string `json:"author_name,omitempty"`
}

type AddReactionRequest struct {
	MessageID int64  `json:"message_id"`
	Emoji     string `json:"emoji"`
}

// ReactionUpdated is the data of a reaction_updated frame. UserID is the
// field name older servers use for the reactor.
type ReactionUpdated struct {
	MessageID int64           `json:"message_id"`
	Emoji     string          `json:"emoji"`
	ReactorID string          `json:"reactor_id,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
	Action    string          `json:"action"`
	Message   *models.Message `json:"message,omitempty"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}
