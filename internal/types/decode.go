package types

import (
	"fmt"
	"strings"

	"chat-window/internal/models"
)

// DecodeMessage reads a message frame and checks the fields the client relies on.
func DecodeMessage(env Envelope) (models.Message, error) {
	var msg models.Message
	if err := env.Decode(&msg); err != nil {
		return models.Message{}, err
	}
	if msg.ID <= 0 {
		return models.Message{}, fmt.Errorf("%w: message id must be positive, got %d", ErrInvalidPayload, msg.ID)
	}
	return msg, nil
}

// DecodeReactionUpdate reads a reaction_updated frame.
func DecodeReactionUpdate(env Envelope) (models.ReactionUpdate, error) {
	var p ReactionUpdated
	if err := env.Decode(&p); err != nil {
		return models.ReactionUpdate{}, err
	}

	reactor := p.ReactorID
	if reactor == "" {
		reactor = p.UserID
	}
	switch {
	case p.MessageID <= 0:
		return models.ReactionUpdate{}, fmt.Errorf("%w: reaction for message id %d", ErrInvalidPayload, p.MessageID)
	case strings.TrimSpace(p.Emoji) == "":
		return models.ReactionUpdate{}, fmt.Errorf("%w: reaction without emoji", ErrInvalidPayload)
	case reactor == "":
		return models.ReactionUpdate{}, fmt.Errorf("%w: reaction without reactor", ErrInvalidPayload)
	}

	action, err := models.ParseReactionAction(p.Action)
	if err != nil {
		return models.ReactionUpdate{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	return models.ReactionUpdate{
		MessageID: p.MessageID,
		Emoji:     p.Emoji,
		ReactorID: reactor,
		Action:    action,
	}, nil
}

func DecodeError(env Envelope) (string, error) {
	var p ErrorPayload
	if err := env.Decode(&p); err != nil {
		return "", err
	}
	return p.Error, nil
}
