package chat

import (
	"context"
	"fmt"
	"strings"

	"chat-window/internal/models"
	"chat-window/internal/types"

	"go.uber.org/zap"
)

// intentAllowed reports why an intent cannot be sent right now, if it can't.
func (s *State) intentAllowed() error {
	switch s.status {
	case StatusClosed:
		return ErrSessionClosed
	case StatusReady:
		if s.sender == nil {
			return ErrNotReady
		}
		return nil
	}
	return fmt.Errorf("%w: status is %s", ErrNotReady, s.status)
}

// SendMessage asks the server to post text. Nothing changes locally until the
// server echoes the message back.
func (s *State) SendMessage(ctx context.Context, text string) error {
	s.mu.RLock()
	err := s.intentAllowed()
	author := s.authorName
	s.mu.RUnlock()
	if err != nil {
		return err
	}

	text, err = models.ValidateText(text)
	if err != nil {
		return err
	}

	env, err := types.NewEnvelope(types.TypeSendMessage, types.SendMessageRequest{
		Text:       text,
		AuthorName: author,
	})
	if err != nil {
		return err
	}
	if err := s.sender.Send(ctx, env); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	s.logger.Debug("send_message queued", zap.Int("length", len(text)))
	return nil
}

// AddReaction asks the server to react to messageID with emoji. The server
// answers with a reaction_updated event, which is what changes local state.
func (s *State) AddReaction(ctx context.Context, messageID int64, emoji string) error {
	emoji = strings.TrimSpace(emoji)

	s.mu.RLock()
	err := s.intentAllowed()
	_, known := s.byID[messageID]
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	if emoji == "" {
		return ErrEmptyEmoji
	}
	if !known {
		return fmt.Errorf("%w: %d", ErrMessageNotFound, messageID)
	}

	env, err := types.NewEnvelope(types.TypeAddReaction, types.AddReactionRequest{
		MessageID: messageID,
		Emoji:     emoji,
	})
	if err != nil {
		return err
	}
	if err := s.sender.Send(ctx, env); err != nil {
		return fmt.Errorf("add reaction: %w", err)
	}

	s.logger.Debug("add_reaction queued", zap.Int64("message", messageID), zap.String("emoji", emoji))
	return nil
}
