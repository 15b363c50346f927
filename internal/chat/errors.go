package chat

import (
	"errors"

	"chat-window/internal/models"
	"chat-window/internal/types"
)

var (
	ErrDuplicateID     = errors.New("duplicate message id")
	ErrMessageNotFound = errors.New("message not found")
	ErrSessionClosed   = errors.New("chat session closed")
	ErrNotReady        = errors.New("chat session not ready")
	ErrAlreadyStarted  = errors.New("chat session already started")
	ErrEmptyEmoji      = errors.New("reaction emoji cannot be empty")

	ErrInvalidPayload = types.ErrInvalidPayload
	ErrEmptyMessage   = models.ErrEmptyMessage
	ErrMessageTooLong = models.ErrMessageTooLong
)
