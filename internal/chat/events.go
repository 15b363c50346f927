package chat

import "chat-window/internal/models"

// Event is one inbound occurrence delivered by the transport. The set of
// implementations is closed; State.Handle dispatches on the concrete type.
type Event interface {
	event()
}

// OpenEvent signals that the transport connected.
type OpenEvent struct{}

// MessageEvent carries a confirmed new message.
type MessageEvent struct {
	Message models.Message
}

// ReactionEvent carries a confirmed reaction change.
type ReactionEvent struct {
	Update models.ReactionUpdate
}

// ErrorEvent carries an error reported by the server.
type ErrorEvent struct {
	Message string
}

// CloseEvent signals that the transport is gone. Err is nil on a clean close.
type CloseEvent struct {
	Err error
}

func (OpenEvent) event()     {}
func (MessageEvent) event()  {}
func (ReactionEvent) event() {}
func (ErrorEvent) event()    {}
func (CloseEvent) event()    {}
