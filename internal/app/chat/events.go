/*
Package chat contains the realtime messaging core.

This file defines the wire protocol of the gateway: event names in both
directions, the envelope framing, the payload structures, and the shared
scope validation applied to every scoped event.
*/
package chat

import (
	"encoding/json"
	"time"

	"chatwire/internal/app/user"
	"chatwire/internal/pkg/errs"
)

// Client → server events.
const (
	EventJoinRooms         = "join_rooms"
	EventJoinConversations = "join_conversations"
	EventSendMessage       = "send_message"
	EventTypingStart       = "typing_start"
	EventTypingStop        = "typing_stop"
	EventMarkAsRead        = "mark_as_read"
)

// Server → client events.
const (
	// EventNewMessage carries a denormalized message to every channel member
	// except the sender.
	EventNewMessage = "new_message"

	// EventMessageSent is the sender-only acknowledgement, carrying the same
	// payload as new_message so the client can reconcile an optimistic echo.
	EventMessageSent = "message_sent"

	// EventMessageError is delivered only to the sender when persistence or
	// validation fails. The connection stays open.
	EventMessageError = "message_error"

	EventUserTyping        = "user_typing"
	EventUserStoppedTyping = "user_stopped_typing"
	EventMessagesRead      = "messages_read"
)

// Envelope is the framing of every realtime event in both directions.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EncodeEnvelope marshals an event name and payload into wire bytes.
func EncodeEnvelope(event string, payload any) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return json.Marshal(Envelope{Event: event, Payload: payloadBytes})
}

// Scope names the single channel an event applies to. Exactly one of the two
// fields must be set.
type Scope struct {
	RoomID         string `json:"roomId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

// Validate enforces the mutual-exclusivity invariant: a scope naming neither
// a room nor a conversation, or naming both, is rejected.
func (s Scope) Validate() *errs.CustomError {
	if (s.RoomID == "") == (s.ConversationID == "") {
		return errs.NewError(errs.ErrScopeRequired)
	}
	return nil
}

// Channel returns the channel identifier the scope addresses.
// Callers must Validate first.
func (s Scope) Channel() Channel {
	if s.RoomID != "" {
		return RoomChannel(s.RoomID)
	}
	return ConversationChannel(s.ConversationID)
}

// SendMessagePayload is the client payload for send_message.
type SendMessagePayload struct {
	Scope
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// TypingPayload is the client payload for typing_start and typing_stop.
type TypingPayload struct {
	Scope
}

// MarkAsReadPayload is the client payload for mark_as_read.
type MarkAsReadPayload struct {
	Scope
	MessageIDs []string `json:"messageIds"`
}

// Message is the denormalized message view broadcast to clients. Sender
// display fields are inlined so recipients need no extra round trip.
type Message struct {
	ID             string       `json:"id"`
	RoomID         string       `json:"roomId,omitempty"`
	ConversationID string       `json:"conversationId,omitempty"`
	Sender         user.User    `json:"sender"`
	Content        string       `json:"content"`
	Attachments    []Attachment `json:"attachments"`
	CreatedAt      time.Time    `json:"createdAt"`
	ReadBy         []string     `json:"readBy"`
}

// ErrorPayload is the body of a message_error event.
type ErrorPayload struct {
	Code  int    `json:"code"`
	Error string `json:"error"`
}

// TypingEventPayload is the body of user_typing and user_stopped_typing.
// UserName is set only on user_typing.
type TypingEventPayload struct {
	Scope
	UserID   string `json:"userId"`
	UserName string `json:"userName,omitempty"`
}

// MessagesReadPayload is the body of a messages_read event. MessageIDs lists
// the messages actually marked, which excludes any the reader authored.
type MessagesReadPayload struct {
	Scope
	UserID     string   `json:"userId"`
	MessageIDs []string `json:"messageIds"`
}
