/*
Package chat contains the realtime messaging core.

This file defines the Gateway, which sits between authenticated websocket
clients and the message store. It validates inbound events, persists messages,
and fans the resulting events out through the Hub.
*/
package chat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"chatwire/internal/pkg/errs"
	"chatwire/internal/pkg/logx"
)

// storeOpTimeout bounds every store call made on behalf of a socket event so
// a stalled query cannot pin a connection's read loop.
const storeOpTimeout = 5 * time.Second

// NewMessage carries the fields of a message about to be persisted. The
// sender is always the authenticated connection's user, never client input.
type NewMessage struct {
	RoomID         string
	ConversationID string
	SenderID       string
	Content        string
	Attachments    []Attachment
}

// MessageStore is the persistence boundary the gateway writes through. It is
// an ordered-by-creation-time store keyed by room or conversation.
type MessageStore interface {
	// Insert persists a message and returns its assigned id.
	Insert(ctx context.Context, msg NewMessage) (string, error)

	// GetView re-reads a persisted message joined with the sender's display
	// fields, producing the denormalized broadcast payload.
	GetView(ctx context.Context, messageID string) (Message, error)

	// MarkRead adds the user to each message's read set, skipping messages
	// the user authored. It returns the ids actually marked; repeated calls
	// are a no-op set-union.
	MarkRead(ctx context.Context, userID string, messageIDs []string) ([]string, error)
}

// ConversationStore lets the gateway refresh a conversation's denormalized
// last-message preview. The preview is a derived cache, recomputed on each
// new message; it may transiently lag the message store.
type ConversationStore interface {
	TouchLastMessage(ctx context.Context, conversationID string, msg Message) error
}

// Gateway handles every inbound realtime event for all connections.
type Gateway struct {
	hub           *Hub
	messages      MessageStore
	conversations ConversationStore
	typing        *typingTracker
	logger        zerolog.Logger
}

// NewGateway constructs a Gateway wired to the given hub and stores.
func NewGateway(hub *Hub, messages MessageStore, conversations ConversationStore) *Gateway {
	g := &Gateway{
		hub:           hub,
		messages:      messages,
		conversations: conversations,
		logger:        logx.Logger().With().Str("component", "Gateway").Logger(),
	}

	g.typing = newTypingTracker(TypingExpiry, func(c *Client, ch Channel) {
		g.hub.Broadcast(ch, EventUserStoppedTyping, TypingEventPayload{
			Scope:  scopeForChannel(ch),
			UserID: c.user.ID,
		}, c)
	})

	return g
}

// dispatch routes one decoded envelope from a client's read loop.
func (g *Gateway) dispatch(c *Client, raw []byte) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid JSON")
		return
	}

	switch envelope.Event {
	case EventJoinRooms:
		g.handleJoinRooms(c, envelope.Payload)

	case EventJoinConversations:
		g.handleJoinConversations(c, envelope.Payload)

	case EventSendMessage:
		g.handleSendMessage(c, envelope.Payload)

	case EventTypingStart:
		g.handleTyping(c, envelope.Payload, true)

	case EventTypingStop:
		g.handleTyping(c, envelope.Payload, false)

	case EventMarkAsRead:
		g.handleMarkAsRead(c, envelope.Payload)

	default:
		c.logger.Warn().Str("event", envelope.Event).Msg("Client sent unsupported event")
	}
}

// handleJoinRooms subscribes the connection to the named room channels.
// Joins denied by the authorizer are skipped; the client simply receives no
// events for that channel.
func (g *Gateway) handleJoinRooms(c *Client, payloadBytes json.RawMessage) {
	var roomIDs []string
	if err := json.Unmarshal(payloadBytes, &roomIDs); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid join_rooms payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()

	for _, id := range roomIDs {
		g.hub.Join(ctx, c, RoomChannel(id))
	}
}

// handleJoinConversations subscribes the connection to the named conversation channels.
func (g *Gateway) handleJoinConversations(c *Client, payloadBytes json.RawMessage) {
	var conversationIDs []string
	if err := json.Unmarshal(payloadBytes, &conversationIDs); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid join_conversations payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()

	for _, id := range conversationIDs {
		g.hub.Join(ctx, c, ConversationChannel(id))
	}
}

// handleSendMessage is the core send protocol: validate, persist, re-read the
// denormalized view, broadcast to the channel excluding the sender, and ack
// the sender with message_sent. A persistence failure is surfaced to the
// sender only; the connection stays open and nothing is broadcast.
func (g *Gateway) handleSendMessage(c *Client, payloadBytes json.RawMessage) {
	var payload SendMessagePayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid send_message payload")
		c.SendError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	if customErr := validateSendMessage(payload); customErr != nil {
		c.SendError(customErr)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()

	messageID, err := g.messages.Insert(ctx, NewMessage{
		RoomID:         payload.RoomID,
		ConversationID: payload.ConversationID,
		SenderID:       c.user.ID,
		Content:        payload.Content,
		Attachments:    payload.Attachments,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to persist message")
		c.SendError(errs.NewError(errs.ErrPersistence))
		return
	}

	view, err := g.messages.GetView(ctx, messageID)
	if err != nil {
		c.logger.Error().Err(err).Str("message_id", messageID).Msg("Failed to load persisted message view")
		c.SendError(errs.NewError(errs.ErrPersistence))
		return
	}

	if payload.ConversationID != "" {
		if err := g.conversations.TouchLastMessage(ctx, payload.ConversationID, view); err != nil {
			// preview is a derived cache; delivery goes ahead regardless
			c.logger.Warn().Err(err).
				Str("conversation_id", payload.ConversationID).
				Msg("Failed to refresh conversation last-message preview")
		}
	}

	// sending implicitly ends the typing indicator
	if g.typing.Stop(c.user.ID, payload.Channel()) {
		g.hub.Broadcast(payload.Channel(), EventUserStoppedTyping, TypingEventPayload{
			Scope:  payload.Scope,
			UserID: c.user.ID,
		}, c)
	}

	g.hub.Broadcast(payload.Channel(), EventNewMessage, view, c)
	c.Send(EventMessageSent, view)
}

// validateSendMessage applies the message-shape rules shared with the HTTP layer.
func validateSendMessage(payload SendMessagePayload) *errs.CustomError {
	if customErr := payload.Validate(); customErr != nil {
		return customErr
	}

	if payload.Content == "" && len(payload.Attachments) == 0 {
		return errs.NewError(errs.ErrEmptyMessage)
	}

	if len(payload.Content) > MaxContentBytes {
		return errs.NewError(errs.ErrMessageContentTooLong)
	}

	if len(payload.Attachments) > MaxAttachmentsCount {
		return errs.NewError(errs.ErrAttachmentCountInvalid, MaxAttachmentsCount)
	}

	for _, a := range payload.Attachments {
		if customErr := ValidateFileType(a.Name, a.MimeType); customErr != nil {
			return customErr
		}
	}

	return nil
}

// handleTyping relays an ephemeral typing signal to the channel, excluding
// the sender. Nothing is persisted. typing_start arms (or renews) the
// server-side expiry timer; typing_stop cancels it.
func (g *Gateway) handleTyping(c *Client, payloadBytes json.RawMessage, start bool) {
	var payload TypingPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid typing payload")
		return
	}

	if customErr := payload.Validate(); customErr != nil {
		c.SendError(customErr)
		return
	}

	ch := payload.Channel()

	if start {
		g.typing.Start(c, ch)
		g.hub.Broadcast(ch, EventUserTyping, TypingEventPayload{
			Scope:    payload.Scope,
			UserID:   c.user.ID,
			UserName: c.user.Nickname,
		}, c)
		return
	}

	if g.typing.Stop(c.user.ID, ch) {
		g.hub.Broadcast(ch, EventUserStoppedTyping, TypingEventPayload{
			Scope:  payload.Scope,
			UserID: c.user.ID,
		}, c)
	}
}

// handleMarkAsRead grows the read sets of the named messages and relays the
// receipt to the channel, excluding the reader. Messages the reader authored
// are skipped by the store; only ids actually marked are broadcast.
func (g *Gateway) handleMarkAsRead(c *Client, payloadBytes json.RawMessage) {
	var payload MarkAsReadPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid mark_as_read payload")
		return
	}

	if customErr := payload.Validate(); customErr != nil {
		c.SendError(customErr)
		return
	}

	if len(payload.MessageIDs) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()

	marked, err := g.messages.MarkRead(ctx, c.user.ID, payload.MessageIDs)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to record read receipts")
		c.SendError(errs.NewError(errs.ErrPersistence))
		return
	}

	if len(marked) == 0 {
		return
	}

	g.hub.Broadcast(payload.Channel(), EventMessagesRead, MessagesReadPayload{
		Scope:      payload.Scope,
		UserID:     c.user.ID,
		MessageIDs: marked,
	}, c)
}

// clientClosed runs the per-connection teardown: registry removal and
// clearing any live typing indicators with an emitted stop event.
func (g *Gateway) clientClosed(c *Client) {
	g.hub.RemoveClient(c)

	for _, ch := range g.typing.StopAll(c.user.ID) {
		g.hub.Broadcast(ch, EventUserStoppedTyping, TypingEventPayload{
			Scope:  scopeForChannel(ch),
			UserID: c.user.ID,
		}, nil)
	}
}

// scopeForChannel rebuilds the wire scope from a channel identifier.
func scopeForChannel(ch Channel) Scope {
	if ch.IsRoom() {
		return Scope{RoomID: ch.ScopeID()}
	}
	return Scope{ConversationID: ch.ScopeID()}
}
