/*
Package chat contains the realtime messaging core.

This file defines the Hub, the in-memory channel registry. It tracks which
connections are subscribed to which channels and supports join, leave, and
broadcast-to-channel-except-sender. The Hub is constructed once per server
process and torn down on shutdown; it is never a package-level singleton.
*/
package chat

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"chatwire/internal/pkg/logx"
)

// JoinAuthorizer decides whether a user may subscribe to a channel.
// It is consulted on every join; the wired default re-verifies room and
// conversation membership against the store.
type JoinAuthorizer func(ctx context.Context, userID string, ch Channel) bool

// AllowAll is the permissive authorizer: any authenticated connection may
// join any channel it names. Access control then rests entirely on the HTTP
// endpoints a client uses to decide which channels to join.
func AllowAll(ctx context.Context, userID string, ch Channel) bool {
	return true
}

// Hub is the channel registry. All access to the membership maps is guarded
// by mu; broadcast dispatch itself is non-blocking per recipient.
type Hub struct {
	mu sync.RWMutex

	// channels maps a channel id to its current member set.
	channels map[Channel]map[*Client]struct{}

	// clients is the reverse index, used to drop a connection from every
	// channel in one pass on disconnect.
	clients map[*Client]map[Channel]struct{}

	canJoin JoinAuthorizer

	closed bool

	logger zerolog.Logger
}

// NewHub constructs a Hub with the given join authorizer.
func NewHub(canJoin JoinAuthorizer) *Hub {
	if canJoin == nil {
		canJoin = AllowAll
	}

	return &Hub{
		channels: make(map[Channel]map[*Client]struct{}),
		clients:  make(map[*Client]map[Channel]struct{}),
		canJoin:  canJoin,
		logger:   logx.Logger().With().Str("component", "Hub").Logger(),
	}
}

// Join subscribes the client to the channel. Duplicate joins are idempotent.
// It returns false when the authorizer denies the subscription or the hub is
// shutting down.
func (h *Hub) Join(ctx context.Context, client *Client, ch Channel) bool {
	if !h.canJoin(ctx, client.user.ID, ch) {
		h.logger.Warn().
			Str("user_id", client.user.ID).
			Str("channel", string(ch)).
			Msg("Channel join denied by authorizer.")
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}

	members, ok := h.channels[ch]
	if !ok {
		members = make(map[*Client]struct{})
		h.channels[ch] = members
	}
	members[client] = struct{}{}

	joined, ok := h.clients[client]
	if !ok {
		joined = make(map[Channel]struct{})
		h.clients[client] = joined
	}
	joined[ch] = struct{}{}

	return true
}

// Leave removes the client from the channel. Empty channel entries are freed.
func (h *Hub) Leave(client *Client, ch Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.detachLocked(client, ch)
}

// RemoveClient drops the connection from every channel it joined. Called on
// disconnect; the client's membership is rebuilt from scratch on reconnect.
func (h *Hub) RemoveClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.clients[client] {
		h.detachLocked(client, ch)
	}
}

// detachLocked removes one membership edge. Callers hold mu.
func (h *Hub) detachLocked(client *Client, ch Channel) {
	if members, ok := h.channels[ch]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.channels, ch)
		}
	}

	if joined, ok := h.clients[client]; ok {
		delete(joined, ch)
		if len(joined) == 0 {
			delete(h.clients, client)
		}
	}
}

// Broadcast delivers the event to every currently-joined connection in the
// channel except the excluded one. Delivery is best-effort synchronous
// dispatch into each recipient's send queue: there is no per-recipient
// acknowledgement and no retry. A recipient whose queue is full simply
// misses the event and recovers it via history pagination.
func (h *Hub) Broadcast(ch Channel, event string, payload any, except *Client) {
	messageBytes, err := EncodeEnvelope(event, payload)
	if err != nil {
		h.logger.Error().Err(err).
			Str("event", event).
			Str("channel", string(ch)).
			Msg("Error marshaling event for broadcast.")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.channels[ch] {
		if client == except {
			continue
		}

		if err := client.enqueue(messageBytes); err != nil {
			h.logger.Warn().
				Str("client_id", client.user.ID).
				Str("channel", string(ch)).
				Str("event", event).
				Msg("Client send queue full, dropping event.")
		}
	}
}

// MemberCount reports how many connections are joined to the channel.
func (h *Hub) MemberCount(ch Channel) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.channels[ch])
}

// Channels returns the channels the client is currently joined to.
func (h *Hub) Channels(client *Client) []Channel {
	h.mu.RLock()
	defer h.mu.RUnlock()

	chans := make([]Channel, 0, len(h.clients[client]))
	for ch := range h.clients[client] {
		chans = append(chans, ch)
	}
	return chans
}

// Shutdown closes every connected client's send queue and clears the
// registry. Further joins are rejected.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for client := range h.clients {
		client.closeSend()
	}

	h.channels = make(map[Channel]map[*Client]struct{})
	h.clients = make(map[*Client]map[Channel]struct{})

	h.logger.Info().Msg("Hub shutdown complete.")
}
