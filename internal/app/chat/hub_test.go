package chat

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatwire/internal/app/user"
)

func newTestClient(id, nickname string) *Client {
	return NewClient(nil, nil, user.User{ID: id, Nickname: nickname})
}

// recvEnvelope pops one queued event off the client's send queue.
func recvEnvelope(t *testing.T, c *Client) Envelope {
	t.Helper()

	select {
	case raw, ok := <-c.send:
		require.True(t, ok, "send queue closed")
		var env Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		return env
	default:
		t.Fatal("expected a queued event, send queue is empty")
		return Envelope{}
	}
}

func assertNoEvent(t *testing.T, c *Client) {
	t.Helper()

	select {
	case raw := <-c.send:
		t.Fatalf("expected no queued event, got: %s", raw)
	default:
	}
}

func TestHubJoinIsIdempotent(t *testing.T) {
	hub := NewHub(AllowAll)
	client := newTestClient("u1", "alice")
	ch := RoomChannel("r1")

	assert.True(t, hub.Join(context.Background(), client, ch))
	assert.True(t, hub.Join(context.Background(), client, ch))

	assert.Equal(t, 1, hub.MemberCount(ch))
	assert.Len(t, hub.Channels(client), 1)
}

func TestHubJoinDeniedByAuthorizer(t *testing.T) {
	roomsOnly := func(ctx context.Context, userID string, ch Channel) bool {
		return ch.IsRoom()
	}
	hub := NewHub(roomsOnly)
	client := newTestClient("u1", "alice")

	assert.True(t, hub.Join(context.Background(), client, RoomChannel("r1")))
	assert.False(t, hub.Join(context.Background(), client, ConversationChannel("c1")))

	assert.Equal(t, 0, hub.MemberCount(ConversationChannel("c1")))
}

func TestHubBroadcastSkipsExcludedClient(t *testing.T) {
	hub := NewHub(AllowAll)
	sender := newTestClient("u1", "alice")
	receiver := newTestClient("u2", "bob")
	outsider := newTestClient("u3", "carol")
	ch := RoomChannel("r1")

	hub.Join(context.Background(), sender, ch)
	hub.Join(context.Background(), receiver, ch)
	hub.Join(context.Background(), outsider, RoomChannel("r2"))

	hub.Broadcast(ch, EventUserTyping, TypingEventPayload{
		Scope:  Scope{RoomID: "r1"},
		UserID: sender.user.ID,
	}, sender)

	env := recvEnvelope(t, receiver)
	assert.Equal(t, EventUserTyping, env.Event)

	var payload TypingEventPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "u1", payload.UserID)
	assert.Equal(t, "r1", payload.RoomID)

	assertNoEvent(t, sender)
	assertNoEvent(t, outsider)
}

func TestHubLeaveKeepsOtherChannels(t *testing.T) {
	hub := NewHub(AllowAll)
	client := newTestClient("u1", "alice")

	hub.Join(context.Background(), client, RoomChannel("r1"))
	hub.Join(context.Background(), client, ConversationChannel("c1"))

	hub.Leave(client, RoomChannel("r1"))

	assert.Equal(t, 0, hub.MemberCount(RoomChannel("r1")))
	assert.Equal(t, 1, hub.MemberCount(ConversationChannel("c1")))
}

func TestHubRemoveClientDropsEveryChannel(t *testing.T) {
	hub := NewHub(AllowAll)
	client := newTestClient("u1", "alice")
	other := newTestClient("u2", "bob")

	hub.Join(context.Background(), client, RoomChannel("r1"))
	hub.Join(context.Background(), client, ConversationChannel("c1"))
	hub.Join(context.Background(), other, RoomChannel("r1"))

	hub.RemoveClient(client)

	assert.Empty(t, hub.Channels(client))
	assert.Equal(t, 1, hub.MemberCount(RoomChannel("r1")))
	assert.Equal(t, 0, hub.MemberCount(ConversationChannel("c1")))
}

func TestSendAfterShutdownDropsInsteadOfPanicking(t *testing.T) {
	hub := NewHub(AllowAll)
	client := newTestClient("u1", "alice")
	hub.Join(context.Background(), client, RoomChannel("r1"))

	hub.Shutdown()

	// the read pump may still be dispatching events when the queue closes
	assert.NotPanics(t, func() {
		client.Send(EventMessageSent, Message{ID: "m1"})
	})
	assert.Error(t, client.enqueue([]byte("{}")))
}

func TestHubShutdownRejectsFurtherJoins(t *testing.T) {
	hub := NewHub(AllowAll)
	client := newTestClient("u1", "alice")
	hub.Join(context.Background(), client, RoomChannel("r1"))

	hub.Shutdown()

	_, open := <-client.send
	assert.False(t, open, "send queue should be closed after shutdown")

	late := newTestClient("u2", "bob")
	assert.False(t, hub.Join(context.Background(), late, RoomChannel("r1")))
}
