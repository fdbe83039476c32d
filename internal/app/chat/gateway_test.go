package chat

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatwire/internal/app/user"
	"chatwire/internal/pkg/errs"
)

type fakeMessageStore struct {
	insertErr  error
	viewErr    error
	markErr    error
	markResult []string

	inserted []NewMessage
	marked   [][]string
}

func (f *fakeMessageStore) Insert(ctx context.Context, msg NewMessage) (string, error) {
	if f.insertErr != nil {
		return "", f.insertErr
	}
	f.inserted = append(f.inserted, msg)
	return "m1", nil
}

func (f *fakeMessageStore) GetView(ctx context.Context, messageID string) (Message, error) {
	if f.viewErr != nil {
		return Message{}, f.viewErr
	}

	last := f.inserted[len(f.inserted)-1]
	return Message{
		ID:             messageID,
		RoomID:         last.RoomID,
		ConversationID: last.ConversationID,
		Sender:         user.User{ID: last.SenderID, Nickname: "alice"},
		Content:        last.Content,
		Attachments:    last.Attachments,
		CreatedAt:      time.Now(),
		ReadBy:         []string{},
	}, nil
}

func (f *fakeMessageStore) MarkRead(ctx context.Context, userID string, messageIDs []string) ([]string, error) {
	if f.markErr != nil {
		return nil, f.markErr
	}
	f.marked = append(f.marked, messageIDs)
	return f.markResult, nil
}

type fakeConversationStore struct {
	touched []string
	err     error
}

func (f *fakeConversationStore) TouchLastMessage(ctx context.Context, conversationID string, msg Message) error {
	if f.err != nil {
		return f.err
	}
	f.touched = append(f.touched, conversationID)
	return nil
}

func envelopeBytes(t *testing.T, event string, payload any) []byte {
	t.Helper()

	raw, err := EncodeEnvelope(event, payload)
	require.NoError(t, err)
	return raw
}

func assertMessageError(t *testing.T, c *Client, code int) {
	t.Helper()

	env := recvEnvelope(t, c)
	require.Equal(t, EventMessageError, env.Event)

	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, code, payload.Code)
}

// newTestGateway wires a gateway over a permissive hub and fake stores, with
// a sender and a receiver already joined to the given channel.
func newTestGateway(t *testing.T, ch Channel) (*Gateway, *fakeMessageStore, *fakeConversationStore, *Client, *Client) {
	t.Helper()

	messages := &fakeMessageStore{}
	conversations := &fakeConversationStore{}
	g := NewGateway(NewHub(AllowAll), messages, conversations)

	sender := NewClient(g, nil, user.User{ID: "u1", Nickname: "alice"})
	receiver := NewClient(g, nil, user.User{ID: "u2", Nickname: "bob"})
	require.True(t, g.hub.Join(context.Background(), sender, ch))
	require.True(t, g.hub.Join(context.Background(), receiver, ch))

	return g, messages, conversations, sender, receiver
}

func TestSendMessageDeliversToChannelOnce(t *testing.T) {
	ch := RoomChannel("r1")
	g, messages, conversations, sender, receiver := newTestGateway(t, ch)

	g.dispatch(sender, envelopeBytes(t, EventSendMessage, SendMessagePayload{
		Scope:   Scope{RoomID: "r1"},
		Content: "hello",
	}))

	env := recvEnvelope(t, receiver)
	assert.Equal(t, EventNewMessage, env.Event)

	var received Message
	require.NoError(t, json.Unmarshal(env.Payload, &received))
	assert.Equal(t, "hello", received.Content)
	assert.Equal(t, "u1", received.Sender.ID)
	assert.Equal(t, "r1", received.RoomID)
	assertNoEvent(t, receiver)

	ack := recvEnvelope(t, sender)
	assert.Equal(t, EventMessageSent, ack.Event)
	assertNoEvent(t, sender)

	require.Len(t, messages.inserted, 1)
	assert.Equal(t, "u1", messages.inserted[0].SenderID)
	assert.Empty(t, conversations.touched, "room messages must not touch conversation previews")
}

func TestSendMessageRejectsAmbiguousScope(t *testing.T) {
	g, messages, _, sender, receiver := newTestGateway(t, RoomChannel("r1"))

	g.dispatch(sender, envelopeBytes(t, EventSendMessage, SendMessagePayload{
		Scope:   Scope{RoomID: "r1", ConversationID: "c1"},
		Content: "hello",
	}))
	assertMessageError(t, sender, errs.ErrScopeRequired)

	g.dispatch(sender, envelopeBytes(t, EventSendMessage, SendMessagePayload{
		Content: "hello",
	}))
	assertMessageError(t, sender, errs.ErrScopeRequired)

	assert.Empty(t, messages.inserted)
	assertNoEvent(t, receiver)
}

func TestSendMessageRejectsEmptyBody(t *testing.T) {
	g, messages, _, sender, receiver := newTestGateway(t, RoomChannel("r1"))

	g.dispatch(sender, envelopeBytes(t, EventSendMessage, SendMessagePayload{
		Scope: Scope{RoomID: "r1"},
	}))

	assertMessageError(t, sender, errs.ErrEmptyMessage)
	assert.Empty(t, messages.inserted)
	assertNoEvent(t, receiver)
}

func TestSendMessageAttachmentOnlyIsValid(t *testing.T) {
	g, _, _, sender, receiver := newTestGateway(t, RoomChannel("r1"))

	g.dispatch(sender, envelopeBytes(t, EventSendMessage, SendMessagePayload{
		Scope: Scope{RoomID: "r1"},
		Attachments: []Attachment{
			{Key: "room:r1/f1.png", Name: "f1.png", MimeType: "image/png", Size: 100},
		},
	}))

	env := recvEnvelope(t, receiver)
	assert.Equal(t, EventNewMessage, env.Event)

	ack := recvEnvelope(t, sender)
	assert.Equal(t, EventMessageSent, ack.Event)
}

func TestSendMessagePersistFailureReachesSenderOnly(t *testing.T) {
	g, messages, _, sender, receiver := newTestGateway(t, RoomChannel("r1"))
	messages.insertErr = errors.New("db down")

	g.dispatch(sender, envelopeBytes(t, EventSendMessage, SendMessagePayload{
		Scope:   Scope{RoomID: "r1"},
		Content: "hello",
	}))

	assertMessageError(t, sender, errs.ErrPersistence)
	assertNoEvent(t, receiver)

	// the connection stays usable after the failure
	messages.insertErr = nil
	g.dispatch(sender, envelopeBytes(t, EventSendMessage, SendMessagePayload{
		Scope:   Scope{RoomID: "r1"},
		Content: "retry",
	}))
	env := recvEnvelope(t, receiver)
	assert.Equal(t, EventNewMessage, env.Event)
}

func TestSendMessageTouchesConversationPreview(t *testing.T) {
	ch := ConversationChannel("c1")
	g, _, conversations, sender, receiver := newTestGateway(t, ch)

	g.dispatch(sender, envelopeBytes(t, EventSendMessage, SendMessagePayload{
		Scope:   Scope{ConversationID: "c1"},
		Content: "hello",
	}))

	assert.Equal(t, []string{"c1"}, conversations.touched)

	env := recvEnvelope(t, receiver)
	assert.Equal(t, EventNewMessage, env.Event)
}

func TestSendMessagePreviewFailureDoesNotBlockDelivery(t *testing.T) {
	ch := ConversationChannel("c1")
	g, _, conversations, sender, receiver := newTestGateway(t, ch)
	conversations.err = errors.New("preview update failed")

	g.dispatch(sender, envelopeBytes(t, EventSendMessage, SendMessagePayload{
		Scope:   Scope{ConversationID: "c1"},
		Content: "hello",
	}))

	env := recvEnvelope(t, receiver)
	assert.Equal(t, EventNewMessage, env.Event)

	ack := recvEnvelope(t, sender)
	assert.Equal(t, EventMessageSent, ack.Event)
}

func TestMarkAsReadBroadcastsOnlyMarkedIDs(t *testing.T) {
	ch := RoomChannel("r1")
	g, messages, _, reader, other := newTestGateway(t, ch)
	messages.markResult = []string{"m2"}

	g.dispatch(reader, envelopeBytes(t, EventMarkAsRead, MarkAsReadPayload{
		Scope:      Scope{RoomID: "r1"},
		MessageIDs: []string{"m1", "m2"},
	}))

	env := recvEnvelope(t, other)
	require.Equal(t, EventMessagesRead, env.Event)

	var payload MessagesReadPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "u1", payload.UserID)
	assert.Equal(t, []string{"m2"}, payload.MessageIDs)

	assertNoEvent(t, reader)
}

func TestMarkAsReadWithNothingMarkedIsSilent(t *testing.T) {
	g, messages, _, reader, other := newTestGateway(t, RoomChannel("r1"))
	messages.markResult = []string{}

	g.dispatch(reader, envelopeBytes(t, EventMarkAsRead, MarkAsReadPayload{
		Scope:      Scope{RoomID: "r1"},
		MessageIDs: []string{"m1"},
	}))

	assertNoEvent(t, other)
	assertNoEvent(t, reader)
}

func TestTypingRelayAndStop(t *testing.T) {
	g, _, _, typist, watcher := newTestGateway(t, RoomChannel("r1"))

	g.dispatch(typist, envelopeBytes(t, EventTypingStart, TypingPayload{
		Scope: Scope{RoomID: "r1"},
	}))

	env := recvEnvelope(t, watcher)
	require.Equal(t, EventUserTyping, env.Event)

	var payload TypingEventPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "u1", payload.UserID)
	assert.Equal(t, "alice", payload.UserName)
	assertNoEvent(t, typist)

	g.dispatch(typist, envelopeBytes(t, EventTypingStop, TypingPayload{
		Scope: Scope{RoomID: "r1"},
	}))
	env = recvEnvelope(t, watcher)
	assert.Equal(t, EventUserStoppedTyping, env.Event)

	// a second stop without a start produces nothing
	g.dispatch(typist, envelopeBytes(t, EventTypingStop, TypingPayload{
		Scope: Scope{RoomID: "r1"},
	}))
	assertNoEvent(t, watcher)
}

// waitEnvelope blocks until the client receives an event or the timeout hits.
func waitEnvelope(t *testing.T, c *Client, timeout time.Duration) Envelope {
	t.Helper()

	select {
	case raw, ok := <-c.send:
		require.True(t, ok, "send queue closed")
		var env Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		return env
	case <-time.After(timeout):
		t.Fatal("timed out waiting for a queued event")
		return Envelope{}
	}
}

func TestTypingExpiryExcludesTypist(t *testing.T) {
	g, _, _, typist, watcher := newTestGateway(t, RoomChannel("r1"))
	g.typing = newTypingTracker(20*time.Millisecond, func(c *Client, ch Channel) {
		g.hub.Broadcast(ch, EventUserStoppedTyping, TypingEventPayload{
			Scope:  scopeForChannel(ch),
			UserID: c.user.ID,
		}, c)
	})

	g.dispatch(typist, envelopeBytes(t, EventTypingStart, TypingPayload{
		Scope: Scope{RoomID: "r1"},
	}))
	env := recvEnvelope(t, watcher)
	require.Equal(t, EventUserTyping, env.Event)

	env = waitEnvelope(t, watcher, time.Second)
	assert.Equal(t, EventUserStoppedTyping, env.Event)

	var payload TypingEventPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "u1", payload.UserID)

	assertNoEvent(t, typist)
}

func TestSendMessageImplicitlyStopsTyping(t *testing.T) {
	g, _, _, sender, watcher := newTestGateway(t, RoomChannel("r1"))

	g.dispatch(sender, envelopeBytes(t, EventTypingStart, TypingPayload{
		Scope: Scope{RoomID: "r1"},
	}))
	env := recvEnvelope(t, watcher)
	require.Equal(t, EventUserTyping, env.Event)

	g.dispatch(sender, envelopeBytes(t, EventSendMessage, SendMessagePayload{
		Scope:   Scope{RoomID: "r1"},
		Content: "done typing",
	}))

	env = recvEnvelope(t, watcher)
	assert.Equal(t, EventUserStoppedTyping, env.Event)

	env = recvEnvelope(t, watcher)
	assert.Equal(t, EventNewMessage, env.Event)
}

func TestClientDisconnectClearsStateAndTyping(t *testing.T) {
	ch := RoomChannel("r1")
	g, _, _, leaver, watcher := newTestGateway(t, ch)

	g.dispatch(leaver, envelopeBytes(t, EventTypingStart, TypingPayload{
		Scope: Scope{RoomID: "r1"},
	}))
	env := recvEnvelope(t, watcher)
	require.Equal(t, EventUserTyping, env.Event)

	g.clientClosed(leaver)

	env = recvEnvelope(t, watcher)
	assert.Equal(t, EventUserStoppedTyping, env.Event)

	assert.Empty(t, g.hub.Channels(leaver))
	assert.Equal(t, 1, g.hub.MemberCount(ch))
}

func TestJoinEventsSubscribeChannels(t *testing.T) {
	g := NewGateway(NewHub(AllowAll), &fakeMessageStore{}, &fakeConversationStore{})
	client := NewClient(g, nil, user.User{ID: "u1", Nickname: "alice"})

	g.dispatch(client, envelopeBytes(t, EventJoinRooms, []string{"r1", "r2"}))
	g.dispatch(client, envelopeBytes(t, EventJoinConversations, []string{"c1"}))

	assert.ElementsMatch(t, []Channel{
		RoomChannel("r1"),
		RoomChannel("r2"),
		ConversationChannel("c1"),
	}, g.hub.Channels(client))
}

func TestMalformedEnvelopeIsIgnored(t *testing.T) {
	g, messages, _, sender, receiver := newTestGateway(t, RoomChannel("r1"))

	g.dispatch(sender, []byte("{not json"))
	g.dispatch(sender, envelopeBytes(t, "no_such_event", map[string]string{"a": "b"}))

	assert.Empty(t, messages.inserted)
	assertNoEvent(t, sender)
	assertNoEvent(t, receiver)
}
