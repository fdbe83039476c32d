package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatwire/internal/pkg/errs"
)

func TestScopeValidateRequiresExactlyOne(t *testing.T) {
	tests := []struct {
		name  string
		scope Scope
		valid bool
	}{
		{"room only", Scope{RoomID: "r1"}, true},
		{"conversation only", Scope{ConversationID: "c1"}, true},
		{"neither", Scope{}, false},
		{"both", Scope{RoomID: "r1", ConversationID: "c1"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			customErr := tt.scope.Validate()
			if tt.valid {
				assert.Nil(t, customErr)
			} else {
				require.NotNil(t, customErr)
				assert.Equal(t, errs.ErrScopeRequired, customErr.Code)
			}
		})
	}
}

func TestScopeChannel(t *testing.T) {
	assert.Equal(t, RoomChannel("r1"), Scope{RoomID: "r1"}.Channel())
	assert.Equal(t, ConversationChannel("c1"), Scope{ConversationID: "c1"}.Channel())
}

func TestChannelShape(t *testing.T) {
	room := RoomChannel("r1")
	assert.True(t, room.IsRoom())
	assert.False(t, room.IsConversation())
	assert.Equal(t, "r1", room.ScopeID())

	conv := ConversationChannel("c1")
	assert.True(t, conv.IsConversation())
	assert.False(t, conv.IsRoom())
	assert.Equal(t, "c1", conv.ScopeID())

	assert.Equal(t, "", Channel("bogus").ScopeID())
}

func TestEncodeEnvelopeRoundTrip(t *testing.T) {
	raw, err := EncodeEnvelope(EventNewMessage, Message{ID: "m1", Content: "hi"})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, EventNewMessage, env.Event)

	var msg Message
	require.NoError(t, json.Unmarshal(env.Payload, &msg))
	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, "hi", msg.Content)
}
