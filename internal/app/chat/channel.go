/*
Package chat contains the realtime messaging core: the channel registry (Hub),
the websocket client lifecycle, and the gateway that validates, persists, and
fans out chat events.
*/
package chat

import "strings"

const (
	roomChannelPrefix         = "room:"
	conversationChannelPrefix = "conversation:"
)

// Channel is a logical broadcast group identifier. It always takes one of
// exactly two shapes: "room:<roomId>" or "conversation:<conversationId>".
type Channel string

// RoomChannel returns the channel identifier for a room.
func RoomChannel(roomID string) Channel {
	return Channel(roomChannelPrefix + roomID)
}

// ConversationChannel returns the channel identifier for a conversation.
func ConversationChannel(conversationID string) Channel {
	return Channel(conversationChannelPrefix + conversationID)
}

// IsRoom reports whether the channel addresses a room.
func (c Channel) IsRoom() bool {
	return strings.HasPrefix(string(c), roomChannelPrefix)
}

// IsConversation reports whether the channel addresses a conversation.
func (c Channel) IsConversation() bool {
	return strings.HasPrefix(string(c), conversationChannelPrefix)
}

// ScopeID returns the room or conversation id the channel addresses,
// or "" if the channel has neither valid shape.
func (c Channel) ScopeID() string {
	s := string(c)
	if strings.HasPrefix(s, roomChannelPrefix) {
		return s[len(roomChannelPrefix):]
	}
	if strings.HasPrefix(s, conversationChannelPrefix) {
		return s[len(conversationChannelPrefix):]
	}
	return ""
}
