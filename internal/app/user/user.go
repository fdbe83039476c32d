/*
Package user contains core data structures related to user identity.

It defines the basic representation of a user within the chat system (the User struct),
used for passing user information both internally and to clients.
*/
package user

// User represents the basic identity information of a chat participant.
// Fields use JSON tags for serialization in WebSocket messages.
type User struct {
	// ID is the unique identifier for the user.
	ID string `json:"id"`

	// Nickname is the display name of the user.
	Nickname string `json:"nickname"`

	// Avatar is the URL for the user's avatar, empty if none is set.
	Avatar string `json:"avatar,omitempty"`

	// Role is the user's role: "user", "moderator", or "admin".
	Role string `json:"role"`
}
