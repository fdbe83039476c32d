package jwt

import "github.com/golang-jwt/jwt"

// Roles a user identity may carry. Moderators and admins may hard-delete
// messages and ban room members; everything else is available to any user.
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// Payload defines the structure of the JSON Web Token (JWT) claims used by the
// chatwire server. It includes standard claims required by the JWT specification
// and the custom claims needed to identify a user on both the HTTP API and the
// realtime gateway.
type Payload struct {
	// StandardClaims embeds the necessary JWT standard fields such as Exp (Expiration),
	// Iat (Issued At), and Iss (Issuer). These are crucial for token validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// UserID is the unique identifier of the authenticated user.
	UserID string `json:"userId"`

	// Role is the user's role: "user", "moderator", or "admin".
	Role string `json:"role"`

	// Nickname is the display name carried so the gateway can attach it to
	// typing events without a store round trip.
	Nickname string `json:"nickname"`
}

// IsModerator reports whether the payload's role grants moderation privileges.
func (p *Payload) IsModerator() bool {
	return p.Role == RoleModerator || p.Role == RoleAdmin
}
