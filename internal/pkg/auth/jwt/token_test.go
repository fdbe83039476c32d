package jwt

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key"

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(&Payload{
		UserID:   "u1",
		Role:     RoleModerator,
		Nickname: "alice",
	}, testSecret, time.Minute)
	require.NoError(t, err)

	parsed, err := ParseToken(token, testSecret)
	require.NoError(t, err)

	assert.Equal(t, "u1", parsed.UserID)
	assert.Equal(t, RoleModerator, parsed.Role)
	assert.Equal(t, "alice", parsed.Nickname)
	assert.Equal(t, TokenIssuer, parsed.Issuer)
	assert.True(t, parsed.IsModerator())
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken(&Payload{UserID: "u1", Role: RoleUser}, testSecret, time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token, "a-different-secret")
	assert.Error(t, err)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	token, err := GenerateToken(&Payload{UserID: "u1", Role: RoleUser}, testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token, testSecret)
	assert.Error(t, err)
}

func TestIsModeratorByRole(t *testing.T) {
	assert.False(t, (&Payload{Role: RoleUser}).IsModerator())
	assert.True(t, (&Payload{Role: RoleModerator}).IsModerator())
	assert.True(t, (&Payload{Role: RoleAdmin}).IsModerator())
}

func TestBearerTokenHeaderAndQueryFallback(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/messages", nil)
	r.Header.Set("Authorization", "Bearer abc123")
	assert.Equal(t, "abc123", BearerToken(r))

	r = httptest.NewRequest("GET", "/api/messages", nil)
	r.Header.Set("Authorization", "Basic abc123")
	assert.Equal(t, "", BearerToken(r))

	// websocket handshakes cannot set headers, the query parameter carries the credential
	r = httptest.NewRequest("GET", "/ws?token=abc123", nil)
	assert.Equal(t, "abc123", BearerToken(r))

	r = httptest.NewRequest("GET", "/ws", nil)
	assert.Equal(t, "", BearerToken(r))
}
