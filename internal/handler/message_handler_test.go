package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatwire/internal/pkg/auth/jwt"
	"chatwire/internal/pkg/errs"
	"chatwire/internal/pkg/resp"
)

func authedRequest(t *testing.T, target string) *http.Request {
	t.Helper()

	r := httptest.NewRequest("GET", target, nil)
	ctx := context.WithValue(r.Context(), jwt.ContextAuthPayloadKey, &jwt.Payload{
		UserID:   "u1",
		Role:     jwt.RoleUser,
		Nickname: "alice",
	})
	return r.WithContext(ctx)
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) resp.JSONResponse {
	t.Helper()

	var body resp.JSONResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestClampPageLimit(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", DefaultPageLimit},
		{"not-a-number", DefaultPageLimit},
		{"20", 20},
		{"1", MinPageLimit},
		{"0", MinPageLimit},
		{"-5", MinPageLimit},
		{"50", MaxPageLimit},
		{"500", MaxPageLimit},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, clampPageLimit(tt.raw), "limit=%q", tt.raw)
	}
}

func TestListMessagesRequiresAuth(t *testing.T) {
	handler := HandleListMessages(&AppDeps{})

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest("GET", "/api/messages?roomId=r1", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, errs.ErrUnauthorized, decodeResponse(t, w).Code)
}

func TestListMessagesRequiresExactlyOneScope(t *testing.T) {
	handler := HandleListMessages(&AppDeps{})

	targets := []string{
		"/api/messages",
		"/api/messages?roomId=r1&conversationId=c1",
	}

	for _, target := range targets {
		w := httptest.NewRecorder()
		handler(w, authedRequest(t, target))

		assert.Equal(t, http.StatusBadRequest, w.Code, "target=%s", target)
		assert.Equal(t, errs.ErrScopeRequired, decodeResponse(t, w).Code, "target=%s", target)
	}
}

func TestListMessagesRejectsMalformedCursor(t *testing.T) {
	handler := HandleListMessages(&AppDeps{})

	w := httptest.NewRecorder()
	handler(w, authedRequest(t, "/api/messages?roomId=r1&before=yesterday"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errs.ErrInvalidCursor, decodeResponse(t, w).Code)
}
