/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains the HandleWebSocket function, which is responsible for rate limiting,
authenticating the caller before the upgrade, upgrading the HTTP connection to WebSocket,
and initiating the client lifecycle.
*/
package handler

import (
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"chatwire/internal/app/chat"
	"chatwire/internal/app/store"
	"chatwire/internal/pkg/auth/jwt"
	"chatwire/internal/pkg/errs"
	"chatwire/internal/pkg/limiter"
	"chatwire/internal/pkg/logx"
	"chatwire/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
// Authentication happens before the upgrade: a request without a valid credential is
// rejected as plain HTTP and no socket ever exists for it.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if ip == "" {
			ip = "unknown_ip"
		}

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			rateLimitErr := errs.NewError(errs.ErrRateLimitExceeded)
			resp.RespondError(w, r, rateLimitErr)
			return
		}

		tokenString := jwt.BearerToken(r)
		if tokenString == "" {
			logx.Warn("WebSocket request rejected: Missing credential")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		payload, err := jwt.ParseToken(tokenString, deps.Config.JWTSecret)
		if err != nil {
			logx.Warn("WebSocket request rejected: Invalid or expired credential", "error", err)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		currentUser, err := deps.Store.GetUser(r.Context(), payload.UserID)
		if err != nil {
			if err == store.ErrNotFound || err == store.ErrInvalidID {
				logx.Warn("WebSocket request rejected: Unknown user", "user_id", payload.UserID)
				resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
				return
			}
			logx.Error(err, "Failed to load user for WebSocket handshake", "user_id", payload.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		logx.Info("Attempting to upgrade connection", "user_id", currentUser.ID)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := chat.NewClient(deps.Gateway, conn, currentUser)

		go client.WritePump()

		logx.Info("WebSocket connection established", "client_id", currentUser.ID)

		client.ReadPump()
	}
}
