/*
Package handler provides the HTTP handlers and routing setup for the Chatwire server.

This file defines the main Router, applying necessary middleware like logging, CORS,
and IP-based rate limiting before delegating requests to specific handlers (API and WebSocket).
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"chatwire/internal/pkg/auth/jwt"
	"chatwire/internal/pkg/limiter"
	"chatwire/internal/pkg/logx"
	"chatwire/internal/pkg/resp"
)

const (
	CreateRate     = 0.05
	CreateBurst    = 2
	ConnectRate    = 0.2
	ConnectBurst   = 5
	HeartbeatRate  = 0.2
	HeartbeatBurst = 5
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
// It initializes IP-based rate limiters, configures CORS, and applies global and per-route middleware.
// It requires the app dependencies for business logic and the AppConfig for settings (like allowed origins).
func Router(deps *AppDeps) http.Handler {
	createLimiter := limiter.NewIPRateLimiter(rate.Limit(CreateRate), CreateBurst)
	connectLimiter := limiter.NewIPRateLimiter(rate.Limit(ConnectRate), ConnectBurst)
	heartbeatLimiter := limiter.NewIPRateLimiter(rate.Limit(HeartbeatRate), HeartbeatBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.Environment == "development" {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.Environment == "development" {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		logx.Info("Health check endpoint hit")

		data := map[string]string{
			"status":  "ok",
			"service": "Chatwire Server",
		}
		resp.RespondSuccess(w, r, data)
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(jwt.RequireAuthMiddleware(deps.Config.JWTSecret))

		api.Route("/rooms", func(rooms chi.Router) {
			rateLimitedCreate := createLimiter.Middleware(HandleCreateRoom(deps))
			rooms.Post("/", http.HandlerFunc(rateLimitedCreate.ServeHTTP))
			rooms.Get("/", HandleListRooms(deps))
			rooms.Post("/{roomID}/join", HandleJoinRoom(deps))
			rooms.Post("/{roomID}/leave", HandleLeaveRoom(deps))
			rooms.Post("/{roomID}/ban", HandleSetRoomBan(deps))
		})

		api.Route("/conversations", func(convs chi.Router) {
			convs.Post("/direct", HandleDirectConversation(deps))
			convs.Get("/", HandleListConversations(deps))
		})

		api.Route("/messages", func(messages chi.Router) {
			messages.Get("/", HandleListMessages(deps))
			messages.Delete("/{messageID}", HandleDeleteMessage(deps))
		})

		api.Route("/presence", func(pres chi.Router) {
			rateLimitedHeartbeat := heartbeatLimiter.Middleware(HandleHeartbeat(deps))
			pres.Post("/heartbeat", http.HandlerFunc(rateLimitedHeartbeat.ServeHTTP))
			pres.Get("/", HandleGetPresence(deps))
		})

		api.Post("/file/presign-upload", HandlePresignUploadURL(deps))
		api.Get("/file/presign-download", HandlePresignDownloadURL(deps))
	})

	r.Get("/ws", HandleWebSocket(wsUpgrader, connectLimiter, deps))

	return r
}
