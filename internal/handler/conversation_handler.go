package handler

import (
	"net/http"

	"chatwire/internal/app/store"
	"chatwire/internal/pkg/auth/jwt"
	"chatwire/internal/pkg/errs"
	"chatwire/internal/pkg/logx"
	"chatwire/internal/pkg/req"
	"chatwire/internal/pkg/resp"
)

// DirectConversationInput defines the JSON input structure for opening a direct conversation.
type DirectConversationInput struct {
	UserID string `json:"user_id"`
}

// HandleDirectConversation creates an HTTP HandlerFunc that returns the
// caller's direct conversation with another user, creating it if it does not
// exist yet. Repeated calls for the same pair always land on the same
// conversation, whichever side calls first.
func HandleDirectConversation(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input DirectConversationInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.UserID == "" || input.UserID == payload.UserID {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if _, err := deps.Store.GetUser(r.Context(), input.UserID); err != nil {
			if err == store.ErrNotFound || err == store.ErrInvalidID {
				resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
				return
			}
			logx.Error(err, "Failed to look up conversation peer", "peer_id", input.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		conversation, created, err := deps.Store.FindOrCreateDirect(r.Context(), payload.UserID, input.UserID)
		if err != nil {
			if err == store.ErrInvalidID {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
				return
			}
			logx.Error(err, "Failed to open direct conversation",
				"user_id", payload.UserID, "peer_id", input.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		if created {
			logx.Info("Direct conversation created",
				"conversation_id", conversation.ID, "user_id", payload.UserID, "peer_id", input.UserID)
		}

		resp.RespondSuccess(w, r, conversation)
	}
}

// HandleListConversations creates an HTTP HandlerFunc returning the caller's
// conversations, most recently active first.
func HandleListConversations(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		conversations, err := deps.Store.ListConversationsForUser(r.Context(), payload.UserID)
		if err != nil {
			logx.Error(err, "Failed to list conversations", "user_id", payload.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"conversations": conversations})
	}
}
