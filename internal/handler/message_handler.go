package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"chatwire/internal/app/store"
	"chatwire/internal/pkg/auth/jwt"
	"chatwire/internal/pkg/errs"
	"chatwire/internal/pkg/logx"
	"chatwire/internal/pkg/resp"
)

// Page size bounds for message history. Requests outside the bounds are
// clamped, never rejected.
const (
	DefaultPageLimit = 20
	MinPageLimit     = 10
	MaxPageLimit     = 50
)

// HandleListMessages creates an HTTP HandlerFunc serving one page of message
// history for a room or a conversation, paginated backward from the "before"
// cursor. Messages in the response run oldest to newest.
func HandleListMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		query := r.URL.Query()
		roomID := query.Get("roomId")
		conversationID := query.Get("conversationId")

		if (roomID == "") == (conversationID == "") {
			resp.RespondError(w, r, errs.NewError(errs.ErrScopeRequired))
			return
		}

		historyQuery := store.HistoryQuery{
			RoomID:         roomID,
			ConversationID: conversationID,
			Limit:          clampPageLimit(query.Get("limit")),
		}

		if before := query.Get("before"); before != "" {
			cursor, err := time.Parse(time.RFC3339Nano, before)
			if err != nil {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCursor))
				return
			}
			historyQuery.Before = cursor
		}

		if customErr := requireScopeAccess(r, deps, payload.UserID, roomID, conversationID); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		page, err := deps.Store.ListMessagePage(r.Context(), historyQuery)
		if err != nil {
			logx.Error(err, "Failed to list message history", "room_id", roomID, "conversation_id", conversationID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, page)
	}
}

// HandleDeleteMessage creates an HTTP HandlerFunc that hard-deletes a message.
// Global moderators may delete anywhere; room moderators may delete within
// their room. Conversation messages require a global moderator.
func HandleDeleteMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		messageID := chi.URLParam(r, "messageID")
		if messageID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		view, err := deps.Store.GetView(r.Context(), messageID)
		if err != nil {
			if err == store.ErrNotFound || err == store.ErrInvalidID {
				resp.RespondError(w, r, errs.NewError(errs.ErrMessageNotFound))
				return
			}
			logx.Error(err, "Failed to load message for deletion", "message_id", messageID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		allowed := payload.IsModerator()
		if !allowed && view.RoomID != "" {
			allowed, err = deps.Store.IsRoomModerator(r.Context(), view.RoomID, payload.UserID)
			if err != nil {
				logx.Error(err, "Failed to check room moderator role", "room_id", view.RoomID)
				resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
				return
			}
		}
		if !allowed {
			resp.RespondError(w, r, errs.NewError(errs.ErrForbidden))
			return
		}

		if err := deps.Store.DeleteMessage(r.Context(), messageID); err != nil {
			if err == store.ErrNotFound {
				resp.RespondError(w, r, errs.NewError(errs.ErrMessageNotFound))
				return
			}
			logx.Error(err, "Failed to delete message", "message_id", messageID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		logx.Info("Message deleted by moderator", "message_id", messageID, "moderator_id", payload.UserID)
		resp.RespondSuccess(w, r, map[string]string{"deletedId": messageID})
	}
}

// clampPageLimit parses the requested page size and clamps it into the
// supported range. Unparseable input falls back to the default.
func clampPageLimit(raw string) int {
	limit := DefaultPageLimit
	if raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	if limit < MinPageLimit {
		limit = MinPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	return limit
}

// requireScopeAccess checks that the user may read the named room or
// conversation. Exactly one of roomID and conversationID must be set.
func requireScopeAccess(r *http.Request, deps *AppDeps, userID, roomID, conversationID string) *errs.CustomError {
	ctx := r.Context()

	if roomID != "" {
		allowed, err := deps.Store.CanAccessRoom(ctx, roomID, userID)
		if err != nil {
			if err == store.ErrInvalidID {
				return errs.NewError(errs.ErrRoomNotFound)
			}
			logx.Error(err, "Failed to check room access", "room_id", roomID)
			return errs.NewError(errs.ErrUnknown)
		}
		if !allowed {
			if _, err := deps.Store.GetRoom(ctx, roomID); err == store.ErrNotFound {
				return errs.NewError(errs.ErrRoomNotFound)
			}
			return errs.NewError(errs.ErrRoomAccessDenied)
		}
		return nil
	}

	member, err := deps.Store.IsConversationMember(ctx, conversationID, userID)
	if err != nil {
		if err == store.ErrInvalidID {
			return errs.NewError(errs.ErrConversationNotFound)
		}
		logx.Error(err, "Failed to check conversation membership", "conversation_id", conversationID)
		return errs.NewError(errs.ErrUnknown)
	}
	if !member {
		if _, err := deps.Store.GetConversation(ctx, conversationID); err == store.ErrNotFound {
			return errs.NewError(errs.ErrConversationNotFound)
		}
		return errs.NewError(errs.ErrConversationAccessDenied)
	}

	return nil
}
