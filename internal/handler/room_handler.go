package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"chatwire/internal/app/store"
	"chatwire/internal/pkg/auth/jwt"
	"chatwire/internal/pkg/errs"
	"chatwire/internal/pkg/logx"
	"chatwire/internal/pkg/req"
	"chatwire/internal/pkg/resp"
)

const maxRoomNameLength = 64

// CreateRoomInput defines the JSON input structure for creating a room.
type CreateRoomInput struct {
	Name string `json:"name"`
}

// SetRoomBanInput defines the JSON input structure for banning or unbanning a member.
type SetRoomBanInput struct {
	UserID string `json:"user_id"`
	Banned bool   `json:"banned"`
}

// HandleCreateRoom creates an HTTP HandlerFunc that creates a room and enrolls
// the creator as its admin.
func HandleCreateRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input CreateRoomInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		input.Name = strings.TrimSpace(input.Name)
		if input.Name == "" || len(input.Name) > maxRoomNameLength {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		room, err := deps.Store.CreateRoom(r.Context(), input.Name, payload.UserID)
		if err != nil {
			logx.Error(err, "Failed to create room", "creator_id", payload.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		logx.Info("Room created", "room_id", room.ID, "creator_id", payload.UserID)
		resp.RespondSuccess(w, r, room)
	}
}

// HandleListRooms creates an HTTP HandlerFunc returning the rooms the caller
// is a member of.
func HandleListRooms(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		rooms, err := deps.Store.ListRoomsForUser(r.Context(), payload.UserID)
		if err != nil {
			logx.Error(err, "Failed to list rooms", "user_id", payload.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"rooms": rooms})
	}
}

// HandleJoinRoom creates an HTTP HandlerFunc that enrolls the caller in a
// room. Joining twice is a no-op; a ban blocks re-entry.
func HandleJoinRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		roomID := chi.URLParam(r, "roomID")

		err := deps.Store.JoinRoom(r.Context(), roomID, payload.UserID)
		switch err {
		case nil:
		case store.ErrNotFound, store.ErrInvalidID:
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomNotFound))
			return
		case store.ErrBanned:
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomAccessDenied))
			return
		default:
			logx.Error(err, "Failed to join room", "room_id", roomID, "user_id", payload.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		logx.Info("User joined room", "room_id", roomID, "user_id", payload.UserID)
		resp.RespondSuccess(w, r, map[string]string{"roomId": roomID})
	}
}

// HandleLeaveRoom creates an HTTP HandlerFunc that drops the caller's room membership.
func HandleLeaveRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		roomID := chi.URLParam(r, "roomID")

		if err := deps.Store.LeaveRoom(r.Context(), roomID, payload.UserID); err != nil {
			if err == store.ErrInvalidID {
				resp.RespondError(w, r, errs.NewError(errs.ErrRoomNotFound))
				return
			}
			logx.Error(err, "Failed to leave room", "room_id", roomID, "user_id", payload.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]string{"roomId": roomID})
	}
}

// HandleSetRoomBan creates an HTTP HandlerFunc that bans or unbans a room
// member. Only room moderators and global moderators may call it.
func HandleSetRoomBan(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		roomID := chi.URLParam(r, "roomID")

		var input SetRoomBanInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.UserID == "" || input.UserID == payload.UserID {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		allowed := payload.IsModerator()
		if !allowed {
			var err error
			allowed, err = deps.Store.IsRoomModerator(r.Context(), roomID, payload.UserID)
			if err != nil {
				if err == store.ErrInvalidID {
					resp.RespondError(w, r, errs.NewError(errs.ErrRoomNotFound))
					return
				}
				logx.Error(err, "Failed to check room moderator role", "room_id", roomID)
				resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
				return
			}
		}
		if !allowed {
			resp.RespondError(w, r, errs.NewError(errs.ErrForbidden))
			return
		}

		err := deps.Store.SetRoomBan(r.Context(), roomID, input.UserID, input.Banned)
		switch err {
		case nil:
		case store.ErrNotFound, store.ErrInvalidID:
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomNotFound))
			return
		default:
			logx.Error(err, "Failed to set room ban", "room_id", roomID, "target_id", input.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		logx.Info("Room ban updated",
			"room_id", roomID, "target_id", input.UserID, "banned", input.Banned, "by", payload.UserID)
		resp.RespondSuccess(w, r, map[string]any{"userId": input.UserID, "banned": input.Banned})
	}
}
