package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"chatwire/internal/app/chat"
	"chatwire/internal/pkg/auth/jwt"
	"chatwire/internal/pkg/errs"
	"chatwire/internal/pkg/req"
	"chatwire/internal/pkg/resp"
)

// PresignUploadInput defines the JSON input structure for generating upload URL.
// Exactly one of RoomID and ConversationID scopes the upload.
type PresignUploadInput struct {
	RoomID         string `json:"room_id"`
	ConversationID string `json:"conversation_id"`
	FileName       string `json:"file_name"`
	MimeType       string `json:"mime_type"`
	FileSize       int64  `json:"file_size"`
}

// HandlePresignUploadURL creates an HTTP HandlerFunc to generate a time-limited,
// pre-signed URL for file upload, scoped to a room or conversation the caller
// can access. The returned key must be attached to a message verbatim.
func HandlePresignUploadURL(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input PresignUploadInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if (input.RoomID == "") == (input.ConversationID == "") {
			resp.RespondError(w, r, errs.NewError(errs.ErrScopeRequired))
			return
		}

		if customErr := requireScopeAccess(r, deps, payload.UserID, input.RoomID, input.ConversationID); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if err := chat.ValidateFileSize(input.FileSize); err != nil {
			resp.RespondError(w, r, err)
			return
		}

		if err := chat.ValidateFileType(input.FileName, input.MimeType); err != nil {
			resp.RespondError(w, r, err)
			return
		}

		channel := chat.Scope{RoomID: input.RoomID, ConversationID: input.ConversationID}.Channel()

		fileExt := strings.ToLower(filepath.Ext(input.FileName))
		fileID := uuid.New().String()
		fileKey := fmt.Sprintf("%s/%s%s", channel, fileID, fileExt)

		url, err := deps.StorageService.PresignUpload(
			r.Context(),
			fileKey,
			input.MimeType,
			input.FileSize,
			chat.PresignedURLDuration,
		)

		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		data := map[string]any{
			"presignedUrl": url,
			"fileKey":      fileKey,
			"fileName":     input.FileName,
		}
		resp.RespondSuccess(w, r, data)
	}
}

// HandlePresignDownloadURL creates an HTTP HandlerFunc to generate a time-limited,
// pre-signed URL for file download. The key's channel prefix decides which
// membership is checked; a key outside any channel the caller can access is rejected.
func HandlePresignDownloadURL(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		fileKey := r.URL.Query().Get("k")
		if fileKey == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		prefix, _, found := strings.Cut(fileKey, "/")
		if !found {
			resp.RespondError(w, r, errs.NewError(errs.ErrAttachmentKeyInvalid))
			return
		}

		channel := chat.Channel(prefix)
		if channel.ScopeID() == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrAttachmentKeyInvalid))
			return
		}

		var roomID, conversationID string
		if channel.IsRoom() {
			roomID = channel.ScopeID()
		} else {
			conversationID = channel.ScopeID()
		}

		if customErr := requireScopeAccess(r, deps, payload.UserID, roomID, conversationID); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		url, err := deps.StorageService.PresignDownload(
			r.Context(),
			fileKey,
			chat.PresignedURLDuration,
		)

		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		http.Redirect(w, r, url, http.StatusFound)
	}
}
