package handler

import (
	"net/http"
	"strings"

	"chatwire/internal/pkg/auth/jwt"
	"chatwire/internal/pkg/errs"
	"chatwire/internal/pkg/logx"
	"chatwire/internal/pkg/resp"
)

// maxPresenceQueryIDs bounds a single presence lookup.
const maxPresenceQueryIDs = 100

// HandleHeartbeat creates an HTTP HandlerFunc recording that the caller is
// online. Clients call it periodically; missing two beats in a row makes the
// user read as offline.
func HandleHeartbeat(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		if err := deps.Presence.Heartbeat(r.Context(), payload.UserID); err != nil {
			logx.Error(err, "Failed to record heartbeat", "user_id", payload.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]string{"status": "ok"})
	}
}

// HandleGetPresence creates an HTTP HandlerFunc returning computed presence
// for the users named in the comma-separated "userIds" query parameter.
func HandleGetPresence(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		raw := r.URL.Query().Get("userIds")
		if raw == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		userIDs := []string{}
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				userIDs = append(userIDs, id)
			}
		}
		if len(userIDs) == 0 || len(userIDs) > maxPresenceQueryIDs {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		statuses, err := deps.Presence.Statuses(r.Context(), userIDs)
		if err != nil {
			logx.Error(err, "Failed to fetch presence", "requested_by", payload.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"presence": statuses})
	}
}
