package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mymmrac/telego"

	"github.com/xraph/botrelay/signature"
)

type webhookResponse struct {
	Username string `json:"username"`
	URL      string `json:"url"`
}

func (h *Handler) listWebhooks(w http.ResponseWriter, _ *http.Request) {
	usernames := h.webhooks.Registered()
	out := make([]webhookResponse, len(usernames))
	for i, u := range usernames {
		out[i] = webhookResponse{Username: u, URL: h.webhooks.URL(u)}
	}
	writeJSON(w, http.StatusOK, out)
}

// receiveUpdate handles a provider callback for one bot. A reply, if any,
// is returned in the response body as a Bot API method call.
func (h *Handler) receiveUpdate(w http.ResponseWriter, r *http.Request) {
	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
	defer func() { h.cfg.Metrics.RecordInbound(ww.Status()) }()

	ctx := r.Context()
	username := chi.URLParam(r, "username")

	b, err := h.svc.GetByUsername(ctx, username)
	if err != nil || !b.Enabled {
		if err != nil && !isNotFound(err) {
			h.logger.ErrorContext(ctx, "inbound bot lookup failed", "username", username, "error", err)
			writeError(ww, http.StatusInternalServerError, "lookup failed")
			return
		}
		h.logger.WarnContext(ctx, "update for unknown or disabled bot", "username", username)
		writeError(ww, http.StatusNotFound, "bot not found")
		return
	}

	if !signature.Verify(h.cfg.SecretKey, username, r.Header.Get(signature.HeaderName)) {
		h.logger.WarnContext(ctx, "bad secret token", "username", username)
		writeError(ww, http.StatusUnauthorized, "invalid secret token")
		return
	}

	if !h.cfg.Limiter.Allow(username) {
		writeError(ww, http.StatusTooManyRequests, "rate limited")
		return
	}

	var update telego.Update
	defer r.Body.Close()
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&update); err != nil {
		writeError(ww, http.StatusBadRequest, "invalid update")
		return
	}

	reply, err := h.cfg.Inbound.Handle(ctx, b, &update)
	if err != nil {
		h.logger.ErrorContext(ctx, "inbound handler failed",
			"username", username,
			"update_id", update.UpdateID,
			"error", err,
		)
		writeError(ww, http.StatusInternalServerError, "handler failed")
		return
	}
	if reply == nil {
		ww.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(ww, http.StatusOK, reply)
}
