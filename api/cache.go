package api

import (
	"errors"
	"net/http"

	"github.com/xraph/botrelay/bot"
)

func isNotFound(err error) bool {
	return errors.Is(err, bot.ErrNotFound)
}

func (h *Handler) clearCache(w http.ResponseWriter, r *http.Request) {
	h.svc.EvictAll(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (h *Handler) broadcastClearCache(w http.ResponseWriter, r *http.Request) {
	if h.broadcaster == nil {
		writeError(w, http.StatusServiceUnavailable, "no notification bus configured")
		return
	}
	if err := h.broadcaster.EvictAll(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "broadcast"})
}
