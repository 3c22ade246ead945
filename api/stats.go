package api

import (
	"net/http"
)

type statsResponse struct {
	InstanceID         string `json:"instance_id,omitempty"`
	Bots               int64  `json:"bots"`
	EnabledBots        int64  `json:"enabled_bots"`
	RegisteredWebhooks int    `json:"registered_webhooks"`
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	total, err := h.svc.Count(ctx)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	enabled, err := h.svc.CountEnabled(ctx)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		InstanceID:         h.cfg.InstanceID,
		Bots:               total,
		EnabledBots:        enabled,
		RegisteredWebhooks: h.webhooks.Len(),
	})
}
