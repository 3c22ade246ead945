package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/botrelay/bot"
	"github.com/xraph/botrelay/id"
)

type createBotRequest struct {
	Username string `json:"username"`
	Token    string `json:"token"`
	Enabled  *bool  `json:"enabled,omitempty"`
}

type updateBotRequest struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Token    string `json:"token"`
	Enabled  *bool  `json:"enabled,omitempty"`
}

type botIDRequest struct {
	ID string `json:"id"`
}

// writeServiceError maps bot errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *bot.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, bot.ErrNotFound):
		writeError(w, http.StatusNotFound, "bot not found")
	case errors.Is(err, bot.ErrUsernameTaken):
		writeError(w, http.StatusConflict, "username already taken")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func parseBotID(w http.ResponseWriter, raw string) (id.ID, bool) {
	botID, err := id.ParseBotID(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bot ID")
		return id.Nil, false
	}
	return botID, true
}

func (h *Handler) listBots(w http.ResponseWriter, r *http.Request) {
	opts := bot.ListOpts{
		Offset:  queryInt(r, "offset", 0),
		Limit:   queryInt(r, "limit", 0),
		Enabled: queryBool(r, "enabled"),
	}

	bots, err := h.svc.List(r.Context(), opts)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bots)
}

func (h *Handler) getBotByQuery(w http.ResponseWriter, r *http.Request) {
	h.writeBot(w, r, queryParam(r, "id"))
}

func (h *Handler) getBot(w http.ResponseWriter, r *http.Request) {
	h.writeBot(w, r, chi.URLParam(r, "id"))
}

func (h *Handler) writeBot(w http.ResponseWriter, r *http.Request, raw string) {
	botID, ok := parseBotID(w, raw)
	if !ok {
		return
	}

	b, err := h.svc.Get(r.Context(), botID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) createBot(w http.ResponseWriter, r *http.Request) {
	var req createBotRequest
	if err := h.schemas.decode(r, "create-bot", &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, err := h.svc.Create(r.Context(), bot.Input{
		Username: req.Username,
		Token:    req.Token,
		Enabled:  req.Enabled,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, b)
}

func (h *Handler) updateBot(w http.ResponseWriter, r *http.Request) {
	var req updateBotRequest
	if err := h.schemas.decode(r, "update-bot", &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	botID, ok := parseBotID(w, req.ID)
	if !ok {
		return
	}

	b, err := h.svc.Update(r.Context(), botID, bot.Input{
		Username: req.Username,
		Token:    req.Token,
		Enabled:  req.Enabled,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) enableBot(w http.ResponseWriter, r *http.Request) {
	botID, ok := h.decodeBotID(w, r)
	if !ok {
		return
	}

	b, err := h.svc.Enable(r.Context(), botID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) disableBot(w http.ResponseWriter, r *http.Request) {
	botID, ok := h.decodeBotID(w, r)
	if !ok {
		return
	}

	b, err := h.svc.Disable(r.Context(), botID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) deleteBot(w http.ResponseWriter, r *http.Request) {
	botID, ok := h.decodeBotID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), botID); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeBotID(w http.ResponseWriter, r *http.Request) (id.ID, bool) {
	var req botIDRequest
	if err := h.schemas.decode(r, "bot-id", &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return id.Nil, false
	}
	return parseBotID(w, req.ID)
}
