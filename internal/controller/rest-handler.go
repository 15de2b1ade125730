package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sharetube/watchparty/internal/service/room"
)

const defaultListLimit = 50

func (c controller) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		c.logger.WarnContext(r.Context(), "failed to write response", "error", err)
	}
}

func (c controller) health(w http.ResponseWriter, r *http.Request) {
	c.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (c controller) getRoom(w http.ResponseWriter, r *http.Request) {
	summary, err := c.roomService.GetRoomSummary(r.Context(), chi.URLParam(r, "room-code"))
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			c.writeJSON(w, r, http.StatusNotFound, map[string]string{"error": "room not found"})
			return
		}

		c.logger.ErrorContext(r.Context(), "failed to get room", "error", err)
		c.writeJSON(w, r, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	c.writeJSON(w, r, http.StatusOK, summary)
}

func (c controller) listRooms(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.writeJSON(w, r, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	summaries, err := c.roomService.ListRooms(r.Context(), limit)
	if err != nil {
		c.logger.ErrorContext(r.Context(), "failed to list rooms", "error", err)
		c.writeJSON(w, r, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	c.writeJSON(w, r, http.StatusOK, map[string]any{"rooms": summaries})
}
