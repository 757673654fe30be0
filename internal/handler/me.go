package handler

import (
	"net/http"
	"time"
)

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	h.successResponse(w, r, http.StatusOK, currentUser(r.Context()))
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
