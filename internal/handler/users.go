package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) GetAllUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context(), currentUser(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.successResponse(w, r, http.StatusOK, users)
}

func (h *Handler) SendCredentials(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	if err := h.service.AdminSendCredentials(r.Context(), userID, currentUser(r.Context())); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.successResponse(w, r, http.StatusOK, messageData{Message: "Login credentials sent successfully via email"})
}

func (h *Handler) UpdateUserPassword(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	var req struct {
		Password string `json:"password"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.service.AdminUpdatePassword(r.Context(), userID, req.Password, currentUser(r.Context())); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.successResponse(w, r, http.StatusOK, messageData{Message: "Password updated successfully"})
}
