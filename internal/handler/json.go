package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/domain"
)

const maxBodyBytes = 1 << 20

func (h *Handler) logInternalServerError(r *http.Request, err error) {
	slog.Error("服务器内部错误", "method", r.Method, "path", r.URL.Path, "error", err)
}

func (h *Handler) readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.NewError(domain.KindValidation, "Request body must be valid JSON")
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logInternalServerError(r, err)
	}
}

type Response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type messageData struct {
	Message string `json:"message"`
}

func (h *Handler) successResponse(w http.ResponseWriter, r *http.Request, status int, data any) {
	h.writeJSON(w, r, status, Response{
		Status: "success",
		Data:   data,
	})
}

func (h *Handler) messageResponse(w http.ResponseWriter, r *http.Request, msg string) {
	h.writeJSON(w, r, http.StatusOK, Response{
		Status:  "success",
		Message: msg,
	})
}

func (h *Handler) errorResponse(w http.ResponseWriter, r *http.Request, status int, kind string, msg string) {
	h.writeJSON(w, r, status, Response{
		Status:  "error",
		Message: msg,
		Error:   kind,
	})
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		h.errorResponse(w, r, http.StatusBadRequest, string(domain.KindValidation), err.Error())
		return
	}

	h.errorResponse(w, r, http.StatusBadRequest, string(domain.KindValidation), validationErrors[0].Translate(h.translator))
}

func (h *Handler) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	h.logInternalServerError(r, err)
	h.errorResponse(w, r, http.StatusInternalServerError, "Internal Server Error", "Something went wrong")
}

var kindStatus = map[domain.ErrorKind]int{
	domain.KindValidation:   http.StatusBadRequest,
	domain.KindUnauthorized: http.StatusUnauthorized,
	domain.KindForbidden:    http.StatusForbidden,
	domain.KindNotFound:     http.StatusNotFound,
	domain.KindConflict:     http.StatusConflict,
}

// writeError 把业务错误映射为对应的状态码，其余错误一律按 500 处理且不暴露细节
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var domainErr *domain.Error
	if errors.As(err, &domainErr) {
		if status, ok := kindStatus[domainErr.Kind]; ok {
			h.errorResponse(w, r, status, string(domainErr.Kind), domainErr.Message)
			return
		}
	}

	h.internalServerError(w, r, err)
}

func (h *Handler) routeNotFound(w http.ResponseWriter, r *http.Request) {
	h.errorResponse(w, r, http.StatusNotFound, string(domain.KindNotFound), "Route not found")
}

func (h *Handler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.errorResponse(w, r, http.StatusMethodNotAllowed, "Method Not Allowed", "Method not allowed")
}
