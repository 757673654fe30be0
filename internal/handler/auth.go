package handler

import (
	"net/http"

	"github.com/sysu-ecnc-dev/workzen/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/service"
)

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LoginID  string `json:"loginId"`
		Password string `json:"password"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	// 字段校验交给 service，保证错误信息与登录失败的信息一致
	result, err := h.service.Login(r.Context(), req.LoginID, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.successResponse(w, r, http.StatusOK, result)
}

// Logout 从 Authorization 头中读取 refresh token
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), bearerToken(r)); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.messageResponse(w, r, "Logged out successfully")
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	accessToken, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.successResponse(w, r, http.StatusOK, map[string]string{"accessToken": accessToken})
}

// Register 不在这里做结构校验：注册关闭时，不论请求体是否合法都应返回 403
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput

	decodeErr := h.readJSON(w, r, &req)
	if decodeErr != nil {
		req = service.RegisterInput{}
	}

	result, err := h.service.RegisterInitialAdmin(r.Context(), req)
	if err != nil {
		if decodeErr != nil && !domain.IsKind(err, domain.KindForbidden) {
			err = decodeErr
		}
		h.writeError(w, r, err)
		return
	}

	h.successResponse(w, r, http.StatusCreated, result)
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.messageResponse(w, r, "If an account with that email exists, a password reset link has been sent")
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.messageResponse(w, r, "Password has been reset successfully")
}
