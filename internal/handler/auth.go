package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/taskflow/taskflow-go/internal/middleware"
	"github.com/taskflow/taskflow-go/internal/model"
	"github.com/taskflow/taskflow-go/internal/service"
)

const forgotPasswordMessage = "If an account exists with that email, a reset link has been sent."

// AuthHandler handles HTTP requests under /api/v1/user.
type AuthHandler struct {
	errorWriter
	service *service.AuthService
	cookies *CookieManager
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *service.AuthService, cookies *CookieManager, log *zap.Logger, development bool) *AuthHandler {
	return &AuthHandler{
		errorWriter: errorWriter{log: log, development: development},
		service:     svc,
		cookies:     cookies,
	}
}

// HandleSignup handles POST /api/v1/user/signup requests.
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req model.SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if _, err := h.service.Signup(r.Context(), req); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, model.MessageResponse{Message: "User created successfully"})
}

// HandleLogin handles POST /api/v1/user/login requests.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess, err := h.service.Login(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.cookies.SetAccessToken(w, sess.AccessToken, sess.AccessExpires)
	h.cookies.SetRefreshToken(w, sess.RefreshToken, sess.RefreshExpires)
	writeJSON(w, http.StatusOK, model.AuthResponse{Message: "Signed in successfully", User: sess.User})
}

// HandleRefresh handles POST /api/v1/user/refresh requests.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var token string
	if c, err := r.Cookie(RefreshTokenCookie); err == nil {
		token = c.Value
	}

	access, expires, err := h.service.Refresh(r.Context(), token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.cookies.SetAccessToken(w, access, expires)
	writeJSON(w, http.StatusOK, model.MessageResponse{Message: "Token refreshed"})
}

// HandleLogout handles POST /api/v1/user/logout requests.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("unauthorized"))
		return
	}

	if err := h.service.Logout(r.Context(), userID); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.cookies.Clear(w)
	writeJSON(w, http.StatusOK, model.MessageResponse{Message: "Logged out successfully"})
}

// HandleProfile handles GET /api/v1/user/profile requests.
func (h *AuthHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("unauthorized"))
		return
	}

	resp, err := h.service.Profile(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleUpdateProfile handles PUT /api/v1/user/profile requests.
func (h *AuthHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("unauthorized"))
		return
	}

	var req model.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.service.UpdateProfile(r.Context(), userID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, model.AuthResponse{Message: "Profile updated successfully", User: resp})
}

// HandleForgotPassword handles POST /api/v1/user/forgot-password requests.
// Known and unknown emails get the same response.
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req model.ForgotPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, model.MessageResponse{Message: forgotPasswordMessage})
}

// HandleResetPassword handles POST /api/v1/user/reset-password/{token} requests.
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req model.ResetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.ResetPassword(r.Context(), chi.URLParam(r, "token"), req); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, model.MessageResponse{Message: "Password reset successful!"})
}
