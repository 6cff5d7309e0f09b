package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/taskflow/taskflow-go/internal/middleware"
	"github.com/taskflow/taskflow-go/internal/model"
	"github.com/taskflow/taskflow-go/internal/service"
)

const maxBodyBytes = 1 << 20 // 1MB

type validationResponse struct {
	Message string               `json:"message"`
	Errors  []service.FieldIssue `json:"errors"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func errorResponse(msg string) model.MessageResponse {
	return model.MessageResponse{Message: msg}
}

// decodeJSON reads a size-limited JSON body into v. On failure it has already
// written the response.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse("request body too large"))
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
		return false
	}
	return true
}

// errorWriter maps service errors onto status codes and messages.
type errorWriter struct {
	log         *zap.Logger
	development bool
}

func (e errorWriter) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, validationResponse{Message: verr.Message, Errors: verr.Issues})
		return
	}

	switch {
	case errors.Is(err, service.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse("User not found"))
	case errors.Is(err, service.ErrTodoNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse("Todo not found"))
	case errors.Is(err, service.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorResponse("Invalid email or password"))
	case errors.Is(err, service.ErrRefreshTokenMissing):
		writeJSON(w, http.StatusUnauthorized, errorResponse("Refresh token missing"))
	case errors.Is(err, service.ErrSessionExpired):
		writeJSON(w, http.StatusForbidden, errorResponse("Session expired"))
	case errors.Is(err, service.ErrInvalidRefreshToken):
		writeJSON(w, http.StatusForbidden, errorResponse("Invalid refresh token"))
	case errors.Is(err, service.ErrUserExists):
		writeJSON(w, http.StatusBadRequest, errorResponse("User already exists"))
	case errors.Is(err, service.ErrUsernameTaken):
		writeJSON(w, http.StatusBadRequest, errorResponse("Username already taken"))
	case errors.Is(err, service.ErrCurrentPasswordIncorrect):
		writeJSON(w, http.StatusBadRequest, errorResponse("Current password incorrect"))
	case errors.Is(err, service.ErrInvalidResetToken):
		writeJSON(w, http.StatusBadRequest, errorResponse("Invalid or expired reset token."))
	default:
		e.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
		body := middleware.ErrorBody{Message: "Server error"}
		if e.development {
			detail := fmt.Sprintf("%+v", err)
			body.Stack = &detail
		}
		writeJSON(w, http.StatusInternalServerError, body)
	}
}

// notFound mirrors the catch-all for unknown routes.
func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorResponse("Not Found - "+r.URL.RequestURI()))
}
