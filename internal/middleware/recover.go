package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"
)

// ErrorBody is the shape of 5xx responses. Stack is only filled in development.
type ErrorBody struct {
	Message string  `json:"message"`
	Stack   *string `json:"stack"`
}

// Recoverer turns a panic into a 500 response and logs it with its stack.
func Recoverer(log *zap.Logger, development bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				stack := string(debug.Stack())
				log.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.String("request_id", RequestIDFromContext(r.Context())),
					zap.String("stack", stack),
				)

				body := ErrorBody{Message: fmt.Sprint(rec)}
				if development {
					body.Stack = &stack
				} else {
					body.Message = "Server error"
				}
				writeJSON(w, http.StatusInternalServerError, body)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
