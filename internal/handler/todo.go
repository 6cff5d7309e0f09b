package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/taskflow/taskflow-go/internal/middleware"
	"github.com/taskflow/taskflow-go/internal/model"
	"github.com/taskflow/taskflow-go/internal/service"
)

// TodoHandler handles HTTP requests under /api/v1/todo.
type TodoHandler struct {
	errorWriter
	service *service.TodoService
}

// NewTodoHandler creates a new TodoHandler.
func NewTodoHandler(svc *service.TodoService, log *zap.Logger, development bool) *TodoHandler {
	return &TodoHandler{
		errorWriter: errorWriter{log: log, development: development},
		service:     svc,
	}
}

// HandleCreate handles POST /api/v1/todo/create-todo requests.
func (h *TodoHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("unauthorized"))
		return
	}

	var req model.CreateTodoRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	todo, err := h.service.Create(r.Context(), userID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, model.TodoResponse{Message: "Todo created", Todo: todo})
}

// HandleList handles GET /api/v1/todo/all-todos requests.
func (h *TodoHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("unauthorized"))
		return
	}

	todos, err := h.service.List(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, model.TodoListResponse{Success: true, Count: len(todos), Todos: todos})
}

// HandleUpdate handles PUT /api/v1/todo/update-todo/{id} requests.
func (h *TodoHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("unauthorized"))
		return
	}

	id, ok := todoID(r)
	if !ok {
		h.writeError(w, r, service.ErrTodoNotFound)
		return
	}

	var req model.UpdateTodoRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	todo, err := h.service.Update(r.Context(), userID, id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, model.TodoResponse{Message: "Updated successfully", Todo: todo})
}

// HandleDelete handles DELETE /api/v1/todo/delete-todo/{id} requests.
func (h *TodoHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("unauthorized"))
		return
	}

	id, ok := todoID(r)
	if !ok {
		h.writeError(w, r, service.ErrTodoNotFound)
		return
	}

	if err := h.service.Delete(r.Context(), userID, id); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, model.MessageResponse{Message: "Todo deleted successfully"})
}

// Malformed ids are indistinguishable from missing ones.
func todoID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
