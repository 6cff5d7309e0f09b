package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/taskflow/taskflow-go/internal/model"
	"github.com/taskflow/taskflow-go/internal/repository"
)

var ErrTodoNotFound = errors.New("todo not found")

const dateLayout = "2006-01-02"

// TodoService handles task business logic.
type TodoService struct {
	todos TodoStore
	now   func() time.Time
}

// NewTodoService creates a new TodoService.
func NewTodoService(todos TodoStore) *TodoService {
	return &TodoService{todos: todos, now: time.Now}
}

// Create adds a task for the user. Status defaults to todo and priority to
// medium; a task created as done is stamped completed.
func (s *TodoService) Create(ctx context.Context, userID int64, req model.CreateTodoRequest) (model.Todo, error) {
	const msg = "Incorrect format"
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if err := validateRequest(msg, req); err != nil {
		return model.Todo{}, err
	}
	deadline, err := parseDeadline(msg, req.Deadline)
	if err != nil {
		return model.Todo{}, err
	}

	todo := model.Todo{
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Status:      req.Status,
		Deadline:    deadline,
	}
	if todo.Priority == "" {
		todo.Priority = model.PriorityMedium
	}
	if todo.Status == "" {
		todo.Status = model.StatusTodo
	}
	if todo.Status == model.StatusDone {
		t := s.timestamp()
		todo.CompletedAt = &t
	}

	if err := s.todos.Create(ctx, &todo); err != nil {
		return model.Todo{}, err
	}
	return todo, nil
}

// List returns the user's tasks, newest first.
func (s *TodoService) List(ctx context.Context, userID int64) ([]model.Todo, error) {
	return s.todos.ListByUser(ctx, userID)
}

// Update applies a partial update. completedAt is set when the status moves
// into done and cleared when it moves out; other changes leave it alone.
func (s *TodoService) Update(ctx context.Context, userID, id int64, req model.UpdateTodoRequest) (model.Todo, error) {
	const msg = "Invalid update data"
	trimPtr(req.Title)
	trimPtr(req.Description)
	if err := validateRequest(msg, req); err != nil {
		return model.Todo{}, err
	}

	todo, err := s.get(ctx, userID, id)
	if err != nil {
		return model.Todo{}, err
	}

	if req.Title != nil {
		todo.Title = *req.Title
	}
	if req.Description != nil {
		todo.Description = *req.Description
	}
	if req.Priority != nil {
		todo.Priority = *req.Priority
	}
	if req.Deadline != nil {
		deadline, err := parseDeadline(msg, *req.Deadline)
		if err != nil {
			return model.Todo{}, err
		}
		todo.Deadline = deadline
	}
	if req.Status != nil {
		next := *req.Status
		switch {
		case next == model.StatusDone && todo.Status != model.StatusDone:
			t := s.timestamp()
			todo.CompletedAt = &t
		case next != model.StatusDone && todo.Status == model.StatusDone:
			todo.CompletedAt = nil
		}
		todo.Status = next
	}

	if err := s.todos.Update(ctx, todo); err != nil {
		if errors.Is(err, repository.ErrTodoNotFound) {
			return model.Todo{}, ErrTodoNotFound
		}
		return model.Todo{}, err
	}
	return *todo, nil
}

// Delete removes a task. Someone else's task is reported as not found.
func (s *TodoService) Delete(ctx context.Context, userID, id int64) error {
	if err := s.todos.Delete(ctx, userID, id); err != nil {
		if errors.Is(err, repository.ErrTodoNotFound) {
			return ErrTodoNotFound
		}
		return err
	}
	return nil
}

func (s *TodoService) get(ctx context.Context, userID, id int64) (*model.Todo, error) {
	todo, err := s.todos.GetByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrTodoNotFound) {
			return nil, ErrTodoNotFound
		}
		return nil, err
	}
	return todo, nil
}

func (s *TodoService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// parseDeadline accepts RFC 3339 or YYYY-MM-DD. An empty string means no deadline.
func parseDeadline(msg, s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.UTC()
		return &t, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return &t, nil
	}
	return nil, fieldError(msg, "deadline", "datetime", "deadline must be an RFC 3339 timestamp or YYYY-MM-DD date")
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}
