package model

import "time"

const (
	StatusTodo       = "todo"
	StatusInProgress = "in-progress"
	StatusDone       = "done"

	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Statuses lists task statuses in board column order.
var Statuses = []string{StatusTodo, StatusInProgress, StatusDone}

// IsStatus reports whether s names a board column.
func IsStatus(s string) bool {
	for _, st := range Statuses {
		if st == s {
			return true
		}
	}
	return false
}

// Todo is a single task owned by one user.
type Todo struct {
	ID          int64      `db:"id" json:"id,string"`
	UserID      int64      `db:"user_id" json:"user,string"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	Priority    string     `db:"priority" json:"priority"`
	Status      string     `db:"status" json:"status"`
	Deadline    *time.Time `db:"deadline" json:"deadline"`
	CompletedAt *time.Time `db:"completed_at" json:"completedAt"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}

// CreateTodoRequest represents a task creation request. Deadline accepts
// RFC 3339 or a plain YYYY-MM-DD date.
type CreateTodoRequest struct {
	Title       string `json:"title" validate:"required,max=100"`
	Description string `json:"description" validate:"required,max=200"`
	Deadline    string `json:"deadline"`
	Priority    string `json:"priority" validate:"omitempty,oneof=low medium high"`
	Status      string `json:"status" validate:"omitempty,oneof=todo in-progress done"`
}

// UpdateTodoRequest is a partial update; nil fields are left unchanged and an
// empty deadline clears it.
type UpdateTodoRequest struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,min=1,max=200"`
	Deadline    *string `json:"deadline,omitempty"`
	Priority    *string `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
	Status      *string `json:"status,omitempty" validate:"omitempty,oneof=todo in-progress done"`
}

type TodoResponse struct {
	Message string `json:"message"`
	Todo    Todo   `json:"todo"`
}

type TodoListResponse struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Todos   []Todo `json:"todos"`
}
