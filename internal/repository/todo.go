package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/taskflow/taskflow-go/internal/model"
)

const todoColumns = `id, user_id, title, description, priority, status,
	deadline, completed_at, created_at, updated_at`

// TodoRepository handles task persistence. Every query is scoped to the owner.
type TodoRepository struct {
	db  *sqlx.DB
	ids *IDGenerator
}

// NewTodoRepository creates a new TodoRepository.
func NewTodoRepository(db *sqlx.DB, ids *IDGenerator) *TodoRepository {
	return &TodoRepository{db: db, ids: ids}
}

// Create inserts a new task and sets its ID and timestamps.
func (r *TodoRepository) Create(ctx context.Context, todo *model.Todo) error {
	todo.ID = r.ids.Next()
	todo.CreatedAt = now()
	todo.UpdatedAt = todo.CreatedAt

	query := r.db.Rebind(`INSERT INTO todos (` + todoColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		todo.ID, todo.UserID, todo.Title, todo.Description, todo.Priority, todo.Status,
		todo.Deadline, todo.CompletedAt, todo.CreatedAt, todo.UpdatedAt,
	)
	return err
}

// GetByID retrieves a task by ID. A task owned by someone else is reported as not found.
func (r *TodoRepository) GetByID(ctx context.Context, userID, id int64) (*model.Todo, error) {
	query := r.db.Rebind(`SELECT ` + todoColumns + ` FROM todos WHERE id = ? AND user_id = ?`)

	todo := &model.Todo{}
	if err := r.db.GetContext(ctx, todo, query, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTodoNotFound
		}
		return nil, err
	}
	return todo, nil
}

// ListByUser retrieves all tasks for a user, newest first.
func (r *TodoRepository) ListByUser(ctx context.Context, userID int64) ([]model.Todo, error) {
	query := r.db.Rebind(`SELECT ` + todoColumns + ` FROM todos
		WHERE user_id = ? ORDER BY created_at DESC, id DESC`)

	todos := []model.Todo{}
	if err := r.db.SelectContext(ctx, &todos, query, userID); err != nil {
		return nil, err
	}
	return todos, nil
}

// Update saves every mutable field of the task.
func (r *TodoRepository) Update(ctx context.Context, todo *model.Todo) error {
	todo.UpdatedAt = now()
	query := r.db.Rebind(`UPDATE todos SET title = ?, description = ?, priority = ?, status = ?,
		deadline = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`)

	result, err := r.db.ExecContext(ctx, query,
		todo.Title, todo.Description, todo.Priority, todo.Status,
		todo.Deadline, todo.CompletedAt, todo.UpdatedAt, todo.ID, todo.UserID,
	)
	if err != nil {
		return err
	}
	return requireRow(result, ErrTodoNotFound)
}

// Delete removes a task permanently.
func (r *TodoRepository) Delete(ctx context.Context, userID, id int64) error {
	query := r.db.Rebind(`DELETE FROM todos WHERE id = ? AND user_id = ?`)
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}
	return requireRow(result, ErrTodoNotFound)
}
