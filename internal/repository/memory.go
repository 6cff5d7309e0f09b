package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/taskflow/taskflow-go/internal/model"
)

// MemoryUserRepository keeps users in process memory. It enforces the same
// unique email and username rules as the SQL schema and is used for
// DB_DRIVER=memory and in tests.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	ids   *IDGenerator
	users map[int64]model.User
}

// NewMemoryUserRepository creates an empty in-memory user store.
func NewMemoryUserRepository(ids *IDGenerator) *MemoryUserRepository {
	return &MemoryUserRepository{ids: ids, users: make(map[int64]model.User)}
}

func (r *MemoryUserRepository) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkUniqueLocked(user); err != nil {
		return err
	}
	user.ID = r.ids.Next()
	user.CreatedAt = now()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = cloneUser(*user)
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id int64) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	c := cloneUser(u)
	return &c, nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.Email == email })
}

func (r *MemoryUserRepository) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.Username == username })
}

func (r *MemoryUserRepository) GetByResetTokenHash(_ context.Context, digest string, at time.Time) (*model.User, error) {
	return r.find(func(u *model.User) bool {
		return u.ResetTokenHash != nil && *u.ResetTokenHash == digest &&
			u.ResetExpiresAt != nil && u.ResetExpiresAt.After(at)
	})
}

func (r *MemoryUserRepository) Update(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[user.ID]
	if !ok {
		return ErrUserNotFound
	}
	if err := r.checkUniqueLocked(user); err != nil {
		return err
	}
	user.UpdatedAt = now()

	stored.FirstName = user.FirstName
	stored.LastName = user.LastName
	stored.Username = user.Username
	stored.PasswordHash = user.PasswordHash
	stored.ResetTokenHash = user.ResetTokenHash
	stored.ResetExpiresAt = user.ResetExpiresAt
	stored.UpdatedAt = user.UpdatedAt
	r.users[user.ID] = cloneUser(stored)
	return nil
}

func (r *MemoryUserRepository) SetRefreshToken(_ context.Context, id int64, token *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		if token == nil {
			return nil
		}
		return ErrUserNotFound
	}
	u.RefreshToken = copyString(token)
	u.UpdatedAt = now()
	r.users[id] = u
	return nil
}

func (r *MemoryUserRepository) find(match func(*model.User) bool) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if match(&u) {
			c := cloneUser(u)
			return &c, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *MemoryUserRepository) checkUniqueLocked(user *model.User) error {
	for id, u := range r.users {
		if id == user.ID {
			continue
		}
		if u.Email == user.Email {
			return ErrDuplicateEmail
		}
		if u.Username == user.Username {
			return ErrDuplicateUsername
		}
	}
	return nil
}

// MemoryTodoRepository keeps tasks in process memory.
type MemoryTodoRepository struct {
	mu    sync.RWMutex
	ids   *IDGenerator
	todos map[int64]model.Todo
}

// NewMemoryTodoRepository creates an empty in-memory task store.
func NewMemoryTodoRepository(ids *IDGenerator) *MemoryTodoRepository {
	return &MemoryTodoRepository{ids: ids, todos: make(map[int64]model.Todo)}
}

func (r *MemoryTodoRepository) Create(_ context.Context, todo *model.Todo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	todo.ID = r.ids.Next()
	todo.CreatedAt = now()
	todo.UpdatedAt = todo.CreatedAt
	r.todos[todo.ID] = cloneTodo(*todo)
	return nil
}

func (r *MemoryTodoRepository) GetByID(_ context.Context, userID, id int64) (*model.Todo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.todos[id]
	if !ok || t.UserID != userID {
		return nil, ErrTodoNotFound
	}
	c := cloneTodo(t)
	return &c, nil
}

func (r *MemoryTodoRepository) ListByUser(_ context.Context, userID int64) ([]model.Todo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	todos := []model.Todo{}
	for _, t := range r.todos {
		if t.UserID == userID {
			todos = append(todos, cloneTodo(t))
		}
	}
	sort.Slice(todos, func(i, j int) bool {
		if !todos[i].CreatedAt.Equal(todos[j].CreatedAt) {
			return todos[i].CreatedAt.After(todos[j].CreatedAt)
		}
		return todos[i].ID > todos[j].ID
	})
	return todos, nil
}

func (r *MemoryTodoRepository) Update(_ context.Context, todo *model.Todo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.todos[todo.ID]
	if !ok || stored.UserID != todo.UserID {
		return ErrTodoNotFound
	}
	todo.CreatedAt = stored.CreatedAt
	todo.UpdatedAt = now()
	r.todos[todo.ID] = cloneTodo(*todo)
	return nil
}

func (r *MemoryTodoRepository) Delete(_ context.Context, userID, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.todos[id]
	if !ok || t.UserID != userID {
		return ErrTodoNotFound
	}
	delete(r.todos, id)
	return nil
}

func cloneUser(u model.User) model.User {
	u.RefreshToken = copyString(u.RefreshToken)
	u.ResetTokenHash = copyString(u.ResetTokenHash)
	u.ResetExpiresAt = copyTime(u.ResetExpiresAt)
	return u
}

func cloneTodo(t model.Todo) model.Todo {
	t.Deadline = copyTime(t.Deadline)
	t.CompletedAt = copyTime(t.CompletedAt)
	return t
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
