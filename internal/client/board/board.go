// Package board keeps the client's task list and applies task mutations
// optimistically: the cache changes first, the server is told second, and a
// failed call rolls the cache back to what it was.
package board

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/taskflow/taskflow-go/internal/model"
)

// ErrInvalidStatus is returned when a move targets an unknown column.
var ErrInvalidStatus = errors.New("board: invalid status")

// API is the slice of the TaskFlow API the board talks to.
type API interface {
	ListTodos(ctx context.Context) ([]model.Todo, error)
	CreateTodo(ctx context.Context, req model.CreateTodoRequest) (model.Todo, error)
	UpdateTodo(ctx context.Context, id int64, req model.UpdateTodoRequest) (model.Todo, error)
	DeleteTodo(ctx context.Context, id int64) error
}

// Board couples the task cache with the API.
type Board struct {
	api   API
	cache *TaskCache
	log   *zap.Logger

	refetches sync.WaitGroup
	// RefetchTimeout bounds background refetches.
	RefetchTimeout time.Duration
}

// New creates a Board with an empty cache.
func New(api API, log *zap.Logger) *Board {
	if log == nil {
		log = zap.NewNop()
	}
	return &Board{
		api:            api,
		cache:          NewTaskCache(),
		log:            log,
		RefetchTimeout: 15 * time.Second,
	}
}

func (b *Board) Cache() *TaskCache {
	return b.cache
}

// Tasks returns the cached tasks.
func (b *Board) Tasks() []model.Todo {
	return b.cache.Get()
}

// Refresh fetches the task list and stores it unless a write landed in the
// meantime.
func (b *Board) Refresh(ctx context.Context) error {
	fetchCtx, gen := b.cache.beginFetch(ctx)
	tasks, err := b.api.ListTodos(fetchCtx)
	if err != nil {
		b.cache.endFetch(gen)
		return err
	}
	if !b.cache.commitFetch(gen, tasks) {
		b.log.Debug("discarding superseded task fetch")
	}
	return nil
}

// Invalidate starts a background refetch and returns immediately.
func (b *Board) Invalidate() {
	b.refetches.Add(1)
	go func() {
		defer b.refetches.Done()
		ctx, cancel := context.WithTimeout(context.Background(), b.RefetchTimeout)
		defer cancel()
		if err := b.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
			b.log.Warn("background task refetch failed", zap.Error(err))
		}
	}()
}

// Wait blocks until background refetches have finished.
func (b *Board) Wait() {
	b.refetches.Wait()
}

// MoveTask changes a task's status.
func (b *Board) MoveTask(ctx context.Context, id int64, status string) error {
	if !model.IsStatus(status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return b.UpdateTask(ctx, id, model.UpdateTodoRequest{Status: &status})
}

// UpdateTask applies patch to the cached task at once, then sends it. On
// failure the cache is restored from the snapshot taken before the write.
// Either way a background refetch reconciles with the server.
func (b *Board) UpdateTask(ctx context.Context, id int64, patch model.UpdateTodoRequest) error {
	b.cache.CancelFetch()
	snapshot := b.cache.Snapshot()

	b.cache.Update(func(tasks []model.Todo) []model.Todo {
		for i := range tasks {
			if tasks[i].ID == id {
				applyPatch(&tasks[i], patch)
			}
		}
		return tasks
	})

	_, err := b.api.UpdateTodo(ctx, id, patch)
	if err != nil {
		b.cache.Restore(snapshot)
		b.log.Info("task update rolled back", zap.Int64("todo_id", id), zap.Error(err))
	}

	b.Invalidate()
	return err
}

// Create adds a task and refetches on success.
func (b *Board) Create(ctx context.Context, req model.CreateTodoRequest) (model.Todo, error) {
	todo, err := b.api.CreateTodo(ctx, req)
	if err != nil {
		return model.Todo{}, err
	}
	b.Invalidate()
	return todo, nil
}

// Delete removes a task and refetches on success.
func (b *Board) Delete(ctx context.Context, id int64) error {
	if err := b.api.DeleteTodo(ctx, id); err != nil {
		return err
	}
	b.Invalidate()
	return nil
}

// Drop handles a drag that ended over overID. It reports whether a move was
// issued.
func (b *Board) Drop(ctx context.Context, activeID, overID string) (bool, error) {
	status, ok := ResolveDrop(b.cache.Get(), activeID, overID)
	if !ok {
		return false, nil
	}
	id, err := strconv.ParseInt(activeID, 10, 64)
	if err != nil {
		return false, nil
	}
	return true, b.MoveTask(ctx, id, status)
}

func applyPatch(t *model.Todo, p model.UpdateTodoRequest) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Deadline != nil {
		if *p.Deadline == "" {
			t.Deadline = nil
		} else if d, ok := parseDeadline(*p.Deadline); ok {
			t.Deadline = &d
		}
	}
}

func parseDeadline(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
