package board

import (
	"context"
	"sync"

	"github.com/taskflow/taskflow-go/internal/model"
)

// TaskCache holds the client's copy of the task list. Every write bumps a
// generation counter; a fetch only lands if no write happened since it began.
type TaskCache struct {
	mu     sync.Mutex
	tasks  []model.Todo
	loaded bool
	gen    uint64
	cancel context.CancelFunc
}

func NewTaskCache() *TaskCache {
	return &TaskCache{}
}

// Get returns a copy of the cached tasks.
func (c *TaskCache) Get() []model.Todo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneTasks(c.tasks)
}

// Loaded reports whether a fetch has completed at least once.
func (c *TaskCache) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Set replaces the cached tasks.
func (c *TaskCache) Set(tasks []model.Todo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = cloneTasks(tasks)
	c.loaded = true
	c.gen++
}

// Snapshot is Get under a name that reads better next to Restore.
func (c *TaskCache) Snapshot() []model.Todo {
	return c.Get()
}

// Restore puts back a snapshot taken earlier.
func (c *TaskCache) Restore(snapshot []model.Todo) {
	c.Set(snapshot)
}

// Update applies fn to a copy of the tasks and stores the result.
func (c *TaskCache) Update(fn func([]model.Todo) []model.Todo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = fn(cloneTasks(c.tasks))
	c.gen++
}

// CancelFetch aborts any in-flight fetch and makes sure its result is
// dropped even if it arrives anyway.
func (c *TaskCache) CancelFetch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
}

// beginFetch supersedes any running fetch.
func (c *TaskCache) beginFetch(parent context.Context) (context.Context, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel
	c.gen++
	return ctx, c.gen
}

// commitFetch stores tasks if gen is still current.
func (c *TaskCache) commitFetch(gen uint64, tasks []model.Todo) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	c.tasks = cloneTasks(tasks)
	c.loaded = true
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	return true
}

// endFetch releases the fetch context when the fetch did not commit.
func (c *TaskCache) endFetch(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.gen && c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func cloneTasks(tasks []model.Todo) []model.Todo {
	if tasks == nil {
		return nil
	}
	out := make([]model.Todo, len(tasks))
	for i, t := range tasks {
		out[i] = t
		if t.Deadline != nil {
			d := *t.Deadline
			out[i].Deadline = &d
		}
		if t.CompletedAt != nil {
			ca := *t.CompletedAt
			out[i].CompletedAt = &ca
		}
	}
	return out
}
