package board

import (
	"math"
	"strings"

	"github.com/taskflow/taskflow-go/internal/model"
)

// Stats summarises a task list.
type Stats struct {
	Total   int
	Done    int
	Pending int
	// Percent is the share of done tasks, rounded to a whole number.
	Percent int
}

func Summarize(tasks []model.Todo) Stats {
	s := Stats{Total: len(tasks)}
	for _, t := range tasks {
		if t.Status == model.StatusDone {
			s.Done++
		}
	}
	s.Pending = s.Total - s.Done
	if s.Total > 0 {
		s.Percent = int(math.Round(float64(s.Done) / float64(s.Total) * 100))
	}
	return s
}

// Column is one lane of the kanban board.
type Column struct {
	Status string
	Label  string
	Tasks  []model.Todo
}

var columnLabels = map[string]string{
	model.StatusTodo:       "To Do",
	model.StatusInProgress: "In Progress",
	model.StatusDone:       "Completed",
}

// Columns groups tasks by status in board order. A non-empty search keeps
// only tasks whose title contains it, ignoring case.
func Columns(tasks []model.Todo, search string) []Column {
	search = strings.ToLower(search)
	cols := make([]Column, 0, len(model.Statuses))
	for _, status := range model.Statuses {
		col := Column{Status: status, Label: columnLabels[status], Tasks: []model.Todo{}}
		for _, t := range tasks {
			if t.Status == status && strings.Contains(strings.ToLower(t.Title), search) {
				col.Tasks = append(col.Tasks, t)
			}
		}
		cols = append(cols, col)
	}
	return cols
}
