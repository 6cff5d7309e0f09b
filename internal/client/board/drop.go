package board

import (
	"strconv"

	"github.com/taskflow/taskflow-go/internal/model"
)

// ResolveDrop works out the status a dragged task should move to. overID is
// either a column (a status) or another task, in which case that task's
// current status wins. It returns false when nothing should happen: the drop
// missed every target, either id is unknown, or the status would not change.
func ResolveDrop(tasks []model.Todo, activeID, overID string) (string, bool) {
	if overID == "" {
		return "", false
	}

	status := overID
	if !model.IsStatus(overID) {
		over, ok := findTask(tasks, overID)
		if !ok {
			return "", false
		}
		status = over.Status
	}

	active, ok := findTask(tasks, activeID)
	if !ok || active.Status == status {
		return "", false
	}
	return status, true
}

func findTask(tasks []model.Todo, id string) (model.Todo, bool) {
	for _, t := range tasks {
		if strconv.FormatInt(t.ID, 10) == id {
			return t, true
		}
	}
	return model.Todo{}, false
}
