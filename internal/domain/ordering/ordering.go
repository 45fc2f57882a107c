// Package ordering places tasks within a kanban column using fractional
// indexes. A dropped card gets an order value between its new neighbours, so
// no other card in the column has to be renumbered.
package ordering

import (
	"sort"
	"time"

	"github.com/kanbanboard/core/internal/domain/entities"
)

const (
	// Gap is the margin left before the head or after the tail of a column.
	Gap = 1000.0

	// MinGap is the smallest neighbour distance considered safe for another
	// midpoint insertion.
	MinGap = 1e-6
)

// Move describes a drag-and-drop outcome.
type Move struct {
	TaskID int64
	// BeforeID is the task the moved card is dropped immediately before.
	// Nil appends to the end of the column.
	BeforeID *int64
	Status   entities.TaskStatus
}

// Position is the (status, order) pair to persist for the moved task.
type Position struct {
	Status entities.TaskStatus
	Order  float64
	// Exhausted is set when the neighbours are too close for the midpoint to
	// be trusted. Callers should Rebalance the column and compute again.
	Exhausted bool
}

// Assignment is a new order value for an existing task.
type Assignment struct {
	TaskID int64
	Order  float64
}

// Sort orders tasks ascending by order, breaking ties by id.
func Sort(tasks []entities.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Order != tasks[j].Order {
			return tasks[i].Order < tasks[j].Order
		}
		return tasks[i].ID < tasks[j].ID
	})
}

// ComputeNewPosition returns where move.TaskID should land in column, the
// current contents of the destination column. The moved task is ignored if it
// is still present in column. now seeds the order of an empty column.
func ComputeNewPosition(column []entities.Task, move Move, now time.Time) (Position, error) {
	status := entities.ParseTaskStatus(string(move.Status))

	if move.BeforeID != nil && *move.BeforeID == move.TaskID {
		return Position{}, entities.ErrInvalidNeighbor
	}

	siblings := withoutTask(column, move.TaskID)
	Sort(siblings)

	if len(siblings) == 0 {
		if move.BeforeID != nil {
			return Position{}, entities.ErrNeighborNotFound
		}
		return Position{Status: status, Order: float64(now.UnixMilli())}, nil
	}

	if move.BeforeID == nil {
		last := siblings[len(siblings)-1].Order
		order := last + Gap
		return Position{Status: status, Order: order, Exhausted: order <= last}, nil
	}

	idx := indexOf(siblings, *move.BeforeID)
	if idx < 0 {
		return Position{}, entities.ErrNeighborNotFound
	}

	if idx == 0 {
		first := siblings[0].Order
		order := first - Gap
		return Position{Status: status, Order: order, Exhausted: order >= first}, nil
	}

	lo, hi := siblings[idx-1].Order, siblings[idx].Order
	order := (lo + hi) / 2
	exhausted := hi-lo < MinGap || order <= lo || order >= hi

	return Position{Status: status, Order: order, Exhausted: exhausted}, nil
}

// Rebalance spreads the column evenly as Gap, 2*Gap, ... keeping the current
// relative order.
func Rebalance(column []entities.Task) []Assignment {
	sorted := append([]entities.Task(nil), column...)
	Sort(sorted)

	assignments := make([]Assignment, len(sorted))
	for i, task := range sorted {
		assignments[i] = Assignment{TaskID: task.ID, Order: Gap * float64(i+1)}
	}
	return assignments
}

// Apply writes assignments back onto the matching tasks in column.
func Apply(column []entities.Task, assignments []Assignment) {
	byID := make(map[int64]float64, len(assignments))
	for _, a := range assignments {
		byID[a.TaskID] = a.Order
	}
	for i := range column {
		if order, ok := byID[column[i].ID]; ok {
			column[i].Order = order
		}
	}
}

func withoutTask(column []entities.Task, taskID int64) []entities.Task {
	out := make([]entities.Task, 0, len(column))
	for _, t := range column {
		if t.ID != taskID {
			out = append(out, t)
		}
	}
	return out
}

func indexOf(tasks []entities.Task, id int64) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}
