package entities

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrTaskNotFound       = errors.New("task not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrForbidden          = errors.New("access to task denied")
	ErrEmailAlreadyExists = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrValidation         = errors.New("validation failed")
	ErrNeighborNotFound   = errors.New("neighbor task not found in target column")
	ErrInvalidNeighbor    = errors.New("task cannot be placed relative to itself")
)

// TaskStatus is the kanban column a task belongs to.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "TODO"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusDone       TaskStatus = "DONE"
)

// ParseTaskStatus maps raw input onto a known column. Anything unrecognised
// lands in TODO.
func ParseTaskStatus(raw string) TaskStatus {
	switch TaskStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case TaskStatusInProgress:
		return TaskStatusInProgress
	case TaskStatusDone:
		return TaskStatusDone
	default:
		return TaskStatusTodo
	}
}

// UnmarshalJSON normalizes unknown values to TODO instead of failing.
func (s *TaskStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		*s = TaskStatusTodo
		return nil
	}
	*s = ParseTaskStatus(raw)
	return nil
}

// Scan implements sql.Scanner with the same normalization as JSON decoding.
func (s *TaskStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = ParseTaskStatus(v)
	case []byte:
		*s = ParseTaskStatus(string(v))
	case nil:
		*s = TaskStatusTodo
	default:
		return fmt.Errorf("cannot scan %T into TaskStatus", src)
	}
	return nil
}

// Value implements driver.Valuer.
func (s TaskStatus) Value() (driver.Value, error) {
	return string(ParseTaskStatus(string(s))), nil
}

// User represents a registered board user
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Deleted      bool      `json:"-" db:"deleted"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// IsEnabled reports whether the user may sign in.
func (u *User) IsEnabled() bool {
	return !u.Deleted
}

// Task represents a card on the board
type Task struct {
	ID          int64      `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	Description *string    `json:"description,omitempty" db:"description"`
	Status      TaskStatus `json:"status" db:"status"`
	Order       float64    `json:"order" db:"task_order"`
	OwnerID     uuid.UUID  `json:"ownerId" db:"owner_id"`
	CreatorName string     `json:"creatorName" db:"creator_name"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at"`
}

// IsOwnedBy reports whether userID owns the task.
func (t *Task) IsOwnedBy(userID uuid.UUID) bool {
	return t.OwnerID == userID
}

// Touch refreshes the modification timestamp.
func (t *Task) Touch(now time.Time) {
	t.UpdatedAt = now
}
