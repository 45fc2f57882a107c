package ports

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kanbanboard/core/internal/domain/entities"
)

// AuthService interface for authentication operations
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	ValidateToken(tokenString string) (*Claims, error)
}

// TaskService interface for board operations. requesterID always comes from
// the validated token.
type TaskService interface {
	ListTasks(ctx context.Context, requesterID uuid.UUID) ([]TaskResponse, error)
	GetTask(ctx context.Context, requesterID uuid.UUID, taskID int64) (*TaskResponse, error)
	CreateTask(ctx context.Context, requesterID uuid.UUID, req CreateTaskRequest) (*TaskResponse, error)
	UpdateTask(ctx context.Context, requesterID uuid.UUID, taskID int64, req UpdateTaskRequest) (*TaskResponse, error)
	MoveTask(ctx context.Context, requesterID uuid.UUID, taskID int64, req MoveTaskRequest) (*TaskResponse, error)
	DeleteTask(ctx context.Context, requesterID uuid.UUID, taskID int64) error
}

// Request/Response Types

// Auth related types
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=4,max=72"`
}

// Normalize trims the name and email. Email case is preserved; addresses
// are unique exactly as stored.
func (r *RegisterRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Normalize trims the email the same way registration does.
func (r *LoginRequest) Normalize() {
	r.Email = strings.TrimSpace(r.Email)
}

type AuthResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Claims is the identity carried by a validated bearer token
type Claims struct {
	UserID uuid.UUID
	Email  string
	Name   string
}

// Task related types
type CreateTaskRequest struct {
	Title       string  `json:"title" validate:"required,max=255"`
	Description *string `json:"description"`
}

// UpdateTaskRequest is a partial update: nil fields are left unchanged.
type UpdateTaskRequest struct {
	Title       *string              `json:"title" validate:"omitempty,max=255"`
	Description *string              `json:"description"`
	Status      *entities.TaskStatus `json:"status"`
	Order       *float64             `json:"order"`
}

// MoveTaskRequest asks the server to place a task in a column. BeforeID is
// the card it is dropped in front of; nil appends to the column.
type MoveTaskRequest struct {
	Status   entities.TaskStatus `json:"status"`
	BeforeID *int64              `json:"beforeId"`
}

type TaskResponse struct {
	ID          int64               `json:"id"`
	Title       string              `json:"title"`
	Description *string             `json:"description,omitempty"`
	Status      entities.TaskStatus `json:"status"`
	Order       float64             `json:"order"`
	CreatorName string              `json:"creatorName"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// NewTaskResponse maps a task entity onto its wire representation.
func NewTaskResponse(task *entities.Task) TaskResponse {
	return TaskResponse{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      entities.ParseTaskStatus(string(task.Status)),
		Order:       task.Order,
		CreatorName: task.CreatorName,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}
