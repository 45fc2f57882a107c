package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kanbanboard/core/internal/domain/entities"
	"github.com/kanbanboard/core/internal/domain/ordering"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error)
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// TaskRepository defines the interface for task data operations
type TaskRepository interface {
	Create(ctx context.Context, task *entities.Task) error
	GetByID(ctx context.Context, id int64) (*entities.Task, error)
	// GetByIDForUpdate reads the task and locks its row until the
	// surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id int64) (*entities.Task, error)
	Update(ctx context.Context, task *entities.Task) error
	Delete(ctx context.Context, id int64) error
	// ListByOwner returns every task of the owner ascending by order.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]entities.Task, error)
	// ListColumnForUpdate returns one column of the owner's board, ascending
	// by order, with its rows locked.
	ListColumnForUpdate(ctx context.Context, ownerID uuid.UUID, status entities.TaskStatus) ([]entities.Task, error)
	UpdateOrders(ctx context.Context, assignments []ordering.Assignment, updatedAt time.Time) error
}

// Repositories groups the repositories bound to one unit of work.
type Repositories struct {
	Users UserRepository
	Tasks TaskRepository
}

// TxManager runs fn inside a single database transaction. The transaction is
// committed when fn returns nil and rolled back otherwise.
type TxManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// TaskCache caches an owner's flat task list. GetTasks also returns the
// owner's cache version; SetTasks must be given the version read before the
// list was loaded and drops the write if Invalidate ran since.
type TaskCache interface {
	GetTasks(ctx context.Context, ownerID uuid.UUID) (tasks []entities.Task, version int64, ok bool)
	SetTasks(ctx context.Context, ownerID uuid.UUID, version int64, tasks []entities.Task) bool
	Invalidate(ctx context.Context, ownerID uuid.UUID)
}
