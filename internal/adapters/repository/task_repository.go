package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kanbanboard/core/internal/domain/entities"
	"github.com/kanbanboard/core/internal/domain/ordering"
	"github.com/kanbanboard/core/internal/ports"
)

const taskColumns = `
		SELECT t.id, t.title, t.description, t.status, t.task_order, t.owner_id,
			u.name AS creator_name, t.created_at, t.updated_at
		FROM tasks t
		JOIN users u ON u.id = t.owner_id`

// Rows with an unknown status belong to the TODO column.
const normalizedStatus = `CASE WHEN t.status IN ('IN_PROGRESS', 'DONE') THEN t.status ELSE 'TODO' END`

// TaskRepositoryImpl implements the TaskRepository interface
type TaskRepositoryImpl struct {
	db sqlx.ExtContext
}

// NewTaskRepository creates a task repository on a pool or a transaction
func NewTaskRepository(db sqlx.ExtContext) ports.TaskRepository {
	return &TaskRepositoryImpl{db: db}
}

func (r *TaskRepositoryImpl) Create(ctx context.Context, task *entities.Task) error {
	query := `
		INSERT INTO tasks (title, description, status, task_order, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := r.db.QueryRowxContext(ctx, query,
		task.Title, task.Description, task.Status, task.Order,
		task.OwnerID, task.CreatedAt, task.UpdatedAt,
	).Scan(&task.ID)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	return nil
}

func (r *TaskRepositoryImpl) GetByID(ctx context.Context, id int64) (*entities.Task, error) {
	return r.get(ctx, taskColumns+` WHERE t.id = $1`, id)
}

func (r *TaskRepositoryImpl) GetByIDForUpdate(ctx context.Context, id int64) (*entities.Task, error) {
	return r.get(ctx, taskColumns+` WHERE t.id = $1 FOR UPDATE OF t`, id)
}

func (r *TaskRepositoryImpl) get(ctx context.Context, query string, id int64) (*entities.Task, error) {
	var task entities.Task
	err := sqlx.GetContext(ctx, r.db, &task, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task by id: %w", err)
	}

	return &task, nil
}

func (r *TaskRepositoryImpl) Update(ctx context.Context, task *entities.Task) error {
	query := `
		UPDATE tasks
		SET title = $2, description = $3, status = $4, task_order = $5, updated_at = $6
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		task.ID, task.Title, task.Description, task.Status, task.Order, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	return expectRow(result)
}

func (r *TaskRepositoryImpl) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	return expectRow(result)
}

func (r *TaskRepositoryImpl) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]entities.Task, error) {
	query := taskColumns + `
		WHERE t.owner_id = $1
		ORDER BY t.task_order ASC, t.id ASC`

	tasks := []entities.Task{}
	if err := sqlx.SelectContext(ctx, r.db, &tasks, query, ownerID); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	return tasks, nil
}

func (r *TaskRepositoryImpl) ListColumnForUpdate(ctx context.Context, ownerID uuid.UUID, status entities.TaskStatus) ([]entities.Task, error) {
	query := taskColumns + `
		WHERE t.owner_id = $1 AND ` + normalizedStatus + ` = $2
		ORDER BY t.task_order ASC, t.id ASC
		FOR UPDATE OF t`

	tasks := []entities.Task{}
	if err := sqlx.SelectContext(ctx, r.db, &tasks, query, ownerID, status); err != nil {
		return nil, fmt.Errorf("list column: %w", err)
	}

	return tasks, nil
}

func (r *TaskRepositoryImpl) UpdateOrders(ctx context.Context, assignments []ordering.Assignment, updatedAt time.Time) error {
	query := `UPDATE tasks SET task_order = $2, updated_at = $3 WHERE id = $1`

	for _, a := range assignments {
		if _, err := r.db.ExecContext(ctx, query, a.TaskID, a.Order, updatedAt); err != nil {
			return fmt.Errorf("renumber task %d: %w", a.TaskID, err)
		}
	}

	return nil
}

func expectRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return entities.ErrTaskNotFound
	}

	return nil
}
