package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kanbanboard/core/internal/domain/entities"
	"github.com/kanbanboard/core/internal/domain/ordering"
	"github.com/kanbanboard/core/internal/infrastructure/logger"
	"github.com/kanbanboard/core/internal/infrastructure/metrics"
	"github.com/kanbanboard/core/internal/ports"
)

const maxTitleLength = 255

// TaskService handles board operations for the authenticated user
type TaskService struct {
	tx      ports.TxManager
	cache   ports.TaskCache
	metrics *metrics.Metrics
	tracer  trace.Tracer
	logger  *logger.Logger
	now     func() time.Time
}

// NewTaskService creates a new task service. cache and m may be nil.
func NewTaskService(tx ports.TxManager, cache ports.TaskCache, m *metrics.Metrics, logger *logger.Logger) *TaskService {
	return &TaskService{
		tx:      tx,
		cache:   cache,
		metrics: m,
		tracer:  otel.Tracer("github.com/kanbanboard/core/internal/application/services"),
		logger:  logger.WithComponent("tasks"),
		now:     time.Now,
	}
}

// ListTasks returns every task owned by the requester, ascending by order
func (s *TaskService) ListTasks(ctx context.Context, requesterID uuid.UUID) (result []ports.TaskResponse, err error) {
	ctx, span := s.startSpan(ctx, "tasks.list", requesterID)
	defer func() { endSpan(span, err) }()

	var (
		tasks   []entities.Task
		cached  bool
		version int64 = -1
	)
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context, repos ports.Repositories) error {
		if _, err := repos.Users.GetByID(ctx, requesterID); err != nil {
			return err
		}

		// The version must be read before the tasks so a concurrent
		// mutation's eviction wins over this snapshot.
		if s.cache != nil {
			tasks, version, cached = s.cache.GetTasks(ctx, requesterID)
			if cached {
				return nil
			}
		}

		var err error
		tasks, err = repos.Tasks.ListByOwner(ctx, requesterID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !cached && s.cache != nil {
		s.cache.SetTasks(ctx, requesterID, version, tasks)
	}
	span.SetAttributes(attribute.Int("task.count", len(tasks)), attribute.Bool("cache.hit", cached))

	ordering.Sort(tasks)
	result = make([]ports.TaskResponse, 0, len(tasks))
	for i := range tasks {
		result = append(result, ports.NewTaskResponse(&tasks[i]))
	}
	return result, nil
}

// GetTask returns a single task owned by the requester
func (s *TaskService) GetTask(ctx context.Context, requesterID uuid.UUID, taskID int64) (resp *ports.TaskResponse, err error) {
	ctx, span := s.startSpan(ctx, "tasks.get", requesterID, attribute.Int64("task.id", taskID))
	defer func() { endSpan(span, err) }()

	var task *entities.Task
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context, repos ports.Repositories) error {
		var err error
		task, err = repos.Tasks.GetByID(ctx, taskID)
		if err != nil {
			return err
		}
		return s.authorize(task, requesterID, "get")
	})
	if err != nil {
		return nil, err
	}

	out := ports.NewTaskResponse(task)
	return &out, nil
}

// CreateTask adds a task to the requester's TODO column
func (s *TaskService) CreateTask(ctx context.Context, requesterID uuid.UUID, req ports.CreateTaskRequest) (resp *ports.TaskResponse, err error) {
	ctx, span := s.startSpan(ctx, "tasks.create", requesterID)
	defer func() { endSpan(span, err) }()

	if err := validateTitle(req.Title); err != nil {
		return nil, err
	}

	now := s.now()
	task := &entities.Task{
		Title:       req.Title,
		Description: req.Description,
		Status:      entities.TaskStatusTodo,
		Order:       float64(now.UnixMilli()),
		OwnerID:     requesterID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context, repos ports.Repositories) error {
		owner, err := repos.Users.GetByID(ctx, requesterID)
		if err != nil {
			return err
		}
		task.CreatorName = owner.Name
		return repos.Tasks.Create(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	s.mutated(ctx, requesterID, "create", task.ID, nil)

	out := ports.NewTaskResponse(task)
	return &out, nil
}

// UpdateTask applies the fields present in req to a task owned by the
// requester. The ordering is taken as supplied by the client.
func (s *TaskService) UpdateTask(ctx context.Context, requesterID uuid.UUID, taskID int64, req ports.UpdateTaskRequest) (resp *ports.TaskResponse, err error) {
	ctx, span := s.startSpan(ctx, "tasks.update", requesterID, attribute.Int64("task.id", taskID))
	defer func() { endSpan(span, err) }()

	if req.Title != nil {
		if err := validateTitle(*req.Title); err != nil {
			return nil, err
		}
	}
	if req.Order != nil && (math.IsNaN(*req.Order) || math.IsInf(*req.Order, 0)) {
		return nil, fmt.Errorf("%w: order must be a finite number", entities.ErrValidation)
	}

	var task *entities.Task
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context, repos ports.Repositories) error {
		var err error
		task, err = repos.Tasks.GetByIDForUpdate(ctx, taskID)
		if err != nil {
			return err
		}
		if err := s.authorize(task, requesterID, "update"); err != nil {
			return err
		}

		if req.Title != nil {
			task.Title = *req.Title
		}
		if req.Description != nil {
			task.Description = req.Description
		}
		if req.Status != nil {
			task.Status = entities.ParseTaskStatus(string(*req.Status))
		}
		if req.Order != nil {
			task.Order = *req.Order
		}
		task.Touch(s.now())

		return repos.Tasks.Update(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	s.mutated(ctx, requesterID, "update", taskID, map[string]interface{}{
		"status": task.Status,
		"order":  task.Order,
	})

	out := ports.NewTaskResponse(task)
	return &out, nil
}

// MoveTask places a task in a column in front of req.BeforeID, or at the end
// of the column when BeforeID is nil. The column is renumbered when the gap
// between the neighbours has run out.
func (s *TaskService) MoveTask(ctx context.Context, requesterID uuid.UUID, taskID int64, req ports.MoveTaskRequest) (resp *ports.TaskResponse, err error) {
	ctx, span := s.startSpan(ctx, "tasks.move", requesterID, attribute.Int64("task.id", taskID))
	defer func() { endSpan(span, err) }()

	move := ordering.Move{
		TaskID:   taskID,
		BeforeID: req.BeforeID,
		Status:   entities.ParseTaskStatus(string(req.Status)),
	}

	var (
		task       *entities.Task
		rebalanced bool
	)
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context, repos ports.Repositories) error {
		var err error
		task, err = repos.Tasks.GetByIDForUpdate(ctx, taskID)
		if err != nil {
			return err
		}
		if err := s.authorize(task, requesterID, "move"); err != nil {
			return err
		}

		column, err := repos.Tasks.ListColumnForUpdate(ctx, requesterID, move.Status)
		if err != nil {
			return err
		}

		now := s.now()
		pos, err := ordering.ComputeNewPosition(column, move, now)
		if err != nil {
			return err
		}

		if pos.Exhausted {
			siblings := make([]entities.Task, 0, len(column))
			for _, t := range column {
				if t.ID != taskID {
					siblings = append(siblings, t)
				}
			}

			assignments := ordering.Rebalance(siblings)
			if err := repos.Tasks.UpdateOrders(ctx, assignments, now); err != nil {
				return err
			}
			ordering.Apply(siblings, assignments)
			rebalanced = true

			if pos, err = ordering.ComputeNewPosition(siblings, move, now); err != nil {
				return err
			}
		}

		task.Status = pos.Status
		task.Order = pos.Order
		task.Touch(now)

		return repos.Tasks.Update(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	if rebalanced {
		s.metrics.ColumnRebalanced()
		s.logger.Infow("Column renumbered", "user_id", requesterID, "status", move.Status)
	}
	span.SetAttributes(attribute.Bool("column.rebalanced", rebalanced))

	s.mutated(ctx, requesterID, "move", taskID, map[string]interface{}{
		"status":     task.Status,
		"order":      task.Order,
		"rebalanced": rebalanced,
	})

	out := ports.NewTaskResponse(task)
	return &out, nil
}

// DeleteTask permanently removes a task owned by the requester
func (s *TaskService) DeleteTask(ctx context.Context, requesterID uuid.UUID, taskID int64) (err error) {
	ctx, span := s.startSpan(ctx, "tasks.delete", requesterID, attribute.Int64("task.id", taskID))
	defer func() { endSpan(span, err) }()

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context, repos ports.Repositories) error {
		task, err := repos.Tasks.GetByIDForUpdate(ctx, taskID)
		if err != nil {
			return err
		}
		if err := s.authorize(task, requesterID, "delete"); err != nil {
			return err
		}
		return repos.Tasks.Delete(ctx, taskID)
	})
	if err != nil {
		return err
	}

	s.mutated(ctx, requesterID, "delete", taskID, nil)
	return nil
}

func (s *TaskService) authorize(task *entities.Task, requesterID uuid.UUID, action string) error {
	if task.IsOwnedBy(requesterID) {
		return nil
	}
	s.logger.LogSecurityEvent("task_access_denied", requesterID.String(), "", map[string]interface{}{
		"task_id": task.ID,
		"action":  action,
	})
	return entities.ErrForbidden
}

func (s *TaskService) mutated(ctx context.Context, requesterID uuid.UUID, op string, taskID int64, metadata map[string]interface{}) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, requesterID)
	}
	s.metrics.TaskMutation(op)
	s.logger.LogTaskAction(requesterID.String(), op, taskID, metadata)
}

func (s *TaskService) startSpan(ctx context.Context, name string, requesterID uuid.UUID, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("user.id", requesterID.String()))
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title must not be blank", entities.ErrValidation)
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return fmt.Errorf("%w: title must be at most %d characters", entities.ErrValidation, maxTitleLength)
	}
	return nil
}
