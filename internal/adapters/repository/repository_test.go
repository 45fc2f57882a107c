package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanbanboard/core/internal/domain/entities"
	"github.com/kanbanboard/core/internal/domain/ordering"
	"github.com/kanbanboard/core/internal/infrastructure/database"
	"github.com/kanbanboard/core/internal/ports"
)

var taskRowColumns = []string{"id", "title", "description", "status", "task_order", "owner_id", "creator_name", "created_at", "updated_at"}

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestUserCreateMapsUniqueViolation(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: uniqueViolation})

	err := repo.Create(context.Background(), &entities.User{Name: "Kim", Email: "kim@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, entities.ErrEmailAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreateAssignsID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(sqlmock.AnyArg(), "Kim", "kim@example.com", "hash", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	user := &entities.User{Name: "Kim", Email: "kim@example.com", PasswordHash: "hash", CreatedAt: time.Now()}
	require.NoError(t, repo.Create(context.Background(), user))
	assert.NotEqual(t, uuid.Nil, user.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserGetByEmail(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
		WithArgs("kim@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "password_hash", "deleted", "created_at"}).
			AddRow(id.String(), "Kim", "kim@example.com", "hash", false, time.Now()))

	user, err := repo.GetByEmail(context.Background(), "kim@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, "Kim", user.Name)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, entities.ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserExistsByEmail(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("kim@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsByEmail(context.Background(), "kim@example.com")
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskCreateReturnsID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskRepository(db)
	owner := uuid.New()
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO tasks")).
		WithArgs("Write spec", nil, "TODO", 1000.0, owner.String(), now, now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	task := &entities.Task{Title: "Write spec", Status: entities.TaskStatusTodo, Order: 1000, OwnerID: owner, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.Create(context.Background(), task))
	assert.Equal(t, int64(42), task.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskGetByIDNormalizesStatus(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskRepository(db)
	owner := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE t.id = $1 FOR UPDATE OF t")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(taskRowColumns).
			AddRow(int64(7), "Legacy", nil, "ARCHIVED", 1500.0, owner.String(), "Kim", time.Now(), time.Now()))

	task, err := repo.GetByIDForUpdate(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, entities.TaskStatusTodo, task.Status)
	assert.Equal(t, owner, task.OwnerID)
	assert.Equal(t, "Kim", task.CreatorName)
	assert.Nil(t, task.Description)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskGetByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE t.id = $1")).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(taskRowColumns))

	_, err := repo.GetByID(context.Background(), 9)
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskUpdateAndDeleteReportMissingRows(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks")).WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Update(context.Background(), &entities.Task{ID: 3, Title: "x", Status: entities.TaskStatusDone})
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tasks")).WithArgs(int64(3)).WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.Delete(context.Background(), 3)
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tasks")).WithArgs(int64(4)).WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.Delete(context.Background(), 4))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskListByOwnerOrdersAscending(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskRepository(db)
	owner := uuid.New()
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY t.task_order ASC, t.id ASC")).
		WithArgs(owner.String()).
		WillReturnRows(sqlmock.NewRows(taskRowColumns).
			AddRow(int64(1), "A", nil, "TODO", 1000.0, owner.String(), "Kim", now, now).
			AddRow(int64(2), "B", "notes", "DONE", 2000.0, owner.String(), "Kim", now, now))

	tasks, err := repo.ListByOwner(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "A", tasks[0].Title)
	require.NotNil(t, tasks[1].Description)
	assert.Equal(t, "notes", *tasks[1].Description)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskListColumnLocksRows(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskRepository(db)
	owner := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("ELSE 'TODO' END = $2")).
		WithArgs(owner.String(), "IN_PROGRESS").
		WillReturnRows(sqlmock.NewRows(taskRowColumns))

	tasks, err := repo.ListColumnForUpdate(context.Background(), owner, entities.TaskStatusInProgress)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskUpdateOrders(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskRepository(db)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks SET task_order")).WithArgs(int64(1), 1000.0, now).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks SET task_order")).WithArgs(int64(2), 2000.0, now).WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateOrders(context.Background(), []ordering.Assignment{{TaskID: 1, Order: 1000}, {TaskID: 2, Order: 2000}}, now)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCommitsAndRollsBack(t *testing.T) {
	db, mock := newMock(t)
	store := NewStore(database.Wrap(db))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tasks")).WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithinTransaction(context.Background(), func(ctx context.Context, repos ports.Repositories) error {
		return repos.Tasks.Delete(ctx, 1)
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()

	err = store.WithinTransaction(context.Background(), func(ctx context.Context, repos ports.Repositories) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}
