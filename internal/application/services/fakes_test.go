package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kanbanboard/core/internal/domain/entities"
	"github.com/kanbanboard/core/internal/domain/ordering"
	"github.com/kanbanboard/core/internal/ports"
)

// memStore is an in-memory TxManager. A failed transaction restores the state
// it started from.
type memStore struct {
	mu     sync.Mutex
	users  map[uuid.UUID]entities.User
	tasks  map[int64]entities.Task
	nextID int64
	txs    int
}

func newMemStore() *memStore {
	return &memStore{
		users: make(map[uuid.UUID]entities.User),
		tasks: make(map[int64]entities.Task),
	}
}

func (m *memStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos ports.Repositories) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs++

	users := make(map[uuid.UUID]entities.User, len(m.users))
	for k, v := range m.users {
		users[k] = v
	}
	tasks := make(map[int64]entities.Task, len(m.tasks))
	for k, v := range m.tasks {
		tasks[k] = v
	}
	nextID := m.nextID

	err := fn(ctx, ports.Repositories{Users: &memUsers{m}, Tasks: &memTasks{m}})
	if err != nil {
		m.users, m.tasks, m.nextID = users, tasks, nextID
	}
	return err
}

func (m *memStore) addUser(name, email string) entities.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := entities.User{ID: uuid.New(), Name: name, Email: email, CreatedAt: time.Now()}
	m.users[u.ID] = u
	return u
}

func (m *memStore) addTask(owner entities.User, title string, status entities.TaskStatus, order float64) entities.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t := entities.Task{
		ID:          m.nextID,
		Title:       title,
		Status:      status,
		Order:       order,
		OwnerID:     owner.ID,
		CreatorName: owner.Name,
	}
	m.tasks[t.ID] = t
	return t
}

func (m *memStore) task(id int64) (entities.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	return t, ok
}

func (m *memStore) userCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

type memUsers struct{ s *memStore }

func (r *memUsers) Create(ctx context.Context, user *entities.User) error {
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return entities.ErrEmailAlreadyExists
		}
	}
	r.s.users[user.ID] = *user
	return nil
}

func (r *memUsers) GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	u, ok := r.s.users[id]
	if !ok || u.Deleted {
		return nil, entities.ErrUserNotFound
	}
	return &u, nil
}

func (r *memUsers) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	for _, u := range r.s.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, entities.ErrUserNotFound
}

func (r *memUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	return err == nil, nil
}

type memTasks struct{ s *memStore }

func (r *memTasks) Create(ctx context.Context, task *entities.Task) error {
	r.s.nextID++
	task.ID = r.s.nextID
	r.s.tasks[task.ID] = *task
	return nil
}

func (r *memTasks) GetByID(ctx context.Context, id int64) (*entities.Task, error) {
	t, ok := r.s.tasks[id]
	if !ok {
		return nil, entities.ErrTaskNotFound
	}
	return &t, nil
}

func (r *memTasks) GetByIDForUpdate(ctx context.Context, id int64) (*entities.Task, error) {
	return r.GetByID(ctx, id)
}

func (r *memTasks) Update(ctx context.Context, task *entities.Task) error {
	if _, ok := r.s.tasks[task.ID]; !ok {
		return entities.ErrTaskNotFound
	}
	r.s.tasks[task.ID] = *task
	return nil
}

func (r *memTasks) Delete(ctx context.Context, id int64) error {
	if _, ok := r.s.tasks[id]; !ok {
		return entities.ErrTaskNotFound
	}
	delete(r.s.tasks, id)
	return nil
}

func (r *memTasks) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]entities.Task, error) {
	out := []entities.Task{}
	for _, t := range r.s.tasks {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	ordering.Sort(out)
	return out, nil
}

func (r *memTasks) ListColumnForUpdate(ctx context.Context, ownerID uuid.UUID, status entities.TaskStatus) ([]entities.Task, error) {
	all, _ := r.ListByOwner(ctx, ownerID)
	out := []entities.Task{}
	for _, t := range all {
		if entities.ParseTaskStatus(string(t.Status)) == status {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *memTasks) UpdateOrders(ctx context.Context, assignments []ordering.Assignment, updatedAt time.Time) error {
	for _, a := range assignments {
		t, ok := r.s.tasks[a.TaskID]
		if !ok {
			return entities.ErrTaskNotFound
		}
		t.Order = a.Order
		t.UpdatedAt = updatedAt
		r.s.tasks[a.TaskID] = t
	}
	return nil
}

// memCache records cache traffic per owner and versions entries like the
// Redis cache does.
type memCache struct {
	entries     map[uuid.UUID][]entities.Task
	versions    map[uuid.UUID]int64
	invalidated int
	rejected    int
	beforeSet   func()
}

func newMemCache() *memCache {
	return &memCache{
		entries:  make(map[uuid.UUID][]entities.Task),
		versions: make(map[uuid.UUID]int64),
	}
}

func (c *memCache) GetTasks(ctx context.Context, ownerID uuid.UUID) ([]entities.Task, int64, bool) {
	tasks, ok := c.entries[ownerID]
	return append([]entities.Task(nil), tasks...), c.versions[ownerID], ok
}

func (c *memCache) SetTasks(ctx context.Context, ownerID uuid.UUID, version int64, tasks []entities.Task) bool {
	if hook := c.beforeSet; hook != nil {
		c.beforeSet = nil
		hook()
	}
	if c.versions[ownerID] != version {
		c.rejected++
		return false
	}
	c.entries[ownerID] = append([]entities.Task(nil), tasks...)
	return true
}

func (c *memCache) Invalidate(ctx context.Context, ownerID uuid.UUID) {
	c.invalidated++
	c.versions[ownerID]++
	delete(c.entries, ownerID)
}
