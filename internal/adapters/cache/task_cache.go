package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kanbanboard/core/internal/domain/entities"
)

// setIfCurrent stores the list only while the owner's version is the one the
// reader saw before loading from the database.
var setIfCurrent = redis.NewScript(`
local current = redis.call('GET', KEYS[2])
if not current then current = '0' end
if current ~= ARGV[1] then return 0 end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// TaskCache keeps each owner's task list in Redis. A nil client turns every
// call into a miss.
//
// Every owner has a version counter bumped by Invalidate. SetTasks is a no-op
// when the counter moved since GetTasks, so a list read from the database
// before a mutation cannot be cached after that mutation's eviction.
type TaskCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewTaskCache creates a Redis-backed task cache.
func NewTaskCache(client *redis.Client, ttl time.Duration) *TaskCache {
	if ttl < 0 {
		ttl = 0
	}
	return &TaskCache{redis: client, ttl: ttl}
}

// GetTasks returns the cached list and the owner's current version. A
// negative version means the cache could not be read and must not be written.
func (c *TaskCache) GetTasks(ctx context.Context, ownerID uuid.UUID) ([]entities.Task, int64, bool) {
	if c.redis == nil {
		return nil, -1, false
	}
	key := tasksCacheKey(ownerID)
	values, err := c.redis.MGet(ctx, key, versionKey(ownerID)).Result()
	if err != nil || len(values) != 2 {
		return nil, -1, false
	}

	version, ok := parseVersion(values[1])
	if !ok {
		return nil, -1, false
	}

	data, ok := values[0].(string)
	if !ok {
		return nil, version, false
	}
	var tasks []entities.Task
	if err := sonic.UnmarshalString(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return nil, version, false
	}
	return tasks, version, true
}

// SetTasks caches the list if version is still current and reports whether it
// was stored.
func (c *TaskCache) SetTasks(ctx context.Context, ownerID uuid.UUID, version int64, tasks []entities.Task) bool {
	if c.redis == nil || c.ttl == 0 || version < 0 {
		return false
	}
	data, err := sonic.Marshal(tasks)
	if err != nil {
		return false
	}
	ttlMillis := max(c.ttl.Milliseconds(), 1)
	stored, err := setIfCurrent.Run(ctx, c.redis,
		[]string{tasksCacheKey(ownerID), versionKey(ownerID)},
		version, data, ttlMillis,
	).Int()
	return err == nil && stored == 1
}

// Invalidate bumps the owner's version and evicts the cached list.
func (c *TaskCache) Invalidate(ctx context.Context, ownerID uuid.UUID) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey(ownerID))
		pipe.Del(ctx, tasksCacheKey(ownerID))
		return nil
	})
}

func parseVersion(raw interface{}) (int64, bool) {
	if raw == nil {
		return 0, true
	}
	s, ok := raw.(string)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func tasksCacheKey(ownerID uuid.UUID) string {
	return "tasks:" + ownerID.String()
}

func versionKey(ownerID uuid.UUID) string {
	return "tasks:version:" + ownerID.String()
}
