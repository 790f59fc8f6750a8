package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"taskboard-api/domain"
)

type backend interface {
	ListTasks(ctx context.Context, userID string) ([]domain.Task, error)
	GetTask(ctx context.Context, userID, id string) (*domain.Task, error)
	InsertTask(ctx context.Context, t domain.Task) error
	MergeTask(ctx context.Context, upd domain.TaskUpdate) error
	DeleteTask(ctx context.Context, userID, id string) error
	EnqueueEvents(ctx context.Context, events []domain.Event) error
}

// Cache wraps a Storage instance with Redis-backed caching of task lists.
// Mutations pass through and evict the owner's cached list.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) ListTasks(ctx context.Context, userID string) ([]domain.Task, error) {
	if tasks, ok := c.loadFromCache(ctx, userID); ok {
		return tasks, nil
	}

	tasks, err := c.base.ListTasks(ctx, userID)
	if err != nil {
		return nil, err
	}

	c.store(ctx, userID, tasks)
	return tasks, nil
}

func (c *Cache) GetTask(ctx context.Context, userID, id string) (*domain.Task, error) {
	return c.base.GetTask(ctx, userID, id)
}

func (c *Cache) InsertTask(ctx context.Context, t domain.Task) error {
	if err := c.base.InsertTask(ctx, t); err != nil {
		return err
	}
	c.evict(ctx, t.UserID)
	return nil
}

func (c *Cache) MergeTask(ctx context.Context, upd domain.TaskUpdate) error {
	if err := c.base.MergeTask(ctx, upd); err != nil {
		return err
	}
	c.evict(ctx, upd.UserID)
	return nil
}

func (c *Cache) DeleteTask(ctx context.Context, userID, id string) error {
	if err := c.base.DeleteTask(ctx, userID, id); err != nil {
		return err
	}
	c.evict(ctx, userID)
	return nil
}

func (c *Cache) EnqueueEvents(ctx context.Context, events []domain.Event) error {
	return c.base.EnqueueEvents(ctx, events)
}

// cachedTask re-exposes Rank, which the API representation of a task hides.
// A cache hit must hand back the same ordering keys the table would.
type cachedTask struct {
	domain.Task
	Rank int64 `json:"rank"`
}

func (c *Cache) loadFromCache(ctx context.Context, userID string) ([]domain.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, tasksCacheKey(userID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, tasksCacheKey(userID)).Err()
		}
		return nil, false
	}
	var cached []cachedTask
	if err := json.Unmarshal(data, &cached); err != nil {
		_ = c.redis.Del(ctx, tasksCacheKey(userID)).Err()
		return nil, false
	}
	tasks := make([]domain.Task, len(cached))
	for i, ct := range cached {
		tasks[i] = ct.Task
		tasks[i].Rank = ct.Rank
	}
	return tasks, true
}

func (c *Cache) store(ctx context.Context, userID string, tasks []domain.Task) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	cached := make([]cachedTask, len(tasks))
	for i, t := range tasks {
		cached[i] = cachedTask{Task: t, Rank: t.Rank}
	}
	data, err := json.Marshal(cached)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, tasksCacheKey(userID), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, userID string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, tasksCacheKey(userID)).Result()
}

func tasksCacheKey(userID string) string {
	return "tasks:" + userID
}
