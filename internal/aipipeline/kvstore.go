package aipipeline

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CounterStore 带过期的共享计数器存储
// 断路器等跨 worker 的全局计数通过该接口访问，而不是环境态/静态态，
// 便于测试换成内存实现、生产换成分布式缓存。
type CounterStore interface {
	// IncrementWithExpiry 原子自增并刷新过期时间，返回自增后的值
	// 计数器与 TTL 总是一起写入，安静期过后整体归零
	IncrementWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Get 读取当前计数，不存在返回 0
	Get(ctx context.Context, key string) (int64, error)

	// Delete 删除计数器
	Delete(ctx context.Context, key string) error
}

// ============================================================================
// Redis 实现
// ============================================================================

type redisCounterStore struct {
	client *redis.Client
}

// NewRedisCounterStore 创建 Redis 计数器存储
func NewRedisCounterStore(client *redis.Client) CounterStore {
	return &redisCounterStore{client: client}
}

func (s *redisCounterStore) IncrementWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (s *redisCounterStore) Get(ctx context.Context, key string) (int64, error) {
	val, err := s.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

func (s *redisCounterStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// ============================================================================
// 内存实现（测试用）
// ============================================================================

type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

type memoryCounterStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

// NewMemoryCounterStore 创建内存计数器存储
func NewMemoryCounterStore() CounterStore {
	return &memoryCounterStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

func (s *memoryCounterStore) IncrementWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || s.now().After(e.expiresAt) {
		e = &memoryEntry{}
		s.entries[key] = e
	}
	e.count++
	e.expiresAt = s.now().Add(ttl)
	return e.count, nil
}

func (s *memoryCounterStore) Get(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || s.now().After(e.expiresAt) {
		return 0, nil
	}
	return e.count, nil
}

func (s *memoryCounterStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}
