package geocoder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// AddressStore 地址缓存存储
// 只保存成功的解析结果，条目永不过期
type AddressStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, address string) error
	Len(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}

// MemoryStore 进程内缓存
type MemoryStore struct {
	mu    sync.RWMutex
	cache map[string]string
}

// NewMemoryStore 创建进程内缓存
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cache: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	addr, ok := s.cache[key]
	return addr, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, address string) error {
	s.mu.Lock()
	s.cache[key] = address
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Len(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache), nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
	return nil
}

const defaultKeyPrefix = "geocode:"

// RedisStore 基于 Redis 的共享缓存，多个实例可共用同一份地址
type RedisStore struct {
	client    redis.Cmdable
	keyPrefix string
}

// NewRedisStore 创建 Redis 缓存，prefix 为空时使用 geocode:
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, keyPrefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	addr, err := s.client.Get(ctx, s.keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return addr, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, address string) error {
	if err := s.client.Set(ctx, s.keyPrefix+key, address, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	keys, err := s.keys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *RedisStore) keys(ctx context.Context) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, s.keyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}
