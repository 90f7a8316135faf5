package store

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// Memory keeps artifacts in process. Oldest entries are evicted when size
// limit is reached.
type Memory struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, Artifact]
	log   *zap.Logger
}

func NewMemory(size int, ttl time.Duration, log *zap.Logger) *Memory {
	m := &Memory{log: log}
	m.cache = expirable.NewLRU[string, Artifact](size, func(key string, a Artifact) {
		m.log.Debug("Artifact dropped", zap.String("key", key), zap.String("name", a.Name))
	}, ttl)
	return m
}

func (m *Memory) Put(ctx context.Context, a Artifact) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := newKey()
	m.cache.Add(key, a)
	return key, nil
}

func (m *Memory) Take(ctx context.Context, key string) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.cache.Get(key)
	if !ok {
		return Artifact{}, ErrNotFound
	}
	m.cache.Remove(key)
	return a, nil
}

func (m *Memory) Len() int {
	return m.cache.Len()
}

func (m *Memory) Close() error {
	m.cache.Purge()
	return nil
}
