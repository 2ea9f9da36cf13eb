package store

import (
	"context"
	"strings"
	"sync"
)

// Memory is the default in-process backing store: a mutex-guarded counter
// map. State lives for the process lifetime and is never shared across
// processes.
type Memory struct {
	mu       sync.RWMutex
	counters map[string]int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		counters: make(map[string]int64),
	}
}

func (m *Memory) Get(ctx context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.counters[key], nil
}

func (m *Memory) GetMulti(ctx context.Context, keys []string) (map[string]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	values := make(map[string]int64, len(keys))
	for _, key := range keys {
		values[key] = m.counters[key]
	}

	return values, nil
}

func (m *Memory) Set(ctx context.Context, key string, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counters[key] = value
	return nil
}

func (m *Memory) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counters[key] += delta
	return m.counters[key], nil
}

func (m *Memory) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.counters, key)
	}

	return nil
}

func (m *Memory) DeletePrefix(ctx context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.counters {
		if strings.HasPrefix(key, prefix) {
			delete(m.counters, key)
		}
	}

	return nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return nil
}

func (m *Memory) Close() error {
	return nil
}

var _ Store = (*Memory)(nil)
