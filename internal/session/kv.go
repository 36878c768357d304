package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrNotFound      = errors.New("key not found")
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// DefaultQuota mirrors the per-origin limit of browser local storage.
const DefaultQuota = 5 << 20

// KV is a durable byte slot store.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type MemoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryKV) Close() error {
	return nil
}

type quotaKV struct {
	KV
	limit int
}

// WithQuota rejects writes whose key plus value exceed limit bytes.
func WithQuota(kv KV, limit int) KV {
	if limit <= 0 {
		return kv
	}
	return &quotaKV{KV: kv, limit: limit}
}

func (q *quotaKV) Set(ctx context.Context, key string, value []byte) error {
	if size := len(key) + len(value); size > q.limit {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrQuotaExceeded, size, q.limit)
	}
	return q.KV.Set(ctx, key, value)
}
