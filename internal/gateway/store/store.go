// Package store persists the gateway host allowlist so an administrative
// swap survives restarts. The gateway itself only ever sees the full list;
// partial updates never leak to readers.
package store

import (
	"context"
	"sync"
)

// AllowlistStore persists the full allowlist. Replace is whole-list by
// design: the admin API performs an atomic swap, never element mutation.
type AllowlistStore interface {
	List(ctx context.Context) ([]string, error)
	Replace(ctx context.Context, hosts []string) error
}

// Memory is the in-memory allowlist store used in development and tests.
type Memory struct {
	mu    sync.RWMutex
	hosts []string
}

func NewMemory(hosts []string) *Memory {
	return &Memory{hosts: append([]string{}, hosts...)}
}

func (m *Memory) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string{}, m.hosts...), nil
}

func (m *Memory) Replace(_ context.Context, hosts []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hosts = append([]string{}, hosts...)
	return nil
}
