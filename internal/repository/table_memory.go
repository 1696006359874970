package repository

import (
	"context"
	"sync"

	domrepo "Screener/internal/domain/repository"
)

// MemoryTable keeps a table in process memory. Used for local runs and tests.
type MemoryTable[T any] struct {
	name string
	mu   sync.RWMutex
	rows []T
}

var _ domrepo.Table[struct{}] = (*MemoryTable[struct{}])(nil)

func NewMemoryTable[T any](name string, seed ...T) *MemoryTable[T] {
	rows := make([]T, len(seed))
	copy(rows, seed)
	return &MemoryTable[T]{name: name, rows: rows}
}

func (t *MemoryTable[T]) Name() string { return t.name }

func (t *MemoryTable[T]) Read(_ context.Context) []T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]T, len(t.rows))
	copy(out, t.rows)
	return out
}

func (t *MemoryTable[T]) Write(_ context.Context, rows []T) error {
	cp := make([]T, len(rows))
	copy(cp, rows)
	t.mu.Lock()
	t.rows = cp
	t.mu.Unlock()
	return nil
}
