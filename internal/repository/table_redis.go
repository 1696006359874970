package repository

import (
	"context"
	"errors"
	"fmt"

	domrepo "Screener/internal/domain/repository"
	"Screener/pkg/cache"
	applogger "Screener/pkg/logger"
)

// RedisTable stores the whole table as one JSON value under "table:<name>".
// SET replaces the value atomically, which gives Write its full-replace semantics.
type RedisTable[T any] struct {
	name string
	kv   cache.Service
	l    *applogger.Logger
}

var _ domrepo.Table[struct{}] = (*RedisTable[struct{}])(nil)

func NewRedisTable[T any](name string, kv cache.Service, l *applogger.Logger) *RedisTable[T] {
	if l == nil {
		l = applogger.Nop()
	}
	return &RedisTable[T]{name: name, kv: kv, l: l}
}

func (t *RedisTable[T]) Name() string { return t.name }

func (t *RedisTable[T]) key() string { return cache.Key("table", t.name) }

// Read returns the stored rows; a missing key or any error reads as empty.
func (t *RedisTable[T]) Read(ctx context.Context) []T {
	var rows []T
	if err := t.kv.Get(ctx, t.key(), &rows); err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			t.l.Warn("redis table read failed, treating as empty",
				applogger.String("table", t.name),
				applogger.Error(err),
			)
		}
		return []T{}
	}
	if rows == nil {
		return []T{}
	}
	return rows
}

func (t *RedisTable[T]) Write(ctx context.Context, rows []T) error {
	if rows == nil {
		rows = []T{}
	}
	if err := t.kv.Set(ctx, t.key(), rows, 0); err != nil {
		return fmt.Errorf("write table %s: %w", t.name, err)
	}
	return nil
}
