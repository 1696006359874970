package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	domrepo "Screener/internal/domain/repository"
	pkgch "Screener/pkg/clickhouse"
	applogger "Screener/pkg/logger"
)

// RowCodec maps a row type to the columns of a ClickHouse table.
type RowCodec[T any] interface {
	Columns() []string
	Values(row T) []interface{}
	Scan(rows *sql.Rows) (T, error)
}

// CHTable is a Table backed by ClickHouse.
//
// Write loads the new content into a staging table then swaps it with the
// live one using EXCHANGE TABLES, so readers observe either the previous or
// the new content, never a partial one. Requires an Atomic database engine.
type CHTable[T any] struct {
	db      *sql.DB
	name    string
	staging string
	codec   RowCodec[T]
	l       *applogger.Logger
}

var _ domrepo.Table[struct{}] = (*CHTable[struct{}])(nil)

const insertChunkSize = 2000

func NewCHTable[T any](ch *pkgch.Client, name string, codec RowCodec[T], l *applogger.Logger) *CHTable[T] {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHTable[T]{
		db:      ch.DB(),
		name:    name,
		staging: name + "_staging",
		codec:   codec,
		l:       l,
	}
}

func (t *CHTable[T]) Name() string { return t.name }

// Read returns every row. Failures are logged and read as empty.
func (t *CHTable[T]) Read(ctx context.Context) []T {
	start := time.Now()
	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(t.codec.Columns(), ", "), t.name)
	rows, err := t.db.QueryContext(ctx, q)
	if err != nil {
		t.l.Warn("clickhouse read query error, treating table as empty",
			applogger.String("table", t.name),
			applogger.Error(err),
		)
		return []T{}
	}
	defer rows.Close()

	out := make([]T, 0, 256)
	for rows.Next() {
		row, err := t.codec.Scan(rows)
		if err != nil {
			t.l.Warn("clickhouse read scan error, treating table as empty",
				applogger.String("table", t.name),
				applogger.Error(err),
			)
			return []T{}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		t.l.Warn("clickhouse read rows error, treating table as empty",
			applogger.String("table", t.name),
			applogger.Error(err),
		)
		return []T{}
	}
	t.l.Debug("clickhouse read ok",
		applogger.String("table", t.name),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out
}

// Write replaces the table content with rows.
func (t *CHTable[T]) Write(ctx context.Context, rows []T) error {
	start := time.Now()
	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s AS %s", t.staging, t.name),
		fmt.Sprintf("TRUNCATE TABLE %s", t.staging),
	}
	for _, s := range stmts {
		if _, err := t.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("prepare staging %s: %w", t.staging, err)
		}
	}

	if err := t.insert(ctx, t.staging, rows); err != nil {
		return fmt.Errorf("load staging %s: %w", t.staging, err)
	}

	if _, err := t.db.ExecContext(ctx, fmt.Sprintf("EXCHANGE TABLES %s AND %s", t.staging, t.name)); err != nil {
		return fmt.Errorf("swap %s: %w", t.name, err)
	}

	t.l.Info("clickhouse table replaced",
		applogger.String("table", t.name),
		applogger.Int("rows", len(rows)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

// insert uses multi-row VALUES in chunks to reduce round-trips.
func (t *CHTable[T]) insert(ctx context.Context, table string, rows []T) error {
	cols := t.codec.Columns()
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"

	for start := 0; start < len(rows); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(rows) {
			end = len(rows)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*len(cols))
		for _, r := range rows[start:end] {
			values = append(values, placeholder)
			args = append(args, t.codec.Values(r)...)
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, strings.Join(cols, ", "), strings.Join(values, ","))
		if _, err := t.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}
