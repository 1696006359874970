package usecase

import (
	"context"
	"testing"

	"Screener/internal/domain/models"
)

func TestMergeAndWriteDropsInvalidRecords(t *testing.T) {
	store := newStore()
	n, err := MergeAndWrite(context.Background(), store, []models.MetricRecord{
		rec("AAA", 10, day),
		rec("BBB", 0, day),
		rec("---", 5, day),
		rec("CCC", -1, day),
	})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 accepted record, got %d", n)
	}
	got := store.snapshot()
	if len(got) != 1 || got[0].Key != "AAA" {
		t.Fatalf("unexpected table %+v", got)
	}
}

func TestMergeAndWriteEmptyBatchTouchesNothing(t *testing.T) {
	store := newStore(rec("AAA", 10, day))
	n, err := MergeAndWrite(context.Background(), store, []models.MetricRecord{rec("BBB", 0, day)})
	if err != nil || n != 0 {
		t.Fatalf("expected no-op, got n=%d err=%v", n, err)
	}
	if store.reads != 0 || store.writes != 0 {
		t.Fatalf("expected no read or write, got reads=%d writes=%d", store.reads, store.writes)
	}
}

func TestMergeAndWriteLastOccurrenceWins(t *testing.T) {
	store := newStore(rec("AAA", 10, day), rec("BBB", 3, day))
	_, err := MergeAndWrite(context.Background(), store, []models.MetricRecord{rec("AAA", 12, day)})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	got := store.snapshot()
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %+v", got)
	}
	for _, r := range got {
		if r.Key == "AAA" && r.Price != 12 {
			t.Fatalf("expected newest AAA price 12, got %v", r.Price)
		}
	}
}

func TestMergeAndWriteKeepsOtherDays(t *testing.T) {
	prev := day.AddDate(0, 0, -1)
	store := newStore(rec("AAA", 9, prev))
	if _, err := MergeAndWrite(context.Background(), store, []models.MetricRecord{rec("AAA", 10, day)}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if got := store.snapshot(); len(got) != 2 {
		t.Fatalf("expected one row per day, got %+v", got)
	}
}

func TestMergeAndWriteIdempotent(t *testing.T) {
	store := newStore(rec("ZZZ", 1, day))
	batch := []models.MetricRecord{rec("AAA", 10, day), rec("BBB", 20, day)}
	ctx := context.Background()

	if _, err := MergeAndWrite(ctx, store, batch); err != nil {
		t.Fatalf("first merge: %v", err)
	}
	first := store.snapshot()
	if _, err := MergeAndWrite(ctx, store, batch); err != nil {
		t.Fatalf("second merge: %v", err)
	}
	second := store.snapshot()

	if len(first) != len(second) {
		t.Fatalf("table changed size: %d -> %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Identity() != second[i].Identity() || first[i].Price != second[i].Price {
			t.Fatalf("row %d changed: %+v -> %+v", i, first[i], second[i])
		}
	}
}

func TestMergeAndWriteUniqueness(t *testing.T) {
	store := newStore(rec("AAA", 1, day), rec("AAA", 2, day))
	batch := []models.MetricRecord{rec("AAA", 3, day), rec("BBB", 4, day), rec("BBB", 5, day)}
	if _, err := MergeAndWrite(context.Background(), store, batch); err != nil {
		t.Fatalf("merge: %v", err)
	}
	seen := map[models.RecordID]bool{}
	for _, r := range store.snapshot() {
		if seen[r.Identity()] {
			t.Fatalf("duplicate identity %+v", r.Identity())
		}
		seen[r.Identity()] = true
	}
	if len(seen) != 2 {
		t.Fatalf("expected 2 identities, got %d", len(seen))
	}
}

func TestMergeAndWriteReportsWriteFailure(t *testing.T) {
	store := newStore()
	store.failWrite = func(int) bool { return true }
	n, err := MergeAndWrite(context.Background(), store, []models.MetricRecord{rec("AAA", 10, day)})
	if err == nil {
		t.Fatalf("expected write error")
	}
	if n != 1 {
		t.Fatalf("expected accepted count 1, got %d", n)
	}
}

func TestMergeAndWriteUnreadableTableKeepsOnlyBatch(t *testing.T) {
	prev := day.AddDate(0, 0, -1)
	store := newStore(rec("AAA", 9, prev), rec("BBB", 4, prev), rec("CCC", 7, day))
	store.failRead = true

	n, err := MergeAndWrite(context.Background(), store, []models.MetricRecord{rec("DDD", 11, day)})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 accepted record, got %d", n)
	}
	got := store.snapshot()
	if len(got) != 1 || got[0].Key != "DDD" {
		t.Fatalf("expected archive replaced by the batch, got %+v", got)
	}
}
