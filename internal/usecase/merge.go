package usecase

import (
	"context"
	"fmt"

	"Screener/internal/domain/models"
	domrepo "Screener/internal/domain/repository"
)

// MergeAndWrite upserts batch into the store: invalid records are dropped,
// the rest are appended to the current content, duplicates on
// (key, observed_date) collapse to the last occurrence, and the table is
// replaced. An empty filtered batch writes nothing. Returns the number of
// records accepted from batch.
//
// The read step inherits Table.Read semantics: an unreadable table reads as
// empty, and the following Write then drops its previous content.
func MergeAndWrite(ctx context.Context, store domrepo.SnapshotStore, batch []models.MetricRecord) (int, error) {
	valid := make(models.Snapshot, 0, len(batch))
	for _, r := range batch {
		if r.Valid() {
			valid = append(valid, r)
		}
	}
	if len(valid) == 0 {
		return 0, nil
	}

	existing := store.Read(ctx)
	combined := make(models.Snapshot, 0, len(existing)+len(valid))
	combined = append(combined, existing...)
	combined = append(combined, valid...)

	if err := store.Write(ctx, combined.Dedupe()); err != nil {
		return len(valid), fmt.Errorf("write %s: %w", store.Name(), err)
	}
	return len(valid), nil
}
