package usecase

import (
	"sort"
	"time"

	"Screener/internal/domain/models"
)

// Predicate selects records in a projection.
type Predicate func(models.MetricRecord) bool

// ThresholdPredicate keeps records with roe >= minROE and 0 < peg <= maxPEG.
// A missing ROE or PEG never matches; a PEG of 0 means the provider had no value.
func ThresholdPredicate(minROE, maxPEG float64) Predicate {
	return func(r models.MetricRecord) bool {
		if r.ROE == nil || r.PEG == nil {
			return false
		}
		return *r.ROE >= minROE && *r.PEG <= maxPEG && *r.PEG > 0
	}
}

// Project restricts snapshot to universeKeys observed on asOf, applies pred
// and orders the result by ROE descending. Ties keep snapshot order and
// records without ROE sort last. The snapshot is not modified.
func Project(snapshot models.Snapshot, asOf time.Time, universeKeys []string, pred Predicate) []models.MetricRecord {
	keys := make(map[string]struct{}, len(universeKeys))
	for _, k := range universeKeys {
		keys[k] = struct{}{}
	}

	out := make([]models.MetricRecord, 0)
	for _, r := range snapshot {
		if _, ok := keys[r.Key]; !ok {
			continue
		}
		if !r.ObservedOn(asOf) {
			continue
		}
		if pred != nil && !pred(r) {
			continue
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].ROE, out[j].ROE
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a > *b
		}
	})
	return out
}
