package models

import "time"

// Snapshot is the full content of the metrics table, in stored order.
type Snapshot []MetricRecord

// Dedupe keeps, for every (key, observed_date), only the last occurrence.
// Surviving records keep the relative order of those last occurrences.
func (s Snapshot) Dedupe() Snapshot {
	seen := make(map[RecordID]struct{}, len(s))
	rev := make(Snapshot, 0, len(s))
	for i := len(s) - 1; i >= 0; i-- {
		id := s[i].Identity()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		rev = append(rev, s[i])
	}
	out := make(Snapshot, len(rev))
	for i := range rev {
		out[len(rev)-1-i] = rev[i]
	}
	return out
}

// KeysOn returns the set of keys observed on day.
func (s Snapshot) KeysOn(day time.Time) map[string]struct{} {
	keys := make(map[string]struct{})
	for _, r := range s {
		if r.ObservedOn(day) {
			keys[r.Key] = struct{}{}
		}
	}
	return keys
}

// Clone returns a copy that does not share the backing array.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	copy(out, s)
	return out
}
