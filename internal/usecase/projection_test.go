package usecase

import (
	"testing"

	"Screener/internal/domain/models"
)

func metric(key string, roe, peg *float64) models.MetricRecord {
	return models.MetricRecord{Key: key, ROE: roe, PEG: peg, Price: 1, ObservedDate: day}
}

func TestThresholdPredicate(t *testing.T) {
	pred := ThresholdPredicate(15, 1.2)
	cases := []struct {
		name string
		r    models.MetricRecord
		want bool
	}{
		{"match", metric("A", models.Float(20), models.Float(1)), true},
		{"bounds inclusive", metric("A", models.Float(15), models.Float(1.2)), true},
		{"low roe", metric("A", models.Float(14.9), models.Float(1)), false},
		{"high peg", metric("A", models.Float(20), models.Float(1.3)), false},
		{"zero peg", metric("A", models.Float(20), models.Float(0)), false},
		{"negative peg", metric("A", models.Float(20), models.Float(-1)), false},
		{"missing roe", metric("A", nil, models.Float(1)), false},
		{"missing peg", metric("A", models.Float(20), nil), false},
	}
	for _, tc := range cases {
		if got := pred(tc.r); got != tc.want {
			t.Errorf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestProjectFiltersAndSorts(t *testing.T) {
	snap := models.Snapshot{
		metric("LOW", models.Float(16), models.Float(1)),
		metric("OUT", models.Float(99), models.Float(1)),
		metric("HIGH", models.Float(30), models.Float(0.5)),
		rec("OLD", 1, day.AddDate(0, 0, -1)),
		metric("MID", models.Float(20), models.Float(1.1)),
		metric("BAD", models.Float(40), models.Float(3)),
	}
	snap[3].ROE, snap[3].PEG = models.Float(50), models.Float(1)

	got := Project(snap, day, []string{"LOW", "HIGH", "OLD", "MID", "BAD"}, ThresholdPredicate(15, 1.2))
	want := []string{"HIGH", "MID", "LOW"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %+v", want, got)
	}
	for i, k := range want {
		if got[i].Key != k {
			t.Fatalf("position %d: expected %s, got %s", i, k, got[i].Key)
		}
	}
}

func TestProjectIsPure(t *testing.T) {
	snap := models.Snapshot{
		metric("B", models.Float(10), models.Float(1)),
		metric("A", models.Float(30), models.Float(1)),
	}
	before := snap.Clone()

	first := Project(snap, day, []string{"A", "B"}, nil)
	second := Project(snap, day, []string{"A", "B"}, nil)

	for i := range snap {
		if snap[i].Key != before[i].Key {
			t.Fatalf("snapshot reordered")
		}
	}
	if len(first) != 2 || first[0].Key != "A" {
		t.Fatalf("unexpected projection %+v", first)
	}
	for i := range first {
		if first[i].Key != second[i].Key {
			t.Fatalf("projection not deterministic")
		}
	}
}

func TestProjectNilROESortsLast(t *testing.T) {
	snap := models.Snapshot{
		metric("N", nil, models.Float(1)),
		metric("A", models.Float(5), models.Float(1)),
	}
	got := Project(snap, day, []string{"N", "A"}, nil)
	if len(got) != 2 || got[0].Key != "A" || got[1].Key != "N" {
		t.Fatalf("unexpected order %+v", got)
	}
}

func TestProjectEmptyUniverse(t *testing.T) {
	got := Project(models.Snapshot{metric("A", models.Float(20), models.Float(1))}, day, nil, nil)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil result, got %+v", got)
	}
}
