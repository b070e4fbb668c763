// SPDX-License-Identifier: MIT
package beat

import "testing"

func TestGapStatsPublishesFullBatches(t *testing.T) {
	g := NewGapStats(4)

	for _, gap := range []int{8, 8, 9} {
		g.Observe(gap)
	}
	s := g.Snapshot()
	if s.Batches != 0 || s.Pending != 3 || s.Mode != 0 {
		t.Fatalf("before a full batch: %+v", s)
	}

	g.Observe(7)
	s = g.Snapshot()
	if s.Batches != 1 || s.Pending != 0 {
		t.Fatalf("after a full batch: %+v", s)
	}
	if s.Average != 8 || s.Mode != 8 {
		t.Errorf("average = %g, mode = %d; want 8, 8", s.Average, s.Mode)
	}

	// The next batch starts from scratch.
	for _, gap := range []int{20, 20, 20, 20} {
		g.Observe(gap)
	}
	s = g.Snapshot()
	if s.Batches != 2 || s.Average != 20 || s.Mode != 20 {
		t.Errorf("second batch: %+v", s)
	}
}

func TestGapStatsModeTiesGoShortest(t *testing.T) {
	g := NewGapStats(4)
	for _, gap := range []int{12, 5, 12, 5} {
		g.Observe(gap)
	}
	if m := g.Snapshot().Mode; m != 5 {
		t.Errorf("mode = %d, want 5", m)
	}
}

func TestGapStatsIgnoresInvalid(t *testing.T) {
	g := NewGapStats(2)
	g.Observe(0)
	g.Observe(-3)
	if s := g.Snapshot(); s.Pending != 0 {
		t.Errorf("non-positive gaps were recorded: %+v", s)
	}

	disabled := NewGapStats(0)
	disabled.Observe(10)
	if s := disabled.Snapshot(); s != (GapSnapshot{}) {
		t.Errorf("disabled collector recorded: %+v", s)
	}
}

func TestGapSnapshotSteady(t *testing.T) {
	tests := []struct {
		desc string
		snap GapSnapshot
		want bool
	}{
		{"Empty", GapSnapshot{}, false},
		{"Regular and slow", GapSnapshot{Average: 8.5, Mode: 8}, true},
		{"Too fast", GapSnapshot{Average: 5, Mode: 5}, false},
		{"Irregular", GapSnapshot{Average: 14, Mode: 8}, false},
		{"Boundary is exclusive", GapSnapshot{Average: 12, Mode: 8}, false},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := tt.snap.Steady(7); got != tt.want {
				t.Errorf("Steady(7) = %v, want %v", got, tt.want)
			}
		})
	}
}
