// SPDX-License-Identifier: MIT
package beat

import "gonum.org/v1/gonum/stat"

// GapSnapshot summarises the most recently completed batch of gaps between
// confirmed hits.
type GapSnapshot struct {
	Average float64 `json:"average"` // Mean gap in chunks.
	Mode    int     `json:"mode"`    // Most frequent gap; ties go to the shortest.
	Batches int     `json:"batches"` // Completed batches so far.
	Pending int     `json:"pending"` // Gaps collected towards the next batch.
}

// Steady reports whether the hits are regular and slow enough to be
// considered a steady groove: a mode of at least minMode chunks with the
// average within half a mode of it.
func (s GapSnapshot) Steady(minMode int) bool {
	if s.Mode <= 0 || s.Mode < minMode {
		return false
	}
	ratio := s.Average/float64(s.Mode) - 1
	return ratio > -0.5 && ratio < 0.5
}

// GapStats collects gaps between consecutive confirmed hits of one
// instrument in batches. When a batch is complete its mean and mode are
// published and collection starts over. It is a diagnostic for consumers
// that pace display effects; the detector does not read it.
type GapStats struct {
	batch   int
	gaps    []float64
	counts  map[int]int
	current GapSnapshot
}

// NewGapStats returns a collector publishing every batch gaps. A batch of
// zero disables collection.
func NewGapStats(batch int) *GapStats {
	return &GapStats{
		batch:  batch,
		gaps:   make([]float64, 0, max(batch, 0)),
		counts: make(map[int]int),
	}
}

// Observe records the gap, in chunks, between two confirmed hits.
func (g *GapStats) Observe(gap int) {
	if g.batch <= 0 || gap <= 0 {
		return
	}

	g.gaps = append(g.gaps, float64(gap))
	g.counts[gap]++
	if len(g.gaps) < g.batch {
		g.current.Pending = len(g.gaps)
		return
	}

	mode, best := 0, 0
	for v, c := range g.counts {
		if c > best || (c == best && v < mode) {
			mode, best = v, c
		}
	}
	g.current = GapSnapshot{
		Average: stat.Mean(g.gaps, nil),
		Mode:    mode,
		Batches: g.current.Batches + 1,
	}

	g.gaps = g.gaps[:0]
	clear(g.counts)
}

// Snapshot returns the last published batch summary.
func (g *GapStats) Snapshot() GapSnapshot {
	return g.current
}
