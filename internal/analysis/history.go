// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch is returned when an energy vector does not have the
// sub-band count the history was built for.
var ErrShapeMismatch = errors.New("energy vector shape mismatch")

// EnergyHistory is a fixed-capacity FIFO of sub-band energy vectors. Once
// full, every Push evicts the oldest vector before the newest is stored, so
// its length never exceeds its capacity. Vector storage is allocated up
// front and reused.
type EnergyHistory struct {
	slots [][]float64
	bands int
	start int // Index of the oldest vector.
	n     int
}

// NewEnergyHistory returns an empty history holding capacity vectors of
// bands energies each.
func NewEnergyHistory(capacity, bands int) (*EnergyHistory, error) {
	if capacity < 2 {
		return nil, fmt.Errorf("%w: history needs at least 2 vectors, got %d", ErrInvalidInput, capacity)
	}
	if bands <= 0 {
		return nil, fmt.Errorf("%w: sub-band count must be positive, got %d", ErrInvalidInput, bands)
	}

	slots := make([][]float64, capacity)
	backing := make([]float64, capacity*bands)
	for i := range slots {
		slots[i] = backing[i*bands : (i+1)*bands : (i+1)*bands]
	}
	return &EnergyHistory{slots: slots, bands: bands}, nil
}

// Push copies v in as the newest vector, evicting the oldest when full.
func (h *EnergyHistory) Push(v []float64) error {
	if len(v) != h.bands {
		return fmt.Errorf("%w: got %d energies, history holds %d", ErrShapeMismatch, len(v), h.bands)
	}

	var slot int
	if h.n < len(h.slots) {
		slot = (h.start + h.n) % len(h.slots)
		h.n++
	} else {
		slot = h.start
		h.start = (h.start + 1) % len(h.slots)
	}
	copy(h.slots[slot], v)
	return nil
}

// Len returns the number of stored vectors.
func (h *EnergyHistory) Len() int { return h.n }

// Capacity returns the maximum number of stored vectors.
func (h *EnergyHistory) Capacity() int { return len(h.slots) }

// Bands returns the length of every stored vector.
func (h *EnergyHistory) Bands() int { return h.bands }

// Full reports whether the history has reached its capacity.
func (h *EnergyHistory) Full() bool { return h.n == len(h.slots) }

// At returns the i-th vector in chronological order (0 is the oldest). The
// slice aliases history storage and must not be modified.
func (h *EnergyHistory) At(i int) []float64 {
	return h.slots[(h.start+i)%len(h.slots)]
}

// Column writes the energies of one sub-band, oldest first, into dst
// (grown if needed) and returns it.
func (h *EnergyHistory) Column(band int, dst []float64) []float64 {
	if cap(dst) < h.n {
		dst = make([]float64, h.n)
	}
	dst = dst[:h.n]
	for i := range dst {
		dst[i] = h.At(i)[band]
	}
	return dst
}

// Snapshot returns a copy of the stored vectors in chronological order. The
// history itself is not modified.
func (h *EnergyHistory) Snapshot() [][]float64 {
	out := make([][]float64, h.n)
	for i := range out {
		out[i] = append([]float64(nil), h.At(i)...)
	}
	return out
}

// Reset empties the history without releasing its storage.
func (h *EnergyHistory) Reset() {
	h.start = 0
	h.n = 0
}
