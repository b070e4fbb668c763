// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/stat"
)

// Partitioner collapses a band-limited spectrum into a fixed number of
// contiguous sub-band energies. Band i covers bins w*i .. w*(i+1) where
// w = floor(M/B); the last band also takes the M mod B leftover bins.
//
// Energy is the mean of |a|^3 over the band. The cubic exponent sharpens
// transients against steady-state energy and the detector constants depend
// on it.
type Partitioner struct {
	bands int
	cubed []float64 // |a|^3 per bin, reused between calls.
}

// NewPartitioner returns a partitioner for the given sub-band count.
func NewPartitioner(bands int) (*Partitioner, error) {
	if bands <= 0 {
		return nil, fmt.Errorf("%w: sub-band count must be positive, got %d", ErrInvalidInput, bands)
	}
	return &Partitioner{bands: bands}, nil
}

// Bands returns the number of sub-bands.
func (p *Partitioner) Bands() int {
	return p.bands
}

// Bounds returns the bin range [lo, hi) of band i for a spectrum of m bins.
func (p *Partitioner) Bounds(i, m int) (lo, hi int) {
	width := m / p.bands
	lo = width * i
	hi = width * (i + 1)
	if i == p.bands-1 {
		hi = m
	}
	return lo, hi
}

// Energies writes one energy per sub-band into dst (grown if needed) and
// returns it. The spectrum must have at least one bin per band.
func (p *Partitioner) Energies(dst []float64, amplitudes []complex128) ([]float64, error) {
	m := len(amplitudes)
	if m < p.bands {
		return nil, fmt.Errorf("%w: %d spectral bins cannot fill %d sub-bands", ErrInvalidInput, m, p.bands)
	}

	if cap(p.cubed) < m {
		p.cubed = make([]float64, m)
	}
	p.cubed = p.cubed[:m]
	for j, a := range amplitudes {
		mag := cmplx.Abs(a)
		p.cubed[j] = mag * mag * mag
	}

	if cap(dst) < p.bands {
		dst = make([]float64, p.bands)
	}
	dst = dst[:p.bands]
	for i := range dst {
		lo, hi := p.Bounds(i, m)
		dst[i] = stat.Mean(p.cubed[lo:hi], nil)
	}
	return dst, nil
}
