// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ThresholdParams are the tuned constants of the adaptive threshold:
//
//	threshold = VarianceSlope*variance + VarianceIntercept
//	excited   = norm > threshold*normAvg/AverageDivisor || norm > AbsoluteFloor
type ThresholdParams struct {
	VarianceSlope     float64
	VarianceIntercept float64
	AverageDivisor    float64
	AbsoluteFloor     float64
}

// DefaultThresholdParams returns the constants the detector was tuned with.
func DefaultThresholdParams() ThresholdParams {
	return ThresholdParams{
		VarianceSlope:     -15,
		VarianceIntercept: 1.40,
		AverageDivisor:    1.15,
		AbsoluteFloor:     0.15,
	}
}

// Validate rejects parameters that would divide by zero.
func (p ThresholdParams) Validate() error {
	if p.AverageDivisor == 0 {
		return fmt.Errorf("%w: average divisor must not be zero", ErrInvalidInput)
	}
	return nil
}

// BandStats are the per-band intermediates of one Detect call.
type BandStats struct {
	Max         float64 `json:"max"`          // Largest historical energy.
	Average     float64 `json:"average"`      // Mean historical energy.
	NormAverage float64 `json:"norm_average"` // Mean of history/Max.
	Variance    float64 `json:"variance"`     // Population variance of history/Max.
	Threshold   float64 `json:"threshold"`    // VarianceSlope*Variance + VarianceIntercept.
	NormInstant float64 `json:"norm_instant"` // Instant energy / Max.
	Degenerate  bool    `json:"degenerate"`   // Max was zero.
	Excited     bool    `json:"excited"`
}

// Detector flags sub-bands whose instant energy stands out against their
// recent history. Bands with volatile history get a lower threshold and
// trigger more readily; flat bands need a clear spike. The absolute floor
// keeps a band from going silent when its history is unusually flat.
//
// A band whose history is all zero (Max == 0) is degenerate: its normalised
// history is taken as zero and it is excited only if its instant energy is
// positive, i.e. sound appearing out of complete silence. A silent instant
// over a silent history is never excited. No NaN is produced either way.
//
// Detector is not safe for concurrent use.
type Detector struct {
	params  ThresholdParams
	bands   int
	column  []float64
	norm    []float64
	stats   []BandStats
	excited []bool
}

// NewDetector returns a detector for vectors of bands energies.
func NewDetector(bands int, params ThresholdParams) (*Detector, error) {
	if bands <= 0 {
		return nil, fmt.Errorf("%w: sub-band count must be positive, got %d", ErrInvalidInput, bands)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Detector{
		params:  params,
		bands:   bands,
		stats:   make([]BandStats, bands),
		excited: make([]bool, bands),
	}, nil
}

// Params returns the detector constants.
func (d *Detector) Params() ThresholdParams {
	return d.params
}

// Detect compares instant against history, which must not yet contain
// instant, and returns one excited flag per band. History is not modified.
// The returned slice is reused by the next call.
func (d *Detector) Detect(instant []float64, history *EnergyHistory) ([]bool, error) {
	if len(instant) != d.bands || history.Bands() != d.bands {
		return nil, fmt.Errorf("%w: instant has %d bands, history %d, detector %d",
			ErrShapeMismatch, len(instant), history.Bands(), d.bands)
	}
	if history.Len() < 2 {
		return nil, fmt.Errorf("%w: history holds %d vectors, need at least 2", ErrInvalidInput, history.Len())
	}

	for i := range d.bands {
		d.column = history.Column(i, d.column)
		d.stats[i] = d.band(instant[i], d.column)
		d.excited[i] = d.stats[i].Excited
	}
	return d.excited, nil
}

// Stats returns the per-band intermediates of the last Detect call. The
// slice is reused by the next call.
func (d *Detector) Stats() []BandStats {
	return d.stats
}

// DegenerateBands returns how many bands had an all-zero history in the last
// Detect call.
func (d *Detector) DegenerateBands() int {
	n := 0
	for _, s := range d.stats {
		if s.Degenerate {
			n++
		}
	}
	return n
}

func (d *Detector) band(instant float64, column []float64) BandStats {
	s := BandStats{
		Max:     floats.Max(column),
		Average: stat.Mean(column, nil),
	}

	if s.Max == 0 {
		s.Degenerate = true
		s.Threshold = d.params.VarianceIntercept
		s.Excited = instant > 0
		return s
	}

	if cap(d.norm) < len(column) {
		d.norm = make([]float64, len(column))
	}
	d.norm = d.norm[:len(column)]
	floats.ScaleTo(d.norm, 1/s.Max, column)

	s.NormInstant = instant / s.Max
	s.NormAverage, s.Variance = stat.PopMeanVariance(d.norm, nil)
	s.Threshold = d.params.VarianceSlope*s.Variance + d.params.VarianceIntercept
	s.Excited = s.NormInstant > s.Threshold*s.NormAverage/d.params.AverageDivisor ||
		s.NormInstant > d.params.AbsoluteFloor
	return s
}
