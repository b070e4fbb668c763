// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// ErrInvalidInput is returned for empty chunks, non-positive sample rates,
// malformed frequency bands and other inputs no transform can be built from.
var ErrInvalidInput = errors.New("invalid input")

// SpectralFrame is the band-limited spectrum of one chunk. Frequencies and
// Amplitudes are parallel slices.
type SpectralFrame struct {
	Frequencies []float64
	Amplitudes  []complex128
}

// Len returns the number of bins in the frame.
func (f SpectralFrame) Len() int {
	return len(f.Amplitudes)
}

// Pre-allocated buffers for the transform.
type spectralWorkspace struct {
	input       []float64    // Windowed samples.
	fftOutput   []complex128 // N/2+1 coefficients.
	window      []float64    // Hann coefficients.
	frequencies []float64    // Center frequency of every kept bin.
}

// SpectralTransformer windows a chunk of 16-bit samples with a Hann window,
// takes its real FFT and keeps the bins whose center frequency lies within
// [low, high] Hz. It holds all buffers it needs, so Transform does not
// allocate. A SpectralTransformer is not safe for concurrent use.
type SpectralTransformer struct {
	fftCalculator *fourier.FFT
	size          int
	sampleRate    float64
	firstBin      int // Inclusive.
	lastBin       int // Exclusive.
	workspace     spectralWorkspace
}

// BandBins returns the half-open range [first, last) of real FFT bins whose
// center frequency k*sampleRate/size lies within [low, high].
func BandBins(size int, sampleRate, low, high float64) (first, last int, err error) {
	if size <= 0 {
		return 0, 0, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidInput, size)
	}
	if sampleRate <= 0 {
		return 0, 0, fmt.Errorf("%w: sample rate must be positive, got %f", ErrInvalidInput, sampleRate)
	}
	if low < 0 || high <= low {
		return 0, 0, fmt.Errorf("%w: frequency band [%g, %g] is malformed", ErrInvalidInput, low, high)
	}

	first, last = -1, -1
	for k := 0; k <= size/2; k++ {
		freq := float64(k) * sampleRate / float64(size)
		if freq < low || freq > high {
			continue
		}
		if first < 0 {
			first = k
		}
		last = k + 1
	}
	if first < 0 {
		return 0, 0, fmt.Errorf("%w: no FFT bin falls within [%g, %g] Hz at %d samples and %g Hz", ErrInvalidInput, low, high, size, sampleRate)
	}
	return first, last, nil
}

// NewSpectralTransformer prepares a transform for chunks of size samples.
func NewSpectralTransformer(size int, sampleRate, low, high float64) (*SpectralTransformer, error) {
	first, last, err := BandBins(size, sampleRate, low, high)
	if err != nil {
		return nil, err
	}

	windowCoeffs := make([]float64, size)
	for i := range windowCoeffs {
		windowCoeffs[i] = 1
	}
	// A one-sample Hann window is undefined (0/0); leave it flat.
	if size > 1 {
		window.Hann(windowCoeffs)
	}

	frequencies := make([]float64, last-first)
	for i := range frequencies {
		frequencies[i] = float64(first+i) * sampleRate / float64(size)
	}

	return &SpectralTransformer{
		fftCalculator: fourier.NewFFT(size),
		size:          size,
		sampleRate:    sampleRate,
		firstBin:      first,
		lastBin:       last,
		workspace: spectralWorkspace{
			input:       make([]float64, size),
			fftOutput:   make([]complex128, size/2+1),
			window:      windowCoeffs,
			frequencies: frequencies,
		},
	}, nil
}

// Transform computes the band-limited spectrum of chunk. The returned frame
// shares the transformer's buffers and is only valid until the next call.
func (t *SpectralTransformer) Transform(chunk []int16) (SpectralFrame, error) {
	if len(chunk) == 0 || len(chunk) != t.size {
		return SpectralFrame{}, fmt.Errorf("%w: chunk has %d samples, transform expects %d", ErrInvalidInput, len(chunk), t.size)
	}

	for i, sample := range chunk {
		t.workspace.input[i] = float64(sample) * t.workspace.window[i]
	}
	t.fftCalculator.Coefficients(t.workspace.fftOutput, t.workspace.input)

	return SpectralFrame{
		Frequencies: t.workspace.frequencies,
		Amplitudes:  t.workspace.fftOutput[t.firstBin:t.lastBin],
	}, nil
}

// Bins returns the number of bins in every frame this transformer produces.
func (t *SpectralTransformer) Bins() int {
	return t.lastBin - t.firstBin
}

// Size returns the chunk size the transformer expects.
func (t *SpectralTransformer) Size() int {
	return t.size
}

// SampleRate returns the configured sample rate (Hz).
func (t *SpectralTransformer) SampleRate() float64 {
	return t.sampleRate
}

// FrequencyForBin returns the center frequency (Hz) of frame bin i, or 0 if
// i is outside the frame.
func (t *SpectralTransformer) FrequencyForBin(i int) float64 {
	if i < 0 || i >= len(t.workspace.frequencies) {
		return 0
	}
	return t.workspace.frequencies[i]
}
