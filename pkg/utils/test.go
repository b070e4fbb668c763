// Package utils holds deterministic signal generators and spectrum helpers
// shared by tests across the module.
package utils

import "math"

// GenerateSineWave returns size 16-bit samples of a sine at frequency Hz
// with the given peak amplitude (clamped to the int16 range).
func GenerateSineWave(size int, sampleRate, frequency, amplitude float64) []int16 {
	buffer := make([]int16, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = clamp16(math.Sin(2*math.Pi*frequency*t) * amplitude)
	}
	return buffer
}

// GenerateComplexWave returns a 440Hz fundamental plus two harmonics at 90%
// of full scale.
func GenerateComplexWave(size int, sampleRate float64) []int16 {
	buffer := make([]int16, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = clamp16(signal * math.MaxInt16 * 0.9)
	}
	return buffer
}

// GenerateNoise returns size samples of uniform noise from a fixed linear
// congruential sequence, so the same seed always yields the same samples.
func GenerateNoise(size int, amplitude float64, seed uint32) []int16 {
	buffer := make([]int16, size)
	state := seed
	for i := range buffer {
		state = state*1664525 + 1013904223
		u := float64(state)/float64(math.MaxUint32)*2 - 1
		buffer[i] = clamp16(u * amplitude)
	}
	return buffer
}

// Silence returns size zero samples.
func Silence(size int) []int16 {
	return make([]int16, size)
}

// Interleave builds a multi-channel frame buffer where channel 0 carries left
// and every other channel carries right.
func Interleave(left, right []int16, channels int) []int16 {
	out := make([]int16, len(left)*channels)
	for i := range left {
		out[i*channels] = left[i]
		for c := 1; c < channels; c++ {
			out[i*channels+c] = right[i]
		}
	}
	return out
}

// FindPeakBin returns the index of the largest magnitude in
// magnitudes[startBin:endBin+1].
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}

func clamp16(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(math.Round(v))
	}
}
