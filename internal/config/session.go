// SPDX-License-Identifier: MIT
package config

import (
	"time"

	"beats/internal/analysis"
	"beats/internal/beat"
)

// Session builds the detector configuration from the audio, detector and
// instrument sections. The chunk size is the capture buffer size, so one
// callback delivers exactly one chunk.
func (c *Config) Session() beat.Config {
	return beat.Config{
		SampleRate:     c.Audio.SampleRate,
		ChunkSize:      c.Audio.FramesPerBuffer,
		HistorySeconds: c.Detector.HistorySeconds,
		SubBands:       c.Detector.SubBands,
		FrequencyLow:   c.Detector.FrequencyLow,
		FrequencyHigh:  c.Detector.FrequencyHigh,
		Threshold: analysis.ThresholdParams{
			VarianceSlope:     c.Detector.VarianceSlope,
			VarianceIntercept: c.Detector.VarianceIntercept,
			AverageDivisor:    c.Detector.AverageDivisor,
			AbsoluteFloor:     c.Detector.AbsoluteFloor,
		},
		Instruments: [...]beat.InstrumentConfig{
			beat.Bass:  c.Instruments.Bass.session(),
			beat.Clap:  c.Instruments.Clap.session(),
			beat.HiHat: c.Instruments.HiHat.session(),
		},
		HiHatGapBatch: c.Detector.HiHatGapBatch,
	}
}

func (ic InstrumentConfig) session() beat.InstrumentConfig {
	return beat.InstrumentConfig{
		BaseBand:   ic.BaseBand,
		Offsets:    ic.Offsets,
		Weights:    ic.Weights,
		Divisor:    ic.Divisor,
		MinExcited: ic.MinExcited,
		Tracker: beat.TrackerConfig{
			MinGap:        ic.MinGap,
			ConfirmFactor: ic.ConfirmFactor,
			ConfirmGain:   ic.ConfirmGain,
			PrimingSize:   ic.PrimingSize,
		},
	}
}

// HistoryLength returns the number of chunks the energy history holds.
func (c *Config) HistoryLength() int {
	return c.Session().HistoryLength()
}

// ChunkDuration returns the audio time covered by one chunk.
func (c *Config) ChunkDuration() time.Duration {
	return c.Session().ChunkDuration()
}
