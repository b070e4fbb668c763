// SPDX-License-Identifier: MIT
/*
Package beat turns a stream of fixed-size audio chunks into bass, clap and
hi-hat events.

Each chunk goes through the same steps, strictly in order:

 1. Hann window + real FFT, restricted to the configured frequency band
 2. Cubic mean energy per sub-band
 3. Adaptive threshold against the last second of energies, per sub-band
 4. Per-instrument score and candidate flag from fixed sub-band mappings
 5. Per-instrument debounce and confirmation
 6. The instant energies join the history

Every step depends on state left by the previous chunk, so a Session must be
fed from one goroutine. Nothing in the session reads the clock: the same
chunks always produce the same events.
*/
package beat

import (
	"errors"
	"fmt"
	"time"

	"beats/internal/analysis"
	applog "beats/internal/log"
)

// Errors returned by the session.
var (
	// ErrInvalidConfiguration is fatal: the session cannot be built.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrInputShapeMismatch rejects one chunk. The chunk is skipped without
	// consuming an index or a history slot.
	ErrInputShapeMismatch = errors.New("input shape mismatch")
)

// BeatEvent is a confirmed hit.
type BeatEvent struct {
	Instrument Instrument `json:"instrument"`
	ChunkIndex int        `json:"chunk_index"`
	Energy     float64    `json:"energy"`
}

// InstrumentConfig describes one instrument's sub-band mapping and tracker.
type InstrumentConfig struct {
	BaseBand   int
	Offsets    []int
	Weights    []float64
	Divisor    float64
	MinExcited int
	Tracker    TrackerConfig
}

// Config is everything a Session needs. All fields are required; see
// DefaultConfig for the tuned values.
type Config struct {
	SampleRate     float64 // Hz.
	ChunkSize      int     // Samples per chunk.
	HistorySeconds float64 // Energy history window.
	SubBands       int
	FrequencyLow   float64 // Hz, inclusive.
	FrequencyHigh  float64 // Hz, inclusive.
	Threshold      analysis.ThresholdParams
	Instruments    [numInstruments]InstrumentConfig // Indexed by Instrument.
	HiHatGapBatch  int                              // Gaps per hi-hat diagnostics batch; 0 disables.
}

// DefaultConfig returns the configuration the detector constants were tuned
// with: 94618 Hz, 2048-sample chunks, 39 sub-bands over 30–9010 Hz and a one
// second history.
func DefaultConfig() Config {
	return Config{
		SampleRate:     94618,
		ChunkSize:      2048,
		HistorySeconds: 1,
		SubBands:       39,
		FrequencyLow:   30,
		FrequencyHigh:  9010,
		Threshold:      analysis.DefaultThresholdParams(),
		Instruments: [numInstruments]InstrumentConfig{
			Bass: {
				BaseBand: 0, Offsets: []int{0}, Weights: []float64{1}, Divisor: 1, MinExcited: 1,
				Tracker: TrackerConfig{MinGap: 8, ConfirmFactor: 0.64, ConfirmGain: 1, PrimingSize: 4},
			},
			Clap: {
				BaseBand:   11,
				Offsets:    []int{0, 1, 2, 5, 6, 9, 10},
				Weights:    []float64{1.2, 1.3, 1.5, 1.4, 1.6, 1.4, 1.6},
				Divisor:    10,
				MinExcited: 7,
				Tracker:    TrackerConfig{MinGap: 3, ConfirmFactor: 0.64, ConfirmGain: 1.6, PrimingSize: 3},
			},
			HiHat: {
				BaseBand:   27,
				Offsets:    []int{0, 1, 2, 3, 4},
				Weights:    []float64{1.3, 1.7, 1.4, 1.2, 1.4},
				Divisor:    7,
				MinExcited: 1,
				Tracker:    TrackerConfig{MinGap: 3, ConfirmFactor: 0.64, ConfirmGain: 1, PrimingSize: 5},
			},
		},
		HiHatGapBatch: 35,
	}
}

// ChunksPerSecond returns the whole number of chunks in one second of audio.
func (c Config) ChunksPerSecond() int {
	if c.ChunkSize <= 0 {
		return 0
	}
	return int(c.SampleRate / float64(c.ChunkSize))
}

// HistoryLength returns the number of energy vectors kept in history.
func (c Config) HistoryLength() int {
	return int(c.HistorySeconds * float64(c.ChunksPerSecond()))
}

// ChunkDuration returns the audio time covered by one chunk, which is also
// the average processing budget per chunk.
func (c Config) ChunkDuration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(c.ChunkSize) / c.SampleRate * float64(time.Second))
}

// Validate checks the configuration without building a session.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfiguration, c.ChunkSize)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive, got %g", ErrInvalidConfiguration, c.SampleRate)
	}
	if c.SubBands <= 0 {
		return fmt.Errorf("%w: sub-band count must be positive, got %d", ErrInvalidConfiguration, c.SubBands)
	}
	if h := c.HistoryLength(); h < 2 {
		return fmt.Errorf("%w: history of %g s holds %d chunks, need at least 2", ErrInvalidConfiguration, c.HistorySeconds, h)
	}
	if c.HiHatGapBatch < 0 {
		return fmt.Errorf("%w: hi-hat gap batch must not be negative", ErrInvalidConfiguration)
	}

	first, last, err := analysis.BandBins(c.ChunkSize, c.SampleRate, c.FrequencyLow, c.FrequencyHigh)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	if bins := last - first; bins < c.SubBands {
		return fmt.Errorf("%w: band [%g, %g] Hz has %d bins, fewer than %d sub-bands",
			ErrInvalidConfiguration, c.FrequencyLow, c.FrequencyHigh, bins, c.SubBands)
	}
	if err := c.Threshold.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}

	for _, inst := range Instruments {
		ic := c.Instruments[inst]
		if _, err := NewMapping(ic.BaseBand, ic.Offsets, ic.Weights, ic.Divisor, ic.MinExcited, c.SubBands); err != nil {
			return fmt.Errorf("%s: %w", inst, err)
		}
		if err := ic.Tracker.Validate(); err != nil {
			return fmt.Errorf("%s: %w", inst, err)
		}
	}
	return nil
}

// Result is the outcome of one ProcessChunk call. Slices alias session
// buffers and are overwritten by the next call; use Clone to keep them.
type Result struct {
	Index      int                     `json:"index"`
	Priming    bool                    `json:"priming"`              // History was still filling; no detection ran.
	Energies   []float64               `json:"energies"`             // Instant sub-band energies.
	Excited    []bool                  `json:"excited,omitempty"`    // Per sub-band; nil while priming.
	Scores     [numInstruments]float64 `json:"scores"`               // Indexed by Instrument.
	Candidates [numInstruments]bool    `json:"candidates"`           // Indexed by Instrument.
	Outcomes   [numInstruments]Outcome `json:"outcomes"`             // Indexed by Instrument.
	Events     []BeatEvent             `json:"events,omitempty"`     // Confirmed hits, in instrument order.
	HiHatGaps  GapSnapshot             `json:"hihat_gaps"`           // Last published hi-hat gap batch.
	Degenerate int                     `json:"degenerate,omitempty"` // Sub-bands with an all-zero history.
}

// Clone returns a copy of r that does not alias session buffers.
func (r Result) Clone() Result {
	r.Energies = append([]float64(nil), r.Energies...)
	if r.Excited != nil {
		r.Excited = append([]bool(nil), r.Excited...)
	}
	if r.Events != nil {
		r.Events = append([]BeatEvent(nil), r.Events...)
	}
	return r
}

// Session owns all detection state for one audio stream.
type Session struct {
	cfg         Config
	transformer *analysis.SpectralTransformer
	partitioner *analysis.Partitioner
	history     *analysis.EnergyHistory
	detector    *analysis.Detector
	mappings    [numInstruments]Mapping
	trackers    [numInstruments]*Tracker
	hihatGaps   *GapStats

	index    int // Accepted chunks so far.
	energies []float64
	events   []BeatEvent

	degenerateLog *applog.Throttle
}

// NewSession validates cfg and allocates every buffer the session needs.
func NewSession(cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	transformer, err := analysis.NewSpectralTransformer(cfg.ChunkSize, cfg.SampleRate, cfg.FrequencyLow, cfg.FrequencyHigh)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	partitioner, err := analysis.NewPartitioner(cfg.SubBands)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	history, err := analysis.NewEnergyHistory(cfg.HistoryLength(), cfg.SubBands)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	detector, err := analysis.NewDetector(cfg.SubBands, cfg.Threshold)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}

	s := &Session{
		cfg:           cfg,
		transformer:   transformer,
		partitioner:   partitioner,
		history:       history,
		detector:      detector,
		hihatGaps:     NewGapStats(cfg.HiHatGapBatch),
		energies:      make([]float64, cfg.SubBands),
		events:        make([]BeatEvent, 0, numInstruments),
		degenerateLog: applog.NewThrottle(uint64(max(cfg.ChunksPerSecond(), 1))),
	}
	for _, inst := range Instruments {
		ic := cfg.Instruments[inst]
		s.mappings[inst], err = NewMapping(ic.BaseBand, ic.Offsets, ic.Weights, ic.Divisor, ic.MinExcited, cfg.SubBands)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", inst, err)
		}
		s.trackers[inst], err = NewTracker(inst, ic.Tracker)
		if err != nil {
			return nil, err
		}
	}

	applog.Debugf("beat: session ready (%.0f Hz, %d-sample chunks, %d sub-bands over %d bins, history %d chunks)",
		cfg.SampleRate, cfg.ChunkSize, cfg.SubBands, transformer.Bins(), history.Capacity())
	return s, nil
}

// ProcessChunk runs one chunk through the pipeline. A chunk of the wrong
// length returns ErrInputShapeMismatch and leaves the session untouched.
//
// The first HistoryLength accepted chunks only fill the history and report
// Priming. Chunk indices count every accepted chunk, priming included.
func (s *Session) ProcessChunk(chunk []int16) (Result, error) {
	if len(chunk) != s.cfg.ChunkSize {
		return Result{}, fmt.Errorf("%w: chunk %d has %d samples, expected %d",
			ErrInputShapeMismatch, s.index, len(chunk), s.cfg.ChunkSize)
	}

	frame, err := s.transformer.Transform(chunk)
	if err != nil {
		return Result{}, err
	}
	s.energies, err = s.partitioner.Energies(s.energies, frame.Amplitudes)
	if err != nil {
		return Result{}, err
	}

	res := Result{Index: s.index, Energies: s.energies}

	if !s.history.Full() {
		res.Priming = true
		res.HiHatGaps = s.hihatGaps.Snapshot()
		return res, s.advance()
	}

	excited, err := s.detector.Detect(s.energies, s.history)
	if err != nil {
		return Result{}, err
	}
	res.Excited = excited
	if res.Degenerate = s.detector.DegenerateBands(); res.Degenerate > 0 {
		s.degenerateLog.Debugf("beat: chunk %d: %d sub-bands have an all-zero history", s.index, res.Degenerate)
	}

	s.events = s.events[:0]
	for _, inst := range Instruments {
		m := s.mappings[inst]
		res.Scores[inst] = m.Score(s.energies)
		res.Candidates[inst] = m.Candidate(excited)

		tracker := s.trackers[inst]
		previous := tracker.LastTrigger()
		event, outcome := tracker.Offer(s.index, res.Candidates[inst], res.Scores[inst])
		res.Outcomes[inst] = outcome
		if outcome != OutcomeConfirmed {
			continue
		}
		s.events = append(s.events, event)
		if inst == HiHat {
			s.hihatGaps.Observe(s.index - previous)
		}
	}
	res.Events = s.events
	res.HiHatGaps = s.hihatGaps.Snapshot()

	return res, s.advance()
}

// advance commits the current chunk: its energies join the history and the
// index moves on.
func (s *Session) advance() error {
	if err := s.history.Push(s.energies); err != nil {
		return err
	}
	s.index++
	return nil
}

// Config returns the session configuration.
func (s *Session) Config() Config { return s.cfg }

// Index returns the index the next accepted chunk will get.
func (s *Session) Index() int { return s.index }

// Priming reports whether the energy history is still filling.
func (s *Session) Priming() bool { return !s.history.Full() }

// History exposes the energy history for diagnostics. Callers must not push.
func (s *Session) History() *analysis.EnergyHistory { return s.history }

// Tracker returns the tracker of one instrument.
func (s *Session) Tracker(inst Instrument) *Tracker { return s.trackers[inst] }

// Mapping returns the sub-band mapping of one instrument.
func (s *Session) Mapping(inst Instrument) Mapping { return s.mappings[inst] }

// ThresholdStats returns the detector's per-band statistics for the last
// chunk that ran detection.
func (s *Session) ThresholdStats() []analysis.BandStats { return s.detector.Stats() }

// HiHatGaps returns the last published hi-hat gap batch.
func (s *Session) HiHatGaps() GapSnapshot { return s.hihatGaps.Snapshot() }

// Bins returns the number of spectral bins split into sub-bands.
func (s *Session) Bins() int { return s.transformer.Bins() }
