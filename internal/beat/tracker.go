// SPDX-License-Identifier: MIT
package beat

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Phase is the state of a Tracker's confirmed-energy baseline.
type Phase int

const (
	// Priming trackers accept every gap-satisfying candidate into their
	// history without judging it.
	Priming Phase = iota
	// Active trackers confirm candidates against their history.
	Active
)

func (p Phase) String() string {
	if p == Active {
		return "active"
	}
	return "priming"
}

// Outcome describes what a Tracker did with one offer.
type Outcome int

const (
	OutcomeIdle         Outcome = iota // Not a candidate.
	OutcomeGapped                      // Candidate too close to the last hit.
	OutcomeBootstrapped                // Appended to the baseline while priming; no event.
	OutcomeRejected                    // Failed the confirmation test.
	OutcomeDegenerate                  // Baseline max is zero; cannot confirm.
	OutcomeConfirmed                   // Beat emitted.
)

var outcomeNames = [...]string{"idle", "gapped", "bootstrapped", "rejected", "degenerate", "confirmed"}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return fmt.Sprintf("outcome(%d)", int(o))
	}
	return outcomeNames[o]
}

// MarshalText encodes the outcome by name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// TrackerConfig holds the debounce and confirmation constants of one
// instrument.
type TrackerConfig struct {
	MinGap        int     // Chunks since the last hit must be strictly greater.
	ConfirmFactor float64 // Confirm if score*gain/max > avg*var*ConfirmFactor.
	ConfirmGain   float64 // Applied to the score when confirming and when storing a confirmed score.
	PrimingSize   int     // Baseline size that ends priming; also the baseline capacity.
}

// Validate checks the tracker constants.
func (c TrackerConfig) Validate() error {
	if c.MinGap < 0 {
		return fmt.Errorf("%w: min gap must not be negative, got %d", ErrInvalidConfiguration, c.MinGap)
	}
	if c.PrimingSize < 1 {
		return fmt.Errorf("%w: priming size must be at least 1, got %d", ErrInvalidConfiguration, c.PrimingSize)
	}
	if c.ConfirmGain <= 0 {
		return fmt.Errorf("%w: confirm gain must be positive, got %g", ErrInvalidConfiguration, c.ConfirmGain)
	}
	if c.ConfirmFactor < 0 {
		return fmt.Errorf("%w: confirm factor must not be negative, got %g", ErrInvalidConfiguration, c.ConfirmFactor)
	}
	return nil
}

// Tracker debounces and confirms candidates for one instrument.
//
// A candidate offered within MinGap chunks of the last confirmed hit is
// ignored. While fewer than PrimingSize energies have been collected the
// tracker is priming: it appends the raw score to its baseline and emits
// nothing, which is how it bootstraps. Once the baseline is full every
// candidate is judged against it, and confirmed scores slide into it.
type Tracker struct {
	instrument  Instrument
	cfg         TrackerConfig
	lastTrigger int
	baseline    []float64 // Oldest first, len <= PrimingSize.
	norm        []float64
}

// NewTracker returns a priming tracker whose last hit is chunk 0.
func NewTracker(instrument Instrument, cfg TrackerConfig) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s tracker: %w", instrument, err)
	}
	return &Tracker{
		instrument: instrument,
		cfg:        cfg,
		baseline:   make([]float64, 0, cfg.PrimingSize),
		norm:       make([]float64, cfg.PrimingSize),
	}, nil
}

// Offer evaluates one chunk for this instrument. The returned event is only
// meaningful when the outcome is OutcomeConfirmed.
func (t *Tracker) Offer(index int, candidate bool, score float64) (BeatEvent, Outcome) {
	if !candidate {
		return BeatEvent{}, OutcomeIdle
	}
	if index-t.lastTrigger <= t.cfg.MinGap {
		return BeatEvent{}, OutcomeGapped
	}

	if t.Phase() == Priming {
		t.baseline = append(t.baseline, score)
		return BeatEvent{}, OutcomeBootstrapped
	}

	maxH := floats.Max(t.baseline)
	if maxH == 0 {
		return BeatEvent{}, OutcomeDegenerate
	}

	norm := t.norm[:len(t.baseline)]
	floats.ScaleTo(norm, 1/maxH, t.baseline)
	avgH, varH := stat.PopMeanVariance(norm, nil)

	gained := score * t.cfg.ConfirmGain
	if gained/maxH <= avgH*varH*t.cfg.ConfirmFactor {
		return BeatEvent{}, OutcomeRejected
	}

	t.lastTrigger = index
	copy(t.baseline, t.baseline[1:])
	t.baseline[len(t.baseline)-1] = gained

	return BeatEvent{Instrument: t.instrument, ChunkIndex: index, Energy: score}, OutcomeConfirmed
}

// Instrument returns the tracked instrument.
func (t *Tracker) Instrument() Instrument { return t.instrument }

// Phase reports whether the baseline is still being bootstrapped.
func (t *Tracker) Phase() Phase {
	if len(t.baseline) < t.cfg.PrimingSize {
		return Priming
	}
	return Active
}

// LastTrigger returns the chunk index of the last confirmed hit (0 before any).
func (t *Tracker) LastTrigger() int { return t.lastTrigger }

// Baseline returns a copy of the confirmed-energy history, oldest first.
func (t *Tracker) Baseline() []float64 {
	return append([]float64(nil), t.baseline...)
}

// Config returns the tracker constants.
func (t *Tracker) Config() TrackerConfig { return t.cfg }
