// SPDX-License-Identifier: MIT
package beat

import (
	"fmt"
	"strings"
)

// Instrument identifies one of the three tracked percussion voices.
type Instrument int

// Tracked instruments, in the order the session evaluates them.
const (
	Bass Instrument = iota
	Clap
	HiHat

	numInstruments = 3
)

// Instruments lists every instrument in evaluation order.
var Instruments = [numInstruments]Instrument{Bass, Clap, HiHat}

// String returns the lower-case instrument name.
func (i Instrument) String() string {
	switch i {
	case Bass:
		return "bass"
	case Clap:
		return "clap"
	case HiHat:
		return "hihat"
	default:
		return fmt.Sprintf("instrument(%d)", int(i))
	}
}

// MarshalText encodes the instrument by name so events serialise readably.
func (i Instrument) MarshalText() ([]byte, error) {
	if i < 0 || i >= numInstruments {
		return nil, fmt.Errorf("unknown instrument %d", int(i))
	}
	return []byte(i.String()), nil
}

// UnmarshalText parses an instrument name.
func (i *Instrument) UnmarshalText(text []byte) error {
	v, err := ParseInstrument(string(text))
	if err != nil {
		return err
	}
	*i = v
	return nil
}

// ParseInstrument converts a case-insensitive name to an Instrument.
func ParseInstrument(name string) (Instrument, error) {
	switch strings.ToLower(name) {
	case "bass", "kick":
		return Bass, nil
	case "clap", "snare":
		return Clap, nil
	case "hihat", "hi-hat", "hat":
		return HiHat, nil
	default:
		return 0, fmt.Errorf("unknown instrument %q", name)
	}
}

// Mapping reduces sub-band energies and excited flags to one instrument.
// Score is the weighted sum of the mapped bands divided by Divisor. The
// instrument is a candidate when at least MinExcited mapped bands are
// excited.
type Mapping struct {
	Bands      []int
	Weights    []float64
	Divisor    float64
	MinExcited int
}

// NewMapping resolves base+offsets to absolute band indices and checks them
// against the session's sub-band count.
func NewMapping(base int, offsets []int, weights []float64, divisor float64, minExcited, subBands int) (Mapping, error) {
	if len(offsets) == 0 {
		return Mapping{}, fmt.Errorf("%w: instrument maps no sub-bands", ErrInvalidConfiguration)
	}
	if len(weights) != len(offsets) {
		return Mapping{}, fmt.Errorf("%w: %d weights for %d sub-bands", ErrInvalidConfiguration, len(weights), len(offsets))
	}
	if divisor == 0 {
		return Mapping{}, fmt.Errorf("%w: instrument divisor must not be zero", ErrInvalidConfiguration)
	}
	if minExcited < 1 || minExcited > len(offsets) {
		return Mapping{}, fmt.Errorf("%w: min excited %d outside [1, %d]", ErrInvalidConfiguration, minExcited, len(offsets))
	}

	bands := make([]int, len(offsets))
	for i, off := range offsets {
		b := base + off
		if b < 0 || b >= subBands {
			return Mapping{}, fmt.Errorf("%w: sub-band %d (base %d + offset %d) outside [0, %d)",
				ErrInvalidConfiguration, b, base, off, subBands)
		}
		bands[i] = b
	}

	return Mapping{
		Bands:      bands,
		Weights:    append([]float64(nil), weights...),
		Divisor:    divisor,
		MinExcited: minExcited,
	}, nil
}

// Score returns the weighted mean energy of the mapped bands.
func (m Mapping) Score(energies []float64) float64 {
	var sum float64
	for i, b := range m.Bands {
		sum += m.Weights[i] * energies[b]
	}
	return sum / m.Divisor
}

// Candidate reports whether at least MinExcited mapped bands are excited.
func (m Mapping) Candidate(excited []bool) bool {
	count := 0
	for _, b := range m.Bands {
		if excited[b] {
			count++
			if count >= m.MinExcited {
				return true
			}
		}
	}
	return false
}
