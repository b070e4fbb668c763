// SPDX-License-Identifier: MIT
package beat

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestParseInstrument(t *testing.T) {
	tests := []struct {
		name    string
		want    Instrument
		wantErr bool
	}{
		{"bass", Bass, false},
		{"Kick", Bass, false},
		{"CLAP", Clap, false},
		{"hi-hat", HiHat, false},
		{"hihat", HiHat, false},
		{"cowbell", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInstrument(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBeatEventJSON(t *testing.T) {
	data, err := json.Marshal(BeatEvent{Instrument: HiHat, ChunkIndex: 120, Energy: 2.5})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"instrument":"hihat","chunk_index":120,"energy":2.5}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}

	var back BeatEvent
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.Instrument != HiHat {
		t.Errorf("instrument = %s, want hihat", back.Instrument)
	}
}

func TestNewMappingInvalid(t *testing.T) {
	tests := []struct {
		desc       string
		base       int
		offsets    []int
		weights    []float64
		divisor    float64
		minExcited int
	}{
		{"No bands", 0, nil, nil, 1, 1},
		{"Weight count", 0, []int{0, 1}, []float64{1}, 1, 1},
		{"Zero divisor", 0, []int{0}, []float64{1}, 0, 1},
		{"Min excited zero", 0, []int{0}, []float64{1}, 1, 0},
		{"Min excited too large", 0, []int{0}, []float64{1}, 1, 2},
		{"Band past end", 36, []int{0, 5}, []float64{1, 1}, 1, 1},
		{"Negative band", 0, []int{-1}, []float64{1}, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			_, err := NewMapping(tt.base, tt.offsets, tt.weights, tt.divisor, tt.minExcited, 39)
			if !errors.Is(err, ErrInvalidConfiguration) {
				t.Errorf("expected ErrInvalidConfiguration, got %v", err)
			}
		})
	}
}

func TestMappingScoreAndCandidate(t *testing.T) {
	cfg := DefaultConfig().Instruments[Clap]
	m, err := NewMapping(cfg.BaseBand, cfg.Offsets, cfg.Weights, cfg.Divisor, cfg.MinExcited, 39)
	if err != nil {
		t.Fatalf("NewMapping: %v", err)
	}

	wantBands := []int{11, 12, 13, 16, 17, 20, 21}
	for i, b := range wantBands {
		if m.Bands[i] != b {
			t.Fatalf("bands = %v, want %v", m.Bands, wantBands)
		}
	}

	energies := make([]float64, 39)
	for _, b := range m.Bands {
		energies[b] = 1
	}
	// Sum of weights is 10, divided by 10.
	if got := m.Score(energies); math.Abs(got-1) > 1e-12 {
		t.Errorf("Score = %g, want 1", got)
	}

	excited := make([]bool, 39)
	for _, b := range m.Bands[:6] {
		excited[b] = true
	}
	if m.Candidate(excited) {
		t.Error("six of seven clap bands must not be a candidate")
	}
	excited[m.Bands[6]] = true
	if !m.Candidate(excited) {
		t.Error("all seven clap bands should be a candidate")
	}
}

func TestHiHatNeedsOneBand(t *testing.T) {
	cfg := DefaultConfig().Instruments[HiHat]
	m, err := NewMapping(cfg.BaseBand, cfg.Offsets, cfg.Weights, cfg.Divisor, cfg.MinExcited, 39)
	if err != nil {
		t.Fatalf("NewMapping: %v", err)
	}
	excited := make([]bool, 39)
	excited[31] = true
	if !m.Candidate(excited) {
		t.Error("one excited hi-hat band should be a candidate")
	}
	excited[31], excited[32] = false, true
	if m.Candidate(excited) {
		t.Error("band 32 is outside the hi-hat mapping")
	}
}
