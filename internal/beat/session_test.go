// SPDX-License-Identifier: MIT
package beat

import (
	"errors"
	"math"
	"testing"
	"time"

	"beats/pkg/utils"
)

func newTestSession(t testing.TB) *Session {
	t.Helper()
	s, err := NewSession(DefaultConfig())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

func TestDefaultConfigDerived(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.ChunksPerSecond(); got != 46 {
		t.Errorf("ChunksPerSecond() = %d, want 46", got)
	}
	if got := cfg.HistoryLength(); got != 46 {
		t.Errorf("HistoryLength() = %d, want 46", got)
	}
	// 2048 / 94618 s is about 21.6 ms.
	if d := cfg.ChunkDuration(); d < 21*time.Millisecond || d > 22*time.Millisecond {
		t.Errorf("ChunkDuration() = %v, want about 21.6ms", d)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		desc   string
		mutate func(*Config)
	}{
		{"Zero chunk", func(c *Config) { c.ChunkSize = 0 }},
		{"Zero sample rate", func(c *Config) { c.SampleRate = 0 }},
		{"Zero sub-bands", func(c *Config) { c.SubBands = 0 }},
		{"History too short", func(c *Config) { c.HistorySeconds = 0.02 }},
		{"More sub-bands than bins", func(c *Config) { c.SubBands = 196 }},
		{"Empty band", func(c *Config) { c.FrequencyLow, c.FrequencyHigh = 9000, 30 }},
		{"Zero average divisor", func(c *Config) { c.Threshold.AverageDivisor = 0 }},
		{"Clap past last band", func(c *Config) { c.Instruments[Clap].BaseBand = 30 }},
		{"Bass priming", func(c *Config) { c.Instruments[Bass].Tracker.PrimingSize = 0 }},
		{"Negative gap batch", func(c *Config) { c.HiHatGapBatch = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if _, err := NewSession(cfg); !errors.Is(err, ErrInvalidConfiguration) {
				t.Errorf("expected ErrInvalidConfiguration, got %v", err)
			}
		})
	}
}

func TestSessionPrimingPhase(t *testing.T) {
	s := newTestSession(t)
	chunk := utils.GenerateNoise(2048, 8000, 1)

	for i := range 46 {
		if !s.Priming() {
			t.Fatalf("chunk %d: session stopped priming early", i)
		}
		res, err := s.ProcessChunk(chunk)
		if err != nil {
			t.Fatalf("chunk %d: %v", i, err)
		}
		if !res.Priming || res.Index != i {
			t.Fatalf("chunk %d: result %+v", i, res)
		}
		if res.Excited != nil || len(res.Events) != 0 {
			t.Fatalf("chunk %d: detection ran while priming", i)
		}
		if got := s.History().Len(); got != i+1 {
			t.Fatalf("chunk %d: history length %d", i, got)
		}
	}
	if s.Priming() {
		t.Fatal("session still priming after 46 chunks")
	}

	res, err := s.ProcessChunk(chunk)
	if err != nil {
		t.Fatalf("first detection chunk: %v", err)
	}
	if res.Priming || res.Index != 46 || len(res.Excited) != 39 {
		t.Errorf("first detection result: index %d, priming %v, %d excited flags",
			res.Index, res.Priming, len(res.Excited))
	}
}

func TestSessionSkipsWrongLength(t *testing.T) {
	s := newTestSession(t)
	chunk := utils.GenerateNoise(2048, 8000, 7)
	for range 3 {
		if _, err := s.ProcessChunk(chunk); err != nil {
			t.Fatalf("ProcessChunk: %v", err)
		}
	}

	for _, n := range []int{0, 1024, 2047, 4096} {
		if _, err := s.ProcessChunk(make([]int16, n)); !errors.Is(err, ErrInputShapeMismatch) {
			t.Errorf("%d samples: expected ErrInputShapeMismatch, got %v", n, err)
		}
	}
	if s.Index() != 3 || s.History().Len() != 3 {
		t.Errorf("rejected chunks consumed state: index %d, history %d", s.Index(), s.History().Len())
	}

	res, err := s.ProcessChunk(chunk)
	if err != nil {
		t.Fatalf("ProcessChunk: %v", err)
	}
	if res.Index != 3 {
		t.Errorf("next index = %d, want 3", res.Index)
	}
}

func TestSessionHistoryBounded(t *testing.T) {
	s := newTestSession(t)
	for i := range 200 {
		if _, err := s.ProcessChunk(utils.GenerateNoise(2048, 6000, uint32(i))); err != nil {
			t.Fatalf("chunk %d: %v", i, err)
		}
		if s.History().Len() > 46 {
			t.Fatalf("chunk %d: history grew to %d", i, s.History().Len())
		}
	}
	if s.Index() != 200 {
		t.Errorf("Index() = %d, want 200", s.Index())
	}
}

func TestSessionOnsetFromSilence(t *testing.T) {
	s := newTestSession(t)
	silence := utils.Silence(2048)
	for i := range 46 {
		if _, err := s.ProcessChunk(silence); err != nil {
			t.Fatalf("silent chunk %d: %v", i, err)
		}
	}

	// FFT bin 3 is the middle of the first five-bin sub-band.
	tone := utils.GenerateSineWave(2048, 94618, 3*94618.0/2048, 20000)
	res, err := s.ProcessChunk(tone)
	if err != nil {
		t.Fatalf("tone chunk: %v", err)
	}

	if res.Index != 46 || res.Priming {
		t.Fatalf("tone result: index %d, priming %v", res.Index, res.Priming)
	}
	if res.Degenerate != 39 {
		t.Errorf("Degenerate = %d, want 39 after pure silence", res.Degenerate)
	}
	if !res.Excited[0] {
		t.Fatal("sub-band 0 should be excited by a tone out of silence")
	}
	if !res.Candidates[Bass] {
		t.Fatal("bass should be a candidate")
	}
	if res.Outcomes[Bass] != OutcomeBootstrapped {
		t.Errorf("bass outcome = %s, want bootstrapped", res.Outcomes[Bass])
	}
	if got := s.Tracker(Bass).Baseline(); len(got) != 1 || got[0] != res.Scores[Bass] {
		t.Errorf("bass baseline = %v, want [%g]", got, res.Scores[Bass])
	}
	if len(res.Events) != 0 {
		t.Errorf("priming tracker emitted %v", res.Events)
	}
	for i, s := range s.ThresholdStats() {
		if math.IsNaN(s.Threshold) || math.IsInf(s.Threshold, 0) {
			t.Fatalf("band %d threshold is not finite", i)
		}
	}
}

func TestSessionSilenceNeverExcites(t *testing.T) {
	s := newTestSession(t)
	silence := utils.Silence(2048)
	for i := range 120 {
		res, err := s.ProcessChunk(silence)
		if err != nil {
			t.Fatalf("chunk %d: %v", i, err)
		}
		for b, e := range res.Excited {
			if e {
				t.Fatalf("chunk %d: silent band %d excited", i, b)
			}
		}
		if len(res.Events) != 0 {
			t.Fatalf("chunk %d: events from silence %v", i, res.Events)
		}
	}
}

// pulses yields a loud bass pulse every period chunks over low noise.
func pulses(index, period int) []int16 {
	if index%period == 0 {
		return utils.GenerateSineWave(2048, 94618, 3*94618.0/2048, 25000)
	}
	return utils.GenerateNoise(2048, 200, uint32(index))
}

func TestSessionConfirmsPeriodicBass(t *testing.T) {
	s := newTestSession(t)
	var events []BeatEvent
	for i := range 600 {
		res, err := s.ProcessChunk(pulses(i, 12))
		if err != nil {
			t.Fatalf("chunk %d: %v", i, err)
		}
		for _, ev := range res.Events {
			if ev.Instrument == Bass {
				events = append(events, ev)
			}
		}
	}

	if len(events) == 0 {
		t.Fatal("no bass events from a regular pulse train")
	}
	for i := 1; i < len(events); i++ {
		if gap := events[i].ChunkIndex - events[i-1].ChunkIndex; gap <= 8 {
			t.Fatalf("bass events %d and %d only %d chunks apart", i-1, i, gap)
		}
	}
	for _, ev := range events {
		if ev.ChunkIndex%12 != 0 {
			t.Errorf("bass event at chunk %d, not on a pulse", ev.ChunkIndex)
		}
	}
}

func TestSessionDeterministic(t *testing.T) {
	a := newTestSession(t)
	b := newTestSession(t)

	for i := range 300 {
		chunk := pulses(i, 9)
		ra, errA := a.ProcessChunk(chunk)
		rb, errB := b.ProcessChunk(chunk)
		if (errA == nil) != (errB == nil) {
			t.Fatalf("chunk %d: errors differ: %v vs %v", i, errA, errB)
		}
		if ra.Outcomes != rb.Outcomes || ra.Scores != rb.Scores || len(ra.Events) != len(rb.Events) {
			t.Fatalf("chunk %d: sessions diverged", i)
		}
		for j := range ra.Events {
			if ra.Events[j] != rb.Events[j] {
				t.Fatalf("chunk %d: event %d differs: %+v vs %+v", i, j, ra.Events[j], rb.Events[j])
			}
		}
	}
}

func TestResultClone(t *testing.T) {
	s := newTestSession(t)
	res, err := s.ProcessChunk(utils.GenerateNoise(2048, 8000, 3))
	if err != nil {
		t.Fatalf("ProcessChunk: %v", err)
	}
	kept := res.Clone()
	want := kept.Energies[0]

	if _, err := s.ProcessChunk(utils.Silence(2048)); err != nil {
		t.Fatalf("ProcessChunk: %v", err)
	}
	if kept.Energies[0] != want {
		t.Error("cloned energies changed with the next chunk")
	}
	if res.Energies[0] != 0 {
		t.Error("result energies should alias the session buffer")
	}
}

func TestProcessChunkHotPath(t *testing.T) {
	s := newTestSession(t)
	chunk := utils.GenerateNoise(2048, 8000, 11)
	for range 60 {
		_, _ = s.ProcessChunk(chunk)
	}
	allocs := testing.AllocsPerRun(50, func() {
		_, _ = s.ProcessChunk(chunk)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in ProcessChunk, got %.1f", allocs)
	}
}

func BenchmarkProcessChunk(b *testing.B) {
	s := newTestSession(b)
	chunk := utils.GenerateComplexWave(2048, 94618)
	for range 46 {
		_, _ = s.ProcessChunk(chunk)
	}

	b.ReportAllocs()
	for b.Loop() {
		_, _ = s.ProcessChunk(chunk)
	}
}
