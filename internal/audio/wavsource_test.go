// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"beats/internal/beat"
	"beats/pkg/utils"
)

// writeWAV records chunks to a mono 16-bit file plus extra trailing samples.
func writeWAV(t *testing.T, chunks [][]int16, tail int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.wav")
	r, err := NewRecorder(path, testSampleRate, 16, testFrameSize)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	for _, c := range chunks {
		if err := r.Write(c); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if tail > 0 {
		if err := r.Write(make([]int16, tail)); err != nil {
			t.Fatalf("Write tail: %v", err)
		}
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}

func TestOpenWAVInvalid(t *testing.T) {
	if _, err := OpenWAV(filepath.Join(t.TempDir(), "missing.wav"), testFrameSize); err == nil {
		t.Error("expected an error for a missing file")
	}

	junk := filepath.Join(t.TempDir(), "junk.wav")
	if err := os.WriteFile(junk, []byte("definitely not RIFF data"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenWAV(junk, testFrameSize); err == nil {
		t.Error("expected an error for a non-WAV file")
	}

	if _, err := OpenWAV(junk, 0); err == nil {
		t.Error("expected an error for a zero chunk size")
	}
}

func TestWAVSourceDropsPartialChunk(t *testing.T) {
	chunks := [][]int16{
		utils.GenerateNoise(testFrameSize, 9000, 1),
		utils.GenerateNoise(testFrameSize, 9000, 2),
	}
	src, err := OpenWAV(writeWAV(t, chunks, 100), testFrameSize)
	if err != nil {
		t.Fatalf("OpenWAV: %v", err)
	}
	defer src.Close()

	dst := make([]int16, testFrameSize)
	for i := range chunks {
		got, err := src.Next(dst)
		if err != nil {
			t.Fatalf("chunk %d: %v", i, err)
		}
		if got[0] != chunks[i][0] || got[testFrameSize-1] != chunks[i][testFrameSize-1] {
			t.Errorf("chunk %d differs from what was written", i)
		}
	}
	if _, err := src.Next(dst); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF for the 100-sample tail, got %v", err)
	}
	if src.Chunks() != 2 {
		t.Errorf("Chunks() = %d, want 2", src.Chunks())
	}
}

func TestToInt16(t *testing.T) {
	tests := []struct {
		v, depth int
		want     int16
	}{
		{128, 8, 0},
		{255, 8, 127 << 8},
		{0, 8, -128 << 8},
		{-32768, 16, -32768},
		{0x7fffff, 24, 0x7fff},
		{-0x800000, 24, -0x8000},
		{0x7fffffff, 32, 0x7fff},
	}
	for _, tt := range tests {
		if got := toInt16(tt.v, tt.depth); got != tt.want {
			t.Errorf("toInt16(%d, %d) = %d, want %d", tt.v, tt.depth, got, tt.want)
		}
	}
}

func TestAnalyzeWAV(t *testing.T) {
	var chunks [][]int16
	for i := range 300 {
		chunks = append(chunks, pulseChunk(i, 12))
	}
	src, err := OpenWAV(writeWAV(t, chunks, 0), testFrameSize)
	if err != nil {
		t.Fatalf("OpenWAV: %v", err)
	}
	defer src.Close()

	session, err := beat.NewSession(beat.DefaultConfig())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	sink := &collectingSink{}
	var priming int
	sum, err := Analyze(context.Background(), src, session, sink, func(res beat.Result) error {
		if res.Priming {
			priming++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if sum.Chunks != 300 || sum.Skipped != 0 || priming != 46 {
		t.Errorf("summary %+v, priming %d", sum, priming)
	}
	if sum.Beats[beat.Bass] == 0 || sum.Beats[beat.Bass] > len(sink.Events()) {
		t.Errorf("bass beats = %d, sink got %d events", sum.Beats[beat.Bass], len(sink.Events()))
	}
}

func TestAnalyzeStopsOnVisitError(t *testing.T) {
	src, err := OpenWAV(writeWAV(t, [][]int16{utils.Silence(testFrameSize), utils.Silence(testFrameSize)}, 0), testFrameSize)
	if err != nil {
		t.Fatalf("OpenWAV: %v", err)
	}
	defer src.Close()

	session, _ := beat.NewSession(beat.DefaultConfig())
	errStop := errors.New("stop")
	sum, err := Analyze(context.Background(), src, session, nil, func(beat.Result) error { return errStop })
	if !errors.Is(err, errStop) || sum.Chunks != 1 {
		t.Errorf("Analyze = %+v, %v", sum, err)
	}
}
