// SPDX-License-Identifier: MIT
package transport

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"beats/internal/beat"
	applog "beats/internal/log"
)

type recordingTransport struct {
	events []beat.BeatEvent
	err    error
	closed bool
}

func (r *recordingTransport) Send(e beat.BeatEvent) error {
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingTransport) Close() error {
	r.closed = true
	return r.err
}

func TestFanout(t *testing.T) {
	errBoom := errors.New("boom")
	a := &recordingTransport{}
	b := &recordingTransport{err: errBoom}
	c := &recordingTransport{}
	f := Fanout{a, b, c}

	event := beat.BeatEvent{Instrument: beat.Clap, ChunkIndex: 77, Energy: 1.5}
	if err := f.Send(event); !errors.Is(err, errBoom) {
		t.Errorf("Send error = %v, want boom", err)
	}
	for i, r := range []*recordingTransport{a, b, c} {
		if len(r.events) != 1 || r.events[0] != event {
			t.Errorf("transport %d received %v", i, r.events)
		}
	}

	if err := f.Close(); !errors.Is(err, errBoom) {
		t.Errorf("Close error = %v, want boom", err)
	}
	if !a.closed || !b.closed || !c.closed {
		t.Error("a failing transport stopped the others from closing")
	}
}

func TestLoggingTransport(t *testing.T) {
	var buf bytes.Buffer
	applog.SetOutput(&buf)
	applog.SetLevel(applog.LevelInfo)
	t.Cleanup(func() { applog.SetOutput(os.Stderr) })

	lt := NewLoggingTransport()
	_ = lt.Send(beat.BeatEvent{Instrument: beat.Bass, ChunkIndex: 55, Energy: 3})
	_ = lt.Send(beat.BeatEvent{Instrument: beat.Bass, ChunkIndex: 70, Energy: 4})
	_ = lt.Send(beat.BeatEvent{Instrument: beat.HiHat, ChunkIndex: 71, Energy: 0.5})

	if lt.Count(beat.Bass) != 2 || lt.Count(beat.HiHat) != 1 || lt.Count(beat.Clap) != 0 {
		t.Errorf("counts = %d/%d/%d", lt.Count(beat.Bass), lt.Count(beat.Clap), lt.Count(beat.HiHat))
	}
	out := buf.String()
	if !strings.Contains(out, "chunk     70") || !strings.Contains(out, "hihat") {
		t.Errorf("unexpected log output:\n%s", out)
	}
}

func TestJSONLinesTransport(t *testing.T) {
	var buf bytes.Buffer
	jt := NewJSONLinesTransport(&buf)
	_ = jt.Send(beat.BeatEvent{Instrument: beat.Clap, ChunkIndex: 60, Energy: 1.5})
	_ = jt.Send(beat.BeatEvent{Instrument: beat.Bass, ChunkIndex: 61, Energy: 2})

	want := `{"instrument":"clap","chunk_index":60,"energy":1.5}` + "\n" +
		`{"instrument":"bass","chunk_index":61,"energy":2}` + "\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}
