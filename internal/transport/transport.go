// SPDX-License-Identifier: MIT
/*
Package transport delivers confirmed beats to consumers outside the detector.

Send is called from the detection goroutine once per event, so every
implementation must return promptly: sinks that do I/O queue the event and
drop it when their queue is full rather than stall detection.
*/
package transport

import (
	"errors"

	"beats/internal/beat"
)

// Transport delivers beat events. Implementations must be safe for
// concurrent use and must not block.
type Transport interface {
	Send(event beat.BeatEvent) error
	Close() error
}

// Fanout sends every event to each transport in order.
type Fanout []Transport

// Send delivers the event to every transport and joins their errors.
func (f Fanout) Send(event beat.BeatEvent) error {
	var errs []error
	for _, t := range f {
		if err := t.Send(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every transport and joins their errors.
func (f Fanout) Close() error {
	var errs []error
	for _, t := range f {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Send(beat.BeatEvent) error { return nil }
func (Discard) Close() error              { return nil }

var (
	_ Transport = Fanout(nil)
	_ Transport = Discard{}
)
