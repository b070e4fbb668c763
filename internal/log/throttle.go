// SPDX-License-Identifier: MIT
package log

import "sync/atomic"

// Throttle emits at most one message per Every occurrences of the same
// condition. It is meant for per-chunk diagnostics (dropped frames, budget
// overruns, degenerate statistics) where logging every chunk would itself
// blow the real-time budget.
//
// The zero value logs every occurrence.
type Throttle struct {
	Every uint64
	count atomic.Uint64
}

// NewThrottle returns a Throttle that lets the first occurrence through and
// then one in every n.
func NewThrottle(n uint64) *Throttle {
	return &Throttle{Every: n}
}

// Allow records one occurrence and reports whether it should be logged.
func (t *Throttle) Allow() bool {
	n := t.count.Add(1)
	if t.Every <= 1 {
		return true
	}
	return (n-1)%t.Every == 0
}

// Count returns the number of occurrences recorded so far.
func (t *Throttle) Count() uint64 {
	return t.count.Load()
}

// Warnf logs through Warnf when the throttle allows it, appending the total
// occurrence count.
func (t *Throttle) Warnf(format string, v ...any) {
	if t.Allow() {
		Warnf(format+" (occurrences: %d)", append(v, t.Count())...)
	}
}

// Debugf logs through Debugf when the throttle allows it.
func (t *Throttle) Debugf(format string, v ...any) {
	if !Enabled(LevelDebug) {
		t.count.Add(1)
		return
	}
	if t.Allow() {
		Debugf(format+" (occurrences: %d)", append(v, t.Count())...)
	}
}
