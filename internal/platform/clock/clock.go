// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package clock provides an injectable time source.
//
// Every component that compares against "now" (token expiry, reset windows,
// cleanup sweeps) receives a [Clock] through its constructor so tests can
// move time deterministically.
package clock

import (
	"sync"
	"time"
)

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// System is the production [Clock] backed by the wall clock (UTC).
type System struct{}

// Now implements [Clock].
func (System) Now() time.Time { return time.Now().UTC() }

// # Manual Clock

// Manual is a [Clock] whose time only moves when told to.
//
// It is safe for concurrent use.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual returns a [Manual] clock frozen at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start.UTC()}
}

// Now implements [Clock].
func (manual *Manual) Now() time.Time {
	manual.mu.Lock()
	defer manual.mu.Unlock()
	return manual.now
}

// Advance moves the clock forward by duration.
func (manual *Manual) Advance(duration time.Duration) {
	manual.mu.Lock()
	defer manual.mu.Unlock()
	manual.now = manual.now.Add(duration)
}

// Set pins the clock to an absolute instant.
func (manual *Manual) Set(instant time.Time) {
	manual.mu.Lock()
	defer manual.mu.Unlock()
	manual.now = instant.UTC()
}
