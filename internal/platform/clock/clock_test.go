// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package clock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/yomira-identity/internal/platform/clock"
)

func TestManual_AdvanceAndSet(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	manual := clock.NewManual(start)

	assert.Equal(t, start, manual.Now())

	manual.Advance(90 * time.Minute)
	assert.Equal(t, start.Add(90*time.Minute), manual.Now())

	later := start.Add(48 * time.Hour)
	manual.Set(later)
	assert.Equal(t, later, manual.Now())
}

func TestSystem_ReturnsUTC(t *testing.T) {
	now := clock.System{}.Now()
	assert.Equal(t, time.UTC, now.Location())
	assert.WithinDuration(t, time.Now(), now, time.Second)
}
