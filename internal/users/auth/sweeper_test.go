// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/yomira-identity/internal/users/auth"
)

type countingCleaner struct {
	runs        atomic.Int32
	hadDeadline atomic.Bool
	err         error
}

func (cleaner *countingCleaner) Cleanup(ctx context.Context) (auth.CleanupReport, error) {
	cleaner.runs.Add(1)
	_, ok := ctx.Deadline()
	cleaner.hadDeadline.Store(ok)
	return auth.CleanupReport{RefreshTokens: 3, ResetTokens: 1, VerificationTokens: 2}, cleaner.err
}

func TestSweeper_RunOnce(t *testing.T) {
	var logs bytes.Buffer
	cleaner := &countingCleaner{err: errors.New("database is down")}

	auth.NewSweeper(cleaner, time.Minute, slog.New(slog.NewJSONHandler(&logs, nil))).RunOnce(context.Background())

	assert.Equal(t, int32(1), cleaner.runs.Load())
	assert.True(t, cleaner.hadDeadline.Load())
	assert.Contains(t, logs.String(), "sweeper_run_failed")
	assert.Contains(t, logs.String(), `"refresh_tokens_removed":3`)
	assert.Contains(t, logs.String(), `"verification_tokens_cleared":2`)
}

/*
TestSweeper_Run verifies the loop ticks until cancelled and that a zero
interval disables it.
*/
func TestSweeper_Run(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("disabled", func(t *testing.T) {
		cleaner := &countingCleaner{}
		auth.NewSweeper(cleaner, 0, logger).Run(context.Background())
		assert.Zero(t, cleaner.runs.Load())
	})

	t.Run("ticks_until_cancelled", func(t *testing.T) {
		cleaner := &countingCleaner{}
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan struct{})
		go func() {
			auth.NewSweeper(cleaner, 5*time.Millisecond, logger).Run(ctx)
			close(done)
		}()

		assert.Eventually(t, func() bool { return cleaner.runs.Load() >= 2 }, time.Second, 5*time.Millisecond)

		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("sweeper did not stop after cancellation")
		}
	})
}
