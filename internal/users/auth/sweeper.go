// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/taibuivan/yomira-identity/internal/platform/constants"
)

// Cleaner is the maintenance surface driven by [Sweeper]. Satisfied by [Service].
type Cleaner interface {
	Cleanup(ctx context.Context) (CleanupReport, error)
}

// Sweeper periodically removes expired credentials.
//
// Every run is a pure delete of already expired rows, so several API instances
// may sweep at the same time without coordination.
type Sweeper struct {
	cleaner  Cleaner
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a new [Sweeper].
func NewSweeper(cleaner Cleaner, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{cleaner: cleaner, interval: interval, logger: logger}
}

// Run blocks, sweeping once per interval until ctx is cancelled.
func (sweeper *Sweeper) Run(ctx context.Context) {
	if sweeper.interval <= 0 {
		sweeper.logger.Info("sweeper_disabled")
		return
	}

	ticker := time.NewTicker(sweeper.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweeper.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single bounded sweep and logs its outcome.
func (sweeper *Sweeper) RunOnce(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, constants.CleanupTimeout)
	defer cancel()

	report, err := sweeper.cleaner.Cleanup(sweepCtx)
	if err != nil {
		sweeper.logger.Error("sweeper_run_failed", slog.String("error", err.Error()))
	}

	sweeper.logger.Info("sweeper_run_completed",
		slog.Int64("refresh_tokens_removed", report.RefreshTokens),
		slog.Int64("reset_tokens_cleared", report.ResetTokens),
		slog.Int64("verification_tokens_cleared", report.VerificationTokens),
	)
}
