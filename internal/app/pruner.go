// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/fellowhub/fellowhub/internal/auth"
	"github.com/fellowhub/fellowhub/pkg/errutil"
)

// PruneService removes expired sessions and tokens.
// *auth.CredentialService implements it.
type PruneService interface {
	Prune(ctx context.Context) (auth.PruneReport, error)
}

// Pruner periodically calls PruneService.Prune.
type Pruner struct {
	svc      PruneService
	interval time.Duration
	logger   *slog.Logger
}

// NewPruner creates a Pruner. A non-positive interval disables it.
func NewPruner(svc PruneService, interval time.Duration, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{svc: svc, interval: interval, logger: logger}
}

// Run prunes once per interval until ctx is cancelled.
func (p *Pruner) Run(ctx context.Context) {
	if p.interval <= 0 {
		p.logger.Info("pruner disabled")
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = p.RunOnce(ctx) //nolint:errcheck // logged by RunOnce
		}
	}
}

// RunOnce prunes immediately and logs the outcome.
func (p *Pruner) RunOnce(ctx context.Context) (auth.PruneReport, error) {
	report, err := p.svc.Prune(ctx)
	if err != nil {
		if ctx.Err() == nil {
			errutil.LogErrorContext(ctx, p.logger, "prune failed", err)
		}
		return report, err
	}
	if report.Sessions+report.VerificationTokens+report.ResetTokens > 0 {
		p.logger.InfoContext(ctx, "pruned expired records",
			"sessions", report.Sessions,
			"verification_tokens", report.VerificationTokens,
			"reset_tokens", report.ResetTokens,
		)
	}
	return report, nil
}
