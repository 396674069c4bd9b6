package workers

import (
	"context"
	"log/slog"
	"time"

	application "pollcast/contexts/live-polling/tally-engine/application"
	"pollcast/contexts/live-polling/tally-engine/application/realtime"
)

const defaultLivenessInterval = 30 * time.Second

// LivenessSweeper periodically probes every session and evicts the ones that
// did not answer the previous probe.
type LivenessSweeper struct {
	Sessions *realtime.Registry
	Interval time.Duration
	Logger   *slog.Logger
}

// RunOnce performs a single sweep.
func (w LivenessSweeper) RunOnce(ctx context.Context) realtime.SweepResult {
	result := w.Sessions.Sweep(ctx)
	logger := application.ResolveLogger(w.Logger)
	if result.Evicted > 0 {
		logger.Info("liveness sweep evicted sessions",
			"event", "liveness_sweep_evicted",
			"module", "live-polling/tally-engine",
			"layer", "worker",
			"probed", result.Probed,
			"evicted", result.Evicted,
		)
	} else {
		logger.Debug("liveness sweep completed",
			"event", "liveness_sweep_completed",
			"module", "live-polling/tally-engine",
			"layer", "worker",
			"probed", result.Probed,
		)
	}
	return result
}

// Run sweeps on every tick until ctx is cancelled.
func (w LivenessSweeper) Run(ctx context.Context) error {
	interval := w.Interval
	if interval <= 0 {
		interval = defaultLivenessInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	application.ResolveLogger(w.Logger).Info("liveness sweeper started",
		"event", "liveness_sweeper_started",
		"module", "live-polling/tally-engine",
		"layer", "worker",
		"interval", interval.String(),
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}
