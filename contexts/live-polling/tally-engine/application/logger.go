package application

import (
	"log/slog"

	"pollcast/contexts/live-polling/tally-engine/ports"
)

// ResolveLogger guarantees a non-nil logger for application/worker code paths.
func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// ResolveMetrics swaps a nil recorder for one that discards everything.
func ResolveMetrics(metrics ports.Metrics) ports.Metrics {
	if metrics == nil {
		return discardMetrics{}
	}
	return metrics
}

type discardMetrics struct{}

func (discardMetrics) SessionOpened() {}
func (discardMetrics) SessionClosed() {}
func (discardMetrics) VoteProcessed(string) {}
func (discardMetrics) BroadcastDelivered(int) {}
func (discardMetrics) DeliveryFailed() {}
func (discardMetrics) LivenessEvicted() {}
func (discardMetrics) TallyReset() {}
