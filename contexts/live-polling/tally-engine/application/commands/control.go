package commands

import (
	"context"
	"log/slog"

	application "pollcast/contexts/live-polling/tally-engine/application"
	"pollcast/contexts/live-polling/tally-engine/application/realtime"
	"pollcast/contexts/live-polling/tally-engine/application/tally"
	"pollcast/contexts/live-polling/tally-engine/domain/entities"
	"pollcast/contexts/live-polling/tally-engine/ports"
)

// ControlResult is the poll state after a control command.
type ControlResult struct {
	Active  bool
	Changed bool
}

// ControlUseCase is the control plane: it opens, closes and clears the poll.
type ControlUseCase struct {
	Tally   *tally.Store
	Fanout  *realtime.Fanout
	Metrics ports.Metrics
	Logger  *slog.Logger
}

func (uc ControlUseCase) StartPoll(ctx context.Context) ControlResult {
	return uc.setActive(ctx, true)
}

func (uc ControlUseCase) StopPoll(ctx context.Context) ControlResult {
	return uc.setActive(ctx, false)
}

// ClearVotes resets counts, total and the voter set, then broadcasts the zeroed
// tally so every client drops the old numbers.
func (uc ControlUseCase) ClearVotes(ctx context.Context) (entities.Snapshot, error) {
	logger := application.ResolveLogger(uc.Logger)
	snapshot, err := uc.Tally.Reset(ctx)
	if err != nil {
		logger.Error("tally reset failed",
			"event", "poll_clear_failed",
			"module", "live-polling/tally-engine",
			"layer", "application",
			"error", err.Error(),
		)
		return entities.Snapshot{}, err
	}
	application.ResolveMetrics(uc.Metrics).TallyReset()
	logger.Info("votes cleared",
		"event", "poll_cleared",
		"module", "live-polling/tally-engine",
		"layer", "application",
		"revision", snapshot.Revision,
	)
	if uc.Fanout != nil {
		uc.Fanout.Broadcast(ctx, snapshot)
	}
	return snapshot, nil
}

func (uc ControlUseCase) setActive(ctx context.Context, active bool) ControlResult {
	changed := uc.Tally.SetActive(active)
	event := "poll_stopped"
	if active {
		event = "poll_started"
	}
	application.ResolveLogger(uc.Logger).InfoContext(ctx, "poll activation changed",
		"event", event,
		"module", "live-polling/tally-engine",
		"layer", "application",
		"active", active,
		"changed", changed,
	)
	return ControlResult{Active: active, Changed: changed}
}
