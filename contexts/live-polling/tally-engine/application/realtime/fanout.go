package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	application "pollcast/contexts/live-polling/tally-engine/application"
	"pollcast/contexts/live-polling/tally-engine/domain/entities"
	domainerrors "pollcast/contexts/live-polling/tally-engine/domain/errors"
	"pollcast/contexts/live-polling/tally-engine/ports"
)

// SnapshotSource yields the current authoritative tally.
type SnapshotSource interface {
	Snapshot() entities.Snapshot
}

// SessionDirectory is the part of the registry the fanout needs.
type SessionDirectory interface {
	List() []Session
	Get(id string) (Session, bool)
	MarkSuspect(id string)
}

// Fanout delivers tally snapshots to sessions. Broadcasts are serialized so
// every session observes snapshots in non-decreasing revision order.
type Fanout struct {
	mu       sync.Mutex
	sessions SessionDirectory
	source   SnapshotSource
	metrics  ports.Metrics
	logger   *slog.Logger
}

func NewFanout(sessions SessionDirectory, source SnapshotSource, metrics ports.Metrics, logger *slog.Logger) *Fanout {
	return &Fanout{
		sessions: sessions,
		source:   source,
		metrics:  application.ResolveMetrics(metrics),
		logger:   application.ResolveLogger(logger),
	}
}

// Broadcast sends the newer of snapshot and the current tally to every live
// session and returns how many sends succeeded. Failures only affect the
// failing session.
func (f *Fanout) Broadcast(ctx context.Context, snapshot entities.Snapshot) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	snapshot = f.latest(snapshot)
	delivered := 0
	for _, session := range f.sessions.List() {
		if ctx.Err() != nil {
			break
		}
		if err := session.Conn.SendUpdate(snapshot); err != nil {
			f.deliveryFailed(session, err)
			continue
		}
		delivered++
	}
	f.metrics.BroadcastDelivered(delivered)
	f.logger.Debug("tally broadcast",
		"event", "tally_broadcast",
		"module", "live-polling/tally-engine",
		"layer", "application",
		"revision", snapshot.Revision,
		"total_votes", snapshot.TotalVotes,
		"delivered", delivered,
	)
	return delivered
}

// Welcome unicasts the current tally to one newly connected session.
func (f *Fanout) Welcome(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	session, ok := f.sessions.Get(sessionID)
	if !ok {
		return domainerrors.ErrSessionNotFound
	}
	var snapshot entities.Snapshot
	if f.source != nil {
		snapshot = f.source.Snapshot()
	} else {
		snapshot = entities.NewTally().Snapshot(false)
	}
	if err := session.Conn.SendUpdate(snapshot); err != nil {
		f.deliveryFailed(session, err)
		return fmt.Errorf("%w: %w", domainerrors.ErrTransportFailure, err)
	}
	return nil
}

func (f *Fanout) latest(snapshot entities.Snapshot) entities.Snapshot {
	if f.source == nil {
		return snapshot
	}
	if current := f.source.Snapshot(); current.Revision > snapshot.Revision || snapshot.Counts == nil {
		return current
	}
	return snapshot
}

func (f *Fanout) deliveryFailed(session Session, err error) {
	f.sessions.MarkSuspect(session.ID)
	f.metrics.DeliveryFailed()
	f.logger.Warn("snapshot delivery failed",
		"event", "tally_delivery_failed",
		"module", "live-polling/tally-engine",
		"layer", "application",
		"session_id", session.ID,
		"error", fmt.Errorf("%w: %w", domainerrors.ErrTransportFailure, err).Error(),
	)
}
