// Package realtime tracks live sessions and pushes tally snapshots to them.
package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	application "pollcast/contexts/live-polling/tally-engine/application"
	domainerrors "pollcast/contexts/live-polling/tally-engine/domain/errors"
	"pollcast/contexts/live-polling/tally-engine/ports"
)

// Session is one live client connection as seen by the engine.
type Session struct {
	ID          string
	Identity    string
	RemoteAddr  string
	ConnectedAt time.Time
	Conn        ports.SessionConn
}

type sessionEntry struct {
	session Session
	alive   bool
}

// SweepResult counts what one liveness pass did.
type SweepResult struct {
	Probed  int
	Evicted int
}

// Registry is the set of live sessions. Membership and liveness flags are
// guarded by one mutex; transport I/O never happens while it is held.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
	order    []string

	idGen   ports.IDGenerator
	clock   ports.Clock
	metrics ports.Metrics
	logger  *slog.Logger
	seq     atomic.Uint64
}

func NewRegistry(idGen ports.IDGenerator, clock ports.Clock, metrics ports.Metrics, logger *slog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*sessionEntry),
		idGen:    idGen,
		clock:    clock,
		metrics:  application.ResolveMetrics(metrics),
		logger:   application.ResolveLogger(logger),
	}
}

// Register adds conn as a live session and returns it with a fresh id.
func (r *Registry) Register(ctx context.Context, conn ports.SessionConn, identity string, remoteAddr string) (Session, error) {
	if conn == nil {
		return Session{}, fmt.Errorf("%w: nil connection", domainerrors.ErrTransportFailure)
	}
	id, err := r.newID(ctx)
	if err != nil {
		return Session{}, err
	}
	session := Session{
		ID:          id,
		Identity:    identity,
		RemoteAddr:  remoteAddr,
		ConnectedAt: r.now(),
		Conn:        conn,
	}

	r.mu.Lock()
	if _, exists := r.sessions[id]; exists {
		r.mu.Unlock()
		return Session{}, fmt.Errorf("duplicate session id %q", id)
	}
	r.sessions[id] = &sessionEntry{session: session, alive: true}
	r.order = append(r.order, id)
	count := len(r.sessions)
	r.mu.Unlock()

	r.metrics.SessionOpened()
	r.logger.Info("session registered",
		"event", "session_registered",
		"module", "live-polling/tally-engine",
		"layer", "application",
		"session_id", id,
		"identity", identity,
		"remote_addr", remoteAddr,
		"sessions", count,
	)
	return session, nil
}

// Unregister removes the session. It reports false when the id was not
// registered, so repeated calls are harmless.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	_, ok := r.sessions[id]
	if ok {
		r.removeLocked(id)
	}
	count := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return false
	}
	r.metrics.SessionClosed()
	r.logger.Info("session unregistered",
		"event", "session_unregistered",
		"module", "live-polling/tally-engine",
		"layer", "application",
		"session_id", id,
		"sessions", count,
	)
	return true
}

func (r *Registry) Get(id string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return entry.session, true
}

// List returns the live sessions in registration order. The slice is a copy.
func (r *Registry) List() []Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Session, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sessions[id].session)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// MarkAlive records a liveness acknowledgement (a pong) for the session.
func (r *Registry) MarkAlive(id string) {
	r.setAlive(id, true)
}

// MarkSuspect clears the liveness flag after a transport failure. The session
// stays registered until the next sweep finds it still unacknowledged.
func (r *Registry) MarkSuspect(id string) {
	r.setAlive(id, false)
}

func (r *Registry) IsAlive(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[id]
	return ok && entry.alive
}

// Sweep runs one liveness pass. Sessions that did not acknowledge the previous
// probe are evicted and closed; the rest get their flag cleared and a new probe.
func (r *Registry) Sweep(ctx context.Context) SweepResult {
	var (
		dead  []Session
		probe []Session
	)
	r.mu.Lock()
	for _, id := range append([]string(nil), r.order...) {
		entry := r.sessions[id]
		if !entry.alive {
			dead = append(dead, entry.session)
			r.removeLocked(id)
			continue
		}
		entry.alive = false
		probe = append(probe, entry.session)
	}
	r.mu.Unlock()

	for _, session := range dead {
		r.metrics.LivenessEvicted()
		r.metrics.SessionClosed()
		if err := session.Conn.Close(); err != nil {
			r.logger.Debug("evicted session close failed",
				"event", "session_evict_close_failed",
				"module", "live-polling/tally-engine",
				"layer", "application",
				"session_id", session.ID,
				"error", err.Error(),
			)
		}
		r.logger.Info("session evicted by liveness sweep",
			"event", "session_evicted",
			"module", "live-polling/tally-engine",
			"layer", "application",
			"session_id", session.ID,
			"identity", session.Identity,
		)
	}
	for _, session := range probe {
		if ctx.Err() != nil {
			break
		}
		if err := session.Conn.Ping(); err != nil {
			r.logger.Warn("liveness probe failed",
				"event", "session_ping_failed",
				"module", "live-polling/tally-engine",
				"layer", "application",
				"session_id", session.ID,
				"error", fmt.Errorf("%w: %w", domainerrors.ErrTransportFailure, err).Error(),
			)
		}
	}
	return SweepResult{Probed: len(probe), Evicted: len(dead)}
}

// CloseAll unregisters and closes every session. Used on shutdown.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	sessions := make([]Session, 0, len(r.order))
	for _, id := range r.order {
		sessions = append(sessions, r.sessions[id].session)
	}
	r.sessions = make(map[string]*sessionEntry)
	r.order = nil
	r.mu.Unlock()

	for _, session := range sessions {
		r.metrics.SessionClosed()
		_ = session.Conn.Close()
	}
	return len(sessions)
}

func (r *Registry) setAlive(id string, alive bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.sessions[id]; ok {
		entry.alive = alive
	}
}

func (r *Registry) removeLocked(id string) {
	delete(r.sessions, id)
	for i, candidate := range r.order {
		if candidate == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

func (r *Registry) newID(ctx context.Context) (string, error) {
	if r.idGen != nil {
		id, err := r.idGen.NewID(ctx)
		if err != nil {
			return "", err
		}
		if id = strings.TrimSpace(id); id != "" {
			return id, nil
		}
	}
	return fmt.Sprintf("session-%d", r.seq.Add(1)), nil
}

func (r *Registry) now() time.Time {
	if r.clock != nil {
		return r.clock.Now().UTC()
	}
	return time.Now().UTC()
}
