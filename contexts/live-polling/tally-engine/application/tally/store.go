// Package tally holds the authoritative in-process tally. Every read that must
// be consistent and every mutation runs under one mutex, and the poll
// activation flag lives behind the same mutex so a vote is never validated
// against a stale gate.
package tally

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	application "pollcast/contexts/live-polling/tally-engine/application"
	"pollcast/contexts/live-polling/tally-engine/domain/entities"
	domainerrors "pollcast/contexts/live-polling/tally-engine/domain/errors"
	"pollcast/contexts/live-polling/tally-engine/ports"
)

type Store struct {
	mu     sync.Mutex
	tally  entities.Tally
	active bool

	repo   ports.TallyRepository
	clock  ports.Clock
	logger *slog.Logger
}

// NewStore returns an empty, inactive store. repo may be nil, in which case the
// tally only lives in memory.
func NewStore(repo ports.TallyRepository, clock ports.Clock, logger *slog.Logger) *Store {
	return &Store{
		tally:  entities.NewTally(),
		repo:   repo,
		clock:  clock,
		logger: application.ResolveLogger(logger),
	}
}

// Load replaces the in-memory tally with the persisted one. Counts for options
// outside the fixed set are dropped and the total is recomputed from the
// counts so the loaded state always satisfies the tally invariants.
func (s *Store) Load(ctx context.Context) (entities.Snapshot, error) {
	if s.repo == nil {
		return s.Snapshot(), nil
	}
	persisted, err := s.repo.LoadTally(ctx)
	if err != nil {
		s.logger.Error("tally load failed",
			"event", "tally_load_failed",
			"module", "live-polling/tally-engine",
			"layer", "application",
			"error", err.Error(),
		)
		return entities.Snapshot{}, fmt.Errorf("%w: %w", domainerrors.ErrPersistenceFailure, err)
	}

	loaded := s.sanitize(persisted)

	s.mu.Lock()
	loaded.Revision = s.tally.Revision + 1
	s.tally = loaded
	snapshot := s.tally.Snapshot(s.active)
	s.mu.Unlock()

	s.logger.Info("tally loaded",
		"event", "tally_loaded",
		"module", "live-polling/tally-engine",
		"layer", "application",
		"total_votes", snapshot.TotalVotes,
		"voters", len(loaded.Voters),
	)
	return snapshot, nil
}

// sanitize drops counts for options outside the fixed set and recomputes the
// total so persisted state always satisfies the tally invariants.
func (s *Store) sanitize(persisted entities.Tally) entities.Tally {
	loaded := entities.NewTally()
	for option, count := range persisted.Counts {
		if !option.Valid() || count < 0 {
			s.logger.Warn("ignoring persisted count for unknown option",
				"event", "tally_load_unknown_option",
				"module", "live-polling/tally-engine",
				"layer", "application",
				"option", string(option),
				"count", count,
			)
			continue
		}
		loaded.Counts[option] = count
		loaded.Total += count
	}
	for identity, option := range persisted.Voters {
		if strings.TrimSpace(identity) == "" {
			continue
		}
		loaded.Voters[identity] = option
	}
	return loaded
}

// RecordVote applies one vote. The durable write happens inside the critical
// section and the in-memory tally only changes after it succeeds.
func (s *Store) RecordVote(ctx context.Context, identity string, option entities.Option) (entities.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return entities.Snapshot{}, domainerrors.ErrPollInactive
	}
	if err := s.tally.Check(identity, option); err != nil {
		return entities.Snapshot{}, err
	}
	if s.repo != nil {
		if err := s.repo.RecordVote(ctx, identity, option, s.now()); err != nil {
			if errors.Is(err, domainerrors.ErrAlreadyVoted) {
				return s.reconcileLocked(ctx, identity, option)
			}
			return entities.Snapshot{}, fmt.Errorf("%w: %w", domainerrors.ErrPersistenceFailure, err)
		}
	}
	if err := s.tally.Apply(identity, option); err != nil {
		return entities.Snapshot{}, err
	}
	return s.tally.Snapshot(s.active), nil
}

// reconcileLocked runs when the durable store already holds a vote that memory
// does not, e.g. a write that committed after its caller timed out. Memory is
// replaced by the durable tally. When the durable vote is the one requested it
// is reported as accepted, otherwise as ErrAlreadyVoted. Callers hold s.mu.
func (s *Store) reconcileLocked(ctx context.Context, identity string, option entities.Option) (entities.Snapshot, error) {
	persisted, err := s.repo.LoadTally(ctx)
	if err != nil {
		s.logger.Warn("tally reconcile failed",
			"event", "tally_reconcile_failed",
			"module", "live-polling/tally-engine",
			"layer", "application",
			"identity", identity,
			"error", err.Error(),
		)
		return entities.Snapshot{}, domainerrors.ErrAlreadyVoted
	}
	loaded := s.sanitize(persisted)
	loaded.Revision = s.tally.Revision + 1
	previousTotal := s.tally.Total
	s.tally = loaded

	durable, voted := loaded.Voters[identity]
	s.logger.Info("tally reconciled with durable store",
		"event", "tally_reconciled",
		"module", "live-polling/tally-engine",
		"layer", "application",
		"identity", identity,
		"durable_option", string(durable),
		"previous_total", previousTotal,
		"total_votes", loaded.Total,
	)
	if voted && durable == option {
		return s.tally.Snapshot(s.active), nil
	}
	return entities.Snapshot{}, domainerrors.ErrAlreadyVoted
}

// Reset clears counts, total and voters together. Nothing changes in memory
// when the durable reset fails.
func (s *Store) Reset(ctx context.Context) (entities.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.ResetTally(ctx); err != nil {
			return entities.Snapshot{}, fmt.Errorf("%w: %w", domainerrors.ErrPersistenceFailure, err)
		}
	}
	s.tally.Reset()
	return s.tally.Snapshot(s.active), nil
}

// SetActive flips the poll activation gate and reports whether it changed.
func (s *Store) SetActive(active bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.active != active
	s.active = active
	return changed
}

func (s *Store) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Store) Snapshot() entities.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tally.Snapshot(s.active)
}

func (s *Store) HasVoted(identity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tally.HasVoted(identity)
}

// Validate runs the tally invariant checks against the current state.
func (s *Store) Validate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tally.Validate()
}

func (s *Store) now() time.Time {
	if s.clock != nil {
		return s.clock.Now().UTC()
	}
	return time.Now().UTC()
}
