package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"pollcast/contexts/live-polling/tally-engine/domain/entities"
	domainerrors "pollcast/contexts/live-polling/tally-engine/domain/errors"
	"pollcast/contexts/live-polling/tally-engine/ports"

	"github.com/google/uuid"
)

type voterRecord struct {
	option  entities.Option
	votedAt time.Time
}

// Store is the in-process TallyRepository used when no external backend is
// configured and by tests.
type Store struct {
	mu     sync.RWMutex
	counts map[entities.Option]int
	voters map[string]voterRecord
}

func NewStore() *Store {
	return &Store{
		counts: make(map[entities.Option]int),
		voters: make(map[string]voterRecord),
	}
}

func (s *Store) LoadTally(_ context.Context) (entities.Tally, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tally := entities.NewTally()
	for option, count := range s.counts {
		tally.Counts[option] = count
		tally.Total += count
	}
	for identity, record := range s.voters {
		tally.Voters[identity] = record.option
	}
	return tally, nil
}

func (s *Store) RecordVote(_ context.Context, identity string, option entities.Option, votedAt time.Time) error {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return domainerrors.ErrInvalidIdentity
	}
	if !option.Valid() {
		return domainerrors.ErrUnknownOption
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.voters[identity]; exists {
		return domainerrors.ErrAlreadyVoted
	}
	s.voters[identity] = voterRecord{option: option, votedAt: votedAt.UTC()}
	s.counts[option]++
	return nil
}

func (s *Store) ResetTally(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = make(map[entities.Option]int)
	s.voters = make(map[string]voterRecord)
	return nil
}

// VotedAt reports when identity voted.
func (s *Store) VotedAt(identity string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.voters[identity]
	return record.votedAt, ok
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

var _ ports.TallyRepository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
