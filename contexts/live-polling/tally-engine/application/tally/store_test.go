package tally

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"pollcast/contexts/live-polling/tally-engine/domain/entities"
	domainerrors "pollcast/contexts/live-polling/tally-engine/domain/errors"
)

type fakeRepository struct {
	mu        sync.Mutex
	persisted entities.Tally
	failVote  error
	failReset error
	failLoad  error
	writes    int
}

func (f *fakeRepository) LoadTally(context.Context) (entities.Tally, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLoad != nil {
		return entities.Tally{}, f.failLoad
	}
	return f.persisted.Clone(), nil
}

func (f *fakeRepository) RecordVote(_ context.Context, identity string, option entities.Option, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failVote != nil {
		return f.failVote
	}
	f.writes++
	return f.persisted.Apply(identity, option)
}

func (f *fakeRepository) ResetTally(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReset != nil {
		return f.failReset
	}
	f.persisted.Reset()
	return nil
}

func newActiveStore(repo *fakeRepository) *Store {
	store := NewStore(repo, nil, nil)
	store.SetActive(true)
	return store
}

func TestRecordVoteAcceptsOncePerIdentity(t *testing.T) {
	repo := &fakeRepository{persisted: entities.NewTally()}
	store := newActiveStore(repo)

	snapshot, err := store.RecordVote(context.Background(), "voter-1", entities.OptionNetflix)
	if err != nil {
		t.Fatalf("first vote failed: %v", err)
	}
	if snapshot.Count(entities.OptionNetflix) != 1 || snapshot.TotalVotes != 1 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}

	if _, err := store.RecordVote(context.Background(), "voter-1", entities.OptionNetflix); !errors.Is(err, domainerrors.ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted on replay, got %v", err)
	}
	if got := store.Snapshot().TotalVotes; got != 1 {
		t.Fatalf("replay must not increment, total=%d", got)
	}
	if repo.writes != 1 {
		t.Fatalf("expected one durable write, got %d", repo.writes)
	}
}

func TestRecordVoteRejectsUnknownOptionWithoutMutation(t *testing.T) {
	repo := &fakeRepository{persisted: entities.NewTally()}
	store := newActiveStore(repo)

	if _, err := store.RecordVote(context.Background(), "voter-1", entities.Option("hbo")); !errors.Is(err, domainerrors.ErrUnknownOption) {
		t.Fatalf("expected ErrUnknownOption, got %v", err)
	}
	if store.Snapshot().TotalVotes != 0 || store.HasVoted("voter-1") || repo.writes != 0 {
		t.Fatalf("unknown option mutated the tally")
	}
}

func TestRecordVoteRejectsWhenPollInactive(t *testing.T) {
	store := NewStore(nil, nil, nil)

	if _, err := store.RecordVote(context.Background(), "fresh-voter", entities.OptionHulu); !errors.Is(err, domainerrors.ErrPollInactive) {
		t.Fatalf("expected ErrPollInactive, got %v", err)
	}
	if _, err := store.RecordVote(context.Background(), "fresh-voter", entities.Option("hbo")); !errors.Is(err, domainerrors.ErrPollInactive) {
		t.Fatalf("inactive gate must be checked before the option, got %v", err)
	}
	if store.Snapshot().TotalVotes != 0 {
		t.Fatalf("inactive poll mutated the tally")
	}
}

func TestRecordVotePersistenceFailureLeavesTallyUntouched(t *testing.T) {
	repo := &fakeRepository{persisted: entities.NewTally(), failVote: errors.New("connection refused")}
	store := newActiveStore(repo)
	before := store.Snapshot()

	_, err := store.RecordVote(context.Background(), "voter-1", entities.OptionAmazon)
	if !errors.Is(err, domainerrors.ErrPersistenceFailure) {
		t.Fatalf("expected ErrPersistenceFailure, got %v", err)
	}
	after := store.Snapshot()
	if after.TotalVotes != 0 || after.Revision != before.Revision || store.HasVoted("voter-1") {
		t.Fatalf("failed durable write leaked into memory: %+v", after)
	}

	repo.failVote = nil
	if _, err := store.RecordVote(context.Background(), "voter-1", entities.OptionAmazon); err != nil {
		t.Fatalf("retry after persistence failure should succeed: %v", err)
	}
}

func TestRecordVoteMapsDurableDuplicateToAlreadyVoted(t *testing.T) {
	repo := &fakeRepository{persisted: entities.NewTally(), failVote: fmt.Errorf("insert: %w", domainerrors.ErrAlreadyVoted)}
	store := newActiveStore(repo)

	_, err := store.RecordVote(context.Background(), "voter-1", entities.OptionAmazon)
	if !errors.Is(err, domainerrors.ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted, got %v", err)
	}
	if errors.Is(err, domainerrors.ErrPersistenceFailure) {
		t.Fatalf("duplicate must not surface as persistence failure")
	}
}

// lostReplyRepository commits the next vote and then reports a timeout, as a
// durable write does when its reply arrives after the caller gave up.
type lostReplyRepository struct {
	*fakeRepository
	loseNextReply bool
}

func (r *lostReplyRepository) RecordVote(ctx context.Context, identity string, option entities.Option, at time.Time) error {
	if err := r.fakeRepository.RecordVote(ctx, identity, option, at); err != nil {
		return err
	}
	if r.loseNextReply {
		r.loseNextReply = false
		return context.DeadlineExceeded
	}
	return nil
}

func TestRetryAfterLostReplyConfirmsDurableVote(t *testing.T) {
	repo := &lostReplyRepository{fakeRepository: &fakeRepository{persisted: entities.NewTally()}, loseNextReply: true}
	store := NewStore(repo, nil, nil)
	store.SetActive(true)

	_, err := store.RecordVote(context.Background(), "voter-1", entities.OptionNetflix)
	if !errors.Is(err, domainerrors.ErrPersistenceFailure) {
		t.Fatalf("expected ErrPersistenceFailure, got %v", err)
	}
	if store.Snapshot().TotalVotes != 0 {
		t.Fatalf("failed write must not touch memory")
	}

	snapshot, err := store.RecordVote(context.Background(), "voter-1", entities.OptionNetflix)
	if err != nil {
		t.Fatalf("retry of a committed vote must be accepted, got %v", err)
	}
	if snapshot.TotalVotes != 1 || snapshot.Count(entities.OptionNetflix) != 1 {
		t.Fatalf("memory does not match durable tally: %+v", snapshot)
	}
	if !store.HasVoted("voter-1") {
		t.Fatalf("voter missing from memory after reconcile")
	}
	if durable := repo.persisted.Total; durable != 1 {
		t.Fatalf("durable tally must hold a single vote, got %d", durable)
	}

	if _, err := store.RecordVote(context.Background(), "voter-1", entities.OptionNetflix); !errors.Is(err, domainerrors.ErrAlreadyVoted) {
		t.Fatalf("third attempt must be AlreadyVoted, got %v", err)
	}
	if err := store.Validate(); err != nil {
		t.Fatalf("invariants broken: %v", err)
	}
}

func TestRetryWithDifferentOptionAfterLostReplyIsAlreadyVoted(t *testing.T) {
	repo := &lostReplyRepository{fakeRepository: &fakeRepository{persisted: entities.NewTally()}, loseNextReply: true}
	store := NewStore(repo, nil, nil)
	store.SetActive(true)

	_, _ = store.RecordVote(context.Background(), "voter-1", entities.OptionAmazon)
	before := store.Snapshot().Revision

	_, err := store.RecordVote(context.Background(), "voter-1", entities.OptionHulu)
	if !errors.Is(err, domainerrors.ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted, got %v", err)
	}
	snapshot := store.Snapshot()
	if snapshot.TotalVotes != 1 || snapshot.Count(entities.OptionAmazon) != 1 || snapshot.Count(entities.OptionHulu) != 0 {
		t.Fatalf("memory not reconciled with durable tally: %+v", snapshot)
	}
	if snapshot.Revision <= before {
		t.Fatalf("reconcile must advance the revision: before=%d after=%d", before, snapshot.Revision)
	}
}

func TestDurableDuplicateStaysAlreadyVotedWhenReloadFails(t *testing.T) {
	repo := &fakeRepository{
		persisted: entities.NewTally(),
		failVote:  domainerrors.ErrAlreadyVoted,
		failLoad:  errors.New("connection reset"),
	}
	store := newActiveStore(repo)

	if _, err := store.RecordVote(context.Background(), "voter-1", entities.OptionDisney); !errors.Is(err, domainerrors.ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted, got %v", err)
	}
	if store.Snapshot().TotalVotes != 0 {
		t.Fatalf("memory changed without a durable reload")
	}
}

func TestResetClearsEverythingAndAllowsRevote(t *testing.T) {
	repo := &fakeRepository{persisted: entities.NewTally()}
	store := newActiveStore(repo)
	_, _ = store.RecordVote(context.Background(), "voter-1", entities.OptionDisney)
	_, _ = store.RecordVote(context.Background(), "voter-2", entities.OptionHulu)

	snapshot, err := store.Reset(context.Background())
	if err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if snapshot.TotalVotes != 0 {
		t.Fatalf("expected zero total after reset, got %d", snapshot.TotalVotes)
	}
	for _, option := range entities.Options() {
		if snapshot.Count(option) != 0 {
			t.Fatalf("expected zero for %s after reset", option)
		}
	}
	if store.HasVoted("voter-1") {
		t.Fatalf("voter set must be empty after reset")
	}
	if _, err := store.RecordVote(context.Background(), "voter-1", entities.OptionDisney); err != nil {
		t.Fatalf("voter should vote again after reset: %v", err)
	}
}

func TestResetFailureKeepsVotes(t *testing.T) {
	repo := &fakeRepository{persisted: entities.NewTally()}
	store := newActiveStore(repo)
	_, _ = store.RecordVote(context.Background(), "voter-1", entities.OptionDisney)
	repo.failReset = errors.New("disk full")

	if _, err := store.Reset(context.Background()); !errors.Is(err, domainerrors.ErrPersistenceFailure) {
		t.Fatalf("expected ErrPersistenceFailure, got %v", err)
	}
	if store.Snapshot().TotalVotes != 1 || !store.HasVoted("voter-1") {
		t.Fatalf("failed reset must not clear memory")
	}
}

func TestLoadRecomputesTotalAndDropsUnknownOptions(t *testing.T) {
	persisted := entities.NewTally()
	persisted.Counts[entities.OptionAmazon] = 3
	persisted.Counts[entities.OptionHulu] = 2
	persisted.Counts[entities.Option("hbo")] = 7
	persisted.Total = 99
	persisted.Voters["voter-1"] = entities.OptionAmazon
	store := NewStore(&fakeRepository{persisted: persisted}, nil, nil)

	snapshot, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if snapshot.TotalVotes != 5 {
		t.Fatalf("expected recomputed total 5, got %d", snapshot.TotalVotes)
	}
	if err := store.Validate(); err != nil {
		t.Fatalf("loaded tally violates invariants: %v", err)
	}
	if !store.HasVoted("voter-1") {
		t.Fatalf("expected persisted voter to be loaded")
	}
}

func TestLoadFailureIsPersistenceFailure(t *testing.T) {
	store := NewStore(&fakeRepository{failLoad: errors.New("timeout")}, nil, nil)
	if _, err := store.Load(context.Background()); !errors.Is(err, domainerrors.ErrPersistenceFailure) {
		t.Fatalf("expected ErrPersistenceFailure, got %v", err)
	}
}

func TestConcurrentVotesFromDistinctIdentities(t *testing.T) {
	repo := &fakeRepository{persisted: entities.NewTally()}
	store := newActiveStore(repo)
	options := entities.Options()
	const voters = 200

	var wg sync.WaitGroup
	errs := make(chan error, voters)
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snapshot, err := store.RecordVote(context.Background(), fmt.Sprintf("voter-%d", i), options[i%len(options)])
			if err != nil {
				errs <- err
				return
			}
			sum := 0
			for _, count := range snapshot.Counts {
				sum += count
			}
			if sum != snapshot.TotalVotes {
				errs <- fmt.Errorf("torn snapshot: sum=%d total=%d", sum, snapshot.TotalVotes)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent vote failed: %v", err)
	}

	snapshot := store.Snapshot()
	if snapshot.TotalVotes != voters {
		t.Fatalf("expected %d votes, got %d", voters, snapshot.TotalVotes)
	}
	for _, option := range options {
		if snapshot.Count(option) != voters/len(options) {
			t.Fatalf("expected %d votes for %s, got %d", voters/len(options), option, snapshot.Count(option))
		}
	}
	if err := store.Validate(); err != nil {
		t.Fatalf("invariants broken: %v", err)
	}
}

func TestSetActiveReportsChange(t *testing.T) {
	store := NewStore(nil, nil, nil)
	if !store.SetActive(true) {
		t.Fatalf("expected change on first activation")
	}
	if store.SetActive(true) {
		t.Fatalf("expected no change on repeated activation")
	}
	if !store.Active() || !store.Snapshot().Active {
		t.Fatalf("expected active gate")
	}
}
