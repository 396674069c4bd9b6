package entities

import (
	"errors"
	"testing"

	domainerrors "pollcast/contexts/live-polling/tally-engine/domain/errors"
)

func TestTallyApplyKeepsTotalEqualToSum(t *testing.T) {
	tally := NewTally()
	votes := []struct {
		identity string
		option   Option
	}{
		{"10%2E0%2E0%2E1", OptionNetflix},
		{"10%2E0%2E0%2E2", OptionAmazon},
		{"10%2E0%2E0%2E3", OptionNetflix},
		{"10%2E0%2E0%2E4", OptionHulu},
	}
	for _, vote := range votes {
		if err := tally.Apply(vote.identity, vote.option); err != nil {
			t.Fatalf("apply %s: %v", vote.identity, err)
		}
		if err := tally.Validate(); err != nil {
			t.Fatalf("invariant broken after %s: %v", vote.identity, err)
		}
	}
	if tally.Total != 4 || tally.Counts[OptionNetflix] != 2 {
		t.Fatalf("unexpected tally: total=%d netflix=%d", tally.Total, tally.Counts[OptionNetflix])
	}
	if tally.Revision != 4 {
		t.Fatalf("expected revision 4, got %d", tally.Revision)
	}
}

func TestTallyApplyRejectsWithoutMutation(t *testing.T) {
	tally := NewTally()
	if err := tally.Apply("voter-1", OptionDisney); err != nil {
		t.Fatalf("first vote failed: %v", err)
	}
	before := tally.Clone()

	if err := tally.Apply("voter-1", OptionHulu); !errors.Is(err, domainerrors.ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted, got %v", err)
	}
	if err := tally.Apply("voter-2", Option("hbo")); !errors.Is(err, domainerrors.ErrUnknownOption) {
		t.Fatalf("expected ErrUnknownOption, got %v", err)
	}
	if err := tally.Apply("  ", OptionHulu); !errors.Is(err, domainerrors.ErrInvalidIdentity) {
		t.Fatalf("expected ErrInvalidIdentity, got %v", err)
	}
	if tally.Total != before.Total || tally.Revision != before.Revision || len(tally.Voters) != 1 {
		t.Fatalf("rejected votes mutated tally: %+v", tally)
	}
}

func TestTallyResetClearsVotersAndAdvancesRevision(t *testing.T) {
	tally := NewTally()
	_ = tally.Apply("voter-1", OptionAmazon)
	tally.Reset()

	if tally.Total != 0 || len(tally.Voters) != 0 {
		t.Fatalf("expected empty tally after reset, got %+v", tally)
	}
	for _, option := range Options() {
		if tally.Counts[option] != 0 {
			t.Fatalf("expected zero count for %s", option)
		}
	}
	if tally.Revision != 2 {
		t.Fatalf("expected revision 2 after reset, got %d", tally.Revision)
	}
	if err := tally.Apply("voter-1", OptionAmazon); err != nil {
		t.Fatalf("voter should vote again after reset: %v", err)
	}
}

func TestSnapshotIsDetachedFromTally(t *testing.T) {
	tally := NewTally()
	_ = tally.Apply("voter-1", OptionAmazon)
	snapshot := tally.Snapshot(true)

	_ = tally.Apply("voter-2", OptionAmazon)
	if snapshot.Count(OptionAmazon) != 1 || snapshot.TotalVotes != 1 {
		t.Fatalf("snapshot changed after later vote: %+v", snapshot)
	}
	if !snapshot.Active {
		t.Fatalf("expected active snapshot")
	}
}

func TestParseOption(t *testing.T) {
	if option, ok := ParseOption("netflix"); !ok || option != OptionNetflix {
		t.Fatalf("expected netflix, got %q ok=%v", option, ok)
	}
	for _, raw := range []string{"hbo", "NETFLIX", " netflix", "Netflix ", ""} {
		if option, ok := ParseOption(raw); ok {
			t.Fatalf("%q must not be a valid option, parsed %q", raw, option)
		}
	}
}

func TestValidateRejectsUnknownOptionAndBadTotal(t *testing.T) {
	tally := NewTally()
	tally.Counts[Option("hbo")] = 1
	tally.Total = 1
	if err := tally.Validate(); !errors.Is(err, domainerrors.ErrTallyInvariant) {
		t.Fatalf("expected invariant error for unknown option, got %v", err)
	}

	tally = NewTally()
	tally.Counts[OptionHulu] = 2
	tally.Total = 1
	if err := tally.Validate(); !errors.Is(err, domainerrors.ErrTallyInvariant) {
		t.Fatalf("expected invariant error for total mismatch, got %v", err)
	}
}
