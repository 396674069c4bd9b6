package entities

import (
	"fmt"
	"strings"

	domainerrors "pollcast/contexts/live-polling/tally-engine/domain/errors"
)

type Option string

const (
	OptionAmazon  Option = "amazon"
	OptionNetflix Option = "netflix"
	OptionDisney  Option = "disney"
	OptionHulu    Option = "hulu"
)

// pollOptions is the fixed option set in display order.
var pollOptions = [...]Option{
	OptionAmazon,
	OptionNetflix,
	OptionDisney,
	OptionHulu,
}

// Options returns a copy of the fixed option set in display order.
func Options() []Option {
	return append([]Option(nil), pollOptions[:]...)
}

func (o Option) Valid() bool {
	for _, known := range pollOptions {
		if o == known {
			return true
		}
	}
	return false
}

// ParseOption converts a client supplied option key. Keys are matched exactly;
// the second return value reports whether the key belongs to the fixed set.
func ParseOption(raw string) (Option, bool) {
	option := Option(raw)
	return option, option.Valid()
}

// Tally is the authoritative vote state of the single active poll.
// Voters maps an identity key to the option it voted for.
type Tally struct {
	Counts   map[Option]int
	Total    int
	Voters   map[string]Option
	Revision uint64
}

func NewTally() Tally {
	counts := make(map[Option]int, len(pollOptions))
	for _, option := range pollOptions {
		counts[option] = 0
	}
	return Tally{
		Counts: counts,
		Voters: make(map[string]Option),
	}
}

func (t Tally) Clone() Tally {
	clone := Tally{
		Counts:   make(map[Option]int, len(t.Counts)),
		Total:    t.Total,
		Voters:   make(map[string]Option, len(t.Voters)),
		Revision: t.Revision,
	}
	for option, count := range t.Counts {
		clone.Counts[option] = count
	}
	for identity, option := range t.Voters {
		clone.Voters[identity] = option
	}
	return clone
}

func (t Tally) HasVoted(identity string) bool {
	_, ok := t.Voters[identity]
	return ok
}

// Check reports whether a vote from identity for option would be accepted
// without mutating the tally.
func (t Tally) Check(identity string, option Option) error {
	if !option.Valid() {
		return domainerrors.ErrUnknownOption
	}
	if strings.TrimSpace(identity) == "" {
		return domainerrors.ErrInvalidIdentity
	}
	if t.HasVoted(identity) {
		return domainerrors.ErrAlreadyVoted
	}
	return nil
}

// Apply records one vote. Counts, total and the voter set change together or
// not at all.
func (t *Tally) Apply(identity string, option Option) error {
	if err := t.Check(identity, option); err != nil {
		return err
	}
	if t.Counts == nil {
		t.Counts = make(map[Option]int, len(pollOptions))
	}
	if t.Voters == nil {
		t.Voters = make(map[string]Option)
	}
	t.Counts[option]++
	t.Total++
	t.Voters[identity] = option
	t.Revision++
	return nil
}

// Reset zeroes every counter and forgets all voters. The revision keeps
// increasing so readers can order snapshots across a reset.
func (t *Tally) Reset() {
	revision := t.Revision + 1
	*t = NewTally()
	t.Revision = revision
}

// Validate checks total == sum(counts) and that only known options are counted.
func (t Tally) Validate() error {
	sum := 0
	for option, count := range t.Counts {
		if !option.Valid() {
			return fmt.Errorf("%w: unknown option %q", domainerrors.ErrTallyInvariant, option)
		}
		if count < 0 {
			return fmt.Errorf("%w: negative count for %q", domainerrors.ErrTallyInvariant, option)
		}
		sum += count
	}
	if sum != t.Total {
		return fmt.Errorf("%w: total %d != sum %d", domainerrors.ErrTallyInvariant, t.Total, sum)
	}
	return nil
}

func (t Tally) Snapshot(active bool) Snapshot {
	counts := make(map[Option]int, len(pollOptions))
	for _, option := range pollOptions {
		counts[option] = t.Counts[option]
	}
	return Snapshot{
		Counts:     counts,
		TotalVotes: t.Total,
		Revision:   t.Revision,
		Active:     active,
	}
}

// Snapshot is an immutable point-in-time copy of the tally, safe to hand to
// other goroutines.
type Snapshot struct {
	Counts     map[Option]int
	TotalVotes int
	Revision   uint64
	Active     bool
}

func (s Snapshot) Count(option Option) int {
	return s.Counts[option]
}
