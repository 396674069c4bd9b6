package commands

import (
	"context"
	"errors"
	"testing"

	domainerrors "pollcast/contexts/live-polling/tally-engine/domain/errors"
)

func TestStartAndStopPoll(t *testing.T) {
	h := newHarness(false)
	voter, _ := connect(t, h, "10.0.0.1:4000")

	if result := h.control.StartPoll(context.Background()); !result.Active || !result.Changed {
		t.Fatalf("unexpected start result: %+v", result)
	}
	if result := h.control.StartPoll(context.Background()); result.Changed {
		t.Fatalf("second start should not report a change")
	}
	if _, err := h.votes.HandleVote(context.Background(), VoteCommand{SessionID: voter.ID, Option: "netflix"}); err != nil {
		t.Fatalf("vote during open poll failed: %v", err)
	}

	h.control.StopPoll(context.Background())
	other, _ := connect(t, h, "10.0.0.2:4000")
	if _, err := h.votes.HandleVote(context.Background(), VoteCommand{SessionID: other.ID, Option: "netflix"}); !errors.Is(err, domainerrors.ErrPollInactive) {
		t.Fatalf("expected ErrPollInactive after stop, got %v", err)
	}
}

func TestClearVotesBroadcastsZeroedTallyAndAllowsRevote(t *testing.T) {
	h := newHarness(true)
	voter, voterConn := connect(t, h, "10.0.0.1:4000")
	if _, err := h.votes.HandleVote(context.Background(), VoteCommand{SessionID: voter.ID, Option: "disney"}); err != nil {
		t.Fatalf("vote failed: %v", err)
	}

	snapshot, err := h.control.ClearVotes(context.Background())
	if err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if snapshot.TotalVotes != 0 {
		t.Fatalf("expected zeroed snapshot, got %+v", snapshot)
	}
	updates, _, _ := voterConn.state()
	if last := updates[len(updates)-1]; last.TotalVotes != 0 || last.Revision != snapshot.Revision {
		t.Fatalf("zeroed tally was not broadcast: %+v", last)
	}

	if _, err := h.votes.HandleVote(context.Background(), VoteCommand{SessionID: voter.ID, Option: "disney"}); err != nil {
		t.Fatalf("revote after clear failed: %v", err)
	}
}
