package commands

import (
	"context"
	"errors"
	"testing"

	domainerrors "pollcast/contexts/live-polling/tally-engine/domain/errors"
	"pollcast/contexts/live-polling/tally-engine/domain/valueobjects"
)

func TestConnectSendsCurrentTally(t *testing.T) {
	h := newHarness(true)
	voter, _ := connect(t, h, "10.0.0.1:4000")
	if _, err := h.votes.HandleVote(context.Background(), VoteCommand{SessionID: voter.ID, Option: "amazon"}); err != nil {
		t.Fatalf("vote failed: %v", err)
	}

	late, lateConn := connect(t, h, "10.0.0.9:4000")
	updates, _, _ := lateConn.state()
	if len(updates) != 1 || updates[0].TotalVotes != 1 {
		t.Fatalf("late joiner did not get the current tally: %+v", updates)
	}
	if late.Identity != valueobjects.EscapeKey("10.0.0.9") {
		t.Fatalf("unexpected identity %q", late.Identity)
	}
}

func TestConnectUsesForwardedAddressAsIdentity(t *testing.T) {
	h := newHarness(true)
	conn := &fakeConn{}
	session, err := h.connection.Connect(context.Background(), conn, valueobjects.ConnectionMetadata{
		ForwardedFor: "203.0.113.7, 10.0.0.1",
		RemoteAddr:   "10.0.0.1:3456",
	})
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if session.RemoteAddr != "203.0.113.7" {
		t.Fatalf("expected forwarded address, got %q", session.RemoteAddr)
	}
	if session.Identity != valueobjects.EscapeKey("203.0.113.7") {
		t.Fatalf("unexpected identity %q", session.Identity)
	}
}

func TestConnectRefusesUnresolvableAddress(t *testing.T) {
	h := newHarness(true)
	_, err := h.connection.Connect(context.Background(), &fakeConn{}, valueobjects.ConnectionMetadata{})
	if !errors.Is(err, domainerrors.ErrInvalidIdentity) {
		t.Fatalf("expected ErrInvalidIdentity, got %v", err)
	}
	if h.registry.Len() != 0 {
		t.Fatalf("refused connection must not be registered")
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	h := newHarness(true)
	session, _ := connect(t, h, "10.0.0.1:4000")
	if !h.connection.Disconnect(context.Background(), session.ID) {
		t.Fatalf("expected first disconnect to remove the session")
	}
	if h.connection.Disconnect(context.Background(), session.ID) {
		t.Fatalf("expected second disconnect to be a no-op")
	}
}
