package system

import (
	"context"
	"testing"
	"time"

	"pollcast/contexts/live-polling/tally-engine/ports"

	"github.com/google/uuid"
)

var (
	_ ports.Clock       = SystemClock{}
	_ ports.IDGenerator = UUIDGenerator{}
)

func TestUUIDGenerator(t *testing.T) {
	first, err := UUIDGenerator{}.NewID(context.Background())
	if err != nil {
		t.Fatalf("new id failed: %v", err)
	}
	if _, err := uuid.Parse(first); err != nil {
		t.Fatalf("expected a uuid, got %q", first)
	}
	second, _ := UUIDGenerator{}.NewID(context.Background())
	if first == second {
		t.Fatalf("ids must be unique, got %q twice", first)
	}
}

func TestSystemClockIsUTC(t *testing.T) {
	before := time.Now()
	now := SystemClock{}.Now()
	if now.Location() != time.UTC {
		t.Fatalf("expected UTC, got %v", now.Location())
	}
	if now.Before(before.Add(-time.Second)) {
		t.Fatalf("clock is behind wall time: %v", now)
	}
}
