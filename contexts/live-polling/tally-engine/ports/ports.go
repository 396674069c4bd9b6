package ports

import (
	"context"
	"time"

	"pollcast/contexts/live-polling/tally-engine/domain/entities"
)

// TallyRepository is the durable side of the tally. RecordVote must be atomic:
// the voter row and the option counter are written together or not at all.
type TallyRepository interface {
	LoadTally(ctx context.Context) (entities.Tally, error)
	RecordVote(ctx context.Context, identity string, option entities.Option, votedAt time.Time) error
	ResetTally(ctx context.Context) error
}

// SessionConn is the transport handle of one live session. Send methods must
// not block on a slow peer; an implementation that cannot accept a message
// returns an error instead.
type SessionConn interface {
	SendUpdate(snapshot entities.Snapshot) error
	SendError(code string, message string) error
	SendConfirmation(message string) error
	Ping() error
	Close() error
}

// Metrics receives engine counters. A nil Metrics is valid everywhere.
type Metrics interface {
	SessionOpened()
	SessionClosed()
	VoteProcessed(result string)
	BroadcastDelivered(sessions int)
	DeliveryFailed()
	LivenessEvicted()
	TallyReset()
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
