package commands

import (
	"context"
	"log/slog"

	application "pollcast/contexts/live-polling/tally-engine/application"
	"pollcast/contexts/live-polling/tally-engine/application/realtime"
	domainerrors "pollcast/contexts/live-polling/tally-engine/domain/errors"
	"pollcast/contexts/live-polling/tally-engine/domain/valueobjects"
	"pollcast/contexts/live-polling/tally-engine/ports"
)

// ConnectionUseCase admits and releases live sessions.
type ConnectionUseCase struct {
	Sessions *realtime.Registry
	Fanout   *realtime.Fanout
	Logger   *slog.Logger
}

// Connect resolves the voter identity, registers the session and sends it the
// current tally. A failed welcome leaves the session registered; the liveness
// sweep decides its fate.
func (uc ConnectionUseCase) Connect(ctx context.Context, conn ports.SessionConn, meta valueobjects.ConnectionMetadata) (realtime.Session, error) {
	logger := application.ResolveLogger(uc.Logger)
	address := valueobjects.CanonicalAddress(meta)
	if address == "" {
		logger.Warn("connection without resolvable address refused",
			"event", "session_identity_unresolved",
			"module", "live-polling/tally-engine",
			"layer", "application",
			"remote_addr", meta.RemoteAddr,
		)
		return realtime.Session{}, domainerrors.ErrInvalidIdentity
	}
	identity := valueobjects.ResolveIdentity(meta)

	session, err := uc.Sessions.Register(ctx, conn, identity.String(), address)
	if err != nil {
		logger.Error("session registration failed",
			"event", "session_register_failed",
			"module", "live-polling/tally-engine",
			"layer", "application",
			"remote_addr", address,
			"error", err.Error(),
		)
		return realtime.Session{}, err
	}
	if uc.Fanout != nil {
		if err := uc.Fanout.Welcome(ctx, session.ID); err != nil {
			logger.Warn("initial snapshot delivery failed",
				"event", "session_welcome_failed",
				"module", "live-polling/tally-engine",
				"layer", "application",
				"session_id", session.ID,
				"error", err.Error(),
			)
		}
	}
	return session, nil
}

// Disconnect removes the session; it is safe to call more than once.
func (uc ConnectionUseCase) Disconnect(_ context.Context, sessionID string) bool {
	return uc.Sessions.Unregister(sessionID)
}
