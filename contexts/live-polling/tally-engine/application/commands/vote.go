package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	application "pollcast/contexts/live-polling/tally-engine/application"
	"pollcast/contexts/live-polling/tally-engine/application/realtime"
	"pollcast/contexts/live-polling/tally-engine/application/tally"
	"pollcast/contexts/live-polling/tally-engine/domain/entities"
	domainerrors "pollcast/contexts/live-polling/tally-engine/domain/errors"
	"pollcast/contexts/live-polling/tally-engine/ports"
)

// VoteCommand is one inbound vote message from a live session.
type VoteCommand struct {
	SessionID string
	Option    string
}

// VoteResult describes what happened to one vote message.
type VoteResult struct {
	Outcome   string
	Code      string
	Option    entities.Option
	Snapshot  entities.Snapshot
	Delivered int
}

// VoteUseCase coordinates one vote: identity lookup, validation, atomic
// application, the reply to the originator and the fanout to everyone.
type VoteUseCase struct {
	Tally          *tally.Store
	Sessions       *realtime.Registry
	Fanout         *realtime.Fanout
	PersistTimeout time.Duration
	Metrics        ports.Metrics
	Logger         *slog.Logger
}

// HandleVote runs a vote through Received -> Validated -> Applied|Rejected.
// A rejection is answered on the originating session only; an accepted vote is
// confirmed to the originator and then broadcast.
func (uc VoteUseCase) HandleVote(ctx context.Context, cmd VoteCommand) (VoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	metrics := application.ResolveMetrics(uc.Metrics)

	session, ok := uc.Sessions.Get(cmd.SessionID)
	if !ok {
		logger.Warn("vote for unknown session dropped",
			"event", "vote_session_not_found",
			"module", "live-polling/tally-engine",
			"layer", "application",
			"session_id", cmd.SessionID,
		)
		return VoteResult{Outcome: OutcomeRejected}, domainerrors.ErrSessionNotFound
	}
	option, _ := entities.ParseOption(cmd.Option)

	writeCtx := ctx
	if uc.PersistTimeout > 0 {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(ctx, uc.PersistTimeout)
		defer cancel()
	}
	snapshot, err := uc.Tally.RecordVote(writeCtx, session.Identity, option)
	if err != nil {
		code, message, known := Rejection(err)
		if !known {
			code, message = CodePersistenceFailure, "Vote could not be saved, please retry."
			err = fmt.Errorf("%w: %w", domainerrors.ErrPersistenceFailure, err)
		}
		metrics.VoteProcessed(code)
		level := slog.LevelInfo
		if errors.Is(err, domainerrors.ErrPersistenceFailure) {
			level = slog.LevelError
		}
		logger.Log(ctx, level, "vote rejected",
			"event", "vote_rejected",
			"module", "live-polling/tally-engine",
			"layer", "application",
			"session_id", session.ID,
			"identity", session.Identity,
			"option", cmd.Option,
			"code", code,
			"error", err.Error(),
		)
		uc.reply(logger, session, func(conn ports.SessionConn) error {
			return conn.SendError(code, message)
		})
		return VoteResult{Outcome: OutcomeRejected, Code: code, Option: option}, err
	}

	metrics.VoteProcessed(OutcomeAccepted)
	logger.Info("vote accepted",
		"event", "vote_accepted",
		"module", "live-polling/tally-engine",
		"layer", "application",
		"session_id", session.ID,
		"identity", session.Identity,
		"option", string(option),
		"revision", snapshot.Revision,
		"total_votes", snapshot.TotalVotes,
	)
	uc.reply(logger, session, func(conn ports.SessionConn) error {
		return conn.SendConfirmation(confirmationReply(option))
	})
	delivered := 0
	if uc.Fanout != nil {
		delivered = uc.Fanout.Broadcast(ctx, snapshot)
	}
	return VoteResult{
		Outcome:   OutcomeAccepted,
		Option:    option,
		Snapshot:  snapshot,
		Delivered: delivered,
	}, nil
}

// HandleMalformed answers an undecodable message on the originating session.
func (uc VoteUseCase) HandleMalformed(ctx context.Context, sessionID string, cause error) error {
	logger := application.ResolveLogger(uc.Logger)
	application.ResolveMetrics(uc.Metrics).VoteProcessed(CodeMalformedMessage)

	session, ok := uc.Sessions.Get(sessionID)
	if !ok {
		return domainerrors.ErrSessionNotFound
	}
	causeText := ""
	if cause != nil {
		causeText = cause.Error()
	}
	logger.Info("malformed message",
		"event", "vote_malformed_message",
		"module", "live-polling/tally-engine",
		"layer", "application",
		"session_id", session.ID,
		"error", causeText,
	)
	uc.reply(logger, session, func(conn ports.SessionConn) error {
		return conn.SendError(CodeMalformedMessage, malformedReply(cause))
	})
	return nil
}

func (uc VoteUseCase) reply(logger *slog.Logger, session realtime.Session, send func(ports.SessionConn) error) {
	if err := send(session.Conn); err != nil {
		uc.Sessions.MarkSuspect(session.ID)
		logger.Warn("reply delivery failed",
			"event", "vote_reply_failed",
			"module", "live-polling/tally-engine",
			"layer", "application",
			"session_id", session.ID,
			"error", fmt.Errorf("%w: %w", domainerrors.ErrTransportFailure, err).Error(),
		)
	}
}
