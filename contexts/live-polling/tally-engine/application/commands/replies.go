package commands

import (
	"errors"
	"fmt"

	"pollcast/contexts/live-polling/tally-engine/domain/entities"
	domainerrors "pollcast/contexts/live-polling/tally-engine/domain/errors"
)

// Reply codes carried next to the human readable error message.
const (
	CodePollInactive       = "poll_inactive"
	CodeUnknownOption      = "unknown_option"
	CodeAlreadyVoted       = "already_voted"
	CodePersistenceFailure = "persistence_failure"
	CodeMalformedMessage   = "malformed_message"
)

// Outcomes reported to metrics and returned in VoteResult.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

// Rejection maps a vote failure to the reply sent back to the voter. The bool
// is false for errors that are not voter facing.
func Rejection(err error) (code string, message string, ok bool) {
	switch {
	case errors.Is(err, domainerrors.ErrPollInactive):
		return CodePollInactive, "Voting is currently stopped!", true
	case errors.Is(err, domainerrors.ErrUnknownOption):
		return CodeUnknownOption, "Invalid vote option!", true
	case errors.Is(err, domainerrors.ErrAlreadyVoted):
		return CodeAlreadyVoted, "You have already voted!", true
	case errors.Is(err, domainerrors.ErrPersistenceFailure):
		return CodePersistenceFailure, "Vote could not be saved, please retry.", true
	case errors.Is(err, domainerrors.ErrMalformedMessage):
		return CodeMalformedMessage, "Malformed message", true
	default:
		return "", "", false
	}
}

func malformedReply(cause error) string {
	if cause == nil {
		return "Malformed message: unreadable payload"
	}
	return fmt.Sprintf("Malformed message: %s", cause.Error())
}

func confirmationReply(option entities.Option) string {
	return fmt.Sprintf("Vote recorded for %s", option)
}
