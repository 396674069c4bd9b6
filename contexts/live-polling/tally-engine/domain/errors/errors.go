package errors

import "errors"

var (
	ErrAlreadyVoted       = errors.New("identity has already voted")
	ErrUnknownOption      = errors.New("unknown vote option")
	ErrPollInactive       = errors.New("poll is not active")
	ErrMalformedMessage   = errors.New("malformed message")
	ErrTransportFailure   = errors.New("session transport failure")
	ErrPersistenceFailure = errors.New("tally persistence failure")
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidIdentity    = errors.New("invalid identity key")
	ErrTallyInvariant     = errors.New("tally invariant violated")
)
