// Package ws defines the JSON messages exchanged over a live session.
package ws

import (
	"encoding/json"
	"fmt"
	"strings"

	"pollcast/contexts/live-polling/tally-engine/domain/entities"
	domainerrors "pollcast/contexts/live-polling/tally-engine/domain/errors"
)

const (
	TypeVote         = "vote"
	TypeUpdate       = "update"
	TypeError        = "error"
	TypeConfirmation = "confirmation"
)

// ClientMessage is an inbound message. VoteTo is the field name older clients
// send instead of Option.
type ClientMessage struct {
	Type   string `json:"type"`
	Option string `json:"option,omitempty"`
	VoteTo string `json:"voteTo,omitempty"`
}

// VoteOption returns the requested option, preferring Option over VoteTo.
func (m ClientMessage) VoteOption() string {
	if m.Option != "" {
		return m.Option
	}
	return m.VoteTo
}

// DecodeClientMessage parses one inbound frame. Any structural problem is
// reported as ErrMalformedMessage; an unknown option is not, so the caller can
// answer it with the more specific rejection.
func DecodeClientMessage(payload []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("%w: %s", domainerrors.ErrMalformedMessage, err.Error())
	}
	switch strings.TrimSpace(msg.Type) {
	case "":
		return ClientMessage{}, fmt.Errorf("%w: missing type", domainerrors.ErrMalformedMessage)
	case TypeVote:
		if msg.VoteOption() == "" {
			return ClientMessage{}, fmt.Errorf("%w: vote without option", domainerrors.ErrMalformedMessage)
		}
		return msg, nil
	default:
		return ClientMessage{}, fmt.Errorf("%w: unsupported type %q", domainerrors.ErrMalformedMessage, msg.Type)
	}
}

// TallyData is the payload of an update message. The per-option counts sit at
// the top level; VotingPolls repeats them for clients that read the nested map.
type TallyData struct {
	Amazon      int            `json:"amazon"`
	Netflix     int            `json:"netflix"`
	Disney      int            `json:"disney"`
	Hulu        int            `json:"hulu"`
	TotalVotes  int            `json:"totalVotes"`
	VotingPolls map[string]int `json:"votingPolls"`
	Revision    uint64         `json:"revision"`
}

type UpdateMessage struct {
	Type string    `json:"type"`
	Data TallyData `json:"data"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ConfirmationMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewTallyData(snapshot entities.Snapshot) TallyData {
	polls := make(map[string]int, len(entities.Options()))
	for _, option := range entities.Options() {
		polls[string(option)] = snapshot.Count(option)
	}
	return TallyData{
		Amazon:      snapshot.Count(entities.OptionAmazon),
		Netflix:     snapshot.Count(entities.OptionNetflix),
		Disney:      snapshot.Count(entities.OptionDisney),
		Hulu:        snapshot.Count(entities.OptionHulu),
		TotalVotes:  snapshot.TotalVotes,
		VotingPolls: polls,
		Revision:    snapshot.Revision,
	}
}

func NewUpdate(snapshot entities.Snapshot) UpdateMessage {
	return UpdateMessage{Type: TypeUpdate, Data: NewTallyData(snapshot)}
}

func NewError(code string, message string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Message: message, Code: code}
}

func NewConfirmation(message string) ConfirmationMessage {
	return ConfirmationMessage{Type: TypeConfirmation, Message: message}
}

// ServerMessage is the union used by clients to decode any outbound message.
type ServerMessage struct {
	Type    string     `json:"type"`
	Data    *TallyData `json:"data,omitempty"`
	Message string     `json:"message,omitempty"`
	Code    string     `json:"code,omitempty"`
}
