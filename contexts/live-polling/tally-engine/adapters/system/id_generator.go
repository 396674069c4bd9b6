package system

import (
	"context"

	"github.com/google/uuid"
)

// UUIDGenerator creates UUIDv4 session identifiers.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
