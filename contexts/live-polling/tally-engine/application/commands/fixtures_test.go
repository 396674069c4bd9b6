package commands

import (
	"context"
	"errors"
	"sync"
	"time"

	"pollcast/contexts/live-polling/tally-engine/application/realtime"
	"pollcast/contexts/live-polling/tally-engine/application/tally"
	"pollcast/contexts/live-polling/tally-engine/domain/entities"
)

type sentError struct {
	Code    string
	Message string
}

type fakeConn struct {
	mu            sync.Mutex
	updates       []entities.Snapshot
	errors        []sentError
	confirmations []string
}

func (c *fakeConn) SendUpdate(snapshot entities.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, snapshot)
	return nil
}

func (c *fakeConn) SendError(code string, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, sentError{Code: code, Message: message})
	return nil
}

func (c *fakeConn) SendConfirmation(message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirmations = append(c.confirmations, message)
	return nil
}

func (c *fakeConn) Ping() error { return nil }
func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) state() ([]entities.Snapshot, []sentError, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]entities.Snapshot(nil), c.updates...),
		append([]sentError(nil), c.errors...),
		append([]string(nil), c.confirmations...)
}

type flakyRepository struct {
	mu   sync.Mutex
	fail bool
}

func (r *flakyRepository) LoadTally(context.Context) (entities.Tally, error) {
	return entities.NewTally(), nil
}

func (r *flakyRepository) RecordVote(context.Context, string, entities.Option, time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("write timeout")
	}
	return nil
}

func (r *flakyRepository) ResetTally(context.Context) error {
	return nil
}

type harness struct {
	store      *tally.Store
	registry   *realtime.Registry
	fanout     *realtime.Fanout
	votes      VoteUseCase
	connection ConnectionUseCase
	control    ControlUseCase
	repo       *flakyRepository
}

func newHarness(active bool) harness {
	repo := &flakyRepository{}
	store := tally.NewStore(repo, nil, nil)
	store.SetActive(active)
	registry := realtime.NewRegistry(nil, nil, nil, nil)
	fanout := realtime.NewFanout(registry, store, nil, nil)
	return harness{
		store:      store,
		registry:   registry,
		fanout:     fanout,
		repo:       repo,
		votes:      VoteUseCase{Tally: store, Sessions: registry, Fanout: fanout, PersistTimeout: time.Second},
		connection: ConnectionUseCase{Sessions: registry, Fanout: fanout},
		control:    ControlUseCase{Tally: store, Fanout: fanout},
	}
}
