package realtime

import (
	"errors"
	"sync"

	"pollcast/contexts/live-polling/tally-engine/domain/entities"
)

type recordingConn struct {
	mu      sync.Mutex
	updates []entities.Snapshot
	errs    []string
	pings   int
	closed  int
	fail    bool
}

func (c *recordingConn) SendUpdate(snapshot entities.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("send buffer full")
	}
	c.updates = append(c.updates, snapshot)
	return nil
}

func (c *recordingConn) SendError(code string, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, code)
	return nil
}

func (c *recordingConn) SendConfirmation(string) error {
	return nil
}

func (c *recordingConn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	c.pings++
	return nil
}

func (c *recordingConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *recordingConn) snapshotUpdates() []entities.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]entities.Snapshot(nil), c.updates...)
}

func (c *recordingConn) counts() (pings int, closed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pings, c.closed
}

type staticSource struct {
	mu       sync.Mutex
	snapshot entities.Snapshot
}

func (s *staticSource) Snapshot() entities.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

func (s *staticSource) set(snapshot entities.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snapshot
}
