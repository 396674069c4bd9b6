// Package wsclient is a reconnecting voter client for the websocket endpoint.
package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	wstransport "pollcast/contexts/live-polling/tally-engine/transport/ws"

	"github.com/gorilla/websocket"
)

const DefaultRetryDelay = 3 * time.Second

var ErrNotConnected = errors.New("not connected")

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

type Options struct {
	Header        http.Header
	RetryDelay    time.Duration
	Dialer        *websocket.Dialer
	OnMessage     func(wstransport.ServerMessage)
	OnStateChange func(State)
	Logger        *slog.Logger
}

// Client keeps one connection open, redialing after a fixed delay whenever it
// drops. Every new connection starts from the server's fresh update.
type Client struct {
	url  string
	opts Options

	mu      sync.Mutex
	state   State
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func New(url string, opts Options) *Client {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{url: url, opts: opts}
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run connects and reconnects until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
	})
	defer stop()

	for {
		c.setState(StateConnecting, nil)
		conn, _, err := c.opts.Dialer.DialContext(ctx, c.url, c.opts.Header)
		if err != nil {
			c.setState(StateDisconnected, nil)
			if ctx.Err() != nil {
				return nil
			}
			c.opts.Logger.Warn("voter client dial failed",
				"event", "wsclient_dial_failed",
				"module", "live-polling/tally-engine",
				"layer", "adapter",
				"url", c.url,
				"error", err.Error(),
			)
		} else {
			c.serve(ctx, conn)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.opts.RetryDelay):
		}
	}
}

// serve publishes conn and reads from it until it drops. The cancel hook in Run
// only sees published connections, so a cancel that lands during the dial is
// caught here.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	c.setState(StateConnected, conn)
	if ctx.Err() == nil {
		c.readLoop(conn)
	}
	_ = conn.Close()
	c.setState(StateDisconnected, nil)
}

// Vote sends a vote on the current connection.
func (c *Client) Vote(option string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	payload, err := json.Marshal(wstransport.ClientMessage{Type: wstransport.TypeVote, Option: option})
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			c.opts.Logger.Info("voter client connection closed",
				"event", "wsclient_disconnected",
				"module", "live-polling/tally-engine",
				"layer", "adapter",
				"error", err.Error(),
			)
			return
		}
		var msg wstransport.ServerMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}
		if c.opts.OnMessage != nil {
			c.opts.OnMessage(msg)
		}
	}
}

func (c *Client) setState(state State, conn *websocket.Conn) {
	c.mu.Lock()
	changed := c.state != state
	c.state = state
	c.conn = conn
	c.mu.Unlock()
	if changed && c.opts.OnStateChange != nil {
		c.opts.OnStateChange(state)
	}
}
