package wsadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"pollcast/contexts/live-polling/tally-engine/domain/entities"
	"pollcast/contexts/live-polling/tally-engine/ports"
	wstransport "pollcast/contexts/live-polling/tally-engine/transport/ws"

	"github.com/gorilla/websocket"
)

const (
	defaultSendBuffer   = 16
	defaultWriteTimeout = 10 * time.Second
)

var (
	errSendBufferFull = errors.New("send buffer full")
	errConnClosed     = errors.New("connection closed")
)

// Conn is the SessionConn of one websocket. Sends only enqueue; a single
// writer goroutine owns every data frame and ping written to the socket.
type Conn struct {
	ws           *websocket.Conn
	send         chan []byte
	ping         chan struct{}
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
	logger       *slog.Logger
}

func newConn(ws *websocket.Conn, sendBuffer int, writeTimeout time.Duration, logger *slog.Logger) *Conn {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Conn{
		ws:           ws,
		send:         make(chan []byte, sendBuffer),
		ping:         make(chan struct{}, 1),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
		logger:       logger,
	}
	go c.writeLoop()
	return c
}

func (c *Conn) SendUpdate(snapshot entities.Snapshot) error {
	return c.enqueue(wstransport.NewUpdate(snapshot))
}

func (c *Conn) SendError(code string, message string) error {
	return c.enqueue(wstransport.NewError(code, message))
}

func (c *Conn) SendConfirmation(message string) error {
	return c.enqueue(wstransport.NewConfirmation(message))
}

// Ping asks the writer to send a ping control frame. A ping that is already
// pending is not duplicated.
func (c *Conn) Ping() error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.ping <- struct{}{}:
	default:
	}
	return nil
}

// Close sends a close frame and tears the socket down. Safe to call repeatedly
// and from any goroutine.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		deadline := time.Now().Add(time.Second)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) enqueue(message any) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return errSendBufferFull
	}
}

func (c *Conn) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.writeFailed(err)
				return
			}
		case <-c.ping:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout)); err != nil {
				c.writeFailed(err)
				return
			}
		}
	}
}

func (c *Conn) writeFailed(err error) {
	c.logger.Debug("websocket write failed",
		"event", "ws_write_failed",
		"module", "live-polling/tally-engine",
		"layer", "adapter",
		"error", err.Error(),
	)
	_ = c.Close()
}

var _ ports.SessionConn = (*Conn)(nil)
