package wsadapter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pollcast/contexts/live-polling/tally-engine/application/commands"
	"pollcast/contexts/live-polling/tally-engine/application/realtime"
	domainerrors "pollcast/contexts/live-polling/tally-engine/domain/errors"
	"pollcast/contexts/live-polling/tally-engine/domain/valueobjects"
	wstransport "pollcast/contexts/live-polling/tally-engine/transport/ws"

	"github.com/gorilla/websocket"
)

const defaultReadLimit = 4096

type Options struct {
	AllowedOrigins []string
	SendBuffer     int
	WriteTimeout   time.Duration
	ReadLimit      int64
}

// Handler upgrades HTTP requests to websocket sessions and runs one read loop
// per session.
type Handler struct {
	Votes       commands.VoteUseCase
	Connections commands.ConnectionUseCase
	Sessions    *realtime.Registry
	Options     Options
	Logger      *slog.Logger

	upgrader websocket.Upgrader
}

func NewHandler(votes commands.VoteUseCase, connections commands.ConnectionUseCase, sessions *realtime.Registry, opts Options, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = defaultReadLimit
	}
	h := &Handler{
		Votes:       votes,
		Connections: connections,
		Sessions:    sessions,
		Options:     opts,
		Logger:      logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	meta := valueobjects.ConnectionMetadata{
		ForwardedFor: r.Header.Get("X-Forwarded-For"),
		RemoteAddr:   r.RemoteAddr,
	}
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.Logger.Warn("websocket upgrade failed",
			"event", "ws_upgrade_failed",
			"module", "live-polling/tally-engine",
			"layer", "adapter",
			"remote_addr", r.RemoteAddr,
			"origin", r.Header.Get("Origin"),
			"error", err.Error(),
		)
		return
	}
	conn := newConn(ws, h.Options.SendBuffer, h.Options.WriteTimeout, h.Logger)

	ctx := context.WithoutCancel(r.Context())
	session, err := h.Connections.Connect(ctx, conn, meta)
	if err != nil {
		_ = conn.Close()
		return
	}
	defer func() {
		h.Connections.Disconnect(ctx, session.ID)
		_ = conn.Close()
	}()

	ws.SetReadLimit(h.Options.ReadLimit)
	ws.SetPongHandler(func(string) error {
		h.Sessions.MarkAlive(session.ID)
		return nil
	})

	for {
		messageType, payload, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				h.Logger.Info("websocket closed unexpectedly",
					"event", "ws_read_failed",
					"module", "live-polling/tally-engine",
					"layer", "adapter",
					"session_id", session.ID,
					"error", err.Error(),
				)
			}
			return
		}
		h.dispatch(ctx, session.ID, messageType, payload)
	}
}

// dispatch handles one inbound frame. A panic while handling it is contained
// to that frame.
func (h *Handler) dispatch(ctx context.Context, sessionID string, messageType int, payload []byte) {
	defer func() {
		if recovered := recover(); recovered != nil {
			h.Logger.Error("websocket message handler panicked",
				"event", "ws_dispatch_panic",
				"module", "live-polling/tally-engine",
				"layer", "adapter",
				"session_id", sessionID,
				"panic", fmt.Sprint(recovered),
			)
			_ = h.Votes.HandleMalformed(ctx, sessionID, fmt.Errorf("%w: internal error", domainerrors.ErrMalformedMessage))
		}
	}()

	if messageType != websocket.TextMessage {
		_ = h.Votes.HandleMalformed(ctx, sessionID, fmt.Errorf("expected a text frame"))
		return
	}
	msg, err := wstransport.DecodeClientMessage(payload)
	if err != nil {
		_ = h.Votes.HandleMalformed(ctx, sessionID, err)
		return
	}
	_, _ = h.Votes.HandleVote(ctx, commands.VoteCommand{
		SessionID: sessionID,
		Option:    msg.VoteOption(),
	})
}

// originChecker allows every origin when allowed is empty. Requests without an
// Origin header (non-browser clients) are always allowed.
func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		origin = strings.TrimRight(strings.ToLower(strings.TrimSpace(origin)), "/")
		if origin != "" {
			set[origin] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		if len(set) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		_, ok := set[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}
