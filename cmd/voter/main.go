package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"pollcast/contexts/live-polling/tally-engine/adapters/wsclient"
	wstransport "pollcast/contexts/live-polling/tally-engine/transport/ws"
)

// Voter process entrypoint: connects to the tally websocket, prints every
// update and optionally casts one vote. Reconnects until interrupted.
func main() {
	url := flag.String("url", "ws://localhost:8000/ws", "tally websocket URL")
	option := flag.String("option", "", "option to vote for once connected (amazon, netflix, disney, hulu)")
	forwardedFor := flag.String("forwarded-for", "", "X-Forwarded-For value sent on the upgrade request")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil)).With("process", "voter")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	header := http.Header{}
	if value := strings.TrimSpace(*forwardedFor); value != "" {
		header.Set("X-Forwarded-For", value)
	}

	var client *wsclient.Client
	voted := false
	client = wsclient.New(*url, wsclient.Options{
		Header: header,
		Logger: logger,
		OnMessage: func(msg wstransport.ServerMessage) {
			printMessage(msg)
			if msg.Type == wstransport.TypeUpdate && !voted && *option != "" {
				if err := client.Vote(*option); err != nil {
					logger.Warn("vote send failed", "event", "voter_vote_failed", "error", err.Error())
					return
				}
				voted = true
			}
		},
		OnStateChange: func(state wsclient.State) {
			logger.Info("connection state changed", "event", "voter_state_changed", "state", state.String())
		},
	})

	if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("voter stopped", "event", "voter_stopped", "error", err.Error())
		os.Exit(1)
	}
}

func printMessage(msg wstransport.ServerMessage) {
	switch msg.Type {
	case wstransport.TypeUpdate:
		if msg.Data == nil {
			return
		}
		fmt.Printf("tally: amazon=%d netflix=%d disney=%d hulu=%d total=%d\n",
			msg.Data.Amazon, msg.Data.Netflix, msg.Data.Disney, msg.Data.Hulu, msg.Data.TotalVotes)
	case wstransport.TypeError:
		fmt.Printf("error: %s\n", msg.Message)
	case wstransport.TypeConfirmation:
		fmt.Printf("confirmed: %s\n", msg.Message)
	}
}
