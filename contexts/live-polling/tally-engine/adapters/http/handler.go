package httpadapter

import (
	"context"
	"log/slog"

	application "pollcast/contexts/live-polling/tally-engine/application"
	"pollcast/contexts/live-polling/tally-engine/application/commands"
	"pollcast/contexts/live-polling/tally-engine/application/queries"
	"pollcast/contexts/live-polling/tally-engine/domain/entities"
	httptransport "pollcast/contexts/live-polling/tally-engine/transport/http"
)

type Handler struct {
	Control commands.ControlUseCase
	Tally   queries.TallyUseCase
	Logger  *slog.Logger
}

// StartVotingHandler godoc
// @Summary Open the poll
// @Description Opens the activation gate so votes are accepted.
// @Tags control
// @Produce json
// @Param X-Admin-Token header string true "Control plane token"
// @Success 200 {object} httptransport.PollStateResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Router /start-voting [post]
func (h Handler) StartVotingHandler(ctx context.Context) httptransport.PollStateResponse {
	result := h.Control.StartPoll(ctx)
	return httptransport.PollStateResponse{
		Message:    "Voting started",
		PollActive: result.Active,
		Changed:    result.Changed,
	}
}

// StopVotingHandler godoc
// @Summary Close the poll
// @Description Closes the activation gate; votes are rejected until it is opened again.
// @Tags control
// @Produce json
// @Param X-Admin-Token header string true "Control plane token"
// @Success 200 {object} httptransport.PollStateResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Router /stop-voting [post]
func (h Handler) StopVotingHandler(ctx context.Context) httptransport.PollStateResponse {
	result := h.Control.StopPoll(ctx)
	return httptransport.PollStateResponse{
		Message:    "Voting stopped",
		PollActive: result.Active,
		Changed:    result.Changed,
	}
}

// ClearVotesHandler godoc
// @Summary Clear all votes
// @Description Zeroes every counter, forgets every voter and broadcasts the empty tally.
// @Tags control
// @Produce json
// @Param X-Admin-Token header string true "Control plane token"
// @Success 200 {object} httptransport.ClearVotesResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 503 {object} httptransport.ErrorResponse
// @Router /clear-votes [post]
func (h Handler) ClearVotesHandler(ctx context.Context) (httptransport.ClearVotesResponse, error) {
	snapshot, err := h.Control.ClearVotes(ctx)
	if err != nil {
		application.ResolveLogger(h.Logger).Error("clear votes request failed",
			"event", "http_clear_votes_failed",
			"module", "live-polling/tally-engine",
			"layer", "transport",
			"error", err.Error(),
		)
		return httptransport.ClearVotesResponse{}, err
	}
	return httptransport.ClearVotesResponse{
		Message:    "Votes and IPs cleared",
		TotalVotes: snapshot.TotalVotes,
		Counts:     mapCounts(snapshot),
	}, nil
}

// TallyHandler godoc
// @Summary Current tally
// @Description Returns the current per-option counts, the poll state and the number of live sessions.
// @Tags tally
// @Produce json
// @Success 200 {object} httptransport.TallyResponse
// @Router /tally [get]
func (h Handler) TallyHandler(ctx context.Context) httptransport.TallyResponse {
	view := h.Tally.Current(ctx)
	return httptransport.TallyResponse{
		Counts:            mapCounts(view.Snapshot),
		TotalVotes:        view.Snapshot.TotalVotes,
		Revision:          view.Snapshot.Revision,
		PollActive:        view.PollActive,
		ConnectedSessions: view.ConnectedSessions,
	}
}

func mapCounts(snapshot entities.Snapshot) map[string]int {
	counts := make(map[string]int, len(entities.Options()))
	for _, option := range entities.Options() {
		counts[string(option)] = snapshot.Count(option)
	}
	return counts
}
