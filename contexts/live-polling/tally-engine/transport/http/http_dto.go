package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PollStateResponse struct {
	Message    string `json:"message"`
	PollActive bool   `json:"pollActive"`
	Changed    bool   `json:"changed"`
}

type ClearVotesResponse struct {
	Message    string         `json:"message"`
	TotalVotes int            `json:"totalVotes"`
	Counts     map[string]int `json:"votingPolls"`
}

type TallyResponse struct {
	Counts            map[string]int `json:"votingPolls"`
	TotalVotes        int            `json:"totalVotes"`
	Revision          uint64         `json:"revision"`
	PollActive        bool           `json:"pollActive"`
	ConnectedSessions int            `json:"connectedSessions"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
