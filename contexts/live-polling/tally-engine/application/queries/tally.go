package queries

import (
	"context"

	"pollcast/contexts/live-polling/tally-engine/application/realtime"
	"pollcast/contexts/live-polling/tally-engine/application/tally"
	"pollcast/contexts/live-polling/tally-engine/domain/entities"
)

// TallyView is the read model served to the control plane.
type TallyView struct {
	Snapshot          entities.Snapshot
	PollActive        bool
	ConnectedSessions int
}

type TallyUseCase struct {
	Tally    *tally.Store
	Sessions *realtime.Registry
}

func (uc TallyUseCase) Current(_ context.Context) TallyView {
	snapshot := uc.Tally.Snapshot()
	view := TallyView{
		Snapshot:   snapshot,
		PollActive: snapshot.Active,
	}
	if uc.Sessions != nil {
		view.ConnectedSessions = uc.Sessions.Len()
	}
	return view
}

func (uc TallyUseCase) HasVoted(_ context.Context, identity string) bool {
	return uc.Tally.HasVoted(identity)
}
