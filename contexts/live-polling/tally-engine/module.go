package tallyengine

import (
	"context"
	"log/slog"
	"time"

	httpadapter "pollcast/contexts/live-polling/tally-engine/adapters/http"
	"pollcast/contexts/live-polling/tally-engine/adapters/memory"
	wsadapter "pollcast/contexts/live-polling/tally-engine/adapters/websocket"
	"pollcast/contexts/live-polling/tally-engine/application/commands"
	"pollcast/contexts/live-polling/tally-engine/application/queries"
	"pollcast/contexts/live-polling/tally-engine/application/realtime"
	"pollcast/contexts/live-polling/tally-engine/application/tally"
	"pollcast/contexts/live-polling/tally-engine/application/workers"
	"pollcast/contexts/live-polling/tally-engine/domain/entities"
	"pollcast/contexts/live-polling/tally-engine/ports"
)

type Module struct {
	Handler  httpadapter.Handler
	Socket   *wsadapter.Handler
	Sweeper  workers.LivenessSweeper
	Tally    *tally.Store
	Sessions *realtime.Registry
	Fanout   *realtime.Fanout
	Store    *memory.Store
}

type Dependencies struct {
	Repository       ports.TallyRepository
	Clock            ports.Clock
	IDGen            ports.IDGenerator
	Metrics          ports.Metrics
	PersistTimeout   time.Duration
	LivenessInterval time.Duration
	Socket           wsadapter.Options
	PollActive       bool
	Logger           *slog.Logger
}

func NewModule(deps Dependencies) Module {
	store := tally.NewStore(deps.Repository, deps.Clock, deps.Logger)
	store.SetActive(deps.PollActive)
	sessions := realtime.NewRegistry(deps.IDGen, deps.Clock, deps.Metrics, deps.Logger)
	fanout := realtime.NewFanout(sessions, store, deps.Metrics, deps.Logger)

	voteUseCase := commands.VoteUseCase{
		Tally:          store,
		Sessions:       sessions,
		Fanout:         fanout,
		PersistTimeout: deps.PersistTimeout,
		Metrics:        deps.Metrics,
		Logger:         deps.Logger,
	}
	connectionUseCase := commands.ConnectionUseCase{
		Sessions: sessions,
		Fanout:   fanout,
		Logger:   deps.Logger,
	}
	controlUseCase := commands.ControlUseCase{
		Tally:   store,
		Fanout:  fanout,
		Metrics: deps.Metrics,
		Logger:  deps.Logger,
	}
	tallyUseCase := queries.TallyUseCase{
		Tally:    store,
		Sessions: sessions,
	}
	return Module{
		Handler: httpadapter.Handler{
			Control: controlUseCase,
			Tally:   tallyUseCase,
			Logger:  deps.Logger,
		},
		Socket: wsadapter.NewHandler(voteUseCase, connectionUseCase, sessions, deps.Socket, deps.Logger),
		Sweeper: workers.LivenessSweeper{
			Sessions: sessions,
			Interval: deps.LivenessInterval,
			Logger:   deps.Logger,
		},
		Tally:    store,
		Sessions: sessions,
		Fanout:   fanout,
	}
}

// Load restores the persisted tally into memory. Call it once before serving.
func (m Module) Load(ctx context.Context) (entities.Snapshot, error) {
	return m.Tally.Load(ctx)
}

// Shutdown closes every live session.
func (m Module) Shutdown() int {
	return m.Sessions.CloseAll()
}

func NewInMemoryModule(pollActive bool, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repository:       store,
		Clock:            store,
		IDGen:            store,
		PersistTimeout:   5 * time.Second,
		LivenessInterval: 30 * time.Second,
		PollActive:       pollActive,
		Logger:           logger,
	})
	module.Store = store
	return module
}
