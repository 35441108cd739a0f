// Package hub is the registry actor: it owns the map from room code to the
// live room actor and serializes creation, lookup, and teardown.
package hub

import (
	"context"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/wheelhouse-game/backend/internal/audio"
	"github.com/wheelhouse-game/backend/internal/catalog"
	"github.com/wheelhouse-game/backend/internal/engine"
	"github.com/wheelhouse-game/backend/internal/room"
	"github.com/wheelhouse-game/backend/internal/store"
)

type HubMsg interface{ isHubMsg() }

type CreateRoom struct {
	Code      string
	Initial   engine.Session
	HostToken string
	Reply     chan *room.Room
}

type GetRoom struct {
	Code  string
	Reply chan *room.Room
}

// EnsureRoom revives a room that exists in the store but has no live actor,
// e.g. after a restart. Initial is only used if creation happens.
type EnsureRoom struct {
	Code      string
	Initial   engine.Session
	HostToken string
	Reply     chan *room.Room
}

type RemoveRoom struct {
	Code string
}

type ShutdownHub struct{}

func (CreateRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (EnsureRoom) isHubMsg()  {}
func (RemoveRoom) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

// Deps are the collaborators shared by every room the hub spawns.
type Deps struct {
	Store     store.Store
	Clock     clockwork.Clock
	Catalog   catalog.Provider
	Publisher room.Publisher
	Audio     audio.Backend
	Logger    *zap.Logger
}

type Hub struct {
	deps   Deps
	inbox  chan HubMsg
	rooms  map[string]*room.Room
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, deps Deps) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	h := &Hub{
		deps:   deps,
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*room.Room),
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				if r := h.rooms[msg.Code]; r != nil {
					msg.Reply <- r
					break
				}
				msg.Reply <- h.spawn(msg.Code, msg.Initial, msg.HostToken)

			case GetRoom:
				msg.Reply <- h.rooms[msg.Code] // may be nil

			case EnsureRoom:
				if r := h.rooms[msg.Code]; r != nil {
					msg.Reply <- r
					break
				}
				msg.Reply <- h.spawn(msg.Code, msg.Initial, msg.HostToken)

			case RemoveRoom:
				if r := h.rooms[msg.Code]; r != nil {
					r.Inbox() <- room.Shutdown{}
					delete(h.rooms, msg.Code)
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) spawn(code string, initial engine.Session, hostToken string) *room.Room {
	r := room.New(h.ctx, room.Config{
		Code:      code,
		Store:     h.deps.Store,
		Clock:     h.deps.Clock,
		Catalog:   h.deps.Catalog,
		HostToken: hostToken,
		Publisher: h.deps.Publisher,
		Audio:     h.deps.Audio,
		Logger:    h.deps.Logger,
	}, initial)
	h.rooms[code] = r
	return r
}

func (h *Hub) shutdown() {
	for _, r := range h.rooms {
		r.Inbox() <- room.Shutdown{}
	}
	clear(h.rooms)
	h.cancel()
}
