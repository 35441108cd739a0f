// Package room runs one actor goroutine per live room. The actor is the
// session synchronizer: every mutating message re-reads the latest persisted
// session, applies the pure transition to that fresh copy, persists the
// result, and fans the new snapshot out to subscribers. Countdown and
// auto-stop fires go through the same path, tagged with a generation so a
// fire from a superseded cycle is dropped instead of touching a later round.
package room

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/wheelhouse-game/backend/internal/audio"
	"github.com/wheelhouse-game/backend/internal/catalog"
	"github.com/wheelhouse-game/backend/internal/engine"
	"github.com/wheelhouse-game/backend/internal/store"
	"github.com/wheelhouse-game/backend/internal/timing"
)

type Msg interface{ isRoomMsg() }

type Join struct {
	ClientID string
	Outbox   chan Snapshot // where this client receives snapshots
}

func (Join) isRoomMsg() {}

type Leave struct{ ClientID string }

func (Leave) isRoomMsg() {}

// FromClient carries a command from any transport. Reply, when non-nil,
// receives exactly one value: nil on success or the rejection reason.
type FromClient struct {
	Cmd   engine.Command
	Reply chan<- error
}

func (FromClient) isRoomMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

// timerFired is internal: a step of the countdown/auto-stop cycle.
type timerFired struct{ fire timing.Fire }

func (timerFired) isRoomMsg() {}

type Snapshot struct {
	Version int
	State   engine.Session
}

type View struct {
	Version    int
	NumClients int
	State      engine.Session
}

// Publisher pushes snapshots to an external fanout (e.g. a NATS subject
// per room) in addition to the in-process subscriber channels.
type Publisher interface {
	Publish(code string, snap Snapshot) error
}

type Config struct {
	Code      string
	Store     store.Store
	Clock     clockwork.Clock
	Catalog   catalog.Provider // nil disables server-side track fetch
	HostToken string           // provider credential captured at creation
	Publisher Publisher        // optional
	Audio     audio.Backend    // optional
	Logger    *zap.Logger
}

type Room struct {
	cfg     Config
	inbox   chan Msg
	session engine.Session
	version int
	clients map[string]chan Snapshot
	timers  *timing.Controller
	// timerGen is the generation of the cycle we currently honor; fires
	// with any other generation are stale and dropped.
	timerGen int
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func New(parent context.Context, cfg Config, initial engine.Session) *Room {
	ctx, cancel := context.WithCancel(parent)
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	r := &Room{
		cfg:     cfg,
		inbox:   make(chan Msg, 64),
		session: initial,
		clients: make(map[string]chan Snapshot),
		timers:  timing.NewController(cfg.Clock),
		log:     cfg.Logger.With(zap.String("room", cfg.Code)),
		ctx:     ctx,
		cancel:  cancel,
	}
	go r.loop()
	return r
}

// Inbox is how transports and tests talk to the actor.
func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.clients[msg.ClientID] = msg.Outbox
				msg.Outbox <- Snapshot{Version: r.version, State: r.session}

			case Leave:
				delete(r.clients, msg.ClientID)

			case FromClient:
				r.handleCommand(msg.Cmd, msg.Reply)

			case timerFired:
				if msg.fire.Gen != r.timerGen {
					r.log.Debug("dropping stale timer fire",
						zap.Int("gen", msg.fire.Gen),
						zap.Int("current", r.timerGen))
					break
				}
				r.handleCommand(r.timerCommand(msg.fire), nil)

			case GetState:
				msg.Reply <- View{
					Version:    r.version,
					NumClients: len(r.clients),
					State:      r.session,
				}

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) handleCommand(cmd engine.Command, reply chan<- error) {
	if cmd.Type == engine.CmdSelectPlaylist && len(cmd.Tracks) == 0 && r.cfg.Catalog != nil {
		tracks, err := r.fetchTracks(cmd.PlaylistID)
		if err != nil {
			r.log.Warn("track fetch failed", zap.String("playlist", cmd.PlaylistID), zap.Error(err))
			respond(reply, err)
			return
		}
		cmd.Tracks = tracks
	}
	if cmd.Now == 0 {
		cmd.Now = r.cfg.Clock.Now().UnixMilli()
	}

	// Read-fresh-before-write: another device may have persisted a newer
	// session since our last write; apply against what is stored, never
	// against a possibly stale local copy.
	current := r.session
	if stored, ok, err := r.cfg.Store.Get(r.ctx, r.cfg.Code); err != nil {
		r.log.Error("store read failed, applying to local view", zap.Error(err))
	} else if ok {
		current = stored
	}

	events, next, err := engine.Apply(current, cmd)
	if err != nil {
		respond(reply, err)
		return
	}

	if err := r.cfg.Store.Set(r.ctx, r.cfg.Code, next); err != nil {
		r.log.Error("store write failed", zap.Error(err))
		respond(reply, err)
		return
	}
	r.session = next
	r.version++
	respond(reply, nil)

	snap := Snapshot{Version: r.version, State: r.session}
	r.broadcast(snap)
	if r.cfg.Publisher != nil {
		if err := r.cfg.Publisher.Publish(r.cfg.Code, snap); err != nil {
			r.log.Warn("snapshot publish failed", zap.Error(err))
		}
	}
	r.react(events)
}

// react arms, supersedes, or cancels the timing cycle and pokes the audio
// backend, based on what just happened.
func (r *Room) react(events []engine.Event) {
	switch {
	case engine.ContainsEvent(events, engine.EvtTimerStarted):
		r.timerGen = r.timers.StartCycle(r.ctx, r.deliverFire)
	case engine.ContainsEvent(events, engine.EvtBuzzed),
		engine.ContainsEvent(events, engine.EvtRoundAdvanced),
		engine.ContainsEvent(events, engine.EvtGameCompleted):
		r.timers.Cancel()
		r.timerGen = 0
	}

	if r.cfg.Audio == nil {
		return
	}
	if engine.ContainsEvent(events, engine.EvtPlaybackStarted) && r.session.Playback != nil {
		uri := r.session.Playback.TrackURI
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := r.cfg.Audio.Play(ctx, uri, timing.ClipDuration); err != nil {
				r.log.Warn("audio play failed", zap.Error(err))
			}
		}()
	} else if engine.ContainsEvent(events, engine.EvtPlaybackStopped) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := r.cfg.Audio.Pause(ctx); err != nil {
				r.log.Warn("audio pause failed", zap.Error(err))
			}
		}()
	}
}

// deliverFire runs on the timing goroutine; it hands the fire to the actor
// so all state handling stays single-threaded.
func (r *Room) deliverFire(f timing.Fire) {
	select {
	case r.inbox <- timerFired{fire: f}:
	case <-r.ctx.Done():
	}
}

func (r *Room) timerCommand(f timing.Fire) engine.Command {
	switch f.Kind {
	case timing.KindTick:
		return engine.Command{Type: engine.CmdCountdownTick, Countdown: f.Countdown}
	case timing.KindPlay:
		return engine.Command{Type: engine.CmdBeginPlayback, Now: r.cfg.Clock.Now().UnixMilli()}
	default:
		return engine.Command{Type: engine.CmdStopPlayback}
	}
}

func (r *Room) fetchTracks(playlistID string) ([]engine.Track, error) {
	ctx, cancel := context.WithTimeout(r.ctx, 15*time.Second)
	defer cancel()
	return r.cfg.Catalog.PlaylistTracks(ctx, r.cfg.HostToken, playlistID)
}

func (r *Room) broadcast(snap Snapshot) {
	for id, ch := range r.clients {
		select {
		case ch <- snap:
			// ok
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(r.clients, id)
			r.log.Info("dropped slow client", zap.String("client", id))
		}
	}
}

func (r *Room) shutdown() {
	r.timers.Cancel()
	for id, ch := range r.clients {
		close(ch)
		delete(r.clients, id)
	}
	r.cancel()
}

func respond(reply chan<- error, err error) {
	if reply == nil {
		return
	}
	select {
	case reply <- err:
	default:
	}
}
