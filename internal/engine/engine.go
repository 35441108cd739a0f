package engine

import (
	"fmt"
	"math/rand"
)

// Scoring and pacing rules. Fixed, not configuration.
const (
	WinningScore   = 20
	GuessBudget    = 2
	PointsBoth     = 4
	PointsTitle    = 2
	PointsArtist   = 1
	CountdownStart = 3
	ClipDurationMs = 30000
)

type CommandType string

const (
	CmdAddPlayer      CommandType = "AddPlayer"
	CmdStartGame      CommandType = "StartGame"
	CmdSelectPlaylist CommandType = "SelectPlaylist"
	CmdBuzz           CommandType = "Buzz"
	CmdSetMode        CommandType = "SetMode"
	CmdJudge          CommandType = "Judge"
	CmdSkipRound      CommandType = "SkipRound"
	CmdCountdownTick  CommandType = "CountdownTick"
	CmdBeginPlayback  CommandType = "BeginPlayback"
	CmdStopPlayback   CommandType = "StopPlayback"
)

type Command struct {
	Type       CommandType
	PlayerID   string
	Name       string
	Playlist   Playlist
	PlaylistID string
	// Tracks is the candidate list for SelectPlaylist, supplied by the
	// catalog collaborator. The engine only picks one uniformly.
	Tracks    []Track
	PlayerIdx int
	Mode      Mode
	Correct   bool
	Countdown int
	Now       int64 // unix ms
}

type EventType string

const (
	EvtPlayerJoined    EventType = "PlayerJoined"
	EvtGameStarted     EventType = "GameStarted"
	EvtRoundStarted    EventType = "RoundStarted"
	EvtScoreAwarded    EventType = "ScoreAwarded"
	EvtBuzzed          EventType = "Buzzed"
	EvtModeSet         EventType = "ModeSet"
	EvtGuessJudged     EventType = "GuessJudged"
	EvtTimerStarted    EventType = "TimerStarted"
	EvtCountdownTick   EventType = "CountdownTick"
	EvtPlaybackStarted EventType = "PlaybackStarted"
	EvtPlaybackStopped EventType = "PlaybackStopped"
	EvtRoundAdvanced   EventType = "RoundAdvanced"
	EvtGameCompleted   EventType = "GameCompleted"
)

type Event struct {
	Type      EventType
	PlayerID  string
	PlayerIdx int
	Points    int
	Mode      Mode
	Correct   bool
	Countdown int
}

// chooseTrack picks a uniform random index; tests stub it for determinism.
var chooseTrack = func(n int) int { return rand.Intn(n) }

// Apply is the whole rule set: one exhaustive switch from (Session, Command)
// to a fresh Session plus the events that occurred. It never touches I/O and
// never mutates its input. A returned error means the command was rejected
// and the session is unchanged.
func Apply(s Session, cmd Command) ([]Event, Session, error) {
	switch cmd.Type {
	case CmdAddPlayer:
		return applyAddPlayer(s, cmd)
	case CmdStartGame:
		return applyStartGame(s)
	case CmdSelectPlaylist:
		return applySelectPlaylist(s, cmd)
	case CmdBuzz:
		return applyBuzz(s, cmd)
	case CmdSetMode:
		return applySetMode(s, cmd)
	case CmdJudge:
		return applyJudge(s, cmd)
	case CmdSkipRound:
		return applySkipRound(s)
	case CmdCountdownTick:
		return applyCountdownTick(s, cmd)
	case CmdBeginPlayback:
		return applyBeginPlayback(s, cmd)
	case CmdStopPlayback:
		return applyStopPlayback(s)
	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func applyAddPlayer(s Session, cmd Command) ([]Event, Session, error) {
	if s.Status != StatusLobby {
		return nil, s, fmt.Errorf("%w: players can only join in the lobby", ErrInvalidTransition)
	}
	for _, p := range s.Players {
		if p.Playlist.ID == cmd.Playlist.ID && p.ID != cmd.PlayerID {
			return nil, s, ErrPlaylistTaken
		}
	}

	ns := s.clone()
	player := Player{ID: cmd.PlayerID, Name: cmd.Name, Playlist: cmd.Playlist}
	replaced := false
	for i, p := range ns.Players {
		if p.ID == cmd.PlayerID {
			// Re-submission updates name/playlist in place, keeping the
			// join position.
			player.Score = p.Score
			ns.Players[i] = player
			replaced = true
			break
		}
	}
	if !replaced {
		ns.Players = append(ns.Players, player)
	}
	return []Event{{Type: EvtPlayerJoined, PlayerID: cmd.PlayerID}}, ns, nil
}

func applyStartGame(s Session) ([]Event, Session, error) {
	if s.Status != StatusLobby {
		return nil, s, fmt.Errorf("%w: game already started", ErrInvalidTransition)
	}
	if len(s.Players) < 2 {
		return nil, s, ErrInsufficientPlayers
	}
	ns := s.clone()
	ns.Status = StatusPlaying
	return []Event{{Type: EvtGameStarted}}, ns, nil
}

func applySelectPlaylist(s Session, cmd Command) ([]Event, Session, error) {
	if s.Status != StatusPlaying {
		return nil, s, fmt.Errorf("%w: no game in progress", ErrInvalidTransition)
	}
	if s.Song != nil {
		return nil, s, fmt.Errorf("%w: a song is already in play", ErrInvalidTransition)
	}
	var picked *Playlist
	for _, pl := range Available(s) {
		if pl.ID == cmd.PlaylistID {
			p := pl
			picked = &p
			break
		}
	}
	if picked == nil {
		return nil, s, fmt.Errorf("%w: playlist %q is not available this round", ErrInvalidTransition, cmd.PlaylistID)
	}
	if len(cmd.Tracks) == 0 {
		return nil, s, fmt.Errorf("%w: playlist %q has no playable tracks", ErrUpstreamUnavailable, cmd.PlaylistID)
	}

	ns := s.clone()
	song := cmd.Tracks[chooseTrack(len(cmd.Tracks))]
	ns.Song = &song
	ns.SelectedPlaylist = &Playlist{ID: picked.ID, Name: picked.Name}
	ns.Playback = &Playback{
		TrackURI:   song.URI,
		PreviewURL: song.PreviewURL,
		StartedAt:  cmd.Now,
		IsPlaying:  false, // the countdown starts it
		Duration:   ClipDurationMs,
	}
	ns.History = append(ns.History, picked.ID)
	ns.SolvedParts = SolvedParts{}
	ns.AnyoneGuessedCorrectly = false
	ns.DJPickedOwn = picked.ID == s.Players[s.DJIdx].Playlist.ID

	events := []Event{{Type: EvtRoundStarted, PlayerIdx: ns.DJIdx}}
	if ns.DJPickedOwn {
		ns.Players[ns.DJIdx].Score++
		events = append(events, Event{Type: EvtScoreAwarded, PlayerIdx: ns.DJIdx, Points: 1})
	}
	events = append(events, Event{Type: EvtTimerStarted})
	return events, ns, nil
}

func applyBuzz(s Session, cmd Command) ([]Event, Session, error) {
	idx := cmd.PlayerIdx
	switch {
	case s.Status != StatusPlaying || s.Song == nil:
		return nil, s, fmt.Errorf("%w: nothing to buzz for", ErrInvalidTransition)
	case idx < 0 || idx >= len(s.Players):
		return nil, s, fmt.Errorf("%w: no such player", ErrInvalidTransition)
	case idx == s.DJIdx:
		return nil, s, fmt.Errorf("%w: the DJ cannot buzz", ErrInvalidTransition)
	case s.Buzzed != nil:
		return nil, s, fmt.Errorf("%w: someone already has the floor", ErrInvalidTransition)
	case s.GuessesUsed[guessKey(idx)] >= GuessBudget:
		return nil, s, fmt.Errorf("%w: no guesses remaining", ErrInvalidTransition)
	}

	ns := s.clone()
	ns.Buzzed = &idx
	ns.Countdown = nil
	events := []Event{{Type: EvtBuzzed, PlayerIdx: idx}}
	if ns.Playback != nil && ns.Playback.IsPlaying {
		ns.Playback.IsPlaying = false
		events = append(events, Event{Type: EvtPlaybackStopped})
	}
	return events, ns, nil
}

func applySetMode(s Session, cmd Command) ([]Event, Session, error) {
	if s.Buzzed == nil {
		return nil, s, fmt.Errorf("%w: nobody has buzzed", ErrInvalidTransition)
	}
	if s.Mode != "" {
		return nil, s, fmt.Errorf("%w: guess category already chosen", ErrInvalidTransition)
	}
	opts := Options(s, *s.Buzzed)
	valid := (cmd.Mode == ModeTitle && opts.Title) ||
		(cmd.Mode == ModeArtist && opts.Artist) ||
		(cmd.Mode == ModeBoth && opts.Both)
	if !valid {
		return nil, s, fmt.Errorf("%w: %q is not guessable right now", ErrInvalidTransition, cmd.Mode)
	}
	ns := s.clone()
	ns.Mode = cmd.Mode
	return []Event{{Type: EvtModeSet, PlayerIdx: *s.Buzzed, Mode: cmd.Mode}}, ns, nil
}

func applyJudge(s Session, cmd Command) ([]Event, Session, error) {
	if s.Status != StatusPlaying || s.Buzzed == nil {
		return nil, s, fmt.Errorf("%w: no guess awaiting a verdict", ErrInvalidTransition)
	}

	ns := s.clone()
	buzzed := *ns.Buzzed
	// The verdict always consumes a guess, right or wrong.
	ns.GuessesUsed[guessKey(buzzed)]++

	events := []Event{{Type: EvtGuessJudged, PlayerIdx: buzzed, Mode: ns.Mode, Correct: cmd.Correct}}

	if cmd.Correct && ns.Mode != "" {
		pts := pointsFor(ns.Mode)
		ns.Players[buzzed].Score += pts
		events = append(events, Event{Type: EvtScoreAwarded, PlayerIdx: buzzed, Points: pts})

		switch ns.Mode {
		case ModeBoth:
			ns.SolvedParts.Song = true
			ns.SolvedParts.Artist = true
		case ModeTitle:
			ns.SolvedParts.Song = true
		case ModeArtist:
			ns.SolvedParts.Artist = true
		}
		ns.AnyoneGuessedCorrectly = true

		if ns.SolvedParts.Song && ns.SolvedParts.Artist {
			return nextRound(ns, events)
		}
		// Partial answer: keep the round alive, give the rest another listen.
		ns.Buzzed = nil
		ns.Mode = ""
		if ns.Playback != nil {
			ns.Playback.IsPlaying = false
		}
		events = append(events, Event{Type: EvtTimerStarted})
		return events, ns, nil
	}

	// Wrong, or a verdict with no committed category: the guess is spent
	// either way.
	if allGuessesExhausted(ns) {
		if !ns.AnyoneGuessedCorrectly {
			events = append(events, applyDJPenalty(&ns))
		}
		return nextRound(ns, events)
	}
	ns.Buzzed = nil
	ns.Mode = ""
	if ns.Playback != nil {
		ns.Playback.IsPlaying = false
	}
	events = append(events, Event{Type: EvtTimerStarted})
	return events, ns, nil
}

func applySkipRound(s Session) ([]Event, Session, error) {
	if s.Status != StatusPlaying || s.Song == nil {
		return nil, s, fmt.Errorf("%w: no round to skip", ErrInvalidTransition)
	}
	ns := s.clone()
	var events []Event
	if !ns.AnyoneGuessedCorrectly {
		events = append(events, applyDJPenalty(&ns))
	}
	return nextRound(ns, events)
}

// nextRound either ends the game or rotates the DJ and clears every
// round-scoped field. It takes ownership of ns (already a clone).
func nextRound(ns Session, events []Event) ([]Event, Session, error) {
	for _, p := range ns.Players {
		if p.Score >= WinningScore {
			ns.Status = StatusGameOver
			ns.Playback = nil
			ns.Countdown = nil
			events = append(events, Event{Type: EvtGameCompleted})
			return events, ns, nil
		}
	}
	ns.DJIdx = (ns.DJIdx + 1) % len(ns.Players)
	ns.Song = nil
	ns.SelectedPlaylist = nil
	ns.Buzzed = nil
	ns.Mode = ""
	ns.Playback = nil
	ns.Countdown = nil
	ns.GuessesUsed = map[string]int{}
	ns.SolvedParts = SolvedParts{}
	ns.DJPickedOwn = false
	ns.AnyoneGuessedCorrectly = false
	events = append(events, Event{Type: EvtRoundAdvanced, PlayerIdx: ns.DJIdx})
	return events, ns, nil
}

func applyCountdownTick(s Session, cmd Command) ([]Event, Session, error) {
	if s.Status != StatusPlaying || s.Song == nil || s.Playback == nil {
		return nil, s, fmt.Errorf("%w: no round to count down", ErrInvalidTransition)
	}
	ns := s.clone()
	n := cmd.Countdown
	ns.Countdown = &n
	ns.Playback.IsPlaying = false
	return []Event{{Type: EvtCountdownTick, Countdown: n}}, ns, nil
}

func applyBeginPlayback(s Session, cmd Command) ([]Event, Session, error) {
	if s.Status != StatusPlaying || s.Song == nil || s.Playback == nil {
		return nil, s, fmt.Errorf("%w: no round to play", ErrInvalidTransition)
	}
	ns := s.clone()
	ns.Countdown = nil
	ns.Playback.IsPlaying = true
	ns.Playback.StartedAt = cmd.Now
	return []Event{{Type: EvtPlaybackStarted}}, ns, nil
}

// applyStopPlayback is the auto-stop at the end of the clip window. A stale
// fire (round already resolved, playback already paused) is a clean no-op.
func applyStopPlayback(s Session) ([]Event, Session, error) {
	if s.Playback == nil || !s.Playback.IsPlaying {
		return nil, s, nil
	}
	ns := s.clone()
	ns.Playback.IsPlaying = false
	return []Event{{Type: EvtPlaybackStopped}}, ns, nil
}

func applyDJPenalty(ns *Session) Event {
	dj := ns.DJIdx
	if ns.Players[dj].Score > 0 {
		ns.Players[dj].Score--
	}
	return Event{Type: EvtScoreAwarded, PlayerIdx: dj, Points: -1}
}

func pointsFor(m Mode) int {
	switch m {
	case ModeBoth:
		return PointsBoth
	case ModeTitle:
		return PointsTitle
	default:
		return PointsArtist
	}
}

// allGuessesExhausted reports whether every non-DJ player has spent the full
// budget.
func allGuessesExhausted(s Session) bool {
	for i := range s.Players {
		if i == s.DJIdx {
			continue
		}
		if s.GuessesUsed[guessKey(i)] < GuessBudget {
			return false
		}
	}
	return true
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}
