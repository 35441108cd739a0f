package engine

import (
	"errors"
	"testing"
)

func testPlaylist(id string) Playlist {
	return Playlist{ID: id, Name: "Playlist " + id}
}

func testTracks() []Track {
	return []Track{
		{ID: "t1", Name: "Song One", Artist: "Artist One", URI: "spotify:track:t1", PreviewURL: "https://p.example/t1.mp3"},
		{ID: "t2", Name: "Song Two", Artist: "Artist Two", URI: "spotify:track:t2"},
	}
}

// playingSession builds a playing-state session with n players, P0 as DJ.
func playingSession(n int) Session {
	s := NewSession("ABC123", "host")
	for i := 0; i < n; i++ {
		_, s, _ = Apply(s, Command{Type: CmdAddPlayer, PlayerID: "player" + string(rune('0'+i)), Name: "P" + string(rune('0'+i)), Playlist: testPlaylist("pl" + string(rune('0'+i)))})
	}
	_, s, _ = Apply(s, Command{Type: CmdStartGame})
	return s
}

// roundInProgress advances a playing session to a selected song.
func roundInProgress(t *testing.T, s Session, playlistID string) Session {
	t.Helper()
	old := chooseTrack
	chooseTrack = func(int) int { return 0 }
	defer func() { chooseTrack = old }()

	_, ns, err := Apply(s, Command{Type: CmdSelectPlaylist, PlaylistID: playlistID, Tracks: testTracks(), Now: 1000})
	if err != nil {
		t.Fatalf("select playlist: %v", err)
	}
	return ns
}

func TestAddPlayer(t *testing.T) {
	cases := []struct {
		name    string
		setup   func() Session
		cmd     Command
		wantErr error
		check   func(t *testing.T, s Session)
	}{
		{
			name:  "joins lobby",
			setup: func() Session { return NewSession("ABC123", "host") },
			cmd:   Command{Type: CmdAddPlayer, PlayerID: "a", Name: "Alice", Playlist: testPlaylist("pl-a")},
			check: func(t *testing.T, s Session) {
				if len(s.Players) != 1 || s.Players[0].Name != "Alice" {
					t.Fatalf("unexpected players %+v", s.Players)
				}
			},
		},
		{
			name: "duplicate playlist rejected",
			setup: func() Session {
				s := NewSession("ABC123", "host")
				_, s, _ = Apply(s, Command{Type: CmdAddPlayer, PlayerID: "a", Name: "Alice", Playlist: testPlaylist("pl-a")})
				return s
			},
			cmd:     Command{Type: CmdAddPlayer, PlayerID: "b", Name: "Bob", Playlist: testPlaylist("pl-a")},
			wantErr: ErrPlaylistTaken,
		},
		{
			name: "resubmission replaces in place",
			setup: func() Session {
				s := NewSession("ABC123", "host")
				_, s, _ = Apply(s, Command{Type: CmdAddPlayer, PlayerID: "a", Name: "Alice", Playlist: testPlaylist("pl-a")})
				_, s, _ = Apply(s, Command{Type: CmdAddPlayer, PlayerID: "b", Name: "Bob", Playlist: testPlaylist("pl-b")})
				return s
			},
			cmd: Command{Type: CmdAddPlayer, PlayerID: "a", Name: "Alice", Playlist: testPlaylist("pl-c")},
			check: func(t *testing.T, s Session) {
				if len(s.Players) != 2 {
					t.Fatalf("want 2 players, got %d", len(s.Players))
				}
				if s.Players[0].ID != "a" || s.Players[0].Playlist.ID != "pl-c" {
					t.Fatalf("expected first slot updated, got %+v", s.Players[0])
				}
			},
		},
		{
			name: "join after start rejected",
			setup: func() Session {
				return playingSession(2)
			},
			cmd:     Command{Type: CmdAddPlayer, PlayerID: "late", Name: "Late", Playlist: testPlaylist("pl-late")},
			wantErr: ErrInvalidTransition,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ns, err := Apply(tc.setup(), tc.cmd)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("want %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if tc.check != nil {
				tc.check(t, ns)
			}
		})
	}
}

func TestStartGame_RequiresTwoPlayers(t *testing.T) {
	s := NewSession("ABC123", "host")
	_, s, _ = Apply(s, Command{Type: CmdAddPlayer, PlayerID: "a", Name: "Alice", Playlist: testPlaylist("pl-a")})

	_, _, err := Apply(s, Command{Type: CmdStartGame})
	if !errors.Is(err, ErrInsufficientPlayers) {
		t.Fatalf("want ErrInsufficientPlayers, got %v", err)
	}

	_, s, _ = Apply(s, Command{Type: CmdAddPlayer, PlayerID: "b", Name: "Bob", Playlist: testPlaylist("pl-b")})
	_, ns, err := Apply(s, Command{Type: CmdStartGame})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if ns.Status != StatusPlaying {
		t.Fatalf("want playing, got %v", ns.Status)
	}
}

func TestSelectPlaylist(t *testing.T) {
	t.Run("own playlist awards immediate point", func(t *testing.T) {
		s := playingSession(2)
		old := chooseTrack
		chooseTrack = func(int) int { return 1 }
		defer func() { chooseTrack = old }()

		events, ns, err := Apply(s, Command{Type: CmdSelectPlaylist, PlaylistID: "pl0", Tracks: testTracks(), Now: 42})
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if !ns.DJPickedOwn {
			t.Fatal("want djPickedOwn")
		}
		if ns.Players[0].Score != 1 {
			t.Fatalf("want DJ score 1, got %d", ns.Players[0].Score)
		}
		if ns.Song == nil || ns.Song.ID != "t2" {
			t.Fatalf("want chosen track t2, got %+v", ns.Song)
		}
		if ns.Playback == nil || ns.Playback.IsPlaying || ns.Playback.Duration != ClipDurationMs || ns.Playback.StartedAt != 42 {
			t.Fatalf("unexpected playback %+v", ns.Playback)
		}
		if len(ns.History) != 1 || ns.History[0] != "pl0" {
			t.Fatalf("unexpected history %v", ns.History)
		}
		if !ContainsEvent(events, EvtTimerStarted) {
			t.Fatal("expected EvtTimerStarted")
		}
	})

	t.Run("someone else's playlist awards nothing", func(t *testing.T) {
		s := playingSession(2)
		ns := roundInProgress(t, s, "pl1")
		if ns.DJPickedOwn || ns.Players[0].Score != 0 {
			t.Fatalf("unexpected DJ bonus: %+v", ns.Players)
		}
	})

	t.Run("empty track list fails", func(t *testing.T) {
		s := playingSession(2)
		_, _, err := Apply(s, Command{Type: CmdSelectPlaylist, PlaylistID: "pl0", Tracks: nil})
		if !errors.Is(err, ErrUpstreamUnavailable) {
			t.Fatalf("want ErrUpstreamUnavailable, got %v", err)
		}
	})

	t.Run("blocked playlist rejected", func(t *testing.T) {
		s := playingSession(2)
		s.History = []string{"pl0"}
		_, _, err := Apply(s, Command{Type: CmdSelectPlaylist, PlaylistID: "pl0", Tracks: testTracks()})
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("want ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("second select while song in play rejected", func(t *testing.T) {
		s := roundInProgress(t, playingSession(2), "pl1")
		_, _, err := Apply(s, Command{Type: CmdSelectPlaylist, PlaylistID: "pl0", Tracks: testTracks()})
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("want ErrInvalidTransition, got %v", err)
		}
	})
}

func TestBuzz(t *testing.T) {
	s := roundInProgress(t, playingSession(3), "pl1")

	cases := []struct {
		name    string
		mutate  func(*Session)
		idx     int
		wantErr bool
	}{
		{name: "legal buzz", idx: 1},
		{name: "dj cannot buzz", idx: 0, wantErr: true},
		{name: "already buzzed", mutate: func(s *Session) { one := 1; s.Buzzed = &one }, idx: 2, wantErr: true},
		{name: "budget exhausted", mutate: func(s *Session) { s.GuessesUsed["p2"] = GuessBudget }, idx: 2, wantErr: true},
		{name: "out of range", idx: 7, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sess := s.clone()
			if tc.mutate != nil {
				tc.mutate(&sess)
			}
			_, ns, err := Apply(sess, Command{Type: CmdBuzz, PlayerIdx: tc.idx})
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("want ErrInvalidTransition, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if ns.Buzzed == nil || *ns.Buzzed != tc.idx {
				t.Fatalf("want buzzed=%d, got %v", tc.idx, ns.Buzzed)
			}
			if ns.Playback.IsPlaying {
				t.Fatal("buzz must pause playback")
			}
		})
	}
}

func TestJudge_CorrectBothResolvesRound(t *testing.T) {
	s := roundInProgress(t, playingSession(2), "pl1")
	_, s, _ = Apply(s, Command{Type: CmdBuzz, PlayerIdx: 1})
	_, s, _ = Apply(s, Command{Type: CmdSetMode, Mode: ModeBoth})

	events, ns, err := Apply(s, Command{Type: CmdJudge, Correct: true})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if ns.Players[1].Score != PointsBoth {
		t.Fatalf("want %d points, got %d", PointsBoth, ns.Players[1].Score)
	}
	if !ContainsEvent(events, EvtRoundAdvanced) {
		t.Fatal("both-mode correct guess must end the round")
	}
	if ns.DJIdx != 1 {
		t.Fatalf("want DJ rotated to 1, got %d", ns.DJIdx)
	}
	if ns.Song != nil || ns.Playback != nil || ns.Buzzed != nil || ns.Mode != "" || len(ns.GuessesUsed) != 0 {
		t.Fatalf("round-scoped fields not reset: %+v", ns)
	}
}

func TestJudge_AlwaysConsumesGuess(t *testing.T) {
	for _, correct := range []bool{true, false} {
		s := roundInProgress(t, playingSession(3), "pl1")
		_, s, _ = Apply(s, Command{Type: CmdBuzz, PlayerIdx: 1})
		_, s, _ = Apply(s, Command{Type: CmdSetMode, Mode: ModeTitle})
		_, ns, err := Apply(s, Command{Type: CmdJudge, Correct: correct})
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if ns.GuessesUsed["p1"] != 1 {
			t.Fatalf("correct=%v: want 1 guess used, got %d", correct, ns.GuessesUsed["p1"])
		}
	}
}

func TestJudge_WithoutModeStillConsumesGuess(t *testing.T) {
	s := roundInProgress(t, playingSession(3), "pl1")
	_, s, _ = Apply(s, Command{Type: CmdBuzz, PlayerIdx: 1})

	events, ns, err := Apply(s, Command{Type: CmdJudge, Correct: true})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if ns.GuessesUsed["p1"] != 1 {
		t.Fatalf("want 1 guess used, got %d", ns.GuessesUsed["p1"])
	}
	if ContainsEvent(events, EvtScoreAwarded) {
		t.Fatal("no points without a committed mode")
	}
}

// The 2-player partial-credit scenario: title then artist, both by P1.
func TestTwoPlayerPartialCreditRound(t *testing.T) {
	old := chooseTrack
	chooseTrack = func(int) int { return 0 }
	defer func() { chooseTrack = old }()

	s := playingSession(2)
	_, s, err := Apply(s, Command{Type: CmdSelectPlaylist, PlaylistID: "pl0", Tracks: testTracks(), Now: 1})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if !s.DJPickedOwn || s.Players[0].Score != 1 {
		t.Fatalf("want DJ own-pick bonus, got %+v", s.Players)
	}

	// P1 buzzes for the title.
	_, s, _ = Apply(s, Command{Type: CmdBuzz, PlayerIdx: 1})
	_, s, _ = Apply(s, Command{Type: CmdSetMode, Mode: ModeTitle})
	events, s, err := Apply(s, Command{Type: CmdJudge, Correct: true})
	if err != nil {
		t.Fatalf("judge: %v", err)
	}
	if s.Players[1].Score != PointsTitle {
		t.Fatalf("want +2, got score %d", s.Players[1].Score)
	}
	if !s.SolvedParts.Song || s.SolvedParts.Artist {
		t.Fatalf("want only song solved, got %+v", s.SolvedParts)
	}
	if ContainsEvent(events, EvtRoundAdvanced) {
		t.Fatal("round must continue with artist unsolved")
	}
	if !ContainsEvent(events, EvtTimerStarted) {
		t.Fatal("expected countdown restart after partial credit")
	}

	// Only artist remains guessable now.
	opts := Options(s, 1)
	if opts.Title || opts.Both || !opts.Artist || opts.Remaining != 1 {
		t.Fatalf("unexpected options %+v", opts)
	}

	// P1 buzzes again for the artist.
	_, s, _ = Apply(s, Command{Type: CmdBuzz, PlayerIdx: 1})
	_, s, _ = Apply(s, Command{Type: CmdSetMode, Mode: ModeArtist})
	events, s, err = Apply(s, Command{Type: CmdJudge, Correct: true})
	if err != nil {
		t.Fatalf("judge artist: %v", err)
	}
	if s.Players[1].Score != PointsTitle+PointsArtist {
		t.Fatalf("want +3 total this round, got %d", s.Players[1].Score)
	}
	if !ContainsEvent(events, EvtRoundAdvanced) {
		t.Fatal("fully solved round must advance")
	}
	// Someone guessed correctly, so the DJ keeps the pick bonus.
	if s.Players[0].Score != 1 {
		t.Fatalf("no penalty expected, DJ score %d", s.Players[0].Score)
	}
	if s.DJIdx != 1 {
		t.Fatalf("want djIdx 1, got %d", s.DJIdx)
	}
}

// The 3-player exhaustion scenario: four wrong guesses, DJ penalized.
func TestExhaustionAppliesDJPenalty(t *testing.T) {
	s := roundInProgress(t, playingSession(3), "pl1")
	s.Players[0].Score = 5

	wrongGuess := func(idx int) {
		t.Helper()
		var err error
		_, s, err = Apply(s, Command{Type: CmdBuzz, PlayerIdx: idx})
		if err != nil {
			t.Fatalf("buzz p%d: %v", idx, err)
		}
		_, s, _ = Apply(s, Command{Type: CmdSetMode, Mode: ModeTitle})
		_, s, err = Apply(s, Command{Type: CmdJudge, Correct: false})
		if err != nil {
			t.Fatalf("judge p%d: %v", idx, err)
		}
	}

	wrongGuess(1)
	wrongGuess(2)
	wrongGuess(1)
	if s.Song == nil {
		t.Fatal("round ended early")
	}
	wrongGuess(2) // exhausts the table

	if s.Players[0].Score != 4 {
		t.Fatalf("want DJ penalized to 4, got %d", s.Players[0].Score)
	}
	if s.DJIdx != 1 {
		t.Fatalf("want next DJ, got %d", s.DJIdx)
	}
}

func TestPenaltyClampsAtZero(t *testing.T) {
	s := roundInProgress(t, playingSession(2), "pl1")
	_, ns, err := Apply(s, Command{Type: CmdSkipRound})
	if err != nil {
		t.Fatalf("skip: %v", err)
	}
	if ns.Players[0].Score != 0 {
		t.Fatalf("score must clamp at 0, got %d", ns.Players[0].Score)
	}
}

func TestSkipRound_NoPenaltyAfterCorrectGuess(t *testing.T) {
	s := roundInProgress(t, playingSession(2), "pl1")
	s.Players[0].Score = 3
	s.AnyoneGuessedCorrectly = true

	_, ns, err := Apply(s, Command{Type: CmdSkipRound})
	if err != nil {
		t.Fatalf("skip: %v", err)
	}
	if ns.Players[0].Score != 3 {
		t.Fatalf("no penalty expected, got %d", ns.Players[0].Score)
	}
}

func TestNextRound_GameOverAtThreshold(t *testing.T) {
	s := roundInProgress(t, playingSession(2), "pl1")
	s.Players[1].Score = WinningScore - PointsBoth
	_, s, _ = Apply(s, Command{Type: CmdBuzz, PlayerIdx: 1})
	_, s, _ = Apply(s, Command{Type: CmdSetMode, Mode: ModeBoth})

	events, ns, err := Apply(s, Command{Type: CmdJudge, Correct: true})
	if err != nil {
		t.Fatalf("judge: %v", err)
	}
	if ns.Status != StatusGameOver {
		t.Fatalf("want gameOver, got %v", ns.Status)
	}
	if !ContainsEvent(events, EvtGameCompleted) {
		t.Fatal("expected EvtGameCompleted")
	}
}

// djIdx stays in range across a long sequence of rounds.
func TestDJIdxInvariant(t *testing.T) {
	s := playingSession(3)
	for round := 0; round < 9; round++ {
		avail := Available(s)
		if len(avail) == 0 {
			t.Fatalf("round %d: no playlists available", round)
		}
		s = roundInProgress(t, s, avail[0].ID)
		_, ns, err := Apply(s, Command{Type: CmdSkipRound})
		if err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
		s = ns
		if s.DJIdx < 0 || s.DJIdx >= len(s.Players) {
			t.Fatalf("round %d: djIdx %d out of range", round, s.DJIdx)
		}
	}
}

func TestCountdownAndPlaybackTransitions(t *testing.T) {
	s := roundInProgress(t, playingSession(2), "pl1")

	for _, n := range []int{3, 2, 1} {
		var err error
		_, s, err = Apply(s, Command{Type: CmdCountdownTick, Countdown: n})
		if err != nil {
			t.Fatalf("tick %d: %v", n, err)
		}
		if s.Countdown == nil || *s.Countdown != n || s.Playback.IsPlaying {
			t.Fatalf("tick %d: unexpected state countdown=%v playing=%v", n, s.Countdown, s.Playback.IsPlaying)
		}
	}

	_, s, err := Apply(s, Command{Type: CmdBeginPlayback, Now: 99000})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if s.Countdown != nil || !s.Playback.IsPlaying || s.Playback.StartedAt != 99000 {
		t.Fatalf("unexpected state after begin: %+v", s.Playback)
	}

	events, s, err := Apply(s, Command{Type: CmdStopPlayback})
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if s.Playback.IsPlaying {
		t.Fatal("want playback stopped")
	}
	if !ContainsEvent(events, EvtPlaybackStopped) {
		t.Fatal("expected EvtPlaybackStopped")
	}

	// A second stop is a stale fire: no events, no error, no change.
	events, _, err = Apply(s, Command{Type: CmdStopPlayback})
	if err != nil || len(events) != 0 {
		t.Fatalf("stale stop must no-op, got events=%v err=%v", events, err)
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	s := roundInProgress(t, playingSession(3), "pl1")
	before := s.clone()

	_, _, err := Apply(s, Command{Type: CmdBuzz, PlayerIdx: 1})
	if err != nil {
		t.Fatalf("buzz: %v", err)
	}
	if s.Buzzed != nil || s.Playback.IsPlaying != before.Playback.IsPlaying {
		t.Fatal("input session was mutated")
	}
	s.GuessesUsed["p1"] = 9
	if before.GuessesUsed["p1"] == 9 {
		t.Fatal("clone shares guess map")
	}
}
