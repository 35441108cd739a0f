package engine

// GuessOptions is what a player can still commit to guessing.
type GuessOptions struct {
	Title     bool `json:"title"`
	Artist    bool `json:"artist"`
	Both      bool `json:"both"`
	Remaining int  `json:"remaining"`
}

// Options reports the guess categories open to playerIdx: a part already
// solved this round is off the table, and everything is off the table once
// the budget is spent.
func Options(s Session, playerIdx int) GuessOptions {
	remaining := GuessBudget - s.GuessesUsed[guessKey(playerIdx)]
	if remaining < 0 {
		remaining = 0
	}
	return GuessOptions{
		Title:     !s.SolvedParts.Song && remaining > 0,
		Artist:    !s.SolvedParts.Artist && remaining > 0,
		Both:      !s.SolvedParts.Song && !s.SolvedParts.Artist && remaining > 0,
		Remaining: remaining,
	}
}

// Available lists the playlists the DJ may pick this round. A playlist is
// blocked while it sits in the last max(1, floor(N/2)) history entries, so
// repeats space out as the table grows.
func Available(s Session) []Playlist {
	window := len(s.Players) / 2
	if window < 1 {
		window = 1
	}
	recent := s.History
	if len(recent) > window {
		recent = recent[len(recent)-window:]
	}
	blocked := make(map[string]bool, len(recent))
	for _, id := range recent {
		blocked[id] = true
	}

	var avail []Playlist
	for _, p := range s.Players {
		if !blocked[p.Playlist.ID] {
			avail = append(avail, p.Playlist)
		}
	}
	return avail
}
