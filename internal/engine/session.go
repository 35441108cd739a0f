package engine

import "strconv"

// Session is the whole shared game record for one room. It is only ever
// replaced wholesale: Apply deep-copies before mutating, so callers can hold
// a snapshot without it changing underneath them.
type Session struct {
	RoomCode string `json:"roomCode"`
	HostID   string `json:"hostId"`
	Status   Status `json:"status"`

	Players []Player `json:"players"`
	// Playlists is the host-fetched browse list, shared through the session
	// so joining players never need provider credentials.
	Playlists []Playlist `json:"playlists"`

	DJIdx            int       `json:"djIdx"`
	Song             *Track    `json:"song"`
	SelectedPlaylist *Playlist `json:"selectedPlaylist,omitempty"`
	Playback         *Playback `json:"playback"`
	History          []string  `json:"history"`

	// GuessesUsed is keyed "p<playerIdx>" and resets every round.
	GuessesUsed            map[string]int `json:"guessesUsed"`
	SolvedParts            SolvedParts    `json:"solvedParts"`
	Buzzed                 *int           `json:"buzzed"`
	Mode                   Mode           `json:"mode,omitempty"`
	Countdown              *int           `json:"countdown"`
	DJPickedOwn            bool           `json:"djPickedOwn"`
	AnyoneGuessedCorrectly bool           `json:"anyoneGuessedCorrectly"`
}

type Status string

const (
	StatusLobby    Status = "lobby"
	StatusPlaying  Status = "playing"
	StatusGameOver Status = "gameOver"
)

// Mode is the guess category a buzzed player commits to.
type Mode string

const (
	ModeTitle  Mode = "title"
	ModeArtist Mode = "artist"
	ModeBoth   Mode = "both"
)

type Player struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Playlist Playlist `json:"playlist"`
	Score    int      `json:"score"`
}

type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	TrackCount  int    `json:"trackCount,omitempty"`
}

type Track struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	AlbumArt   string `json:"albumArt,omitempty"`
	PreviewURL string `json:"previewUrl,omitempty"`
	URI        string `json:"uri"`
}

// Playback describes the current clip window. StartedAt is unix milliseconds
// so elapsed-time math matches what clients compute from Date.now().
type Playback struct {
	TrackURI   string `json:"trackUri"`
	PreviewURL string `json:"previewUrl,omitempty"`
	StartedAt  int64  `json:"startedAt"`
	IsPlaying  bool   `json:"isPlaying"`
	Duration   int64  `json:"duration"`
}

type SolvedParts struct {
	Song   bool `json:"song"`
	Artist bool `json:"artist"`
}

// NewSession returns the lobby-state record created when a host opens a room.
func NewSession(roomCode, hostID string) Session {
	return Session{
		RoomCode:    roomCode,
		HostID:      hostID,
		Status:      StatusLobby,
		Players:     []Player{},
		Playlists:   []Playlist{},
		History:     []string{},
		GuessesUsed: map[string]int{},
	}
}

// clone returns a deep copy; Apply mutates only the copy.
func (s Session) clone() Session {
	c := s
	c.Players = append([]Player(nil), s.Players...)
	c.Playlists = append([]Playlist(nil), s.Playlists...)
	c.History = append([]string(nil), s.History...)
	c.GuessesUsed = make(map[string]int, len(s.GuessesUsed))
	for k, v := range s.GuessesUsed {
		c.GuessesUsed[k] = v
	}
	if s.Song != nil {
		song := *s.Song
		c.Song = &song
	}
	if s.SelectedPlaylist != nil {
		pl := *s.SelectedPlaylist
		c.SelectedPlaylist = &pl
	}
	if s.Playback != nil {
		pb := *s.Playback
		c.Playback = &pb
	}
	if s.Buzzed != nil {
		idx := *s.Buzzed
		c.Buzzed = &idx
	}
	if s.Countdown != nil {
		n := *s.Countdown
		c.Countdown = &n
	}
	return c
}

// guessKey matches the stored record's "p<idx>" key scheme.
func guessKey(idx int) string {
	return "p" + strconv.Itoa(idx)
}
