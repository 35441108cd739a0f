package types

import (
	"fmt"

	"github.com/wheelhouse-game/backend/internal/engine"
)

type ClientMessage struct {
	Type       string           `json:"type"`
	PlayerID   string           `json:"playerId,omitempty"`
	Name       string           `json:"name,omitempty"`
	Playlist   *engine.Playlist `json:"playlist,omitempty"`
	PlaylistID string           `json:"playlistId,omitempty"`
	PlayerIdx  int              `json:"playerIdx,omitempty"`
	Mode       string           `json:"mode,omitempty"`
	Correct    bool             `json:"correct,omitempty"`
}

type ServerMessage struct {
	Type    string          `json:"type"` // "StateSnapshot" | "Error"
	Version int             `json:"version,omitempty"`
	State   *engine.Session `json:"state,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ToCommand maps a wire message onto an engine command. Unknown types are an
// error so clients learn about typos instead of being silently ignored.
func (m ClientMessage) ToCommand() (engine.Command, error) {
	cmd := engine.Command{
		PlayerID:   m.PlayerID,
		Name:       m.Name,
		PlaylistID: m.PlaylistID,
		PlayerIdx:  m.PlayerIdx,
		Mode:       engine.Mode(m.Mode),
		Correct:    m.Correct,
	}
	if m.Playlist != nil {
		cmd.Playlist = *m.Playlist
	}

	switch m.Type {
	case "join":
		cmd.Type = engine.CmdAddPlayer
	case "startGame":
		cmd.Type = engine.CmdStartGame
	case "selectPlaylist":
		cmd.Type = engine.CmdSelectPlaylist
	case "buzz":
		cmd.Type = engine.CmdBuzz
	case "setMode":
		cmd.Type = engine.CmdSetMode
	case "judge":
		cmd.Type = engine.CmdJudge
	case "skipRound":
		cmd.Type = engine.CmdSkipRound
	default:
		return engine.Command{}, fmt.Errorf("unknown message type %q", m.Type)
	}
	return cmd, nil
}
