package engine

import "errors"

var ErrPlaylistTaken = errors.New("playlist already taken")
var ErrInsufficientPlayers = errors.New("need at least 2 players")
var ErrInvalidTransition = errors.New("invalid transition")
var ErrRoomNotFound = errors.New("room not found")
var ErrUpstreamUnavailable = errors.New("upstream unavailable")
var ErrUnsupportedCommand = errors.New("unsupported command")
