// Package catalog is the boundary to the streaming provider's library:
// playlists to browse and tracks to play. The engine never calls it; the
// room actor and the HTTP proxy routes do.
package catalog

import (
	"context"

	"github.com/wheelhouse-game/backend/internal/engine"
)

// Provider serves catalog lookups on behalf of a bearer credential.
// Implementations own pagination and playability filtering; callers may
// assume every returned track is playable.
type Provider interface {
	Playlists(ctx context.Context, token string) ([]engine.Playlist, error)
	PlaylistTracks(ctx context.Context, token, playlistID string) ([]engine.Track, error)
	Track(ctx context.Context, token, trackID string) (engine.Track, error)
}
