package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/wheelhouse-game/backend/internal/engine"
)

const DefaultBaseURL = "https://api.spotify.com/v1"

// SpotifyClient talks to the Spotify Web API and reshapes responses into
// the engine's playlist/track records. Tracks without a URI or preview are
// treated as unplayable and dropped here, not downstream.
type SpotifyClient struct {
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

func NewSpotifyClient(baseURL string, log *zap.Logger) *SpotifyClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &SpotifyClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log,
	}
}

type playlistsResponse struct {
	Items []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Images      []struct {
			URL string `json:"url"`
		} `json:"images"`
		Tracks struct {
			Total int `json:"total"`
		} `json:"tracks"`
	} `json:"items"`
}

type trackPayload struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	URI     string `json:"uri"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name   string `json:"name"`
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	} `json:"album"`
	PreviewURL string `json:"preview_url"`
}

type playlistTracksResponse struct {
	Items []struct {
		Track *trackPayload `json:"track"`
	} `json:"items"`
}

func (c *SpotifyClient) Playlists(ctx context.Context, token string) ([]engine.Playlist, error) {
	var resp playlistsResponse
	if err := c.get(ctx, token, "/me/playlists?limit=50", &resp); err != nil {
		return nil, err
	}
	playlists := make([]engine.Playlist, 0, len(resp.Items))
	for _, pl := range resp.Items {
		p := engine.Playlist{
			ID:          pl.ID,
			Name:        pl.Name,
			Description: pl.Description,
			TrackCount:  pl.Tracks.Total,
		}
		if len(pl.Images) > 0 {
			p.Image = pl.Images[0].URL
		}
		playlists = append(playlists, p)
	}
	c.log.Debug("fetched playlists", zap.Int("count", len(playlists)))
	return playlists, nil
}

func (c *SpotifyClient) PlaylistTracks(ctx context.Context, token, playlistID string) ([]engine.Track, error) {
	var resp playlistTracksResponse
	path := fmt.Sprintf("/playlists/%s/tracks?limit=50", playlistID)
	if err := c.get(ctx, token, path, &resp); err != nil {
		return nil, err
	}
	tracks := make([]engine.Track, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Track == nil || item.Track.URI == "" {
			continue
		}
		tracks = append(tracks, mapTrack(*item.Track))
	}
	c.log.Debug("fetched playlist tracks",
		zap.String("playlist", playlistID),
		zap.Int("playable", len(tracks)),
		zap.Int("total", len(resp.Items)))
	return tracks, nil
}

func (c *SpotifyClient) Track(ctx context.Context, token, trackID string) (engine.Track, error) {
	var payload trackPayload
	if err := c.get(ctx, token, "/tracks/"+trackID, &payload); err != nil {
		return engine.Track{}, err
	}
	return mapTrack(payload), nil
}

func mapTrack(t trackPayload) engine.Track {
	track := engine.Track{
		ID:         t.ID,
		Name:       t.Name,
		Album:      t.Album.Name,
		PreviewURL: t.PreviewURL,
		URI:        t.URI,
	}
	if len(t.Artists) > 0 {
		track.Artist = t.Artists[0].Name
	}
	if len(t.Album.Images) > 0 {
		track.AlbumArt = t.Album.Images[0].URL
	}
	return track
}

func (c *SpotifyClient) get(ctx context.Context, token, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", engine.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: catalog returned %d: %s", engine.ErrUpstreamUnavailable, resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode catalog response: %v", engine.ErrUpstreamUnavailable, err)
	}
	return nil
}
