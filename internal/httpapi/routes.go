package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wheelhouse-game/backend/internal/ws"
)

func SetupRoutes(a *API, originPatterns []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Post("/auth/session", a.CreateSession)
	r.Get("/ws", ws.Handler(a.liveRoom, a.Log, originPatterns))

	// Identity-protected routes
	r.Group(func(r chi.Router) {
		r.Use(a.Issuer.Middleware)
		r.Post("/rooms", a.CreateRoom)
		r.Get("/rooms/{code}", a.GetRoom)
		r.Post("/rooms/{code}/actions", a.PostAction)
		r.Get("/playlists", a.ListPlaylists)
		r.Get("/playlists/{id}/tracks", a.ListPlaylistTracks)
		r.Get("/tracks/{id}", a.GetTrack)
	})
	return r
}
