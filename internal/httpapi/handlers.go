package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wheelhouse-game/backend/internal/catalog"
	"github.com/wheelhouse-game/backend/internal/engine"
	"github.com/wheelhouse-game/backend/internal/hub"
	"github.com/wheelhouse-game/backend/internal/identity"
	"github.com/wheelhouse-game/backend/internal/room"
	"github.com/wheelhouse-game/backend/internal/store"
	"github.com/wheelhouse-game/backend/internal/types"
)

type API struct {
	Hub     *hub.Hub
	Store   store.Store
	Issuer  *identity.Issuer
	Catalog catalog.Provider
	Log     *zap.Logger
}

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

// CreateSession exchanges a display name and provider credential for a signed
// identity token. No account exists behind it; the token is the account.
func (a *API) CreateSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name          string `json:"name"`
		ProviderToken string `json:"providerToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	userID := uuid.NewString()
	token, err := a.Issuer.Issue(userID, body.Name, body.ProviderToken)
	if err != nil {
		a.Log.Error("token issue failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"userId": userID,
		"token":  token,
	})
}

func (a *API) CreateRoom(w http.ResponseWriter, r *http.Request) {
	claims, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	code, err := a.allocateCode(r.Context())
	if err != nil {
		a.Log.Error("code allocation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to generate code")
		return
	}

	sess := engine.NewSession(code, claims.UserID)
	if claims.ProviderToken != "" {
		// Share the host's browse list through the session so other players
		// can pick a playlist without provider credentials of their own.
		playlists, err := a.Catalog.Playlists(r.Context(), claims.ProviderToken)
		if err != nil {
			a.Log.Warn("host playlist fetch failed", zap.Error(err))
		} else {
			sess.Playlists = playlists
		}
	}
	if err := a.Store.Set(r.Context(), code, sess); err != nil {
		a.Log.Error("room persist failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	reply := make(chan *room.Room, 1)
	a.Hub.Inbox() <- hub.CreateRoom{
		Code:      code,
		Initial:   sess,
		HostToken: claims.ProviderToken,
		Reply:     reply,
	}
	if <-reply == nil {
		writeError(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"code": code})
}

// GetRoom returns the current state for polling clients. A room with no live
// actor but a stored session is revived so its timers and fanout work again.
func (a *API) GetRoom(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	rm := a.liveRoom(r, code)
	if rm == nil {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}

	reply := make(chan room.View, 1)
	rm.Inbox() <- room.GetState{Reply: reply}
	select {
	case v := <-reply:
		writeJSON(w, http.StatusOK, types.ServerMessage{
			Type:    "StateSnapshot",
			Version: v.Version,
			State:   &v.State,
		})
	case <-time.After(5 * time.Second):
		writeError(w, http.StatusGatewayTimeout, "room did not respond")
	}
}

// PostAction is the HTTP alternative to the websocket: one command per
// request, the resulting state in the response.
func (a *API) PostAction(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	rm := a.liveRoom(r, code)
	if rm == nil {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}

	var cm types.ClientMessage
	if err := json.NewDecoder(r.Body).Decode(&cm); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	cmd, err := cm.ToCommand()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if claims, ok := identity.FromContext(r.Context()); ok && cmd.PlayerID == "" {
		cmd.PlayerID = claims.UserID
		if cmd.Name == "" {
			cmd.Name = claims.DisplayName
		}
	}

	reply := make(chan error, 1)
	rm.Inbox() <- room.FromClient{Cmd: cmd, Reply: reply}
	select {
	case err := <-reply:
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
	case <-time.After(5 * time.Second):
		writeError(w, http.StatusGatewayTimeout, "room did not respond")
		return
	}

	view := make(chan room.View, 1)
	rm.Inbox() <- room.GetState{Reply: view}
	v := <-view
	writeJSON(w, http.StatusOK, types.ServerMessage{
		Type:    "StateSnapshot",
		Version: v.Version,
		State:   &v.State,
	})
}

func (a *API) ListPlaylists(w http.ResponseWriter, r *http.Request) {
	claims, ok := identity.FromContext(r.Context())
	if !ok || claims.ProviderToken == "" {
		writeError(w, http.StatusUnauthorized, "missing provider credential")
		return
	}
	playlists, err := a.Catalog.Playlists(r.Context(), claims.ProviderToken)
	if err != nil {
		writeError(w, statusFor(err), "playlist lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, playlists)
}

func (a *API) ListPlaylistTracks(w http.ResponseWriter, r *http.Request) {
	claims, ok := identity.FromContext(r.Context())
	if !ok || claims.ProviderToken == "" {
		writeError(w, http.StatusUnauthorized, "missing provider credential")
		return
	}
	tracks, err := a.Catalog.PlaylistTracks(r.Context(), claims.ProviderToken, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), "track lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}

func (a *API) GetTrack(w http.ResponseWriter, r *http.Request) {
	claims, ok := identity.FromContext(r.Context())
	if !ok || claims.ProviderToken == "" {
		writeError(w, http.StatusUnauthorized, "missing provider credential")
		return
	}
	track, err := a.Catalog.Track(r.Context(), claims.ProviderToken, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), "track lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, track)
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// generateCode picks the random code; tests stub it to force collisions.
var generateCode = GenerateCode

// allocateCode draws codes until one is free in both the hub and the store.
// Uniqueness is a store property: another process sharing a Redis/Postgres
// store may hold a room this process has no actor for.
func (a *API) allocateCode(ctx context.Context) (string, error) {
	for {
		c, err := generateCode()
		if err != nil {
			return "", err
		}
		reply := make(chan *room.Room, 1)
		a.Hub.Inbox() <- hub.GetRoom{Code: c, Reply: reply}
		if <-reply != nil {
			a.Log.Info("room code collision, regenerating", zap.String("code", c))
			continue
		}
		if _, ok, err := a.Store.Get(ctx, c); err != nil {
			return "", err
		} else if ok {
			a.Log.Info("room code collision, regenerating", zap.String("code", c))
			continue
		}
		return c, nil
	}
}

// liveRoom finds the actor for a code, reviving it from the store if the
// session survived a restart.
func (a *API) liveRoom(r *http.Request, code string) *room.Room {
	reply := make(chan *room.Room, 1)
	a.Hub.Inbox() <- hub.GetRoom{Code: code, Reply: reply}
	if rm := <-reply; rm != nil {
		return rm
	}

	sess, ok, err := a.Store.Get(r.Context(), code)
	if err != nil {
		a.Log.Error("store read failed", zap.String("code", code), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}

	hostToken := ""
	if claims, idOK := identity.FromContext(r.Context()); idOK && claims.UserID == sess.HostID {
		hostToken = claims.ProviderToken
	}
	a.Hub.Inbox() <- hub.EnsureRoom{Code: code, Initial: sess, HostToken: hostToken, Reply: reply}
	return <-reply
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrPlaylistTaken),
		errors.Is(err, engine.ErrInsufficientPlayers),
		errors.Is(err, engine.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, engine.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, engine.ErrUnsupportedCommand):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, map[string]string{"error": reason})
}
