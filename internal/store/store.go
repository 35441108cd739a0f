// Package store persists one Session blob per room code. Implementations
// only need atomic single-key replace; the engine's read-fresh-before-write
// discipline lives above this layer.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wheelhouse-game/backend/internal/engine"
)

type Store interface {
	// Get returns the stored session and whether the room exists.
	Get(ctx context.Context, code string) (engine.Session, bool, error)
	Set(ctx context.Context, code string, s engine.Session) error
	Delete(ctx context.Context, code string) error
}

func encode(s engine.Session) ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session %s: %w", s.RoomCode, err)
	}
	return raw, nil
}

func decode(raw []byte) (engine.Session, error) {
	var s engine.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return engine.Session{}, fmt.Errorf("decode session: %w", err)
	}
	return s, nil
}
