package store

import (
	"context"
	"sync"

	"github.com/wheelhouse-game/backend/internal/engine"
)

// Memory is an in-process store for single-server deployments and tests.
// Blobs are kept JSON-encoded so Get always hands back an independent copy.
type Memory struct {
	mu    sync.RWMutex
	rooms map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{rooms: make(map[string][]byte)}
}

func (m *Memory) Get(ctx context.Context, code string) (engine.Session, bool, error) {
	m.mu.RLock()
	raw, ok := m.rooms[code]
	m.mu.RUnlock()
	if !ok {
		return engine.Session{}, false, nil
	}
	s, err := decode(raw)
	if err != nil {
		return engine.Session{}, false, err
	}
	return s, true, nil
}

func (m *Memory) Set(ctx context.Context, code string, s engine.Session) error {
	raw, err := encode(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.rooms[code] = raw
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(ctx context.Context, code string) error {
	m.mu.Lock()
	delete(m.rooms, code)
	m.mu.Unlock()
	return nil
}

// Len reports how many rooms are held.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}
