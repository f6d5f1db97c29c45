// Package players holds the set of currently spawned players, shared
// by enterWorld, movement, face direction, anti-cheat, and trade so
// none of them need their own bookkeeping of live player state.
package players

import (
	"sync"

	"github.com/hyperscape/coreserver/internal/model"
)

// Manager is a concurrent registry of spawned players keyed by
// character id.
type Manager struct {
	mu      sync.RWMutex
	players map[string]*model.Player
}

// NewManager creates an empty player registry.
func NewManager() *Manager {
	return &Manager{players: make(map[string]*model.Player)}
}

// Add registers a newly spawned player.
func (m *Manager) Add(p *model.Player) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.players[p.CharacterID()] = p
}

// Get returns the player for characterID, if spawned.
func (m *Manager) Get(characterID string) (*model.Player, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[characterID]
	return p, ok
}

// Remove forgets a despawned player.
func (m *Manager) Remove(characterID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.players, characterID)
}

// All returns a snapshot of every currently spawned player id.
func (m *Manager) All() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.players))
	for id := range m.players {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of spawned players.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.players)
}
