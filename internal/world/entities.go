package world

import (
	"sync"

	"github.com/hyperscape/coreserver/internal/model"
)

// EntityRegistry is the authoritative table of non-player world
// entities (mobs, items, npcs, resources), keyed by id. Player state
// lives in players.Manager instead, since a Player carries fields
// (socket id, skills, movement state) an Entity does not; this
// registry exists so enterWorld's "every other existing entity" fanout
// can report a real kind and position instead of a placeholder.
type EntityRegistry struct {
	mu       sync.RWMutex
	entities map[string]*model.Entity
}

// NewEntityRegistry creates an empty registry.
func NewEntityRegistry() *EntityRegistry {
	return &EntityRegistry{entities: make(map[string]*model.Entity)}
}

// Add registers or replaces an entity.
func (r *EntityRegistry) Add(e *model.Entity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities[e.ID()] = e
}

// Get returns the entity with the given id, if registered.
func (r *EntityRegistry) Get(id string) (*model.Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[id]
	return e, ok
}

// Remove forgets an entity.
func (r *EntityRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entities, id)
}
