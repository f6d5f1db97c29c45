// Package world implements the Area-of-Interest spatial index: a
// uniform grid mapping world cells to the entities located in them and
// to the players subscribed to them.
package world

import (
	"sync"

	"github.com/hyperscape/coreserver/internal/model"
)

// AOIManager answers "who should see entity E" and "what should
// player P see" in O(k^2) per subscription change, k being the view
// distance in cells, instead of an O(N*P) linear scan.
//
// Cell key for negative coordinates uses floor semantics so a world
// position maps to exactly one cell regardless of sign. Entities with
// no known position are untracked and have an empty subscriber set.
type AOIManager struct {
	cellSize     float64
	viewDistance int

	mu         sync.RWMutex
	cells      map[CellKey]*cell
	entityCell map[string]CellKey
	playerCell map[string]CellKey
	playerWin  map[string]map[CellKey]struct{}
}

// NewAOIManager creates an AOIManager with the given cell size and
// view distance (k, producing a (2k+1)x(2k+1) subscription window).
func NewAOIManager(cellSize float64, viewDistance int) *AOIManager {
	return &AOIManager{
		cellSize:     cellSize,
		viewDistance: viewDistance,
		cells:        make(map[CellKey]*cell),
		entityCell:   make(map[string]CellKey),
		playerCell:   make(map[string]CellKey),
		playerWin:    make(map[string]map[CellKey]struct{}),
	}
}

func (m *AOIManager) keyOf(x, z float64) CellKey {
	cx, cz := model.CellKey(x, z, m.cellSize)
	return CellKey{CX: cx, CZ: cz}
}

// getOrCreateCell returns the cell for key, creating it if absent.
func (m *AOIManager) getOrCreateCell(key CellKey) *cell {
	m.mu.RLock()
	c, ok := m.cells[key]
	m.mu.RUnlock()
	if ok {
		return c
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.cells[key]; ok {
		return c
	}
	c = newCell()
	m.cells[key] = c
	return c
}

func (m *AOIManager) getCell(key CellKey) (*cell, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cells[key]
	return c, ok
}

// UpdateEntityPosition inserts or moves the entity to the cell
// containing (x, z). Returns true iff the entity's cell changed
// (including first insertion).
func (m *AOIManager) UpdateEntityPosition(id string, x, z float64) bool {
	newKey := m.keyOf(x, z)

	m.mu.Lock()
	oldKey, had := m.entityCell[id]
	if had && oldKey == newKey {
		m.mu.Unlock()
		return false
	}
	m.entityCell[id] = newKey
	m.mu.Unlock()

	if had {
		if old, ok := m.getCell(oldKey); ok {
			old.removeEntity(id)
		}
	}
	m.getOrCreateCell(newKey).addEntity(id)
	return true
}

// windowCells returns every cell key in the (2k+1)x(2k+1) square
// centered on center.
func windowCells(center CellKey, k int) map[CellKey]struct{} {
	win := make(map[CellKey]struct{}, (2*k+1)*(2*k+1))
	for dx := -k; dx <= k; dx++ {
		for dz := -k; dz <= k; dz++ {
			win[CellKey{CX: center.CX + int32(dx), CZ: center.CZ + int32(dz)}] = struct{}{}
		}
	}
	return win
}

// UpdatePlayerSubscriptions recomputes the subscription window around
// the player's new cell and returns the symmetric difference against
// its previous window. The window is recomputed only when the
// player's own cell changes; intra-cell movement is free (both
// returned slices are nil).
func (m *AOIManager) UpdatePlayerSubscriptions(playerID string, x, z float64, socketID string) (entered, exited []CellKey) {
	newCenter := m.keyOf(x, z)

	m.mu.Lock()
	oldCenter, had := m.playerCell[playerID]
	if had && oldCenter == newCenter {
		m.mu.Unlock()
		return nil, nil
	}
	oldWindow := m.playerWin[playerID]
	newWindow := windowCells(newCenter, m.viewDistance)
	m.playerCell[playerID] = newCenter
	m.playerWin[playerID] = newWindow
	m.mu.Unlock()

	for key := range newWindow {
		if _, stillIn := oldWindow[key]; !stillIn {
			entered = append(entered, key)
		}
	}
	for key := range oldWindow {
		if _, stillIn := newWindow[key]; !stillIn {
			exited = append(exited, key)
		}
	}

	for _, key := range entered {
		m.getOrCreateCell(key).addSubscriber(playerID, socketID)
	}
	for _, key := range exited {
		if c, ok := m.getCell(key); ok {
			c.removeSubscriber(playerID)
		}
	}
	return entered, exited
}

// GetSubscribersForEntity returns the socket ids of every player
// subscribed to the cell the entity currently occupies.
func (m *AOIManager) GetSubscribersForEntity(id string) map[string]string {
	m.mu.RLock()
	key, ok := m.entityCell[id]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	c, ok := m.getCell(key)
	if !ok {
		return nil
	}
	subs := make(map[string]string)
	c.forEachSubscriber(func(playerID, socketID string) {
		subs[playerID] = socketID
	})
	return subs
}

// GetVisibleEntities returns the union of entity ids across every
// cell in the player's subscription window.
func (m *AOIManager) GetVisibleEntities(playerID string) []string {
	m.mu.RLock()
	window := m.playerWin[playerID]
	m.mu.RUnlock()
	if len(window) == 0 {
		return nil
	}

	var out []string
	for key := range window {
		if c, ok := m.getCell(key); ok {
			out = append(out, c.entitiesSnapshot()...)
		}
	}
	return out
}

// RemovePlayer drops a player's subscriptions from every cell in its
// window and forgets its tracked state.
func (m *AOIManager) RemovePlayer(id string) {
	m.mu.Lock()
	window := m.playerWin[id]
	delete(m.playerCell, id)
	delete(m.playerWin, id)
	m.mu.Unlock()

	for key := range window {
		if c, ok := m.getCell(key); ok {
			c.removeSubscriber(id)
		}
	}
}

// RemoveEntity removes an entity from its current cell and forgets its
// tracked position.
func (m *AOIManager) RemoveEntity(id string) {
	m.mu.Lock()
	key, ok := m.entityCell[id]
	delete(m.entityCell, id)
	m.mu.Unlock()

	if ok {
		if c, ok := m.getCell(key); ok {
			c.removeEntity(id)
		}
	}
}

// HasEntity reports whether id is currently tracked in the grid.
func (m *AOIManager) HasEntity(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entityCell[id]
	return ok
}

// Clear resets the manager to its initial empty state.
func (m *AOIManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cells = make(map[CellKey]*cell)
	m.entityCell = make(map[string]CellKey)
	m.playerCell = make(map[string]CellKey)
	m.playerWin = make(map[string]map[CellKey]struct{})
}

// CellCount reports how many cells are currently tracked, including
// cells left empty: empty cells are never pruned eagerly since the map
// is typically small relative to the world. Exposed for tests and
// metrics.
func (m *AOIManager) CellCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.cells)
}
