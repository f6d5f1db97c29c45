package world

import (
	"sync"
	"sync/atomic"
)

// CellKey identifies one AOI grid cell.
type CellKey struct {
	CX, CZ int32
}

// cell holds the entities currently located in one grid cell and the
// players whose subscription window includes it. Both sets are
// sync.Map because reads (snapshot, subscriber fanout) vastly
// outnumber writes (entity moves, subscription changes), and the two
// sets are mutated independently.
type cell struct {
	entities    sync.Map // map[entityID string]struct{}
	subscribers sync.Map // map[playerID string]socketID string

	version       atomic.Uint64
	snapshotDirty atomic.Bool
	snapshotCache atomic.Value // []string, immutable after rebuild
}

func newCell() *cell {
	c := &cell{}
	c.snapshotDirty.Store(true)
	return c
}

func (c *cell) addEntity(id string) {
	c.entities.Store(id, struct{}{})
	c.version.Add(1)
	c.snapshotDirty.Store(true)
}

func (c *cell) removeEntity(id string) {
	c.entities.Delete(id)
	c.version.Add(1)
	c.snapshotDirty.Store(true)
}

// entitiesSnapshot returns a cached, immutable snapshot of the entity
// ids in this cell, rebuilding lazily when the set has changed since
// the last read.
func (c *cell) entitiesSnapshot() []string {
	if !c.snapshotDirty.Load() {
		if v := c.snapshotCache.Load(); v != nil {
			return v.([]string)
		}
	}
	return c.rebuildSnapshot()
}

func (c *cell) rebuildSnapshot() []string {
	ids := make([]string, 0, 16)
	c.entities.Range(func(key, _ any) bool {
		ids = append(ids, key.(string))
		return true
	})
	c.snapshotCache.Store(ids)
	c.snapshotDirty.Store(false)
	return ids
}

func (c *cell) addSubscriber(playerID, socketID string) {
	c.subscribers.Store(playerID, socketID)
}

func (c *cell) removeSubscriber(playerID string) {
	c.subscribers.Delete(playerID)
}

func (c *cell) forEachSubscriber(fn func(playerID, socketID string)) {
	c.subscribers.Range(func(key, value any) bool {
		fn(key.(string), value.(string))
		return true
	})
}

func (c *cell) isEmpty() bool {
	empty := true
	c.entities.Range(func(_, _ any) bool { empty = false; return false })
	if !empty {
		return false
	}
	c.subscribers.Range(func(_, _ any) bool { empty = false; return false })
	return empty
}
