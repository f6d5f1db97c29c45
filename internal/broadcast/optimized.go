package broadcast

import (
	"sync"

	"github.com/hyperscape/coreserver/internal/batch"
	"github.com/hyperscape/coreserver/internal/model"
	"github.com/hyperscape/coreserver/internal/throttle"
	"github.com/hyperscape/coreserver/internal/world"
)

// EntityUpdate is one differential update queued for an entity. Only
// non-nil fields are applied; Priority and Force control admission
// through the throttler.
type EntityUpdate struct {
	Position *model.Vector3
	Rotation *model.Quaternion
	Velocity *model.Vector3
	Health   *model.Health
	State    *uint8
	Priority throttle.Priority
	Force    bool
}

// OptimizedBroadcaster queues per-entity updates against every
// subscriber's batch and flushes one framed packet per subscriber per
// tick. Broadcast-to-subscribers bypasses batching entirely for
// one-off events (chat, spawn, removal).
type OptimizedBroadcaster struct {
	aoi       *world.AOIManager
	throttler *throttle.Throttler
	sender    Sender

	mu        sync.RWMutex
	positions map[string]model.Vector3
	batchers  map[string]*batch.Updater // keyed by socket id
}

// NewOptimizedBroadcaster wires an AOIManager, a Throttler, and the
// transport-level Sender together.
func NewOptimizedBroadcaster(aoi *world.AOIManager, th *throttle.Throttler, sender Sender) *OptimizedBroadcaster {
	return &OptimizedBroadcaster{
		aoi:       aoi,
		throttler: th,
		sender:    sender,
		positions: make(map[string]model.Vector3),
		batchers:  make(map[string]*batch.Updater),
	}
}

// UpdateEntityPosition records an entity's latest known position, used
// for both AOI cell placement and subscriber distance checks.
func (b *OptimizedBroadcaster) UpdateEntityPosition(entityID string, pos model.Vector3) {
	b.mu.Lock()
	b.positions[entityID] = pos
	b.mu.Unlock()
	b.aoi.UpdateEntityPosition(entityID, pos.X, pos.Z)
}

// UpdatePlayerSubscriptions recomputes playerID's AOI window around
// pos and records its position for distance checks. Returns the
// entered/exited cell diff from the AOI manager.
func (b *OptimizedBroadcaster) UpdatePlayerSubscriptions(playerID, socketID string, pos model.Vector3) (entered, exited []world.CellKey) {
	b.mu.Lock()
	b.positions[playerID] = pos
	b.mu.Unlock()
	return b.aoi.UpdatePlayerSubscriptions(playerID, pos.X, pos.Z, socketID)
}

// Position returns entityID's last known position and whether one has
// ever been recorded, the same cache QueueEntityUpdate uses for
// distance checks. Used by the tick scheduler as the single source of
// truth for "where is this entity right now" across movement,
// face-direction, and anti-cheat.
func (b *OptimizedBroadcaster) Position(entityID string) (model.Vector3, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.positions[entityID]
	return p, ok
}

// MovePlayer updates a player entity's own position (so other
// subscribers see it move) and recomputes that player's subscription
// window around its new cell in one call, since a player is both a
// subscriber and a subscribable entity.
func (b *OptimizedBroadcaster) MovePlayer(playerID, socketID string, pos model.Vector3) (entered, exited []world.CellKey) {
	b.UpdateEntityPosition(playerID, pos)
	return b.UpdatePlayerSubscriptions(playerID, socketID, pos)
}

func (b *OptimizedBroadcaster) batcherFor(socketID string) *batch.Updater {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.batchers[socketID]
	if !ok {
		u = batch.NewUpdater()
		b.batchers[socketID] = u
	}
	return u
}

// QueueEntityUpdate looks up entityID's AOI subscribers, admits the
// update per subscriber through the throttler (skipped when Force or
// CRITICAL), and appends admitted updates to each subscriber's batch.
func (b *OptimizedBroadcaster) QueueEntityUpdate(entityID string, upd EntityUpdate) {
	subs := b.aoi.GetSubscribersForEntity(entityID)
	if len(subs) == 0 {
		return
	}

	b.mu.RLock()
	entityPos, entityKnown := b.positions[entityID]
	b.mu.RUnlock()

	for playerID, socketID := range subs {
		admit := upd.Force || upd.Priority == throttle.PriorityCritical
		if !admit {
			var distSq float64
			if entityKnown {
				b.mu.RLock()
				playerPos, playerKnown := b.positions[playerID]
				b.mu.RUnlock()
				if playerKnown {
					distSq = entityPos.DistanceSquared(playerPos)
				}
			}
			admit = b.throttler.ShouldUpdate(playerID, entityID, distSq, upd.Priority)
		}
		if !admit {
			continue
		}

		bu := b.batcherFor(socketID)
		if upd.Position != nil {
			bu.QueuePositionUpdate(entityID, *upd.Position)
		}
		if upd.Rotation != nil {
			bu.QueueRotationUpdate(entityID, *upd.Rotation)
		}
		if upd.Velocity != nil {
			bu.QueueVelocityUpdate(entityID, *upd.Velocity)
		}
		if upd.Health != nil {
			bu.QueueHealthUpdate(entityID, uint16(upd.Health.Current), uint16(upd.Health.Max))
		}
		if upd.State != nil {
			bu.QueueStateUpdate(entityID, *upd.State)
		}
	}
}

// Flush advances the throttler's tick and emits one batched frame to
// every subscriber whose batch is non-empty.
func (b *OptimizedBroadcaster) Flush(tick uint64) {
	b.throttler.SetTick(tick)

	b.mu.RLock()
	sockets := make([]string, 0, len(b.batchers))
	for s := range b.batchers {
		sockets = append(sockets, s)
	}
	b.mu.RUnlock()

	for _, socketID := range sockets {
		bu := b.batcherFor(socketID)
		frame := bu.Flush()
		if frame == nil {
			continue
		}
		_ = b.sender.SendBinary(socketID, frame)
	}
}

// BroadcastToEntitySubscribers sends v as a one-off JSON packet to
// every socket currently subscribed to entityID's cell, bypassing
// batching.
func (b *OptimizedBroadcaster) BroadcastToEntitySubscribers(entityID string, v any) {
	for _, socketID := range b.aoi.GetSubscribersForEntity(entityID) {
		_ = b.sender.SendJSON(socketID, v)
	}
}

// RemovePlayer forgets a player's AOI window, throttle state, and
// batch queue.
func (b *OptimizedBroadcaster) RemovePlayer(playerID, socketID string) {
	b.aoi.RemovePlayer(playerID)
	b.throttler.RemovePlayer(playerID)
	b.mu.Lock()
	delete(b.positions, playerID)
	delete(b.batchers, socketID)
	b.mu.Unlock()
}

// RemoveEntity forgets an entity's AOI placement and cached position.
func (b *OptimizedBroadcaster) RemoveEntity(entityID string) {
	b.aoi.RemoveEntity(entityID)
	b.mu.Lock()
	delete(b.positions, entityID)
	b.mu.Unlock()
}
