// Package movement implements server-authoritative click-to-move:
// linear interpolation toward a target, terrain grounding, and
// velocity/rotation broadcast at a capped rate.
package movement

import (
	"math"
	"sync"
	"time"

	"github.com/hyperscape/coreserver/internal/broadcast"
	"github.com/hyperscape/coreserver/internal/model"
	"github.com/hyperscape/coreserver/internal/players"
	"github.com/hyperscape/coreserver/internal/throttle"
)

// State encodes a moving entity's animation state on the wire.
type State uint8

const (
	StateIdle State = iota
	StateWalk
	StateRun
)

// snapDistanceSquared is the "close enough" radius (~0.3m) at which a
// moving player snaps to its target instead of stepping toward it.
const snapDistanceSquared = 0.09

// broadcastInterval caps per-player movement broadcasts to ~30Hz.
const broadcastInterval = 33 * time.Millisecond

// maxPooledTargets bounds the free list of recycled MovementTargets.
const maxPooledTargets = 50

// Manager runs moveRequest handling and the per-tick integration loop.
type Manager struct {
	players     *players.Manager
	terrain     model.TerrainProvider
	broadcaster *broadcast.OptimizedBroadcaster

	mu            sync.Mutex
	lastBroadcast map[string]time.Time
	pool          []*model.MovementTarget
}

// NewManager wires a Manager's dependencies.
func NewManager(pm *players.Manager, terrain model.TerrainProvider, broadcaster *broadcast.OptimizedBroadcaster) *Manager {
	return &Manager{
		players:       pm,
		terrain:       terrain,
		broadcaster:   broadcaster,
		lastBroadcast: make(map[string]time.Time),
	}
}

func (m *Manager) acquireTarget() *model.MovementTarget {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n := len(m.pool); n > 0 {
		t := m.pool[n-1]
		m.pool = m.pool[:n-1]
		return t
	}
	return &model.MovementTarget{}
}

func (m *Manager) releaseTarget(t *model.MovementTarget) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pool) < maxPooledTargets {
		m.pool = append(m.pool, t)
	}
}

// MoveRequest handles the client's moveRequest payload: a nil target
// or cancel=true clears the move and emits a terminal idle packet;
// otherwise it stores or reuses a MovementTarget, immediately faces
// the entity toward it, and broadcasts a transient start-moving
// packet.
func (m *Manager) MoveRequest(characterID string, target *model.Vector3, runMode, cancel bool) {
	p, ok := m.players.Get(characterID)
	if !ok {
		return
	}

	if target == nil || cancel {
		if existing := p.Movement(); existing != nil {
			p.SetMovement(nil)
			m.releaseTarget(existing)
		}
		m.emitTerminal(characterID, p)
		return
	}

	mt := p.Movement()
	if mt == nil {
		mt = m.acquireTarget()
	}
	mt.Reset(*target, runMode, time.Now().UnixMilli())
	p.SetMovement(mt)

	state := uint8(StateWalk)
	if runMode {
		state = uint8(StateRun)
	}
	zero := model.Vector3{}
	update := broadcast.EntityUpdate{
		Velocity: &zero,
		State:    &state,
		Priority: throttle.PriorityHigh,
		Force:    true,
	}
	if current, ok := m.broadcaster.Position(characterID); ok {
		dir := target.Sub(current)
		if dir.X != 0 || dir.Z != 0 {
			rotation := QuaternionFromYaw(dir.X, dir.Z)
			update.Rotation = &rotation
		}
	}
	m.broadcaster.QueueEntityUpdate(characterID, update)
}

func (m *Manager) emitTerminal(characterID string, p *model.Player) {
	idle := uint8(StateIdle)
	zero := model.Vector3{}
	m.broadcaster.QueueEntityUpdate(characterID, broadcast.EntityUpdate{
		Velocity: &zero,
		State:    &idle,
		Priority: throttle.PriorityHigh,
		Force:    true,
	})
}

// groundedY returns the terrain-grounded height at (x, z), falling
// back to fallback when terrain isn't ready there.
func (m *Manager) groundedY(x, z, fallback float64) float64 {
	if m.terrain == nil {
		return fallback
	}
	if h, ready := m.terrain.Height(x, z); ready {
		return h + 0.1
	}
	return fallback
}

// Update integrates every moving player's position by dt seconds,
// broadcasting at a rate-limited cadence. pos must return the
// player's current authoritative position; setPos installs the new
// one.
func (m *Manager) Update(dt float64, pos func(characterID string) model.Vector3, setPos func(characterID string, p model.Vector3)) {
	for _, characterID := range m.players.All() {
		p, ok := m.players.Get(characterID)
		if !ok {
			continue
		}
		target := p.Movement()
		if target == nil {
			continue
		}

		current := pos(characterID)
		dSq := current.DistanceSquared(target.Target)

		if dSq < snapDistanceSquared {
			grounded := target.Target
			grounded.Y = m.groundedY(grounded.X, grounded.Z, grounded.Y)
			setPos(characterID, grounded)
			p.SetMovement(nil)
			p.SetMovedThisTick(true)
			m.releaseTarget(target)
			m.emitTerminal(characterID, p)
			continue
		}

		speed := target.MaxSpeed
		step := math.Min(math.Sqrt(dSq), speed*dt)
		dir := target.Target.Sub(current).Normalized()
		next := current.Add(dir.Scale(step))
		next.Y = m.groundedY(next.X, next.Z, current.Y)
		setPos(characterID, next)
		p.SetMovedThisTick(true)

		velocity := model.Vector3{X: dir.X * speed, Z: dir.Z * speed}
		rotation := QuaternionFromYaw(velocity.X, velocity.Z)

		if m.shouldBroadcast(characterID) {
			state := uint8(StateWalk)
			if speed > model.WalkSpeed {
				state = uint8(StateRun)
			}
			m.broadcaster.QueueEntityUpdate(characterID, broadcast.EntityUpdate{
				Position: &next,
				Rotation: &rotation,
				Velocity: &velocity,
				State:    &state,
				Priority: throttle.PriorityNormal,
			})
		}
	}
}

func (m *Manager) shouldBroadcast(characterID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	last, ok := m.lastBroadcast[characterID]
	now := time.Now()
	if ok && now.Sub(last) < broadcastInterval {
		return false
	}
	m.lastBroadcast[characterID] = now
	return true
}

// QuaternionFromYaw builds a facing quaternion from a horizontal
// velocity (vx, vz), rotating around the Y axis.
func QuaternionFromYaw(vx, vz float64) model.Quaternion {
	if vx == 0 && vz == 0 {
		return model.IdentityQuaternion
	}
	yaw := math.Atan2(vx, vz)
	return model.Quaternion{Y: math.Sin(yaw / 2), W: math.Cos(yaw / 2)}
}
