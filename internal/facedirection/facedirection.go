// Package facedirection implements the OSRS-style tick-deferred
// rotation state machine: targets may be set at any time during a
// tick but are only applied at tick end, and only for players that
// did not move that tick.
package facedirection

import (
	"math"
	"sort"

	"github.com/hyperscape/coreserver/internal/broadcast"
	"github.com/hyperscape/coreserver/internal/model"
	"github.com/hyperscape/coreserver/internal/players"
	"github.com/hyperscape/coreserver/internal/throttle"
)

// avatarBaseOffset accounts for the avatar mesh's forward axis not
// matching the raw atan2 result.
const avatarBaseOffset = math.Pi

// minFaceTargetDelta is the OSRS dead zone below which a point target
// is considered reached and produces no rotation.
const minFaceTargetDelta = 0.01

// Processor runs the face-direction state machine against the shared
// player table.
type Processor struct {
	players     *players.Manager
	broadcaster *broadcast.OptimizedBroadcaster
}

// NewProcessor wires a Processor's dependencies.
func NewProcessor(pm *players.Manager, broadcaster *broadcast.OptimizedBroadcaster) *Processor {
	return &Processor{players: pm, broadcaster: broadcaster}
}

// SetFaceTarget stores a point target for characterID and clears
// movedThisTick so a stationary interaction initiates rotation on the
// same tick it was requested.
func (p *Processor) SetFaceTarget(characterID string, target model.Vector3) {
	player, ok := p.players.Get(characterID)
	if !ok {
		return
	}
	state := player.FaceDirection()
	state.FaceTarget = &target
	state.CardinalFaceDirection = nil
	player.SetFaceDirection(state)
	player.SetMovedThisTick(false)
}

// SetCardinalFaceTarget computes a cardinal direction deterministically
// from the player's tile relative to anchorTile, falling back to a
// centered point target when the player is not aligned on a cardinal
// axis (directly north, south, east, or west of the anchor).
func (p *Processor) SetCardinalFaceTarget(characterID string, playerPos, anchorTile model.Vector3) {
	player, ok := p.players.Get(characterID)
	if !ok {
		return
	}

	dx := anchorTile.X - playerPos.X
	dz := anchorTile.Z - playerPos.Z

	var cardinal *model.Cardinal
	switch {
	case math.Abs(dx) < 0.5 && dz < -0.5:
		c := model.North
		cardinal = &c
	case math.Abs(dx) < 0.5 && dz > 0.5:
		c := model.South
		cardinal = &c
	case math.Abs(dz) < 0.5 && dx > 0.5:
		c := model.East
		cardinal = &c
	case math.Abs(dz) < 0.5 && dx < -0.5:
		c := model.West
		cardinal = &c
	}

	state := player.FaceDirection()
	if cardinal != nil {
		state.CardinalFaceDirection = cardinal
		state.FaceTarget = nil
	} else {
		state.CardinalFaceDirection = nil
		state.FaceTarget = &anchorTile
	}
	player.SetFaceDirection(state)
	player.SetMovedThisTick(false)
}

// MarkPlayerMoved records that characterID moved this tick, deferring
// any pending face target to a future tick.
func (p *Processor) MarkPlayerMoved(characterID string) {
	if player, ok := p.players.Get(characterID); ok {
		player.SetMovedThisTick(true)
	}
}

// ResetMovementFlags clears movedThisTick for every spawned player.
// Called once at the start of each tick.
func (p *Processor) ResetMovementFlags() {
	for _, id := range p.players.All() {
		if player, ok := p.players.Get(id); ok {
			player.SetMovedThisTick(false)
		}
	}
}

// EntityModifiedRotation is the wire packet sent when a face
// direction resolves to a rotation.
type EntityModifiedRotation struct {
	ID      string           `json:"id"`
	Changes RotationChangeSet `json:"changes"`
}

type RotationChangeSet struct {
	Q [4]float64 `json:"q"`
}

// ProcessFaceDirection resolves every pending face target, in PID
// (character id) order, skipping any player that moved this tick.
// pos supplies each player's current authoritative position.
func (p *Processor) ProcessFaceDirection(pos func(characterID string) model.Vector3) {
	ids := p.players.All()
	sort.Strings(ids)

	for _, id := range ids {
		player, ok := p.players.Get(id)
		if !ok || player.MovedThisTick() {
			continue
		}

		state := player.FaceDirection()
		var rotation model.Quaternion
		resolved := false

		switch {
		case state.CardinalFaceDirection != nil:
			rotation = cardinalQuaternion(*state.CardinalFaceDirection)
			state.ClearTargets()
			resolved = true
		case state.FaceTarget != nil:
			current := pos(id)
			dx := state.FaceTarget.X - current.X
			dz := state.FaceTarget.Z - current.Z
			if math.Abs(dx)+math.Abs(dz) >= minFaceTargetDelta {
				angle := snapToEightDirections(math.Atan2(dx, dz)) + avatarBaseOffset
				rotation = model.Quaternion{Y: math.Sin(angle / 2), W: math.Cos(angle / 2)}
				resolved = true
			}
			state.ClearTargets()
		}

		player.SetFaceDirection(state)
		if resolved {
			p.broadcaster.QueueEntityUpdate(id, broadcast.EntityUpdate{
				Rotation: &rotation,
				Priority: throttle.PriorityHigh,
				Force:    true,
			})
			p.broadcaster.BroadcastToEntitySubscribers(id, EntityModifiedRotation{
				ID:      id,
				Changes: RotationChangeSet{Q: [4]float64{rotation.X, rotation.Y, rotation.Z, rotation.W}},
			})
		}
	}
}

func snapToEightDirections(angle float64) float64 {
	const step = math.Pi / 4
	return math.Round(angle/step) * step
}

func cardinalQuaternion(c model.Cardinal) model.Quaternion {
	var angle float64
	switch c {
	case model.North:
		angle = 0
	case model.East:
		angle = math.Pi / 2
	case model.South:
		angle = math.Pi
	case model.West:
		angle = 3 * math.Pi / 2
	}
	return model.Quaternion{Y: math.Sin(angle / 2), W: math.Cos(angle / 2)}
}
