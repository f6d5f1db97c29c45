// Package anticheat implements PositionValidator: periodic
// terrain-height validation and cumulative speed/teleport detection
// over a rolling position history.
package anticheat

import (
	"math"
	"sync"
	"time"

	"github.com/hyperscape/coreserver/internal/broadcast"
	"github.com/hyperscape/coreserver/internal/config"
	"github.com/hyperscape/coreserver/internal/model"
	"github.com/hyperscape/coreserver/internal/players"
	"github.com/hyperscape/coreserver/internal/throttle"
)

// terrainIntervalFast and terrainIntervalRelaxed bracket the terrain
// validation cadence: fast for the first 10s of uptime, relaxed after.
const (
	terrainIntervalFast     = 100 * time.Millisecond
	terrainIntervalRelaxed  = 1000 * time.Millisecond
	terrainRelaxAfterUptime = 10 * time.Second

	emergencyFallbackHeight = 10.0
	driftCorrectionFraction = 0.5

	teleportDistanceTiles = 10.0
	teleportMaxDT         = 500 * time.Millisecond
	speedToleranceFactor  = 1.2
	minSpeedSamples       = 4
	warningIdleReset      = 30 * time.Second
)

type sample struct {
	pos model.Vector3
	at  time.Time
}

// KickFunc is invoked when a player's violation count reaches the
// configured limit.
type KickFunc func(characterID, reason string)

// Validator runs both PositionValidator checks against the shared
// player table.
type Validator struct {
	players     *players.Manager
	terrain     model.TerrainProvider
	broadcaster *broadcast.OptimizedBroadcaster
	cfg         config.AntiCheatConfig
	kick        KickFunc
	startedAt   time.Time

	mu          sync.Mutex
	history     map[string][]sample
	violations  map[string]float64
	lastWarning map[string]time.Time
}

// NewValidator wires a Validator's dependencies.
func NewValidator(pm *players.Manager, terrain model.TerrainProvider, broadcaster *broadcast.OptimizedBroadcaster, cfg config.AntiCheatConfig, kick KickFunc) *Validator {
	return &Validator{
		players:     pm,
		terrain:     terrain,
		broadcaster: broadcaster,
		cfg:         cfg,
		kick:        kick,
		startedAt:   time.Now(),
		history:     make(map[string][]sample),
		violations:  make(map[string]float64),
		lastWarning: make(map[string]time.Time),
	}
}

// TerrainInterval reports the current terrain-validation cadence,
// which relaxes from 100ms to 1000ms once the server has been up for
// more than 10s.
func (v *Validator) TerrainInterval() time.Duration {
	if time.Since(v.startedAt) > terrainRelaxAfterUptime {
		return terrainIntervalRelaxed
	}
	return terrainIntervalFast
}

// ValidateTerrain checks every spawned player's Y against terrain
// height, emergency-correcting out-of-range values and gradually
// correcting smaller drift. pos/setPos read and install the
// authoritative position.
func (v *Validator) ValidateTerrain(pos func(characterID string) model.Vector3, setPos func(characterID string, p model.Vector3)) {
	for _, id := range v.players.All() {
		p := pos(id)

		groundHeight, ready := 0.0, false
		if v.terrain != nil {
			groundHeight, ready = v.terrain.Height(p.X, p.Z)
		}
		expected := p.Y
		if ready {
			expected = groundHeight + 0.1
		}

		if math.IsNaN(p.Y) || math.IsInf(p.Y, 0) || p.Y < -5 || p.Y > 200 {
			corrected := p
			if ready {
				corrected.Y = groundHeight + 0.1
			} else {
				corrected.Y = emergencyFallbackHeight
			}
			setPos(id, corrected)
			v.broadcastCorrection(id, corrected)
			continue
		}

		if ready {
			drift := math.Abs(p.Y - expected)
			if drift > 10 {
				corrected := p
				corrected.Y = p.Y + (expected-p.Y)*driftCorrectionFraction
				setPos(id, corrected)
				v.broadcastCorrection(id, corrected)
			}
		}
	}
}

func (v *Validator) broadcastCorrection(id string, pos model.Vector3) {
	v.broadcaster.QueueEntityUpdate(id, broadcast.EntityUpdate{
		Position: &pos,
		Priority: throttle.PriorityCritical,
		Force:    true,
	})
}

// RecordPosition appends a sample to characterID's rolling history,
// prunes anything older than the configured window, and evaluates the
// teleport and speed rules. Both rules measure horizontal (X, Z)
// displacement only, so vertical-only movement (falling, terrain
// drop-offs, Y-only teleports) never counts toward a violation.
func (v *Validator) RecordPosition(characterID string, pos model.Vector3, now time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()

	hist := v.history[characterID]
	var dt time.Duration
	var stepDist float64
	if len(hist) > 0 {
		last := hist[len(hist)-1]
		dt = now.Sub(last.at)
		stepDist = last.pos.DistanceXZ(pos)
	}
	hist = append(hist, sample{pos: pos, at: now})

	window := time.Duration(v.cfg.WindowSeconds * float64(time.Second))
	cutoff := now.Add(-window)
	pruned := hist[:0]
	for _, s := range hist {
		if s.at.After(cutoff) {
			pruned = append(pruned, s)
		}
	}
	v.history[characterID] = pruned

	v.decayLocked(characterID, now)

	if stepDist > teleportDistanceTiles && dt > 0 && dt < teleportMaxDT {
		v.addViolationLocked(characterID, "teleport", now)
		return
	}

	if len(pruned) >= minSpeedSamples {
		total := 0.0
		for i := 1; i < len(pruned); i++ {
			total += pruned[i-1].pos.DistanceXZ(pruned[i].pos)
		}
		elapsed := pruned[len(pruned)-1].at.Sub(pruned[0].at).Seconds()
		if elapsed > 0 {
			limit := v.cfg.MaxSpeedUnitsPerSecond * elapsed * speedToleranceFactor
			if total > limit {
				v.addViolationLocked(characterID, "speed", now)
			}
		}
	}
}

func (v *Validator) decayLocked(characterID string, now time.Time) {
	last, ok := v.lastWarning[characterID]
	if !ok {
		return
	}
	if now.Sub(last) > warningIdleReset {
		if v.violations[characterID] > 0 {
			v.violations[characterID]--
		}
		v.lastWarning[characterID] = now
	}
}

func (v *Validator) addViolationLocked(characterID, reason string, now time.Time) {
	v.violations[characterID]++
	v.lastWarning[characterID] = now
	if v.violations[characterID] >= v.cfg.ViolationLimit {
		if v.kick != nil {
			v.kick(characterID, reason)
		}
	}
}

// Violations returns characterID's current accumulated violation
// count, for tests and diagnostics.
func (v *Validator) Violations(characterID string) float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.violations[characterID]
}

// RemovePlayer forgets a disconnected player's history and violation
// state.
func (v *Validator) RemovePlayer(characterID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.history, characterID)
	delete(v.violations, characterID)
	delete(v.lastWarning, characterID)
}
