// Package tick runs the fixed-rate game loop: the ordered pipeline of
// spec §2/§5 that resets per-tick flags, integrates movement, resolves
// face direction, validates position, drains the event bridge, and
// flushes one batched frame per subscriber, in that order, every
// cycle. Grounded on udisondev-la2go/internal/ai.TickManager's
// ticker-plus-context-cancellation run loop, generalized from a
// single AI-controller tick to the server's full per-tick pipeline.
package tick

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hyperscape/coreserver/internal/anticheat"
	"github.com/hyperscape/coreserver/internal/broadcast"
	"github.com/hyperscape/coreserver/internal/config"
	"github.com/hyperscape/coreserver/internal/eventbridge"
	"github.com/hyperscape/coreserver/internal/facedirection"
	"github.com/hyperscape/coreserver/internal/model"
	"github.com/hyperscape/coreserver/internal/movement"
	"github.com/hyperscape/coreserver/internal/players"
	"github.com/hyperscape/coreserver/internal/trade"
)

// PlayerLocator resolves a spawned character's owning socket, needed
// to recompute that player's own AOI subscription window as it moves.
// Satisfied by *network.Registry.
type PlayerLocator interface {
	SocketForPlayer(playerID string) (socketID string, ok bool)
}

// Scheduler owns the tick counter and the ordered per-tick pipeline.
// Every field it touches is otherwise owned by the component that
// constructed it; the scheduler only calls their already-synchronized
// public methods, never reaches into their state directly.
type Scheduler struct {
	interval time.Duration

	players     *players.Manager
	locator     PlayerLocator
	broadcaster *broadcast.OptimizedBroadcaster
	movement    *movement.Manager
	face        *facedirection.Processor
	anticheat   *anticheat.Validator
	bridge      *eventbridge.Bridge
	trades      *trade.System
	log         *zap.Logger

	current          uint64
	lastTerrainCheck time.Time
}

// New wires a Scheduler's dependencies. trades may be nil if the
// trading system isn't in play (e.g. in tests of the replication path
// alone).
func New(cfg config.TickConfig, pm *players.Manager, locator PlayerLocator, b *broadcast.OptimizedBroadcaster, mv *movement.Manager, face *facedirection.Processor, ac *anticheat.Validator, bridge *eventbridge.Bridge, trades *trade.System, log *zap.Logger) *Scheduler {
	rate := cfg.RateHz
	if rate <= 0 {
		rate = 20
	}
	return &Scheduler{
		interval:    time.Second / time.Duration(rate),
		players:     pm,
		locator:     locator,
		broadcaster: b,
		movement:    mv,
		face:        face,
		anticheat:   ac,
		bridge:      bridge,
		trades:      trades,
		log:         log,
	}
}

// Run blocks, advancing the tick on a fixed-rate ticker until ctx is
// canceled. No step below ever suspends mid-tick: every suspension
// point (auth, persistence, terrain wait) lives outside this loop, in
// the connection handshake and character selection paths.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			s.step(ctx, dt, now)
		}
	}
}

// Step runs exactly one tick of the pipeline. Exported so tests and a
// manual/offline driver can advance the world deterministically
// without waiting on a wall-clock ticker.
func (s *Scheduler) Step(ctx context.Context, dt float64, now time.Time) uint64 {
	return s.step(ctx, dt, now)
}

func (s *Scheduler) step(ctx context.Context, dt float64, now time.Time) uint64 {
	s.current++
	tick := s.current

	// 1. Reset face-direction's per-tick flags.
	s.face.ResetMovementFlags()

	// 2. System updates (combat/resource/skills/...) are out of scope
	// for this repo (spec §1 Non-goals: gameplay rules) and have no
	// hook here; a future gameplay package would run between steps 1
	// and 3.

	// 3. Movement integration.
	s.movement.Update(dt, s.pos, s.setPos)

	// 4. Face-direction resolution.
	s.face.ProcessFaceDirection(s.pos)

	// 5. Position validation: terrain correction on its own relaxing
	// cadence, cumulative speed/teleport sampling every tick.
	if s.anticheat != nil {
		if now.Sub(s.lastTerrainCheck) >= s.anticheat.TerrainInterval() {
			s.anticheat.ValidateTerrain(s.pos, s.setPos)
			s.lastTerrainCheck = now
		}
		for _, id := range s.players.All() {
			s.anticheat.RecordPosition(id, s.pos(id), now)
		}
	}

	// 6. EventBridge-produced packets queued.
	if s.bridge != nil {
		s.bridge.Drain(ctx)
	}

	// 7. One batched frame per active subscriber.
	s.broadcaster.Flush(tick)

	// 8. Trading timeout cleanup.
	if s.trades != nil {
		s.trades.SweepExpired(now)
	}

	return tick
}

// Tick returns the most recently completed tick number.
func (s *Scheduler) Tick() uint64 { return s.current }

func (s *Scheduler) pos(characterID string) model.Vector3 {
	p, _ := s.broadcaster.Position(characterID)
	return p
}

func (s *Scheduler) setPos(characterID string, pos model.Vector3) {
	if socketID, ok := s.locator.SocketForPlayer(characterID); ok {
		s.broadcaster.MovePlayer(characterID, socketID, pos)
		return
	}
	s.broadcaster.UpdateEntityPosition(characterID, pos)
}
