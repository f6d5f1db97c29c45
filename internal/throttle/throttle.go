// Package throttle implements the distance-tiered, priority-aware
// per-pair update rate limiter sitting between the AOI subscriber set
// and the batch updater.
package throttle

import "sync"

// Priority modifies a pair's effective tier interval.
type Priority int

const (
	// PriorityNormal uses the tier's configured interval unchanged.
	PriorityNormal Priority = iota
	// PriorityCritical always passes, bypassing the throttle entirely.
	PriorityCritical
	// PriorityHigh halves the tier interval (floor of 1 tick).
	PriorityHigh
	// PriorityLow doubles the tier interval.
	PriorityLow
)

// Tier is one squared-distance bucket with its own update interval in
// ticks. A negative MaxDistanceSquared marks the catch-all tier and
// must be last.
type Tier struct {
	MaxDistanceSquared float64
	IntervalTicks      int
}

// DefaultTiers mirrors the spec's default distance buckets.
func DefaultTiers() []Tier {
	return []Tier{
		{MaxDistanceSquared: 625, IntervalTicks: 1},
		{MaxDistanceSquared: 2500, IntervalTicks: 2},
		{MaxDistanceSquared: 10000, IntervalTicks: 4},
		{MaxDistanceSquared: -1, IntervalTicks: 8},
	}
}

type pairKey struct {
	playerID string
	entityID string
}

type pairState struct {
	lastUpdateTick uint64
	tier           int
}

// Throttler is a per-(player,entity) pair rate limiter keyed by
// squared distance and priority.
type Throttler struct {
	tiers []Tier

	mu    sync.Mutex
	tick  uint64
	state map[pairKey]*pairState
}

// New creates a Throttler with the given tiers, which must be ordered
// ascending by MaxDistanceSquared with the catch-all tier (negative
// MaxDistanceSquared) last.
func New(tiers []Tier) *Throttler {
	return &Throttler{tiers: tiers, state: make(map[pairKey]*pairState)}
}

// SetTick advances the throttler's notion of the current tick. Called
// once per tick by the broadcaster before flushing.
func (th *Throttler) SetTick(tick uint64) {
	th.mu.Lock()
	th.tick = tick
	th.mu.Unlock()
}

func (th *Throttler) tierFor(distSq float64) int {
	for i, t := range th.tiers {
		if t.MaxDistanceSquared < 0 || distSq <= t.MaxDistanceSquared {
			return i
		}
	}
	return len(th.tiers) - 1
}

func effectiveInterval(interval int, prio Priority) int {
	switch prio {
	case PriorityHigh:
		if interval/2 < 1 {
			return 1
		}
		return interval / 2
	case PriorityLow:
		return interval * 2
	default:
		return interval
	}
}

// ShouldUpdate reports whether an update for (playerID, entityID) at
// squared distance distSq and priority prio is admitted this tick.
// The first call for a pair always returns true. CRITICAL priority
// always returns true without recording state.
func (th *Throttler) ShouldUpdate(playerID, entityID string, distSq float64, prio Priority) bool {
	if prio == PriorityCritical {
		return true
	}

	key := pairKey{playerID: playerID, entityID: entityID}
	tierIdx := th.tierFor(distSq)
	interval := effectiveInterval(th.tiers[tierIdx].IntervalTicks, prio)

	th.mu.Lock()
	defer th.mu.Unlock()

	s, ok := th.state[key]
	if !ok {
		th.state[key] = &pairState{lastUpdateTick: th.tick, tier: tierIdx}
		return true
	}

	if th.tick-s.lastUpdateTick >= uint64(interval) {
		s.lastUpdateTick = th.tick
		s.tier = tierIdx
		return true
	}
	return false
}

// RemovePair forgets throttle state for one (player, entity) pair,
// e.g. when the entity leaves the player's AOI window.
func (th *Throttler) RemovePair(playerID, entityID string) {
	th.mu.Lock()
	delete(th.state, pairKey{playerID: playerID, entityID: entityID})
	th.mu.Unlock()
}

// RemovePlayer forgets all throttle state involving playerID.
func (th *Throttler) RemovePlayer(playerID string) {
	th.mu.Lock()
	defer th.mu.Unlock()
	for k := range th.state {
		if k.playerID == playerID {
			delete(th.state, k)
		}
	}
}
