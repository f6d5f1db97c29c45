package model

// TerrainProvider answers ground-height queries so movement, spawn
// grounding, and anti-cheat validation share one source of truth.
// Implementations may report terrain as not yet loaded for a region
// that hasn't finished streaming in.
type TerrainProvider interface {
	// Height returns the ground height at (x, z) and whether terrain
	// data is currently available there.
	Height(x, z float64) (height float64, ready bool)
}
