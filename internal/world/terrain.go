package world

// FlatTerrain is the default model.TerrainProvider: a single-height
// plane that is always ready. Grounded on
// udisondev-la2go/internal/game/geo.Engine's "height lookup may be
// absent; fall back gracefully" shape, simplified to the one height
// this repo actually needs since no geodata asset pipeline is in
// scope (spec §1 Non-goals: asset pipelines).
type FlatTerrain struct {
	Height_ float64
}

// NewFlatTerrain returns a FlatTerrain at the given ground height.
func NewFlatTerrain(height float64) FlatTerrain {
	return FlatTerrain{Height_: height}
}

// Height implements model.TerrainProvider.
func (t FlatTerrain) Height(x, z float64) (float64, bool) {
	return t.Height_, true
}
