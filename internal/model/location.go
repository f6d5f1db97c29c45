package model

import "math"

// Vector3 is a world-space position or displacement in float64 world
// coordinates; the batch wire frame carries them as float32.
type Vector3 struct {
	X, Y, Z float64
}

// Quaternion is an orientation in world space.
type Quaternion struct {
	X, Y, Z, W float64
}

// IdentityQuaternion is the no-rotation orientation.
var IdentityQuaternion = Quaternion{W: 1}

// Location bundles a position with an orientation. Value type, passed
// by value and safe to copy.
type Location struct {
	Position Vector3
	Rotation Quaternion
}

// NewLocation builds a Location at the given position with identity
// rotation.
func NewLocation(x, y, z float64) Location {
	return Location{Position: Vector3{X: x, Y: y, Z: z}, Rotation: IdentityQuaternion}
}

// WithRotation returns a copy of l with rotation replaced.
func (l Location) WithRotation(q Quaternion) Location {
	l.Rotation = q
	return l
}

// WithPosition returns a copy of l with position replaced.
func (l Location) WithPosition(p Vector3) Location {
	l.Position = p
	return l
}

// DistanceSquared returns the squared distance between two positions,
// avoiding a sqrt on the hot path.
func (v Vector3) DistanceSquared(other Vector3) float64 {
	dx := v.X - other.X
	dy := v.Y - other.Y
	dz := v.Z - other.Z
	return dx*dx + dy*dy + dz*dz
}

// Distance returns the Euclidean distance between two positions.
func (v Vector3) Distance(other Vector3) float64 {
	return math.Sqrt(v.DistanceSquared(other))
}

// DistanceXZ returns the Euclidean distance between two positions
// projected onto the horizontal (X, Z) plane, ignoring Y entirely.
func (v Vector3) DistanceXZ(other Vector3) float64 {
	dx := v.X - other.X
	dz := v.Z - other.Z
	return math.Sqrt(dx*dx + dz*dz)
}

// Sub returns v - other.
func (v Vector3) Sub(other Vector3) Vector3 {
	return Vector3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Add returns v + other.
func (v Vector3) Add(other Vector3) Vector3 {
	return Vector3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Scale returns v scaled by s.
func (v Vector3) Scale(s float64) Vector3 {
	return Vector3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Length returns the magnitude of v.
func (v Vector3) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Normalized returns v scaled to unit length, or the zero vector if
// v is already the zero vector.
func (v Vector3) Normalized() Vector3 {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

// CellKey computes the AOI grid cell for a position given cell size S,
// using floor semantics so negative coordinates round toward negative
// infinity (e.g. -25 with S=10 maps to cell -3, not -2).
func CellKey(x, z float64, cellSize float64) (int32, int32) {
	return int32(math.Floor(x / cellSize)), int32(math.Floor(z / cellSize))
}
