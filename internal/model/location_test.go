package model

import (
	"math"
	"testing"
)

func TestNewLocation(t *testing.T) {
	loc := NewLocation(1, 2, 3)
	want := Vector3{X: 1, Y: 2, Z: 3}
	if loc.Position != want {
		t.Errorf("NewLocation() position = %+v, want %+v", loc.Position, want)
	}
	if loc.Rotation != IdentityQuaternion {
		t.Errorf("NewLocation() rotation = %+v, want identity", loc.Rotation)
	}
}

func TestLocation_WithRotation(t *testing.T) {
	original := NewLocation(1, 2, 3)
	q := Quaternion{X: 0, Y: 0, Z: 1, W: 0}

	got := original.WithRotation(q)
	if got.Rotation != q {
		t.Errorf("WithRotation() = %+v, want %+v", got.Rotation, q)
	}
	if original.Rotation != IdentityQuaternion {
		t.Errorf("WithRotation() mutated original: %+v", original.Rotation)
	}
}

func TestLocation_WithPosition(t *testing.T) {
	original := NewLocation(1, 2, 3)
	p := Vector3{X: 10, Y: 20, Z: 30}

	got := original.WithPosition(p)
	if got.Position != p {
		t.Errorf("WithPosition() = %+v, want %+v", got.Position, p)
	}
	if original.Position.X != 1 {
		t.Errorf("WithPosition() mutated original: %+v", original.Position)
	}
}

func TestVector3_DistanceSquared(t *testing.T) {
	tests := []struct {
		name string
		a, b Vector3
		want float64
	}{
		{"same point", Vector3{}, Vector3{}, 0},
		{"x axis", Vector3{}, Vector3{X: 10}, 100},
		{"3-4-5 triangle", Vector3{}, Vector3{X: 3, Y: 4}, 25},
		{"3d distance", Vector3{}, Vector3{X: 1, Y: 2, Z: 2}, 9},
		{"negative coords", Vector3{X: -10, Y: -10, Z: -10}, Vector3{X: 10, Y: 10, Z: 10}, 1200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.DistanceSquared(tt.b)
			if got != tt.want {
				t.Errorf("DistanceSquared() = %v, want %v", got, tt.want)
			}
			if rev := tt.b.DistanceSquared(tt.a); rev != tt.want {
				t.Errorf("DistanceSquared() not symmetric: %v vs %v", rev, tt.want)
			}
		})
	}
}

func TestVector3_Distance(t *testing.T) {
	got := (Vector3{}).Distance(Vector3{X: 3, Y: 4})
	if got != 5 {
		t.Errorf("Distance() = %v, want 5", got)
	}
}

func TestVector3_Normalized(t *testing.T) {
	v := Vector3{X: 3, Y: 4}
	n := v.Normalized()
	if math.Abs(n.Length()-1) > 1e-9 {
		t.Errorf("Normalized() length = %v, want 1", n.Length())
	}

	zero := Vector3{}.Normalized()
	if zero != (Vector3{}) {
		t.Errorf("Normalized() of zero vector = %+v, want zero", zero)
	}
}

func TestVector3_AddSubScale(t *testing.T) {
	a := Vector3{X: 1, Y: 2, Z: 3}
	b := Vector3{X: 4, Y: 5, Z: 6}

	if got := a.Add(b); got != (Vector3{X: 5, Y: 7, Z: 9}) {
		t.Errorf("Add() = %+v", got)
	}
	if got := b.Sub(a); got != (Vector3{X: 3, Y: 3, Z: 3}) {
		t.Errorf("Sub() = %+v", got)
	}
	if got := a.Scale(2); got != (Vector3{X: 2, Y: 4, Z: 6}) {
		t.Errorf("Scale() = %+v", got)
	}
}

func TestCellKey(t *testing.T) {
	tests := []struct {
		name         string
		x, z         float64
		cellSize     float64
		wantX, wantZ int32
	}{
		{"origin", 0, 0, 10, 0, 0},
		{"positive", 25, 35, 10, 2, 3},
		{"negative floor semantics", -25, -5, 10, -3, -1},
		{"exact boundary", -10, 10, 10, -1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cx, cz := CellKey(tt.x, tt.z, tt.cellSize)
			if cx != tt.wantX || cz != tt.wantZ {
				t.Errorf("CellKey(%v,%v) = (%d,%d), want (%d,%d)", tt.x, tt.z, cx, cz, tt.wantX, tt.wantZ)
			}
		})
	}
}

func BenchmarkVector3_DistanceSquared(b *testing.B) {
	v1 := Vector3{X: 1000, Y: 2000, Z: 3000}
	v2 := Vector3{X: 1100, Y: 2200, Z: 3300}

	b.ResetTimer()
	for b.Loop() {
		_ = v1.DistanceSquared(v2)
	}
}
