package model

import "sync"

// EntityKind tags the type of a world entity.
type EntityKind string

const (
	EntityPlayer   EntityKind = "player"
	EntityMob      EntityKind = "mob"
	EntityItem     EntityKind = "item"
	EntityNPC      EntityKind = "npc"
	EntityResource EntityKind = "resource"
)

// Entity is the base type for every uniquely-identified world object:
// a position, an optional rotation, a type tag, and type-specific data.
// Position is authoritative on the server. An entity belongs to exactly
// one AOI cell at any time; owning that invariant is the AOIManager's
// job, not this type's.
type Entity struct {
	id   string
	kind EntityKind
	Data any

	mu       sync.RWMutex
	location Location
}

// NewEntity creates a world entity with the given id, kind and starting
// location. Data may be attached separately (e.g. a *Player for
// EntityPlayer) once the caller has it.
func NewEntity(id string, kind EntityKind, loc Location) *Entity {
	return &Entity{id: id, kind: kind, location: loc}
}

// ID returns the entity's globally unique id, immutable after creation.
func (e *Entity) ID() string {
	return e.id
}

// Kind returns the entity's type tag, immutable after creation.
func (e *Entity) Kind() EntityKind {
	return e.kind
}

// Location returns a copy of the entity's current location.
func (e *Entity) Location() Location {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.location
}

// SetLocation sets the entity's current location.
func (e *Entity) SetLocation(loc Location) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.location = loc
}

// Position is a convenience accessor for the hot path (AOI updates,
// distance checks) that avoids copying the rotation.
func (e *Entity) Position() Vector3 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.location.Position
}

// SetPosition updates position while leaving rotation untouched.
func (e *Entity) SetPosition(p Vector3) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.location.Position = p
}

// Rotation is a convenience accessor for the hot path.
func (e *Entity) Rotation() Quaternion {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.location.Rotation
}

// SetRotation updates rotation while leaving position untouched.
func (e *Entity) SetRotation(q Quaternion) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.location.Rotation = q
}
