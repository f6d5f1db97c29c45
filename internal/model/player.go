package model

import "sync"

// Health is a current/max pair.
type Health struct {
	Current int32
	Max     int32
}

// Skill tracks a player's level and experience in one skill.
type Skill struct {
	Level int32
	XP    int64
}

// Player is the type-specific data attached to an Entity of kind
// EntityPlayer. Created on enterWorld, destroyed on disconnect or
// stale-entity reclamation.
type Player struct {
	mu sync.RWMutex

	socketID    string
	accountID   string
	characterID string

	health Health
	skills map[string]Skill

	movement *MovementTarget
	face     FaceDirectionState

	isLoading      bool
	autoRetaliate  bool
	movedThisTick  bool
}

// NewPlayer creates player data owned by the given socket and account.
func NewPlayer(socketID, accountID, characterID string) *Player {
	return &Player{
		socketID:    socketID,
		accountID:   accountID,
		characterID: characterID,
		health:      Health{Current: 100, Max: 100},
		skills:      make(map[string]Skill),
		isLoading:   true,
	}
}

// SocketID returns the owning connection's id, immutable after creation.
func (p *Player) SocketID() string { return p.socketID }

// AccountID returns the owning account's id, immutable after creation.
func (p *Player) AccountID() string { return p.accountID }

// CharacterID returns the selected persistent character id.
func (p *Player) CharacterID() string { return p.characterID }

// Health returns a copy of the player's current health.
func (p *Player) Health() Health {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.health
}

// SetHealth replaces the player's health.
func (p *Player) SetHealth(h Health) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.health = h
}

// Skill returns the named skill and whether it exists.
func (p *Player) Skill(name string) (Skill, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.skills[name]
	return s, ok
}

// SetSkill sets the named skill's level and xp.
func (p *Player) SetSkill(name string, s Skill) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.skills[name] = s
}

// IsLoading reports whether the client has not yet acknowledged spawn,
// during which the player is immune to hostile interaction.
func (p *Player) IsLoading() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isLoading
}

// SetLoading sets the loading flag.
func (p *Player) SetLoading(loading bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.isLoading = loading
}

// AutoRetaliate reports whether the player automatically fights back.
func (p *Player) AutoRetaliate() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.autoRetaliate
}

// SetAutoRetaliate sets the auto-retaliate flag.
func (p *Player) SetAutoRetaliate(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.autoRetaliate = v
}

// MovedThisTick reports whether movement integration moved the player
// during the current tick. Consulted and reset by the face-direction
// resolver.
func (p *Player) MovedThisTick() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.movedThisTick
}

// SetMovedThisTick records whether movement happened this tick.
func (p *Player) SetMovedThisTick(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.movedThisTick = v
}

// Movement returns the player's movement target, or nil if idle.
func (p *Player) Movement() *MovementTarget {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.movement
}

// SetMovement replaces the player's movement target. A nil target
// means idle.
func (p *Player) SetMovement(m *MovementTarget) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.movement = m
}

// FaceDirection returns a copy of the player's face-direction state.
func (p *Player) FaceDirection() FaceDirectionState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.face
}

// SetFaceDirection replaces the player's face-direction state.
func (p *Player) SetFaceDirection(s FaceDirectionState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.face = s
}
