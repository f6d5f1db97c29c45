// Package eventbridge is the only place in the server that turns an
// internal domain event into a wire packet. Gameplay systems publish
// events onto a Bus; Bridge.Drain maps each one to a broadcast,
// per-player send, or (for bank/store) a storage-backed resolution,
// per the routing table in the design. No other package calls
// broadcast.Manager directly for these event kinds, so the
// private-vs-public send policy lives in exactly one place.
package eventbridge

import "github.com/hyperscape/coreserver/internal/model"

// Event is a tagged domain event. Each concrete type corresponds to
// one row of the routing table and carries exactly the fields its
// route needs.
type Event interface {
	// Kind names the event for logging and dispatch; it is not the
	// wire packet name (several kinds map to the same packet).
	Kind() string
}

// ResourceDepleted fires when a resource node runs out and is
// broadcast verbatim.
type ResourceDepleted struct{ ResourceID string }

func (ResourceDepleted) Kind() string { return "RESOURCE_DEPLETED" }

// ResourceRespawned fires when a depleted resource becomes available
// again.
type ResourceRespawned struct{ ResourceID string }

func (ResourceRespawned) Kind() string { return "RESOURCE_RESPAWNED" }

// ResourceSpawned fires when a new resource entity enters the world.
type ResourceSpawned struct {
	ResourceID string
	Kind_      string
	Position   model.Vector3
}

func (ResourceSpawned) Kind() string { return "RESOURCE_SPAWNED" }

// ResourceSpawnPointsRegistered fires once, at world load, with the
// full set of configured spawn points for a resource type.
type ResourceSpawnPointsRegistered struct {
	ResourceKind string
	Points       []model.Vector3
}

func (ResourceSpawnPointsRegistered) Kind() string { return "RESOURCE_SPAWN_POINTS_REGISTERED" }

// InventoryItem is one slot of a player's inventory, shared by every
// inventory-shaped event below.
type InventoryItem struct {
	SlotIndex int
	ItemID    string
	Quantity  int32
}

// InventoryUpdated is broadcast to everyone: used for world-visible
// inventory changes (e.g. a dropped item appearing on the ground is
// modeled upstream as a world entity, not this event; this event is
// reserved for inventory state that is, by policy, not private -
// callers choose the broadcast route deliberately).
type InventoryUpdated struct {
	PlayerID string
	Items    []InventoryItem
	Coins    int64
	MaxSlots int
}

func (InventoryUpdated) Kind() string { return "INVENTORY_UPDATED" }

// InventoryInitialized is the per-player initial inventory send,
// routed privately on spawn or reconnect.
type InventoryInitialized struct {
	PlayerID string
	Items    []InventoryItem
	Coins    int64
	MaxSlots int
}

func (InventoryInitialized) Kind() string { return "INVENTORY_INITIALIZED" }

// InventoryCoinsUpdated carries just the coin balance, routed
// privately.
type InventoryCoinsUpdated struct {
	PlayerID string
	Coins    int64
}

func (InventoryCoinsUpdated) Kind() string { return "INVENTORY_COINS_UPDATED" }

// InventoryRequest is a pulled refresh; the bridge suppresses the
// reply entirely while the player's inventory is still loading,
// rather than racing a stale read against the initial load.
type InventoryRequest struct {
	PlayerID string
	Items    []InventoryItem
	Coins    int64
	MaxSlots int
}

func (InventoryRequest) Kind() string { return "INVENTORY_REQUEST" }

// SkillsUpdated carries a player's skill table. Broadcast controls
// whether this is world-visible (e.g. a level-up) or private (e.g. an
// XP tick).
type SkillsUpdated struct {
	PlayerID  string
	Skills    map[string]model.Skill
	Broadcast bool
}

func (SkillsUpdated) Kind() string { return "SKILLS_UPDATED" }

// UIMessage is a private toast/chat-log line.
type UIMessage struct {
	PlayerID string
	Text     string
	Severity string
}

func (UIMessage) Kind() string { return "UI_MESSAGE" }

// UIDeathScreen shows or hides the death screen for one player.
type UIDeathScreen struct {
	PlayerID string
	Show     bool
}

func (UIDeathScreen) Kind() string { return "UI_DEATH_SCREEN" }

// UIAttackStyle echoes a player's current combat stance back to their
// own client.
type UIAttackStyle struct {
	PlayerID string
	Style    string
}

func (UIAttackStyle) Kind() string { return "UI_ATTACK_STYLE" }

// CombatDamageDealt is world-visible and broadcast.
type CombatDamageDealt struct {
	AttackerID string
	TargetID   string
	Amount     int32
}

func (CombatDamageDealt) Kind() string { return "COMBAT_DAMAGE_DEALT" }

// PlayerUpdated carries a flattened health delta and/or loading-state
// change, routed privately.
type PlayerUpdated struct {
	PlayerID  string
	Health    *model.Health
	IsLoading *bool
}

func (PlayerUpdated) Kind() string { return "PLAYER_UPDATED" }

// DialogueStart opens an NPC dialogue tree for one player.
type DialogueStart struct {
	PlayerID string
	NodeID   string
	Text     string
}

func (DialogueStart) Kind() string { return "DIALOGUE_START" }

// DialogueNodeChange advances the tree to a new node.
type DialogueNodeChange struct {
	PlayerID string
	NodeID   string
	Text     string
}

func (DialogueNodeChange) Kind() string { return "DIALOGUE_NODE_CHANGE" }

// DialogueEnd closes the dialogue for one player.
type DialogueEnd struct {
	PlayerID string
}

func (DialogueEnd) Kind() string { return "DIALOGUE_END" }

// BankOpenRequest asks the bridge to resolve and send the requesting
// player's bank contents, reading them from storage since no other
// system keeps a hot copy of bank state.
type BankOpenRequest struct {
	PlayerID string
}

func (BankOpenRequest) Kind() string { return "BANK_OPEN_REQUEST" }

// StoreOpenRequest asks the bridge to resolve npcID to a shop
// configuration (via AreaResolver) and send its catalog.
type StoreOpenRequest struct {
	PlayerID string
	NPCID    string
}

func (StoreOpenRequest) Kind() string { return "STORE_OPEN_REQUEST" }
