package eventbridge

import "github.com/hyperscape/coreserver/internal/model"

// The packet types below are the wire shapes the routing table names.
// Several event kinds collapse onto the same packet (e.g.
// InventoryUpdated and InventoryInitialized both become
// inventoryUpdated); that collapsing happens in Bridge.Drain, not
// here.

type resourceDepletedPacket struct {
	ResourceID string `json:"resourceId"`
}

type resourceRespawnedPacket struct {
	ResourceID string `json:"resourceId"`
}

type resourceSpawnedPacket struct {
	ResourceID string  `json:"resourceId"`
	Kind       string  `json:"kind"`
	Position   vec3    `json:"position"`
}

type resourceSpawnPointsRegisteredPacket struct {
	ResourceKind string `json:"resourceKind"`
	Points       []vec3 `json:"points"`
}

type vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func toVec3(p model.Vector3) vec3 {
	return vec3{X: p.X, Y: p.Y, Z: p.Z}
}

type inventoryUpdatedPacket struct {
	PlayerID string          `json:"playerId"`
	Items    []InventoryItem `json:"items"`
	Coins    int64           `json:"coins"`
	MaxSlots int             `json:"maxSlots"`
}

type coinsUpdatedPacket struct {
	PlayerID string `json:"playerId"`
	Coins    int64  `json:"coins"`
}

type skillsUpdatedPacket struct {
	PlayerID string                 `json:"playerId"`
	Skills   map[string]skillWire   `json:"skills"`
}

type skillWire struct {
	Level int32 `json:"level"`
	XP    int64 `json:"xp"`
}

type uiMessagePacket struct {
	PlayerID string `json:"playerId"`
	Text     string `json:"text"`
	Severity string `json:"severity,omitempty"`
}

type uiDeathScreenPacket struct {
	PlayerID string `json:"playerId"`
	Show     bool   `json:"show"`
}

type uiAttackStylePacket struct {
	PlayerID string `json:"playerId"`
	Style    string `json:"style"`
}

type combatDamageDealtPacket struct {
	AttackerID string `json:"attackerId"`
	TargetID   string `json:"targetId"`
	Amount     int32  `json:"amount"`
}

type playerUpdatedPacket struct {
	PlayerID  string `json:"playerId"`
	Health    *healthWire `json:"health,omitempty"`
	IsLoading *bool  `json:"isLoading,omitempty"`
}

type healthWire struct {
	Current int32 `json:"current"`
	Max     int32 `json:"max"`
}

type dialogueStartPacket struct {
	PlayerID string `json:"playerId"`
	NodeID   string `json:"nodeId"`
	Text     string `json:"text"`
}

type dialogueNodeChangePacket struct {
	PlayerID string `json:"playerId"`
	NodeID   string `json:"nodeId"`
	Text     string `json:"text"`
}

type dialogueEndPacket struct {
	PlayerID string `json:"playerId"`
}

type bankStatePacket struct {
	PlayerID string      `json:"playerId"`
	Items    []BankItem  `json:"items"`
}

type storeStatePacket struct {
	PlayerID string      `json:"playerId"`
	StoreID  string      `json:"storeId"`
	Items    []StoreItem `json:"items"`
}
