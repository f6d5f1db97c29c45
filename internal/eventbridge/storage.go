package eventbridge

import "context"

// BankItem is one slot of a player's bank, persisted as an opaque
// document since bank schema is outside this repo's scope (spec §1
// Non-goals: persistence schema).
type BankItem struct {
	SlotIndex int    `json:"slotIndex"`
	ItemID    string `json:"itemId"`
	Quantity  int32  `json:"quantity"`
}

// BankDocument is the document stored under kind "bank", keyed by
// player id.
type BankDocument struct {
	PlayerID string     `json:"playerId"`
	Items    []BankItem `json:"items"`
}

// BankLoader is the persistence surface BANK_OPEN_REQUEST needs.
// Satisfied by storage.Store[BankDocument].
type BankLoader interface {
	Load(ctx context.Context, id string) (BankDocument, error)
}

// StoreItem is one entry in an NPC store's catalog.
type StoreItem struct {
	ItemID string `json:"itemId"`
	Price  int64  `json:"price"`
	Stock  int32  `json:"stock"`
}

// StoreDocument is the document stored under kind "store", keyed by
// store id.
type StoreDocument struct {
	StoreID string      `json:"storeId"`
	Items   []StoreItem `json:"items"`
}

// StoreCatalog is the persistence surface STORE_OPEN_REQUEST needs.
// Satisfied by storage.Store[StoreDocument].
type StoreCatalog interface {
	Load(ctx context.Context, id string) (StoreDocument, error)
}

// AreaResolver maps an NPC id to the store it operates, per area
// configuration. No area-authoring system is in scope (spec §1
// Non-goals: content-authoring UI), so this is an injected seam -
// StaticAreaResolver below is the trivial map-backed default.
type AreaResolver interface {
	StoreForNPC(npcID string) (storeID string, ok bool)
}

// StaticAreaResolver is a fixed npcID->storeID table, sufficient until
// a real area-config system exists upstream of this repo.
type StaticAreaResolver map[string]string

// StoreForNPC implements AreaResolver.
func (r StaticAreaResolver) StoreForNPC(npcID string) (string, bool) {
	id, ok := r[npcID]
	return id, ok
}
