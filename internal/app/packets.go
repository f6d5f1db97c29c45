package app

import (
	"encoding/json"

	"github.com/hyperscape/coreserver/internal/model"
	"github.com/hyperscape/coreserver/internal/network"
)

// InboundPacket is the client->server envelope: a name tag and an
// opaque payload decoded only once the name is known. Mirrors the
// ClientMessage{Type, Data json.RawMessage} shape used throughout the
// example corpus's WebSocket servers.
type InboundPacket struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

type characterCreatePayload struct {
	Name    string `json:"name"`
	Avatar  string `json:"avatar,omitempty"`
	Wallet  string `json:"wallet,omitempty"`
	IsAgent bool   `json:"isAgent,omitempty"`
}

type characterSelectedPayload struct {
	CharacterID string `json:"characterId"`
}

type enterWorldPayload struct {
	CharacterID string `json:"characterId"`
	LoadTestBot bool   `json:"loadTestBot,omitempty"`
	BotName     string `json:"botName,omitempty"`
}

type moveRequestPayload struct {
	Target  *model.Vector3 `json:"target"`
	RunMode bool           `json:"runMode,omitempty"`
	Cancel  bool           `json:"cancel,omitempty"`
}

// legacyInputPayload folds the older input{type:"click"} packet onto
// moveRequest, per spec §6.
type legacyInputPayload struct {
	Type    string         `json:"type"`
	Target  *model.Vector3 `json:"target"`
	RunMode bool           `json:"runMode,omitempty"`
}

type characterListPacket struct {
	Characters []network.CharacterSummary `json:"characters"`
}

type characterCreatedPacket struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Wallet string `json:"wallet,omitempty"`
}

type tradeRequestPayload struct {
	RecipientID string `json:"recipientId"`
}

type tradeRespondPayload struct {
	SessionID string `json:"sessionId"`
	Accept    bool   `json:"accept"`
}

type tradeItemPayload struct {
	SessionID     string `json:"sessionId"`
	InventorySlot int    `json:"inventorySlot"`
	Quantity      int32  `json:"quantity"`
	SlotIndex     int    `json:"slotIndex"`
}

type tradeAcceptancePayload struct {
	SessionID string `json:"sessionId"`
	Accept    bool   `json:"accept"`
}

type tradeStartedPacket struct {
	SessionID   string `json:"sessionId"`
	InitiatorID string `json:"initiatorId"`
	RecipientID string `json:"recipientId"`
}

type tradeStatePacket struct {
	SessionID string                 `json:"sessionId"`
	Status    model.TradeStatus      `json:"status"`
	Initiator model.TradeParticipant `json:"initiator"`
	Recipient model.TradeParticipant `json:"recipient"`
}

type tradeCompletedPacket struct {
	SessionID         string                   `json:"sessionId"`
	InitiatorReceives []model.TradeOfferedItem `json:"initiatorReceives"`
	RecipientReceives []model.TradeOfferedItem `json:"recipientReceives"`
}

type errorPacket struct {
	SessionID string `json:"sessionId,omitempty"`
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}
