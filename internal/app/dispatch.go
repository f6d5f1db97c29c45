package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperscape/coreserver/internal/character"
	"github.com/hyperscape/coreserver/internal/eventbridge"
	"github.com/hyperscape/coreserver/internal/model"
	"github.com/hyperscape/coreserver/internal/trade"
)

// dispatch decodes one inbound (name, payload) envelope and routes it
// to the subsystem that owns the operation. Unknown packet names are
// logged and dropped; a client on an outdated protocol should not be
// able to wedge a connection.
func (s *Server) dispatch(ctx context.Context, socketID string, session *model.Session, raw []byte) {
	pkt, err := decode[InboundPacket](raw)
	if err != nil {
		return
	}

	switch pkt.Name {
	case "characterListRequest":
		s.handleCharacterListRequest(ctx, socketID, session)

	case "characterCreate":
		s.handleCharacterCreate(ctx, socketID, session, pkt.Payload)

	case "characterSelected":
		s.handleCharacterSelected(ctx, socketID, session, pkt.Payload)

	case "enterWorld":
		s.handleEnterWorld(ctx, socketID, session, pkt.Payload)

	case "clientReady":
		if cid := session.CharacterID(); cid != "" {
			s.selection.ClientReady(cid)
		}

	case "moveRequest":
		s.handleMoveRequest(socketID, session, pkt.Payload)

	case "input":
		s.handleLegacyInput(socketID, session, pkt.Payload)

	case "createTradeRequest":
		s.handleCreateTradeRequest(ctx, socketID, session, pkt.Payload)

	case "respondToTradeRequest":
		s.handleRespondToTradeRequest(socketID, session, pkt.Payload)

	case "addItemToTrade":
		s.handleAddItemToTrade(socketID, session, pkt.Payload)

	case "removeItemFromTrade":
		s.handleRemoveItemFromTrade(socketID, session, pkt.Payload)

	case "setAcceptance":
		s.handleSetAcceptance(socketID, session, pkt.Payload)

	case "bankOpenRequest":
		s.bus.Publish(eventbridge.BankOpenRequest{PlayerID: session.CharacterID()})

	case "storeOpenRequest":
		s.handleStoreOpenRequest(socketID, session, pkt.Payload)

	default:
		if s.log != nil {
			s.log.Debug("app: unhandled packet", zap.String("name", pkt.Name))
		}
	}
}

func (s *Server) handleCharacterListRequest(ctx context.Context, socketID string, session *model.Session) {
	chars, err := s.lister.ListCharacters(ctx, session.AccountID())
	if err != nil {
		return
	}
	_ = s.manager.SendToSocket(socketID, characterListPacket{Characters: chars})
}

func (s *Server) handleCharacterCreate(ctx context.Context, socketID string, session *model.Session, raw []byte) {
	payload, err := decode[characterCreatePayload](raw)
	if err != nil {
		return
	}
	c, err := character.CreateCharacter(ctx, s.charStore, session.AccountID(), payload.Name, s.defaultSpawn)
	if err != nil {
		_ = s.manager.SendToSocket(socketID, errorPacket{Error: err.Error(), ErrorCode: "invalid_name"})
		return
	}
	_ = s.manager.SendToSocket(socketID, characterCreatedPacket{ID: c.ID, Name: c.Name, Avatar: payload.Avatar, Wallet: payload.Wallet})
}

// handleCharacterSelected validates ownership up front so a client
// sees a rejection before it ever sends enterWorld for a character it
// does not own.
func (s *Server) handleCharacterSelected(ctx context.Context, socketID string, session *model.Session, raw []byte) {
	payload, err := decode[characterSelectedPayload](raw)
	if err != nil {
		return
	}
	if _, err := character.SelectCharacter(ctx, s.charStore, session.AccountID(), payload.CharacterID); err != nil {
		_ = s.manager.SendToSocket(socketID, character.EnterWorldRejected{Reason: "not_owned"})
	}
}

func (s *Server) handleEnterWorld(ctx context.Context, socketID string, session *model.Session, raw []byte) {
	payload, err := decode[enterWorldPayload](raw)
	if err != nil {
		return
	}
	_ = s.selection.EnterWorld(ctx, socketID, session.AccountID(), payload.CharacterID)
}

func (s *Server) handleMoveRequest(socketID string, session *model.Session, raw []byte) {
	payload, err := decode[moveRequestPayload](raw)
	if err != nil {
		return
	}
	characterID := session.CharacterID()
	if characterID == "" {
		return
	}
	s.movement.MoveRequest(characterID, payload.Target, payload.RunMode, payload.Cancel)
	if payload.Target != nil {
		s.face.MarkPlayerMoved(characterID)
	}
}

// handleLegacyInput folds the older input{type:"click"} packet onto
// moveRequest.
func (s *Server) handleLegacyInput(socketID string, session *model.Session, raw []byte) {
	payload, err := decode[legacyInputPayload](raw)
	if err != nil || payload.Type != "click" {
		return
	}
	characterID := session.CharacterID()
	if characterID == "" {
		return
	}
	s.movement.MoveRequest(characterID, payload.Target, payload.RunMode, false)
	if payload.Target != nil {
		s.face.MarkPlayerMoved(characterID)
	}
}

func (s *Server) characterName(ctx context.Context, characterID string) string {
	c, err := s.charStore.Load(ctx, characterID)
	if err != nil {
		return characterID
	}
	return c.Name
}

func (s *Server) handleCreateTradeRequest(ctx context.Context, socketID string, session *model.Session, raw []byte) {
	payload, err := decode[tradeRequestPayload](raw)
	if err != nil {
		return
	}
	initiatorID := session.CharacterID()
	if initiatorID == "" {
		return
	}
	initiatorName := s.characterName(ctx, initiatorID)
	trSession, err := s.trades.CreateTradeRequest(initiatorID, initiatorName, socketID, payload.RecipientID)
	if err != nil {
		if rej, ok := err.(*trade.RejectedError); ok {
			_ = s.manager.SendToSocket(socketID, errorPacket{Error: err.Error(), ErrorCode: string(rej.Reason)})
		}
		return
	}
	started := tradeStartedPacket{SessionID: trSession.ID, InitiatorID: initiatorID, RecipientID: payload.RecipientID}
	_ = s.manager.SendToPlayer(initiatorID, started)
	_ = s.manager.SendToPlayer(payload.RecipientID, started)
}

func (s *Server) handleRespondToTradeRequest(socketID string, session *model.Session, raw []byte) {
	payload, err := decode[tradeRespondPayload](raw)
	if err != nil {
		return
	}
	characterID := session.CharacterID()
	if characterID == "" {
		return
	}
	if err := s.trades.RespondToTradeRequest(payload.SessionID, characterID, payload.Accept); err != nil {
		_ = s.manager.SendToPlayer(characterID, errorPacket{SessionID: payload.SessionID, Error: err.Error(), ErrorCode: "invalid_trade"})
		return
	}
	if !payload.Accept {
		return
	}
	if trSession, ok := s.trades.SessionForPlayer(characterID); ok {
		s.broadcastTradeState(trSession)
	}
}

func (s *Server) handleAddItemToTrade(socketID string, session *model.Session, raw []byte) {
	payload, err := decode[tradeItemPayload](raw)
	if err != nil {
		return
	}
	characterID := session.CharacterID()
	if characterID == "" {
		return
	}
	if err := s.trades.AddItemToTrade(payload.SessionID, characterID, payload.InventorySlot, payload.Quantity); err != nil {
		_ = s.manager.SendToPlayer(characterID, errorPacket{SessionID: payload.SessionID, Error: err.Error(), ErrorCode: "invalid_item"})
		return
	}
	if trSession, ok := s.trades.SessionForPlayer(characterID); ok {
		s.broadcastTradeState(trSession)
	}
}

func (s *Server) handleRemoveItemFromTrade(socketID string, session *model.Session, raw []byte) {
	payload, err := decode[tradeItemPayload](raw)
	if err != nil {
		return
	}
	characterID := session.CharacterID()
	if characterID == "" {
		return
	}
	if err := s.trades.RemoveItemFromTrade(payload.SessionID, characterID, payload.SlotIndex); err != nil {
		_ = s.manager.SendToPlayer(characterID, errorPacket{SessionID: payload.SessionID, Error: err.Error(), ErrorCode: "invalid_item"})
		return
	}
	if trSession, ok := s.trades.SessionForPlayer(characterID); ok {
		s.broadcastTradeState(trSession)
	}
}

func (s *Server) handleSetAcceptance(socketID string, session *model.Session, raw []byte) {
	payload, err := decode[tradeAcceptancePayload](raw)
	if err != nil {
		return
	}
	characterID := session.CharacterID()
	if characterID == "" {
		return
	}
	moveToConfirming, bothAccepted, err := s.trades.SetAcceptance(payload.SessionID, characterID, payload.Accept)
	if err != nil {
		_ = s.manager.SendToPlayer(characterID, errorPacket{SessionID: payload.SessionID, Error: err.Error(), ErrorCode: "invalid_trade"})
		return
	}
	if moveToConfirming {
		_ = s.trades.MoveToConfirmation(payload.SessionID)
	}
	trSession, ok := s.trades.SessionForPlayer(characterID)
	if !ok {
		return
	}
	s.broadcastTradeState(trSession)
	if bothAccepted {
		_ = s.trades.CompleteTrade(payload.SessionID)
	}
}

type storeOpenPayload struct {
	NPCID string `json:"npcId"`
}

func (s *Server) handleStoreOpenRequest(socketID string, session *model.Session, raw []byte) {
	payload, err := decode[storeOpenPayload](raw)
	if err != nil {
		return
	}
	s.bus.Publish(eventbridge.StoreOpenRequest{PlayerID: session.CharacterID(), NPCID: payload.NPCID})
}

func (s *Server) broadcastTradeState(trSession *model.TradeSession) {
	state := tradeStatePacket{
		SessionID: trSession.ID,
		Status:    trSession.Status,
		Initiator: trSession.Initiator,
		Recipient: trSession.Recipient,
	}
	_ = s.manager.SendToPlayer(trSession.Initiator.PlayerID, state)
	_ = s.manager.SendToPlayer(trSession.Recipient.PlayerID, state)
}
