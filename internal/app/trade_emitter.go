package app

import (
	"github.com/hyperscape/coreserver/internal/broadcast"
	"github.com/hyperscape/coreserver/internal/model"
)

// TradeEventEmitter implements trade.EventEmitter by sending the
// completed packet straight to both participants. A trade's outcome
// is private to the two players involved, so there is no broadcast
// case to route through eventbridge here.
type TradeEventEmitter struct {
	Manager *broadcast.Manager
}

// EmitTradeCompleted implements trade.EventEmitter.
func (e TradeEventEmitter) EmitTradeCompleted(session *model.TradeSession) {
	completed := tradeCompletedPacket{
		SessionID:         session.ID,
		InitiatorReceives: session.Recipient.OfferedItems,
		RecipientReceives: session.Initiator.OfferedItems,
	}
	_ = e.Manager.SendToPlayer(session.Initiator.PlayerID, completed)
	_ = e.Manager.SendToPlayer(session.Recipient.PlayerID, completed)
}
