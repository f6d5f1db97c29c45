package model

import "time"

// TradeStatus is a state in the OSRS two-screen trade protocol.
type TradeStatus string

const (
	TradePending    TradeStatus = "pending"
	TradeActive     TradeStatus = "active"
	TradeConfirming TradeStatus = "confirming"
	TradeCompleted  TradeStatus = "completed"
	TradeCancelled  TradeStatus = "cancelled"
)

// MaxTradeSlots bounds the number of distinct items one side of a trade
// may offer.
const MaxTradeSlots = 28

// TradeOfferedItem references one inventory slot offered in a trade.
// Existence and ownership of the referenced slot are validated by the
// inventory layer, not by the trade session itself.
type TradeOfferedItem struct {
	SlotIndex  int
	InventorySlot int
	Quantity   int32
}

// TradeParticipant is one side of a trade session.
type TradeParticipant struct {
	PlayerID      string
	PlayerName    string
	SocketID      string
	OfferedItems  []TradeOfferedItem
	Accepted      bool
}

// TradeSession is one player-to-player trade. Status transitions only
// along pending -> active -> confirming -> completed, with cancelled
// reachable from any non-terminal state. A player appears in at most
// one active session.
type TradeSession struct {
	ID     string
	Status TradeStatus

	Initiator TradeParticipant
	Recipient TradeParticipant

	CreatedAt      time.Time
	ExpiresAt      time.Time
	LastActivityAt time.Time

	CancelReason string
}

// IsTerminal reports whether the session has reached a final state.
func (s *TradeSession) IsTerminal() bool {
	return s.Status == TradeCompleted || s.Status == TradeCancelled
}

// Participant returns a pointer to the participant struct for playerID,
// or nil if playerID is not part of this session.
func (s *TradeSession) Participant(playerID string) *TradeParticipant {
	if s.Initiator.PlayerID == playerID {
		return &s.Initiator
	}
	if s.Recipient.PlayerID == playerID {
		return &s.Recipient
	}
	return nil
}

// Counterparty returns the other participant relative to playerID, or
// nil if playerID is not part of this session.
func (s *TradeSession) Counterparty(playerID string) *TradeParticipant {
	if s.Initiator.PlayerID == playerID {
		return &s.Recipient
	}
	if s.Recipient.PlayerID == playerID {
		return &s.Initiator
	}
	return nil
}

// NextSlotIndex returns the smallest unused slot index below
// MaxTradeSlots for the participant, or -1 if the offer is full.
func (p *TradeParticipant) NextSlotIndex() int {
	used := make(map[int]bool, len(p.OfferedItems))
	for _, item := range p.OfferedItems {
		used[item.SlotIndex] = true
	}
	for i := 0; i < MaxTradeSlots; i++ {
		if !used[i] {
			return i
		}
	}
	return -1
}
