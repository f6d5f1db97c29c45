// Package trade implements the OSRS two-screen P2P trade session
// state machine: pending -> active -> confirming -> completed, with
// cancellation reachable from any non-terminal state.
package trade

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hyperscape/coreserver/internal/config"
	"github.com/hyperscape/coreserver/internal/model"
)

// InventoryChecker validates that a proposed trade offer references
// an item the offering player actually owns. Existence and ownership
// checks are delegated here; the trading system never trusts or
// duplicates inventory state.
type InventoryChecker interface {
	Validate(playerID string, inventorySlot int, quantity int32) bool
}

// EventEmitter is notified when a trade completes so the inventory
// subsystem can perform the atomic item swap out of band.
type EventEmitter interface {
	EmitTradeCompleted(session *model.TradeSession)
}

// Notifier delivers a one-off packet to a player, satisfied by
// broadcast.Manager.
type Notifier interface {
	SendToPlayer(playerID string, v any) error
}

type rejection string

const (
	reasonSelfTrade      rejection = "self_trade"
	reasonAlreadyInTrade rejection = "already_in_trade"
	reasonPlayerBusy     rejection = "player_busy"
	reasonRateLimited    rejection = "rate_limited"
)

// RejectedError carries the machine-readable rejection reason for a
// createTradeRequest call that did not create a session.
type RejectedError struct {
	Reason rejection
}

func (e *RejectedError) Error() string { return fmt.Sprintf("trade: rejected (%s)", e.Reason) }

type cooldownKey struct {
	initiator string
	recipient string
}

// System runs the full trade state machine against a set of
// concurrently active sessions.
type System struct {
	cfg       config.TradeConfig
	inventory InventoryChecker
	emitter   EventEmitter
	notifier  Notifier

	mu           sync.Mutex
	sessions     map[string]*model.TradeSession
	playerTrades map[string]string // playerID -> session id
	cooldowns    map[cooldownKey]time.Time
}

// NewSystem wires a System's dependencies.
func NewSystem(cfg config.TradeConfig, inventory InventoryChecker, emitter EventEmitter, notifier Notifier) *System {
	return &System{
		cfg:          cfg,
		inventory:    inventory,
		emitter:      emitter,
		notifier:     notifier,
		sessions:     make(map[string]*model.TradeSession),
		playerTrades: make(map[string]string),
		cooldowns:    make(map[cooldownKey]time.Time),
	}
}

func (s *System) cooldownDuration() time.Duration {
	return time.Duration(s.cfg.RequestCooldownMS) * time.Millisecond
}

func (s *System) requestTimeout() time.Time {
	return time.Now().Add(time.Duration(s.cfg.RequestTimeoutMS) * time.Millisecond)
}

func (s *System) activityTimeout() time.Time {
	return time.Now().Add(time.Duration(s.cfg.ActivityTimeoutMS) * time.Millisecond)
}

// CreateTradeRequest starts a pending trade session from initiator to
// recipient, subject to self-trade, already-busy, and cooldown checks.
func (s *System) CreateTradeRequest(initiatorID, initiatorName, initiatorSocket, recipientID string) (*model.TradeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if initiatorID == recipientID {
		return nil, &RejectedError{Reason: reasonSelfTrade}
	}
	if _, busy := s.playerTrades[initiatorID]; busy {
		return nil, &RejectedError{Reason: reasonAlreadyInTrade}
	}
	if _, busy := s.playerTrades[recipientID]; busy {
		return nil, &RejectedError{Reason: reasonPlayerBusy}
	}

	key := cooldownKey{initiator: initiatorID, recipient: recipientID}
	if last, ok := s.cooldowns[key]; ok && time.Since(last) < s.cooldownDuration() {
		return nil, &RejectedError{Reason: reasonRateLimited}
	}
	s.cooldowns[key] = time.Now()

	session := &model.TradeSession{
		ID:        uuid.NewString(),
		Status:    model.TradePending,
		Initiator: model.TradeParticipant{PlayerID: initiatorID, PlayerName: initiatorName, SocketID: initiatorSocket},
		Recipient: model.TradeParticipant{PlayerID: recipientID},
		CreatedAt: time.Now(),
		ExpiresAt: s.requestTimeout(),
	}
	session.LastActivityAt = session.CreatedAt

	s.sessions[session.ID] = session
	s.playerTrades[initiatorID] = session.ID
	s.playerTrades[recipientID] = session.ID
	return session, nil
}

// ErrNotPending, ErrRecipientMismatch, and ErrExpired guard
// respondToTradeRequest's preconditions.
var (
	ErrNotPending        = fmt.Errorf("trade: session is not pending")
	ErrRecipientMismatch = fmt.Errorf("trade: recipient mismatch")
	ErrExpired           = fmt.Errorf("trade: session expired")
	ErrNotFound          = fmt.Errorf("trade: session not found")
	ErrNotActive         = fmt.Errorf("trade: session is not active")
	ErrSlotFull          = fmt.Errorf("trade: offer is full")
	ErrInvalidSlot       = fmt.Errorf("trade: invalid slot")
	ErrInvalidItem       = fmt.Errorf("trade: item failed inventory validation")
	ErrNotConfirming     = fmt.Errorf("trade: session is not confirming")
	ErrNotBothAccepted   = fmt.Errorf("trade: both participants have not accepted")
)

// RespondToTradeRequest accepts or declines a pending request.
func (s *System) RespondToTradeRequest(sessionID, recipientID string, accept bool) error {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if session.Status != model.TradePending {
		s.mu.Unlock()
		return ErrNotPending
	}
	if session.Recipient.PlayerID != recipientID {
		s.mu.Unlock()
		return ErrRecipientMismatch
	}
	if time.Now().After(session.ExpiresAt) {
		s.mu.Unlock()
		s.CancelSession(sessionID, "timeout")
		return ErrExpired
	}

	if !accept {
		s.mu.Unlock()
		return s.CancelSession(sessionID, "declined")
	}

	session.Status = model.TradeActive
	session.ExpiresAt = s.activityTimeout()
	session.LastActivityAt = time.Now()
	s.mu.Unlock()
	return nil
}

// AddItemToTrade offers inventorySlot/quantity into the trade,
// resetting both participants' accepted flag.
func (s *System) AddItemToTrade(sessionID, playerID string, inventorySlot int, quantity int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, participant, err := s.activeParticipant(sessionID, playerID)
	if err != nil {
		return err
	}
	if quantity <= 0 {
		return ErrInvalidSlot
	}
	if inventorySlot < 0 || inventorySlot >= model.MaxTradeSlots {
		return ErrInvalidSlot
	}
	if s.inventory != nil && !s.inventory.Validate(playerID, inventorySlot, quantity) {
		return ErrInvalidItem
	}

	slot := participant.NextSlotIndex()
	if slot < 0 {
		return ErrSlotFull
	}
	participant.OfferedItems = append(participant.OfferedItems, model.TradeOfferedItem{
		SlotIndex: slot, InventorySlot: inventorySlot, Quantity: quantity,
	})
	s.resetAcceptanceAndRefresh(session)
	return nil
}

// RemoveItemFromTrade removes the offered item at slotIndex.
func (s *System) RemoveItemFromTrade(sessionID, playerID string, slotIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, participant, err := s.activeParticipant(sessionID, playerID)
	if err != nil {
		return err
	}
	if slotIndex < 0 || slotIndex >= model.MaxTradeSlots {
		return ErrInvalidSlot
	}

	out := participant.OfferedItems[:0]
	for _, item := range participant.OfferedItems {
		if item.SlotIndex != slotIndex {
			out = append(out, item)
		}
	}
	participant.OfferedItems = out
	s.resetAcceptanceAndRefresh(session)
	return nil
}

func (s *System) activeParticipant(sessionID, playerID string) (*model.TradeSession, *model.TradeParticipant, error) {
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil, ErrNotFound
	}
	if session.Status != model.TradeActive {
		return nil, nil, ErrNotActive
	}
	p := session.Participant(playerID)
	if p == nil {
		return nil, nil, ErrNotFound
	}
	return session, p, nil
}

func (s *System) resetAcceptanceAndRefresh(session *model.TradeSession) {
	session.Initiator.Accepted = false
	session.Recipient.Accepted = false
	session.LastActivityAt = time.Now()
	session.ExpiresAt = s.activityTimeout()
}

// SetAcceptance records playerID's acceptance in the active or
// confirming phase. The caller must act on the returned flags:
// moveToConfirming calls MoveToConfirmation, bothAccepted calls
// CompleteTrade.
func (s *System) SetAcceptance(sessionID, playerID string, accept bool) (moveToConfirming, bothAccepted bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return false, false, ErrNotFound
	}
	if session.Status != model.TradeActive && session.Status != model.TradeConfirming {
		return false, false, ErrNotActive
	}
	p := session.Participant(playerID)
	if p == nil {
		return false, false, ErrNotFound
	}
	p.Accepted = accept
	session.LastActivityAt = time.Now()
	session.ExpiresAt = s.activityTimeout()

	if !session.Initiator.Accepted || !session.Recipient.Accepted {
		return false, false, nil
	}
	if session.Status == model.TradeActive {
		return true, false, nil
	}
	return false, true, nil
}

// MoveToConfirmation transitions an active, both-accepted session
// into confirming and resets both accepted flags.
func (s *System) MoveToConfirmation(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if session.Status != model.TradeActive {
		return ErrNotActive
	}
	session.Status = model.TradeConfirming
	session.Initiator.Accepted = false
	session.Recipient.Accepted = false
	session.ExpiresAt = s.activityTimeout()
	return nil
}

// CompleteTrade finalizes a confirming, both-accepted session, emits
// TRADE_COMPLETED for the out-of-band inventory swap, and cleans up.
func (s *System) CompleteTrade(sessionID string) error {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if session.Status != model.TradeConfirming {
		s.mu.Unlock()
		return ErrNotConfirming
	}
	if !session.Initiator.Accepted || !session.Recipient.Accepted {
		s.mu.Unlock()
		return ErrNotBothAccepted
	}
	session.Status = model.TradeCompleted
	s.removeLocked(session)
	s.mu.Unlock()

	if s.emitter != nil {
		s.emitter.EmitTradeCompleted(session)
	}
	return nil
}

// CancelSession cancels a non-terminal session with the given reason
// and notifies both participants.
func (s *System) CancelSession(sessionID, reason string) error {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if session.IsTerminal() {
		s.mu.Unlock()
		return nil
	}
	session.Status = model.TradeCancelled
	session.CancelReason = reason
	s.removeLocked(session)
	s.mu.Unlock()

	if s.notifier != nil {
		packet := map[string]string{"sessionId": session.ID, "reason": reason}
		_ = s.notifier.SendToPlayer(session.Initiator.PlayerID, packet)
		_ = s.notifier.SendToPlayer(session.Recipient.PlayerID, packet)
	}
	return nil
}

func (s *System) removeLocked(session *model.TradeSession) {
	delete(s.sessions, session.ID)
	delete(s.playerTrades, session.Initiator.PlayerID)
	delete(s.playerTrades, session.Recipient.PlayerID)
}

// HandleDisconnect cancels any session owned by playerID with reason
// "disconnected".
func (s *System) HandleDisconnect(playerID string) {
	s.mu.Lock()
	sessionID, ok := s.playerTrades[playerID]
	s.mu.Unlock()
	if ok {
		s.CancelSession(sessionID, "disconnected")
	}
}

// HandlePlayerDied cancels any session owned by playerID with reason
// "player_died".
func (s *System) HandlePlayerDied(playerID string) {
	s.mu.Lock()
	sessionID, ok := s.playerTrades[playerID]
	s.mu.Unlock()
	if ok {
		s.CancelSession(sessionID, "player_died")
	}
}

// SweepExpired is the janitor pass: it cancels every expired session,
// using reason "timeout" for an expired pending request and
// "cancelled" for an expired active or confirming session. It sweeps
// on every call; the tick scheduler calls it once per tick, and
// TradeConfig.JanitorIntervalMS is not consulted.
func (s *System) SweepExpired(now time.Time) {
	s.mu.Lock()
	var expired []string
	for id, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			expired = append(expired, id)
		}
	}
	s.mu.Unlock()

	for _, id := range expired {
		s.mu.Lock()
		session, ok := s.sessions[id]
		s.mu.Unlock()
		if !ok {
			continue
		}
		reason := "cancelled"
		if session.Status == model.TradePending {
			reason = "timeout"
		}
		s.CancelSession(id, reason)
	}
}

// SessionForPlayer returns the session playerID currently participates
// in, if any.
func (s *System) SessionForPlayer(playerID string) (*model.TradeSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.playerTrades[playerID]
	if !ok {
		return nil, false
	}
	return s.sessions[id], true
}
