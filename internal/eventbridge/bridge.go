package eventbridge

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperscape/coreserver/internal/players"
)

// Notifier is the outbound surface the bridge needs: broadcast to
// everyone, to everyone but one socket, or to one player by id.
// Satisfied by broadcast.Manager. The bridge never reaches for
// OptimizedBroadcaster - every packet here is a one-off lifecycle or
// UI event, not a differential entity update.
type Notifier interface {
	BroadcastToAll(v any)
	BroadcastToAllExcept(exceptSocketID string, v any)
	SendToPlayer(playerID string, v any) error
}

// Bridge is the sole translator from domain events to wire packets.
// It is driven once per tick by Drain, which is non-blocking: an
// empty bus returns immediately, matching the rule that no tick step
// may suspend mid-processing.
type Bridge struct {
	bus      *Bus
	notifier Notifier
	players  *players.Manager
	banks    BankLoader
	stores   StoreCatalog
	areas    AreaResolver
	log      *zap.Logger
}

// New wires a Bridge's dependencies. banks, stores, and areas may be
// nil if bank/store events are never published.
func New(bus *Bus, notifier Notifier, pm *players.Manager, banks BankLoader, stores StoreCatalog, areas AreaResolver, log *zap.Logger) *Bridge {
	return &Bridge{bus: bus, notifier: notifier, players: pm, banks: banks, stores: stores, areas: areas, log: log}
}

// Drain processes every event currently queued on the bus and returns
// once it is empty. Called once per tick, after system updates and
// before OptimizedBroadcaster.Flush.
func (br *Bridge) Drain(ctx context.Context) {
	for {
		select {
		case ev := <-br.bus.events:
			br.handle(ctx, ev)
		default:
			return
		}
	}
}

func (br *Bridge) handle(ctx context.Context, ev Event) {
	switch e := ev.(type) {
	case ResourceDepleted:
		br.notifier.BroadcastToAll(resourceDepletedPacket{ResourceID: e.ResourceID})

	case ResourceRespawned:
		br.notifier.BroadcastToAll(resourceRespawnedPacket{ResourceID: e.ResourceID})

	case ResourceSpawned:
		br.notifier.BroadcastToAll(resourceSpawnedPacket{
			ResourceID: e.ResourceID,
			Kind:       e.Kind_,
			Position:   toVec3(e.Position),
		})

	case ResourceSpawnPointsRegistered:
		points := make([]vec3, len(e.Points))
		for i, p := range e.Points {
			points[i] = toVec3(p)
		}
		br.notifier.BroadcastToAll(resourceSpawnPointsRegisteredPacket{ResourceKind: e.ResourceKind, Points: points})

	case InventoryUpdated:
		br.notifier.BroadcastToAll(inventoryUpdatedPacket{
			PlayerID: e.PlayerID, Items: e.Items, Coins: e.Coins, MaxSlots: e.MaxSlots,
		})

	case InventoryInitialized:
		br.sendToPlayer(e.PlayerID, inventoryUpdatedPacket{
			PlayerID: e.PlayerID, Items: e.Items, Coins: e.Coins, MaxSlots: e.MaxSlots,
		})

	case InventoryCoinsUpdated:
		br.sendToPlayer(e.PlayerID, coinsUpdatedPacket{PlayerID: e.PlayerID, Coins: e.Coins})

	case InventoryRequest:
		if br.isLoading(e.PlayerID) {
			return
		}
		br.sendToPlayer(e.PlayerID, inventoryUpdatedPacket{
			PlayerID: e.PlayerID, Items: e.Items, Coins: e.Coins, MaxSlots: e.MaxSlots,
		})

	case SkillsUpdated:
		wire := make(map[string]skillWire, len(e.Skills))
		for name, sk := range e.Skills {
			wire[name] = skillWire{Level: sk.Level, XP: sk.XP}
		}
		packet := skillsUpdatedPacket{PlayerID: e.PlayerID, Skills: wire}
		if e.Broadcast {
			br.notifier.BroadcastToAll(packet)
		} else {
			br.sendToPlayer(e.PlayerID, packet)
		}

	case UIMessage:
		br.sendToPlayer(e.PlayerID, uiMessagePacket{PlayerID: e.PlayerID, Text: e.Text, Severity: e.Severity})

	case UIDeathScreen:
		br.sendToPlayer(e.PlayerID, uiDeathScreenPacket{PlayerID: e.PlayerID, Show: e.Show})

	case UIAttackStyle:
		br.sendToPlayer(e.PlayerID, uiAttackStylePacket{PlayerID: e.PlayerID, Style: e.Style})

	case CombatDamageDealt:
		br.notifier.BroadcastToAll(combatDamageDealtPacket{AttackerID: e.AttackerID, TargetID: e.TargetID, Amount: e.Amount})

	case PlayerUpdated:
		packet := playerUpdatedPacket{PlayerID: e.PlayerID, IsLoading: e.IsLoading}
		if e.Health != nil {
			packet.Health = &healthWire{Current: e.Health.Current, Max: e.Health.Max}
		}
		br.sendToPlayer(e.PlayerID, packet)

	case DialogueStart:
		br.sendToPlayer(e.PlayerID, dialogueStartPacket{PlayerID: e.PlayerID, NodeID: e.NodeID, Text: e.Text})

	case DialogueNodeChange:
		br.sendToPlayer(e.PlayerID, dialogueNodeChangePacket{PlayerID: e.PlayerID, NodeID: e.NodeID, Text: e.Text})

	case DialogueEnd:
		br.sendToPlayer(e.PlayerID, dialogueEndPacket{PlayerID: e.PlayerID})

	case BankOpenRequest:
		br.handleBankOpen(ctx, e)

	case StoreOpenRequest:
		br.handleStoreOpen(ctx, e)

	default:
		if br.log != nil {
			br.log.Warn("eventbridge: unhandled event kind", zap.String("kind", ev.Kind()))
		}
	}
}

func (br *Bridge) handleBankOpen(ctx context.Context, e BankOpenRequest) {
	if br.banks == nil {
		br.sendToPlayer(e.PlayerID, bankStatePacket{PlayerID: e.PlayerID})
		return
	}
	doc, err := br.banks.Load(ctx, e.PlayerID)
	if err != nil {
		if br.log != nil {
			br.log.Warn("eventbridge: loading bank", zap.String("playerId", e.PlayerID), zap.Error(err))
		}
		doc = BankDocument{PlayerID: e.PlayerID}
	}
	br.sendToPlayer(e.PlayerID, bankStatePacket{PlayerID: e.PlayerID, Items: doc.Items})
}

func (br *Bridge) handleStoreOpen(ctx context.Context, e StoreOpenRequest) {
	if br.areas == nil || br.stores == nil {
		br.sendToPlayer(e.PlayerID, storeStatePacket{PlayerID: e.PlayerID})
		return
	}
	storeID, ok := br.areas.StoreForNPC(e.NPCID)
	if !ok {
		br.sendToPlayer(e.PlayerID, storeStatePacket{PlayerID: e.PlayerID})
		return
	}
	doc, err := br.stores.Load(ctx, storeID)
	if err != nil {
		if br.log != nil {
			br.log.Warn("eventbridge: loading store", zap.String("storeId", storeID), zap.Error(err))
		}
		doc = StoreDocument{StoreID: storeID}
	}
	br.sendToPlayer(e.PlayerID, storeStatePacket{PlayerID: e.PlayerID, StoreID: storeID, Items: doc.Items})
}

func (br *Bridge) isLoading(playerID string) bool {
	p, ok := br.players.Get(playerID)
	return ok && p.IsLoading()
}

func (br *Bridge) sendToPlayer(playerID string, v any) {
	if err := br.notifier.SendToPlayer(playerID, v); err != nil && br.log != nil {
		br.log.Debug("eventbridge: player not connected", zap.String("playerId", playerID), zap.Error(err))
	}
}
