package character

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hyperscape/coreserver/internal/broadcast"
	"github.com/hyperscape/coreserver/internal/model"
	"github.com/hyperscape/coreserver/internal/network"
	"github.com/hyperscape/coreserver/internal/players"
	"github.com/hyperscape/coreserver/internal/world"
)

// EntityAdded and friends are the wire packets enterWorld sends, kept
// minimal and field-tagged for direct JSON marshaling.
type EntityAdded struct {
	ID       string        `json:"id"`
	Kind     string        `json:"kind"`
	Position model.Vector3 `json:"position"`
	Name     string        `json:"name,omitempty"`
}

type EntityRemoved struct {
	ID string `json:"id"`
}

type EnterWorldRejected struct {
	Reason string `json:"reason"`
}

type EnterWorldApproved struct {
	CharacterID string `json:"characterId"`
}

type SkillsUpdated struct {
	CharacterID string            `json:"characterId"`
	Skills      map[string]Skill  `json:"skills"`
}

type Skill struct {
	Level int32 `json:"level"`
	XP    int64 `json:"xp"`
}

type InventoryUpdated struct {
	CharacterID string            `json:"characterId"`
	Equipment   map[string]string `json:"equipment"`
}

type EquipmentUpdated struct {
	CharacterID string            `json:"characterId"`
	Equipment   map[string]string `json:"equipment"`
}

// FriendsNotifier syncs a freshly spawned player's friends list and
// tells online friends about the status change. Left as an injected
// seam: no friends store is in scope here, a concrete implementation
// can be wired in once one exists.
type FriendsNotifier interface {
	SyncOnEnter(ctx context.Context, characterID string)
}

type noopFriendsNotifier struct{}

func (noopFriendsNotifier) SyncOnEnter(context.Context, string) {}

// NoopFriendsNotifier is the default FriendsNotifier used when no
// friends system is wired in.
var NoopFriendsNotifier FriendsNotifier = noopFriendsNotifier{}

// Selection implements the character listing/creation/enterWorld
// critical path against a Store, the live session registry, the AOI
// grid, and the spawned-player table.
type Selection struct {
	store        Store
	registry     *network.Registry
	manager      *broadcast.Manager
	aoi          *world.AOIManager
	players      *players.Manager
	entities     *world.EntityRegistry
	terrain      model.TerrainProvider
	defaultSpawn model.Vector3
	friends      FriendsNotifier

	mu        sync.Mutex
	watchdogs map[string]*time.Timer
}

// NewSelection wires a Selection's dependencies. entities may be nil;
// non-player entities then report as kind "unknown" in the enterWorld
// fanout rather than their real kind.
func NewSelection(store Store, registry *network.Registry, manager *broadcast.Manager, aoi *world.AOIManager, pm *players.Manager, entities *world.EntityRegistry, terrain model.TerrainProvider, defaultSpawn model.Vector3, friends FriendsNotifier) *Selection {
	if friends == nil {
		friends = NoopFriendsNotifier
	}
	return &Selection{
		store: store, registry: registry, manager: manager, aoi: aoi,
		players: pm, entities: entities, terrain: terrain, defaultSpawn: defaultSpawn, friends: friends,
		watchdogs: make(map[string]*time.Timer),
	}
}

// ErrAlreadyLoggedIn is returned when another alive socket already
// claims the requested character.
var ErrAlreadyLoggedIn = fmt.Errorf("character: already logged in")

// EnterWorld runs the critical path described in enterWorld: it sets
// the socket's claimed character synchronously first so concurrent
// calls race on that assignment rather than on any async step,
// reclaims a stale entity left behind by a dead session, loads
// character state, spawns the player, and emits the ordered packet
// sequence a client expects on entering the world.
func (s *Selection) EnterWorld(ctx context.Context, socketID, accountID, characterID string) error {
	if !s.registry.ClaimPlayer(characterID, socketID) {
		_ = s.manager.SendToSocket(socketID, EnterWorldRejected{Reason: "already_logged_in"})
		return ErrAlreadyLoggedIn
	}
	if session, ok := s.registry.Session(socketID); ok {
		session.SetCharacterID(characterID)
	}

	if s.aoi.HasEntity(characterID) {
		if _, ok := s.players.Get(characterID); !ok {
			s.aoi.RemoveEntity(characterID)
			s.manager.BroadcastToAll(EntityRemoved{ID: characterID})
		}
	}

	c, err := SelectCharacter(ctx, s.store, accountID, characterID)
	if err != nil {
		s.registry.UnbindPlayer(characterID)
		return fmt.Errorf("character: loading %q: %w", characterID, err)
	}

	spawn := network.ComputeSpawn(&c.Position, s.defaultSpawn, s.terrain)

	player := model.NewPlayer(socketID, accountID, characterID)
	player.SetAutoRetaliate(c.AutoRetaliate)
	for name, sk := range c.Skills {
		player.SetSkill(name, model.Skill{Level: int32(sk), XP: 0})
	}
	s.players.Add(player)
	s.aoi.UpdateEntityPosition(characterID, spawn.Position.X, spawn.Position.Z)

	watchdog := time.AfterFunc(loadingWatchdog, func() {
		if p, ok := s.players.Get(characterID); ok && p.IsLoading() {
			p.SetLoading(false)
			s.manager.BroadcastToAll(map[string]any{"type": "playerUpdated", "characterId": characterID, "isLoading": false})
		}
		s.mu.Lock()
		delete(s.watchdogs, characterID)
		s.mu.Unlock()
	})
	s.mu.Lock()
	s.watchdogs[characterID] = watchdog
	s.mu.Unlock()

	self := EntityAdded{ID: characterID, Kind: "player", Position: spawn.Position, Name: c.Name}
	_ = s.manager.SendToSocket(socketID, self)
	for _, id := range s.aoi.GetVisibleEntities(characterID) {
		if id == characterID {
			continue
		}
		_ = s.manager.SendToSocket(socketID, s.describeEntity(id))
	}

	skills := make(map[string]Skill, len(c.Skills))
	for name, lvl := range c.Skills {
		skills[name] = Skill{Level: int32(lvl)}
	}
	_ = s.manager.SendToSocket(socketID, SkillsUpdated{CharacterID: characterID, Skills: skills})
	_ = s.manager.SendToSocket(socketID, InventoryUpdated{CharacterID: characterID, Equipment: c.Equipment})
	_ = s.manager.SendToSocket(socketID, EquipmentUpdated{CharacterID: characterID, Equipment: c.Equipment})
	_ = s.manager.SendToSocket(socketID, EnterWorldApproved{CharacterID: characterID})

	s.manager.BroadcastToAllExcept(socketID, EntityAdded{ID: characterID, Kind: "player", Position: spawn.Position, Name: c.Name})

	s.friends.SyncOnEnter(ctx, characterID)
	return nil
}

// ClientReady clears a spawned character's isLoading flag the moment
// the client acknowledges spawn, stopping the 30s watchdog early so
// it never fires a redundant broadcast.
func (s *Selection) ClientReady(characterID string) {
	s.stopWatchdog(characterID)
	if p, ok := s.players.Get(characterID); ok {
		p.SetLoading(false)
	}
}

// describeEntity resolves id's real kind and position from the world
// entity registry for another player's entityAdded packet, falling
// back to a bare placeholder if id is a spawned player (tracked by
// players.Manager, not the entity registry) or the registry is absent.
func (s *Selection) describeEntity(id string) EntityAdded {
	if _, ok := s.players.Get(id); ok {
		return EntityAdded{ID: id, Kind: "player"}
	}
	if s.entities != nil {
		if e, ok := s.entities.Get(id); ok {
			return EntityAdded{ID: id, Kind: string(e.Kind()), Position: e.Position()}
		}
	}
	return EntityAdded{ID: id, Kind: "unknown"}
}

func (s *Selection) stopWatchdog(characterID string) {
	s.mu.Lock()
	w, ok := s.watchdogs[characterID]
	delete(s.watchdogs, characterID)
	s.mu.Unlock()
	if ok {
		w.Stop()
	}
}

// Disconnect tears down a spawned character's world presence: it
// stops any pending watchdog, removes the player from the spawned
// table and AOI grid, unbinds the socket, and broadcasts its removal
// to everyone else. Safe to call for a socket that never spawned a
// character (characterID == "").
func (s *Selection) Disconnect(characterID, socketID string) {
	if characterID == "" {
		return
	}
	s.stopWatchdog(characterID)
	s.registry.UnbindPlayer(characterID)
	s.players.Remove(characterID)
	s.aoi.RemoveEntity(characterID)
	s.manager.BroadcastToAllExcept(socketID, EntityRemoved{ID: characterID})
}
