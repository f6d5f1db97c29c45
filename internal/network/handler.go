package network

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hyperscape/coreserver/internal/model"
)

// AuthResult is what Authenticate returns on success.
type AuthResult struct {
	AccountID string
	Roles     []string
	Token     string
}

// Authenticator verifies a connecting client's credentials. Satisfied
// by internal/auth.Authenticator; declared here so network does not
// import auth and create a cycle with auth's own use of session ids.
type Authenticator interface {
	Authenticate(ctx context.Context, clientIP string, thirdPartyToken, localJWT string) (*AuthResult, error)
}

// CharacterSummary is the trimmed character data sent in a snapshot.
type CharacterSummary struct {
	ID   string
	Name string
}

// CharacterLister loads the character list for an authenticated
// account. Satisfied by internal/character.Lister.
type CharacterLister interface {
	ListCharacters(ctx context.Context, accountID string) ([]CharacterSummary, error)
}

// SpawnPosition is a grounded spawn point computed per the shared
// spawn-grounding rule: a saved position is honored only within a
// sane vertical band, otherwise the configured default is snapped to
// terrain height.
type SpawnPosition struct {
	Position model.Vector3
}

// ComputeSpawn implements the spawn-grounding rule shared by
// ConnectionHandler and character enterWorld: prefer a saved position
// if its Y is within [-5, 200], otherwise fall back to defaultPos,
// and in both cases snap Y to terrainHeight+0.1 when terrain is ready
// there.
func ComputeSpawn(saved *model.Vector3, defaultPos model.Vector3, terrain model.TerrainProvider) SpawnPosition {
	pos := defaultPos
	if saved != nil && saved.Y >= -5 && saved.Y <= 200 {
		pos = *saved
	}
	if terrain != nil {
		if h, ready := terrain.Height(pos.X, pos.Z); ready {
			pos.Y = h + 0.1
		}
	}
	return SpawnPosition{Position: pos}
}

// HandlerConfig tunes ConnectionHandler behavior.
type HandlerConfig struct {
	PlayerLimit        int
	TerrainWaitTimeout time.Duration
	TerrainPollInterval time.Duration
}

// DefaultHandlerConfig mirrors the handshake bounds.
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		PlayerLimit:         2000,
		TerrainWaitTimeout:  10 * time.Second,
		TerrainPollInterval: 100 * time.Millisecond,
	}
}

// Snapshot is the initial world-state packet sent once per
// connection, right after authentication and before live replication
// begins.
type Snapshot struct {
	SocketID      string             `json:"socketId"`
	ServerTime    int64              `json:"serverTime"`
	AuthToken     string             `json:"authToken,omitempty"`
	Account       string             `json:"account,omitempty"`
	Characters    []CharacterSummary `json:"characters"`
	SpectatorMode bool               `json:"spectatorMode,omitempty"`
	FollowEntity  string             `json:"followEntity,omitempty"`
}

// ConnectionHandler runs the handshake sequence for one upgraded
// WebSocket: validate, authenticate, wait for terrain, load
// characters, build and send the snapshot, reconcile reconnects, and
// register the session.
type ConnectionHandler struct {
	cfg      HandlerConfig
	registry *Registry
	auth     Authenticator
	chars    CharacterLister
	terrain  model.TerrainProvider
}

// NewConnectionHandler wires a ConnectionHandler's dependencies.
func NewConnectionHandler(cfg HandlerConfig, registry *Registry, auth Authenticator, chars CharacterLister, terrain model.TerrainProvider) *ConnectionHandler {
	return &ConnectionHandler{cfg: cfg, registry: registry, auth: auth, chars: chars, terrain: terrain}
}

// ErrKicked carries the reason a connection was rejected or closed
// during the handshake.
type ErrKicked struct {
	Reason string
}

func (e *ErrKicked) Error() string { return fmt.Sprintf("network: kicked (%s)", e.Reason) }

// Accept runs the full handshake for one newly upgraded connection
// and returns the registered session, or an *ErrKicked if the
// handshake was rejected at any step.
func (h *ConnectionHandler) Accept(ctx context.Context, conn *Conn, clientIP, thirdPartyToken, localJWT string) (*model.Session, *Snapshot, error) {
	if h.registry.Count() >= h.cfg.PlayerLimit {
		return nil, nil, &ErrKicked{Reason: "player_limit"}
	}

	result, err := h.auth.Authenticate(ctx, clientIP, thirdPartyToken, localJWT)
	if err != nil {
		return nil, nil, &ErrKicked{Reason: "rate_limited"}
	}

	if err := h.waitForTerrainReady(ctx); err != nil {
		return nil, nil, &ErrKicked{Reason: "terrain_timeout"}
	}

	characters, err := h.chars.ListCharacters(ctx, result.AccountID)
	if err != nil {
		return nil, nil, fmt.Errorf("listing characters for %q: %w", result.AccountID, err)
	}

	if h.reconcileReconnects(result.AccountID) {
		return nil, nil, &ErrKicked{Reason: "already_connecting"}
	}

	session := model.NewSession(conn.SocketID())
	session.SetAccountID(result.AccountID)
	h.registry.Add(conn, session)

	snapshot := &Snapshot{
		SocketID:   conn.SocketID(),
		ServerTime: time.Now().UnixMilli(),
		AuthToken:  result.Token,
		Account:    result.AccountID,
		Characters: characters,
	}
	return session, snapshot, nil
}

// waitForTerrainReady polls terrain readiness at the configured
// cadence, bounded by TerrainWaitTimeout. A nil terrain provider is
// treated as always ready.
func (h *ConnectionHandler) waitForTerrainReady(ctx context.Context) error {
	if h.terrain == nil {
		return nil
	}
	deadline := time.Now().Add(h.cfg.TerrainWaitTimeout)
	ticker := time.NewTicker(h.cfg.TerrainPollInterval)
	defer ticker.Stop()

	for {
		if _, ready := h.terrain.Height(0, 0); ready {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("network: terrain not ready after %s", h.cfg.TerrainWaitTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// reconcileReconnects closes any other live socket on the same
// account that has already spawned a player, or that has exceeded the
// grace period without spawning. A socket within grace that has not
// yet spawned wins: it is left alone and reconcileReconnects reports
// true so the caller rejects the new connection instead.
func (h *ConnectionHandler) reconcileReconnects(accountID string) (rejectNew bool) {
	for _, s := range h.registry.SessionsForAccount(accountID) {
		spawned := s.CharacterID() != ""
		withinGrace := time.Since(s.CreatedAt()) <= GracePeriod
		if spawned || !withinGrace {
			if c, ok := h.registry.Conn(s.ID()); ok {
				c.Close()
			}
			s.MarkDead()
			h.registry.Remove(s.ID())
			continue
		}
		rejectNew = true
	}
	return rejectNew
}

// NewSocketID mints a socket id for a freshly accepted connection.
func NewSocketID() string {
	return uuid.NewString()
}

// ErrNotOwned is returned by EnterSpectator when the followed character
// does not belong to the authenticated account.
var ErrNotOwned = fmt.Errorf("network: character not owned by account")

// EnterSpectator runs the reduced handshake for a spectator connection:
// authenticate, verify the account owns the character it wants to
// follow, then send a snapshot with spectatorMode set, no characters
// list, and no auth token (a spectator never gets a session to
// reconnect with). Character selection is skipped entirely.
func (h *ConnectionHandler) EnterSpectator(ctx context.Context, conn *Conn, clientIP, thirdPartyToken, localJWT, followCharacterID string) (*model.Session, *Snapshot, error) {
	if h.registry.Count() >= h.cfg.PlayerLimit {
		return nil, nil, &ErrKicked{Reason: "player_limit"}
	}

	result, err := h.auth.Authenticate(ctx, clientIP, thirdPartyToken, localJWT)
	if err != nil {
		return nil, nil, &ErrKicked{Reason: "rate_limited"}
	}

	owned, err := h.chars.ListCharacters(ctx, result.AccountID)
	if err != nil {
		return nil, nil, fmt.Errorf("listing characters for %q: %w", result.AccountID, err)
	}
	if !ownsCharacter(owned, followCharacterID) {
		return nil, nil, &ErrKicked{Reason: "not_owned"}
	}

	session := model.NewSession(conn.SocketID())
	session.SetAccountID(result.AccountID)
	session.SetSpectator(true)
	h.registry.Add(conn, session)

	snapshot := &Snapshot{
		SocketID:      conn.SocketID(),
		ServerTime:    time.Now().UnixMilli(),
		Characters:    []CharacterSummary{},
		SpectatorMode: true,
		FollowEntity:  followCharacterID,
	}
	return session, snapshot, nil
}

func ownsCharacter(owned []CharacterSummary, characterID string) bool {
	for _, c := range owned {
		if c.ID == characterID {
			return true
		}
	}
	return false
}
