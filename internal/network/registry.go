package network

import (
	"sync"
	"time"

	"github.com/hyperscape/coreserver/internal/model"
)

// Registry is the live connection table: append-on-connect,
// remove-on-disconnect, owned exclusively by the networking layer.
// Every broadcast path reads it; only this type's methods mutate it.
type Registry struct {
	mu         sync.RWMutex
	conns      map[string]*Conn            // socketID -> conn
	sessions   map[string]*model.Session   // socketID -> session
	playerSock map[string]string           // playerID (characterID) -> socketID
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:      make(map[string]*Conn),
		sessions:   make(map[string]*model.Session),
		playerSock: make(map[string]string),
	}
}

// Add registers a newly accepted connection and its session.
func (r *Registry) Add(conn *Conn, session *model.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn.SocketID()] = conn
	r.sessions[conn.SocketID()] = session
}

// BindPlayer associates a spawned player/character id with its owning
// socket, set synchronously on enterWorld so duplicate-character
// detection can race on this map instead of on async state.
func (r *Registry) BindPlayer(playerID, socketID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playerSock[playerID] = socketID
}

// ClaimPlayer atomically checks whether playerID is already claimed by
// a different alive session and, if not, binds it to socketID in the
// same locked section. This replaces a separate SocketForPlayer-then-
// BindPlayer sequence, which would let two concurrent enterWorld calls
// for the same character both pass the check before either binds.
// Returns false if another alive socket already owns playerID.
func (r *Registry) ClaimPlayer(playerID, socketID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.playerSock[playerID]; ok && existing != socketID {
		if s, ok := r.sessions[existing]; ok && s.Alive() {
			return false
		}
	}
	r.playerSock[playerID] = socketID
	return true
}

// UnbindPlayer removes a player-id-to-socket binding.
func (r *Registry) UnbindPlayer(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.playerSock, playerID)
}

// Remove unregisters a socket on disconnect.
func (r *Registry) Remove(socketID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, socketID)
	delete(r.sessions, socketID)
	for playerID, sock := range r.playerSock {
		if sock == socketID {
			delete(r.playerSock, playerID)
		}
	}
}

// Session returns the session for a socket, if still registered.
func (r *Registry) Session(socketID string) (*model.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[socketID]
	return s, ok
}

// Conn returns the connection for a socket, if still registered.
func (r *Registry) Conn(socketID string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[socketID]
	return c, ok
}

// SessionsForAccount returns every live session belonging to
// accountID, used for reconnection reconciliation.
func (r *Registry) SessionsForAccount(accountID string) []*model.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Session
	for _, s := range r.sessions {
		if s.AccountID() == accountID && s.Alive() {
			out = append(out, s)
		}
	}
	return out
}

// AllSocketIDs implements broadcast.Registry.
func (r *Registry) AllSocketIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	return ids
}

// SocketForPlayer implements broadcast.Registry.
func (r *Registry) SocketForPlayer(playerID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.playerSock[playerID]
	return s, ok
}

// Count returns the number of live connections, for player-limit
// enforcement.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// SendBinary implements broadcast.Sender.
func (r *Registry) SendBinary(socketID string, payload []byte) error {
	c, ok := r.Conn(socketID)
	if !ok {
		return errUnknownSocket
	}
	return c.SendBinary(payload)
}

// SendJSON implements broadcast.Sender.
func (r *Registry) SendJSON(socketID string, v any) error {
	c, ok := r.Conn(socketID)
	if !ok {
		return errUnknownSocket
	}
	return c.SendJSON(v)
}

// GracePeriod is how long a freshly accepted, not-yet-spawned socket
// on the same account survives a newer connection attempt.
const GracePeriod = 10 * time.Second
