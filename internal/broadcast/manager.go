package broadcast

import "fmt"

// Manager is the low-level packet fanout: all sockets, one socket, or
// one player's socket. Used for lifecycle events and anything that
// isn't a differential entity update.
type Manager struct {
	sender   Sender
	registry Registry
}

// NewManager wires a Sender and Registry together.
func NewManager(sender Sender, registry Registry) *Manager {
	return &Manager{sender: sender, registry: registry}
}

// BroadcastToAll sends v to every connected socket.
func (m *Manager) BroadcastToAll(v any) {
	for _, socketID := range m.registry.AllSocketIDs() {
		_ = m.sender.SendJSON(socketID, v)
	}
}

// BroadcastToAllExcept sends v to every connected socket other than
// exceptSocketID.
func (m *Manager) BroadcastToAllExcept(exceptSocketID string, v any) {
	for _, socketID := range m.registry.AllSocketIDs() {
		if socketID == exceptSocketID {
			continue
		}
		_ = m.sender.SendJSON(socketID, v)
	}
}

// SendToSocket sends v to exactly one socket.
func (m *Manager) SendToSocket(socketID string, v any) error {
	return m.sender.SendJSON(socketID, v)
}

// SendToPlayer resolves playerID to its owning socket and sends v.
func (m *Manager) SendToPlayer(playerID string, v any) error {
	socketID, ok := m.registry.SocketForPlayer(playerID)
	if !ok {
		return fmt.Errorf("broadcast: no socket for player %q", playerID)
	}
	return m.sender.SendJSON(socketID, v)
}
