// Package broadcast orchestrates the AOI index, the update throttler,
// and the per-subscriber batch updater into the server's two
// outbound-fanout APIs: OptimizedBroadcaster for per-tick differential
// entity updates, and BroadcastManager for one-off lifecycle packets.
package broadcast

// Sender delivers bytes or JSON-encodable values to one socket. The
// networking layer implements this; broadcast never touches a
// websocket connection directly.
type Sender interface {
	SendBinary(socketID string, payload []byte) error
	SendJSON(socketID string, v any) error
}

// Registry resolves sockets for BroadcastManager's low-level fanout.
// The networking layer's session table implements this.
type Registry interface {
	AllSocketIDs() []string
	SocketForPlayer(playerID string) (string, bool)
}
