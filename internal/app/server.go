// Package app is the composition root: it owns the HTTP/WebSocket
// listener and the inbound packet dispatcher, wiring every subsystem
// package together the way network, character, movement, and trade
// cannot without an import cycle.
package app

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hyperscape/coreserver/internal/anticheat"
	"github.com/hyperscape/coreserver/internal/broadcast"
	"github.com/hyperscape/coreserver/internal/character"
	"github.com/hyperscape/coreserver/internal/config"
	"github.com/hyperscape/coreserver/internal/eventbridge"
	"github.com/hyperscape/coreserver/internal/facedirection"
	"github.com/hyperscape/coreserver/internal/model"
	"github.com/hyperscape/coreserver/internal/movement"
	"github.com/hyperscape/coreserver/internal/network"
	"github.com/hyperscape/coreserver/internal/trade"
)

// Server holds every long-lived subsystem reference and serves
// upgraded WebSocket connections. Built once by cmd/server/main.go and
// driven by the tick scheduler running alongside it.
type Server struct {
	cfg          config.NetworkConfig
	defaultSpawn model.Vector3

	registry  *network.Registry
	handler   *network.ConnectionHandler
	selection *character.Selection
	lister    *character.Lister
	charStore character.Store
	movement  *movement.Manager
	face      *facedirection.Processor
	anticheat *anticheat.Validator
	trades    *trade.System
	manager   *broadcast.Manager
	bus       *eventbridge.Bus
	upgrader  websocket.Upgrader

	log *zap.Logger
}

// NewServer wires a Server's dependencies. cfg.AllowedOrigins empty
// means any origin is accepted, matching a local/dev deployment; a
// non-empty list is checked exactly against the request's Origin
// header.
func NewServer(
	cfg config.NetworkConfig,
	defaultSpawn model.Vector3,
	registry *network.Registry,
	handler *network.ConnectionHandler,
	selection *character.Selection,
	lister *character.Lister,
	charStore character.Store,
	mv *movement.Manager,
	face *facedirection.Processor,
	ac *anticheat.Validator,
	trades *trade.System,
	manager *broadcast.Manager,
	bus *eventbridge.Bus,
	log *zap.Logger,
) *Server {
	s := &Server{
		cfg: cfg, defaultSpawn: defaultSpawn, registry: registry, handler: handler, selection: selection,
		lister: lister, charStore: charStore, movement: mv, face: face,
		anticheat: ac, trades: trades, manager: manager, bus: bus, log: log,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
		EnableCompression: true,
		CheckOrigin:       s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == origin {
			return true
		}
	}
	return false
}

// Routes returns the HTTP mux serving the WebSocket upgrade endpoint
// and a liveness probe, ready to pass to http.Server.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// handleWebSocket upgrades the connection, runs the authentication
// handshake, sends the snapshot, and then hands the connection to its
// read loop for the life of the socket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.log != nil {
			s.log.Warn("app: upgrade failed", zap.Error(err))
		}
		return
	}

	socketID := network.NewSocketID()
	conn := network.NewConn(socketID, ws)

	clientIP := clientIPFromRequest(r)
	thirdPartyToken := r.URL.Query().Get("token")
	localJWT := r.URL.Query().Get("jwt")
	followCharacterID := r.URL.Query().Get("follow")

	ctx := r.Context()
	var session *model.Session
	var snapshot *network.Snapshot
	if followCharacterID != "" {
		session, snapshot, err = s.handler.EnterSpectator(ctx, conn, clientIP, thirdPartyToken, localJWT, followCharacterID)
	} else {
		session, snapshot, err = s.handler.Accept(ctx, conn, clientIP, thirdPartyToken, localJWT)
	}
	if err != nil {
		if s.log != nil {
			s.log.Info("app: handshake rejected", zap.String("ip", clientIP), zap.Error(err))
		}
		conn.Close()
		return
	}

	if err := conn.SendJSON(snapshot); err != nil {
		conn.Close()
		return
	}

	// ReadLoop blocks for the life of the connection and closes conn
	// itself on any read error; run it in its own goroutine and chain
	// the disconnect cleanup onto its return. r.Context() is cancelled
	// the moment this handler returns, so the read loop uses a fresh
	// background context instead, bounded only by the connection's own
	// lifetime.
	connCtx := context.Background()
	go func() {
		conn.ReadLoop(func(payload []byte, isBinary bool) {
			if isBinary {
				return
			}
			s.dispatch(connCtx, socketID, session, payload)
		})
		s.onDisconnect(socketID, session)
	}()
}

func (s *Server) onDisconnect(socketID string, session *model.Session) {
	characterID := session.CharacterID()
	session.MarkDead()
	s.selection.Disconnect(characterID, socketID)
	if characterID != "" {
		s.anticheat.RemovePlayer(characterID)
		s.trades.HandleDisconnect(characterID)
	}
	s.registry.Remove(socketID)
}

func clientIPFromRequest(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}

func decode[T any](payload []byte) (T, error) {
	var v T
	err := json.Unmarshal(payload, &v)
	return v, err
}
