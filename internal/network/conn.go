// Package network implements the WebSocket transport: per-connection
// async write pumps, the live session registry, and the connection
// handshake (accept -> authenticate -> snapshot -> register).
package network

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	sendBufferSize = 256
)

// Conn wraps one upgraded WebSocket connection with the async
// write-pump pattern: callers never write to the socket directly,
// they enqueue onto sendCh and a dedicated goroutine drains it. This
// keeps a slow reader from blocking the tick loop that produced the
// frame.
type Conn struct {
	socketID string
	ws       *websocket.Conn

	sendCh  chan []byte
	closeCh chan struct{}
	closeOnce sync.Once

	state atomic.Int32 // connState
}

type connState int32

const (
	stateOpen connState = iota
	stateClosing
	stateClosed
)

// NewConn wraps an upgraded websocket connection and starts its write
// pump. Callers must call ReadLoop (blocking) to drive inbound
// messages and Close when the connection ends.
func NewConn(socketID string, ws *websocket.Conn) *Conn {
	c := &Conn{
		socketID: socketID,
		ws:       ws,
		sendCh:   make(chan []byte, sendBufferSize),
		closeCh:  make(chan struct{}),
	}
	go c.writePump()
	return c
}

// SocketID returns the connection's socket id, immutable after
// creation.
func (c *Conn) SocketID() string { return c.socketID }

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-c.sendCh:
			if !ok {
				return
			}
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.BinaryMessage, payload); err != nil {
				c.forceClose()
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.forceClose()
				return
			}
		case <-c.closeCh:
			return
		}
	}
}

// SendBinary enqueues a pre-framed binary payload for delivery. Never
// blocks the caller past a full send buffer: a full buffer closes the
// connection rather than stall the tick loop.
func (c *Conn) SendBinary(payload []byte) error {
	if connState(c.state.Load()) != stateOpen {
		return errClosed
	}
	select {
	case c.sendCh <- payload:
		return nil
	default:
		c.forceClose()
		return errClosed
	}
}

// SendJSON marshals v and enqueues it on the same write pump as
// SendBinary, so the JSON bytes go out as a binary frame.
func (c *Conn) SendJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if connState(c.state.Load()) != stateOpen {
		return errClosed
	}
	select {
	case c.sendCh <- payload:
		return nil
	default:
		c.forceClose()
		return errClosed
	}
}

// ReadLoop blocks reading inbound messages until the connection
// closes, invoking onMessage for each one in receive order.
func (c *Conn) ReadLoop(onMessage func(payload []byte, isBinary bool)) {
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, payload, err := c.ws.ReadMessage()
		if err != nil {
			c.Close()
			return
		}
		onMessage(payload, msgType == websocket.BinaryMessage)
	}
}

// Close gracefully closes the connection exactly once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.state.Store(int32(stateClosed))
		close(c.closeCh)
		close(c.sendCh)
		if c.ws != nil {
			c.ws.Close()
		}
	})
}

func (c *Conn) forceClose() {
	c.Close()
}
