package network

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func newConnPair(t *testing.T) (server *Conn, client *websocket.Conn) {
	t.Helper()

	srvReady := make(chan *Conn, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		srvReady <- NewConn("sock1", ws)
	}))
	t.Cleanup(ts.Close)

	url := "ws" + ts.URL[len("http"):]
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	select {
	case server = <-srvReady:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server-side upgrade")
	}
	return server, client
}

func TestConn_SendBinary_DeliversToClient(t *testing.T) {
	server, client := newConnPair(t)
	defer server.Close()

	if err := server.SendBinary([]byte{1, 2, 3}); err != nil {
		t.Fatalf("SendBinary() error = %v", err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, payload, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if msgType != websocket.BinaryMessage {
		t.Errorf("msgType = %d, want BinaryMessage", msgType)
	}
	if len(payload) != 3 || payload[0] != 1 {
		t.Errorf("payload = %v, want [1 2 3]", payload)
	}
}

func TestConn_SendBinary_AfterCloseReturnsError(t *testing.T) {
	server, _ := newConnPair(t)
	server.Close()

	if err := server.SendBinary([]byte{1}); err == nil {
		t.Error("SendBinary() after Close() should return an error")
	}
}

func TestConn_Close_IsIdempotent(t *testing.T) {
	server, _ := newConnPair(t)

	server.Close()
	server.Close() // must not panic on double close
}

func TestConn_SocketID(t *testing.T) {
	server, _ := newConnPair(t)
	defer server.Close()

	if server.SocketID() != "sock1" {
		t.Errorf("SocketID() = %q, want sock1", server.SocketID())
	}
}
