package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// newSocketPair dials a test WebSocket server and returns both ends of
// the connection. The server side is what an ingress would hand to
// Hub.Attach.
func newSocketPair(t *testing.T) (serverConn, clientConn *websocket.Conn) {
	t.Helper()

	connCh := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		connCh <- conn
	}))
	t.Cleanup(server.Close)

	clientConn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { clientConn.Close() })

	select {
	case serverConn = <-connCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server connection")
	}
	return serverConn, clientConn
}

func TestHub_Send(t *testing.T) {
	serverConn, clientConn := newSocketPair(t)

	hub := NewHub(DefaultHubConfig(), nil)
	hub.Attach("conn-1", serverConn)
	defer hub.Close()

	if err := hub.Send(context.Background(), "conn-1", []byte("hello")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	messageType, msg, err := clientConn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if messageType != websocket.TextMessage {
		t.Errorf("messageType = %d, want %d", messageType, websocket.TextMessage)
	}
	if string(msg) != "hello" {
		t.Errorf("msg = %q, want %q", msg, "hello")
	}
}

func TestHub_SendUnknownConnection(t *testing.T) {
	hub := NewHub(DefaultHubConfig(), nil)

	err := hub.Send(context.Background(), "nope", []byte("hello"))
	if !errors.Is(err, ErrGone) {
		t.Errorf("expected error matching ErrGone, got %v", err)
	}
}

func TestHub_Terminate(t *testing.T) {
	serverConn, clientConn := newSocketPair(t)

	hub := NewHub(DefaultHubConfig(), nil)
	hub.Attach("conn-1", serverConn)

	if err := hub.Terminate(context.Background(), "conn-1"); err != nil {
		t.Fatalf("Terminate failed: %v", err)
	}
	if hub.Len() != 0 {
		t.Errorf("Len() = %d, want 0", hub.Len())
	}

	// The client should observe a normal closure handshake.
	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := clientConn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected normal close, got %v", err)
	}

	// A second terminate finds nothing.
	err = hub.Terminate(context.Background(), "conn-1")
	if !errors.Is(err, ErrGone) {
		t.Errorf("expected error matching ErrGone, got %v", err)
	}
}

func TestHub_Detach(t *testing.T) {
	serverConn, _ := newSocketPair(t)

	hub := NewHub(DefaultHubConfig(), nil)
	hub.Attach("conn-1", serverConn)

	if !hub.Detach("conn-1", serverConn) {
		t.Error("Detach should report the socket as attached")
	}
	if hub.Len() != 0 {
		t.Errorf("Len() = %d, want 0", hub.Len())
	}

	err := hub.Send(context.Background(), "conn-1", []byte("hello"))
	if !errors.Is(err, ErrGone) {
		t.Errorf("expected error matching ErrGone, got %v", err)
	}

	// Detaching again finds nothing.
	if hub.Detach("conn-1", serverConn) {
		t.Error("second Detach should report false")
	}
}

func TestHub_DetachStaleSocket(t *testing.T) {
	serverConn1, _ := newSocketPair(t)
	serverConn2, _ := newSocketPair(t)

	hub := NewHub(DefaultHubConfig(), nil)
	hub.Attach("conn-1", serverConn1)
	hub.Attach("conn-1", serverConn2)
	defer hub.Close()

	// The replaced socket's owner must not be able to detach the new one.
	if hub.Detach("conn-1", serverConn1) {
		t.Error("Detach with a replaced socket should report false")
	}
	if hub.Len() != 1 {
		t.Errorf("Len() = %d, want 1", hub.Len())
	}

	if !hub.Detach("conn-1", serverConn2) {
		t.Error("Detach with the current socket should report true")
	}
	if hub.Len() != 0 {
		t.Errorf("Len() = %d, want 0", hub.Len())
	}
}

func TestHub_AttachReplacesSession(t *testing.T) {
	serverConn1, clientConn1 := newSocketPair(t)
	serverConn2, clientConn2 := newSocketPair(t)

	hub := NewHub(DefaultHubConfig(), nil)
	hub.Attach("conn-1", serverConn1)
	hub.Attach("conn-1", serverConn2)
	defer hub.Close()

	if hub.Len() != 1 {
		t.Errorf("Len() = %d, want 1", hub.Len())
	}

	// The first socket is closed when the second takes its place.
	clientConn1.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := clientConn1.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected normal close on replaced socket, got %v", err)
	}

	// Sends reach the new socket.
	if err := hub.Send(context.Background(), "conn-1", []byte("hi")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	clientConn2.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := clientConn2.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if string(msg) != "hi" {
		t.Errorf("msg = %q, want %q", msg, "hi")
	}
}

func TestHub_Close(t *testing.T) {
	serverConn1, clientConn1 := newSocketPair(t)
	serverConn2, clientConn2 := newSocketPair(t)

	hub := NewHub(DefaultHubConfig(), nil)
	hub.Attach("conn-1", serverConn1)
	hub.Attach("conn-2", serverConn2)

	if err := hub.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if hub.Len() != 0 {
		t.Errorf("Len() = %d, want 0", hub.Len())
	}

	for _, clientConn := range []*websocket.Conn{clientConn1, clientConn2} {
		clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _, err := clientConn.ReadMessage()
		if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			t.Errorf("expected normal close, got %v", err)
		}
	}
}

func TestHub_SendCancelledContext(t *testing.T) {
	serverConn, _ := newSocketPair(t)

	hub := NewHub(DefaultHubConfig(), nil)
	hub.Attach("conn-1", serverConn)
	defer hub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := hub.Send(ctx, "conn-1", []byte("hello")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
