package mockserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/notify-channel/internal/notification"
	"github.com/rickgao/notify-channel/internal/transport"
)

func dial(t *testing.T, server *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

func send(t *testing.T, conn *websocket.Conn, event, channel string) {
	t.Helper()
	f, err := transport.NewFrame(event, channel)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteJSON(f); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestServer_SubscribeAndNotify(t *testing.T) {
	srv := New(nil)
	server := httptest.NewServer(srv)
	defer server.Close()

	conn := dial(t, server, "t1")
	defer conn.Close()

	send(t, conn, "subscribe", "user:u1")
	waitFor(t, "subscribe", func() bool { return len(srv.Subscribes()) == 1 })

	if got := srv.Tokens(); len(got) != 1 || got[0] != "t1" {
		t.Errorf("tokens = %v", got)
	}

	if n := srv.Notify("someone-else", notification.Envelope{ID: "x", Kind: notification.KindSystem}); n != 0 {
		t.Errorf("notify other user reached %d clients", n)
	}
	if n := srv.Notify("u1", notification.Envelope{ID: "n1", Kind: notification.KindSystem, Title: "hi"}); n != 1 {
		t.Fatalf("notify reached %d clients, want 1", n)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f transport.Frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read: %v", err)
	}
	if f.Event != "notification:system" {
		t.Errorf("event = %q", f.Event)
	}
	var payload map[string]any
	if err := json.Unmarshal(f.Data, &payload); err != nil {
		t.Fatal(err)
	}
	if payload["id"] != "n1" || payload["title"] != "hi" {
		t.Errorf("payload = %v", payload)
	}
}

func TestServer_Unsubscribe(t *testing.T) {
	srv := New(nil)
	server := httptest.NewServer(srv)
	defer server.Close()

	conn := dial(t, server, "")
	defer conn.Close()

	send(t, conn, "subscribe", "user:u1")
	send(t, conn, "unsubscribe", "user:u1")
	waitFor(t, "unsubscribe", func() bool { return len(srv.Unsubscribes()) == 1 })

	if n := srv.Notify("u1", notification.Envelope{ID: "n1", Kind: notification.KindSystem}); n != 0 {
		t.Errorf("notify after unsubscribe reached %d clients", n)
	}
}

func TestServer_DropAll(t *testing.T) {
	srv := New(nil)
	server := httptest.NewServer(srv)
	defer server.Close()

	conn := dial(t, server, "")
	defer conn.Close()
	waitFor(t, "client", func() bool { return srv.Clients() == 1 })

	if n := srv.DropAll(); n != 1 {
		t.Errorf("dropped %d, want 1", n)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected read error after drop")
	}
	waitFor(t, "client removal", func() bool { return srv.Clients() == 0 })
}

func TestServer_Reject(t *testing.T) {
	srv := New(nil)
	srv.Reject(http.StatusUnauthorized)
	server := httptest.NewServer(srv)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("response = %v", resp)
	}
	if srv.Connects() != 0 {
		t.Errorf("connects = %d", srv.Connects())
	}
}
