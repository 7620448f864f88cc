package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func dialFeed(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketPingPong(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps := newTestDeps(t, &stubFactory{script: pairingScript()}, false)
	r := NewRouter(deps)

	srv := httptest.NewServer(r)
	defer srv.Close()

	w := doJSON(t, r, http.MethodPost, "/v1/instances", map[string]string{"key": "alpha"}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", w.Code)
	}

	conn := dialFeed(t, srv, "?session=alpha")
	if err := conn.WriteJSON(map[string]any{"type": "ping"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var resp map[string]any
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if resp["type"] != "pong" {
		data, _ := json.Marshal(resp)
		t.Fatalf("expected pong, got %s", string(data))
	}
}

func TestWebSocketReceivesSessionEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps := newTestDeps(t, &stubFactory{script: pairingScript()}, false)
	r := NewRouter(deps)

	srv := httptest.NewServer(r)
	defer srv.Close()

	w := doJSON(t, r, http.MethodPost, "/v1/instances", map[string]string{"key": "alpha"}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", w.Code)
	}

	conn := dialFeed(t, srv, "?session=alpha")

	// The ping round trip guarantees the subscription is registered before
	// the broadcast below.
	if err := conn.WriteJSON(map[string]any{"type": "ping"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var pong map[string]any
	if err := conn.ReadJSON(&pong); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}

	deps.Hub.Broadcast("alpha", []byte(`{"sessionId":"alpha","event":"connection","data":{"connection":"connected"}}`))

	var frame map[string]any
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if frame["sessionId"] != "alpha" || frame["event"] != "connection" {
		data, _ := json.Marshal(frame)
		t.Fatalf("unexpected frame: %s", string(data))
	}
}

func TestWebSocketRejectsUnknownSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps := newTestDeps(t, &stubFactory{}, false)
	r := NewRouter(deps)

	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?session=ghost"
	if _, _, err := websocket.DefaultDialer.Dial(wsURL, nil); err == nil {
		t.Fatal("expected handshake failure for unknown session")
	}
}

func TestWebSocketRequiresTokenWhenAuthEnabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps := newTestDeps(t, &stubFactory{script: pairingScript()}, true)
	r := NewRouter(deps)

	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?session=alpha"
	if _, _, err := websocket.DefaultDialer.Dial(wsURL, nil); err == nil {
		t.Fatal("expected handshake failure without token")
	}
}
