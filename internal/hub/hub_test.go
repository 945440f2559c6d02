package hub_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/streamforge/sidecar/internal/hub"
)

func httptestMux(h *hub.Hub) http.Handler {
	mux := http.NewServeMux()
	for _, ns := range []string{hub.NamespaceAlerts, hub.NamespaceChat, hub.NamespaceWidgets, hub.NamespaceDashboard} {
		mux.HandleFunc(ns, h.ServeWS(ns))
	}
	return mux
}

type fakeCompleter struct {
	completed []string
}

func (f *fakeCompleter) Complete(instanceID string) {
	f.completed = append(f.completed, instanceID)
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) hub.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	var env hub.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	return env
}

func TestServeWS_WelcomeOnConnect(t *testing.T) {
	h := hub.New(nil, nil)
	mux := httptestMux(h)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	conn := dial(t, srv, hub.NamespaceAlerts)
	env := readEnvelope(t, conn)
	if env.Event != "welcome" {
		t.Fatalf("expected welcome event, got %q", env.Event)
	}

	payload, ok := env.Payload.(map[string]any)
	if !ok {
		t.Fatalf("expected payload to be a map, got %T", env.Payload)
	}
	if payload["namespace"] != hub.NamespaceAlerts {
		t.Fatalf("expected namespace %s, got %v", hub.NamespaceAlerts, payload["namespace"])
	}
}

func TestClientCount_TracksConnectAndDisconnect(t *testing.T) {
	h := hub.New(nil, nil)
	mux := httptestMux(h)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	if h.ClientCount(hub.NamespaceChat) != 0 {
		t.Fatal("expected zero clients before connect")
	}

	conn := dial(t, srv, hub.NamespaceChat)
	readEnvelope(t, conn) // welcome

	waitForCount(t, h, hub.NamespaceChat, 1)

	conn.Close()
	waitForCount(t, h, hub.NamespaceChat, 0)
}

func TestBroadcast_DeliversToNamespaceClients(t *testing.T) {
	h := hub.New(nil, nil)
	mux := httptestMux(h)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	conn := dial(t, srv, hub.NamespaceWidgets)
	readEnvelope(t, conn) // welcome

	h.Broadcast(hub.NamespaceWidgets, "widget:update", map[string]any{"x": 1})

	env := readEnvelope(t, conn)
	if env.Event != "widget:update" {
		t.Fatalf("expected widget:update, got %q", env.Event)
	}
}

func TestAlertDone_ForwardsToCompleter(t *testing.T) {
	completer := &fakeCompleter{}
	h := hub.New(nil, completer)
	mux := httptestMux(h)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	conn := dial(t, srv, hub.NamespaceAlerts)
	readEnvelope(t, conn) // welcome

	frame := map[string]any{"event": "alert:done", "payload": map[string]any{"instanceId": "abc123"}}
	raw, _ := json.Marshal(frame)
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(completer.completed) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(completer.completed) != 1 || completer.completed[0] != "abc123" {
		t.Fatalf("expected completer to receive abc123, got %+v", completer.completed)
	}
}

func TestUnknownEvent_DroppedNotErrored(t *testing.T) {
	h := hub.New(nil, nil)
	mux := httptestMux(h)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	conn := dial(t, srv, hub.NamespaceChat)
	readEnvelope(t, conn) // welcome

	frame := map[string]any{"event": "totally:unknown", "payload": nil}
	raw, _ := json.Marshal(frame)
	conn.WriteMessage(websocket.TextMessage, raw)

	// The connection should remain usable: a subsequent broadcast still
	// arrives, proving the unknown event did not tear anything down.
	h.Broadcast(hub.NamespaceChat, "chat:clear", nil)
	env := readEnvelope(t, conn)
	if env.Event != "chat:clear" {
		t.Fatalf("expected chat:clear after unknown event was dropped, got %q", env.Event)
	}
}

func TestDashboardRelay_ForwardsConfigChangedToWidgets(t *testing.T) {
	h := hub.New(nil, nil)
	mux := httptestMux(h)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	dashboard := dial(t, srv, hub.NamespaceDashboard)
	readEnvelope(t, dashboard) // welcome
	widgets := dial(t, srv, hub.NamespaceWidgets)
	readEnvelope(t, widgets) // welcome

	frame := map[string]any{"event": "config:changed", "payload": map[string]any{"k": "v"}}
	raw, _ := json.Marshal(frame)
	dashboard.WriteMessage(websocket.TextMessage, raw)

	env := readEnvelope(t, widgets)
	if env.Event != "config:changed" {
		t.Fatalf("expected relayed config:changed on /widgets, got %q", env.Event)
	}
}

func waitForCount(t *testing.T, h *hub.Hub, namespace string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.ClientCount(namespace) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("namespace %s client count did not reach %d (got %d)", namespace, want, h.ClientCount(namespace))
}
