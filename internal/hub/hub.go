// Package hub implements the Hub: a multi-namespace WebSocket fan-out layer.
// Each namespace (e.g. /alerts, /chat, /widgets, /dashboard) owns its own
// live client set, dispatch table, and connected-client count.
//
// This generalizes the single-room, sync.Map-keyed Broadcaster pattern used
// by the dashboard server's websocket package: instead of one global client
// registry broadcasting one alert shape, the Hub keeps one such registry per
// namespace, each with its own dispatch table of inbound event handlers and
// its own outbound broadcast surface, plus a declarative relay table for
// forwarding events across namespaces.
package hub

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Required namespace paths.
const (
	NamespaceAlerts    = "/alerts"
	NamespaceChat      = "/chat"
	NamespaceWidgets   = "/widgets"
	NamespaceDashboard = "/dashboard"
)

const (
	pingInterval = 25 * time.Second
	pingTimeout  = 60 * time.Second
	sendBufSize  = 64
)

// Envelope is the wire shape of every message in both directions: an event
// name and an arbitrary JSON payload.
type Envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// HandlerFunc handles one inbound client event. payload is the raw JSON
// value of the envelope's payload field, re-decoded by the handler as
// needed.
type HandlerFunc func(h *Hub, namespace string, socketID string, payload json.RawMessage)

// relay forwards an inbound event on fromNamespace to toNamespace, optionally
// renaming the event.
type relay struct {
	fromNamespace string
	fromEvent     string
	toNamespace   string
	toEvent       string
}

// AlertCompleter is the subset of the Alert Queue the Hub's /alerts
// namespace depends on.
type AlertCompleter interface {
	Complete(instanceID string)
}

// client is one connected WebSocket client within a namespace.
type client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	closed atomic.Bool
}

// namespace is one addressable Hub path: its live client set and dispatch
// table.
type namespace struct {
	path     string
	label    string
	dispatch map[string]HandlerFunc

	mu      sync.RWMutex
	clients map[string]*client
	count   atomic.Int64
}

// Hub fans events out across its namespaces and applies the relay table.
type Hub struct {
	logger     *slog.Logger
	upgrader   websocket.Upgrader
	namespaces map[string]*namespace
	relays     []relay
}

// New builds a Hub with the required namespaces wired to their documented
// dispatch tables and cross-namespace relays. completer is notified when an
// /alerts client acks alert:done.
func New(logger *slog.Logger, completer AlertCompleter) *Hub {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		namespaces: map[string]*namespace{},
	}

	h.addNamespace(NamespaceAlerts, "Alerts", map[string]HandlerFunc{
		"alert:done": func(h *Hub, ns, socketID string, payload json.RawMessage) {
			var body struct {
				InstanceID string `json:"instanceId"`
			}
			_ = json.Unmarshal(payload, &body)
			if completer != nil {
				completer.Complete(body.InstanceID)
			}
		},
		"alert:skip": func(h *Hub, ns, socketID string, payload json.RawMessage) {
			h.logger.Info("hub: alert skipped by client", "socketId", socketID)
		},
		"alert:pause": func(h *Hub, ns, socketID string, payload json.RawMessage) {
			h.Broadcast(NamespaceAlerts, "alert:paused", nil)
		},
	})

	h.addNamespace(NamespaceChat, "Chat", map[string]HandlerFunc{
		"chat:clear": func(h *Hub, ns, socketID string, payload json.RawMessage) {
			h.Broadcast(NamespaceChat, "chat:clear", nil)
		},
		"chat:delete": func(h *Hub, ns, socketID string, payload json.RawMessage) {
			h.Broadcast(NamespaceChat, "chat:delete", json.RawMessage(payload))
		},
	})

	h.addNamespace(NamespaceWidgets, "Widgets", map[string]HandlerFunc{
		"config:changed": func(h *Hub, ns, socketID string, payload json.RawMessage) {
			h.Broadcast(NamespaceWidgets, "config:changed", json.RawMessage(payload))
		},
	})

	h.addNamespace(NamespaceDashboard, "Dashboard", map[string]HandlerFunc{
		"config:changed": func(h *Hub, ns, socketID string, payload json.RawMessage) {
			// handled via the relay table below
		},
		"alert:trigger": func(h *Hub, ns, socketID string, payload json.RawMessage) {
			// handled via the relay table below
		},
	})

	h.relays = []relay{
		{NamespaceDashboard, "config:changed", NamespaceWidgets, "config:changed"},
		{NamespaceDashboard, "alert:trigger", NamespaceAlerts, "alert:trigger"},
	}

	return h
}

func (h *Hub) addNamespace(path, label string, dispatch map[string]HandlerFunc) {
	h.namespaces[path] = &namespace{
		path:     path,
		label:    label,
		dispatch: dispatch,
		clients:  map[string]*client{},
	}
}

// ClientCount returns the number of connected clients on namespace, or 0 for
// an unknown namespace.
func (h *Hub) ClientCount(path string) int {
	ns, ok := h.namespaces[path]
	if !ok {
		return 0
	}
	return int(ns.count.Load())
}

// Broadcast marshals an Envelope{event, payload} and delivers it to every
// client currently connected to namespace, using a non-blocking send per
// client.
func (h *Hub) Broadcast(namespacePath, event string, payload any) {
	ns, ok := h.namespaces[namespacePath]
	if !ok {
		return
	}

	raw, err := json.Marshal(Envelope{Event: event, Payload: payload})
	if err != nil {
		h.logger.Error("hub: marshal broadcast failed", "namespace", namespacePath, "event", event, "error", err)
		return
	}

	ns.mu.RLock()
	defer ns.mu.RUnlock()
	for _, c := range ns.clients {
		select {
		case c.send <- raw:
		default:
			h.logger.Warn("hub: client send buffer full, dropping message", "namespace", namespacePath, "socketId", c.id)
		}
	}
}

// ServeWS returns an http.HandlerFunc that upgrades the connection to
// WebSocket and registers the client under namespacePath. Mount one per
// required namespace path.
func (h *Hub) ServeWS(namespacePath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ns, ok := h.namespaces[namespacePath]
		if !ok {
			http.NotFound(w, r)
			return
		}

		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("hub: upgrade failed", "namespace", namespacePath, "error", err)
			return
		}

		c := &client{
			id:   uuid.NewString(),
			conn: conn,
			send: make(chan []byte, sendBufSize),
		}

		ns.mu.Lock()
		ns.clients[c.id] = c
		ns.mu.Unlock()
		ns.count.Add(1)

		h.sendWelcome(ns, c)

		go h.writePump(ns, c)
		h.readPump(ns, c)
	}
}

func (h *Hub) sendWelcome(ns *namespace, c *client) {
	welcome := Envelope{
		Event: "welcome",
		Payload: map[string]any{
			"namespace":   ns.path,
			"socketId":    c.id,
			"clientCount": ns.count.Load(),
			"serverTime":  time.Now().UTC().Format(time.RFC3339Nano),
			"label":       ns.label,
		},
	}
	raw, err := json.Marshal(welcome)
	if err != nil {
		return
	}
	select {
	case c.send <- raw:
	default:
	}
}

// readPump reads client frames, dispatches known events, and drops unknown
// ones. It returns when the connection closes, at which point the client is
// unregistered and its write pump torn down.
func (h *Hub) readPump(ns *namespace, c *client) {
	defer h.disconnect(ns, c)

	c.conn.SetReadDeadline(time.Now().Add(pingTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pingTimeout))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame struct {
			Event   string          `json:"event"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(raw, &frame); err != nil {
			h.logger.Warn("hub: malformed client frame dropped", "namespace", ns.path, "socketId", c.id)
			continue
		}

		handler, ok := ns.dispatch[frame.Event]
		if !ok {
			continue // unknown events are dropped, never errored
		}
		handler(h, ns.path, c.id, frame.Payload)
		h.relayEvent(ns.path, frame.Event, frame.Payload)
	}
}

// relayEvent forwards event from fromNamespace to any configured target per
// the relay table.
func (h *Hub) relayEvent(fromNamespace, event string, payload json.RawMessage) {
	for _, rel := range h.relays {
		if rel.fromNamespace != fromNamespace || rel.fromEvent != event {
			continue
		}
		var decoded any
		if len(payload) > 0 {
			_ = json.Unmarshal(payload, &decoded)
		}
		h.Broadcast(rel.toNamespace, rel.toEvent, decoded)
	}
}

func (h *Hub) writePump(ns *namespace, c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case raw, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) disconnect(ns *namespace, c *client) {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	ns.mu.Lock()
	delete(ns.clients, c.id)
	ns.mu.Unlock()
	ns.count.Add(-1)
	close(c.send)
	c.conn.Close()
	h.logger.Info("hub: client disconnected", "namespace", ns.path, "socketId", c.id)
}
