package alertqueue_test

import (
	"sync"
	"testing"
	"time"

	"github.com/streamforge/sidecar/internal/alertqueue"
	"github.com/streamforge/sidecar/internal/models"
)

type broadcast struct {
	namespace string
	event     string
	payload   any
}

type fakeHub struct {
	mu         sync.Mutex
	broadcasts []broadcast
	clients    int
}

func (h *fakeHub) Broadcast(namespace, event string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcasts = append(h.broadcasts, broadcast{namespace, event, payload})
}

func (h *fakeHub) ClientCount(namespace string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clients
}

func (h *fakeHub) last(t *testing.T) broadcast {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.broadcasts) == 0 {
		t.Fatal("expected at least one broadcast")
	}
	return h.broadcasts[len(h.broadcasts)-1]
}

func (h *fakeHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.broadcasts)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestEnqueue_IdleConsumer_AdvancesImmediately(t *testing.T) {
	hub := &fakeHub{clients: 1}
	q := alertqueue.New(hub, nil)

	id, ok := q.Enqueue(alertqueue.Request{Type: models.AlertTypeFollow, Username: "alice", Config: models.AlertSpec{DurationMs: 100}})
	if !ok {
		t.Fatal("expected enqueue to succeed")
	}

	waitFor(t, time.Second, func() bool { return hub.count() == 1 })
	b := hub.last(t)
	if b.namespace != alertqueue.AlertsNamespace || b.event != "alert:trigger" {
		t.Fatalf("unexpected broadcast: %+v", b)
	}
	inst, ok := q.Current()
	if !ok || inst.ID != id {
		t.Fatalf("expected current instance %s, got %+v ok=%v", id, inst, ok)
	}
}

func TestEnqueue_MissingRequiredFields_Rejected(t *testing.T) {
	hub := &fakeHub{}
	q := alertqueue.New(hub, nil)

	if _, ok := q.Enqueue(alertqueue.Request{Username: "alice"}); ok {
		t.Fatal("expected enqueue without Type to fail")
	}
	if _, ok := q.Enqueue(alertqueue.Request{Type: models.AlertTypeFollow}); ok {
		t.Fatal("expected enqueue without Username to fail")
	}
	if q.Length() != 0 || hub.count() != 0 {
		t.Fatalf("expected no enqueue side effects, length=%d broadcasts=%d", q.Length(), hub.count())
	}
}

func TestEnqueue_WhileProcessing_Queues(t *testing.T) {
	hub := &fakeHub{clients: 1}
	q := alertqueue.New(hub, nil)

	q.Enqueue(alertqueue.Request{Type: models.AlertTypeFollow, Username: "alice", Config: models.AlertSpec{DurationMs: 60_000}})
	waitFor(t, time.Second, func() bool { return hub.count() == 1 })

	id2, ok := q.Enqueue(alertqueue.Request{Type: models.AlertTypeFollow, Username: "bob", Config: models.AlertSpec{DurationMs: 60_000}})
	if !ok {
		t.Fatal("expected second enqueue to succeed")
	}
	if q.Length() != 1 {
		t.Fatalf("expected second instance to sit pending, length=%d", q.Length())
	}
	if hub.count() != 1 {
		t.Fatalf("expected no second broadcast yet, got %d", hub.count())
	}

	current, _ := q.Current()
	q.Complete(current.ID)

	waitFor(t, time.Second, func() bool { return hub.count() == 2 })
	b := hub.last(t)
	inst, ok := b.payload.(models.AlertInstance)
	if !ok || inst.ID != id2 {
		t.Fatalf("expected second instance %s to advance, got %+v", id2, b.payload)
	}
}

func TestComplete_NoCurrent_IgnoredSafely(t *testing.T) {
	hub := &fakeHub{}
	q := alertqueue.New(hub, nil)
	q.Complete("nonexistent")
}

func TestComplete_StaleAck_Ignored(t *testing.T) {
	hub := &fakeHub{clients: 1}
	q := alertqueue.New(hub, nil)
	q.Enqueue(alertqueue.Request{Type: models.AlertTypeFollow, Username: "alice", Config: models.AlertSpec{DurationMs: 60_000}})
	waitFor(t, time.Second, func() bool { return hub.count() == 1 })

	q.Complete("not-the-current-id")

	current, ok := q.Current()
	if !ok {
		t.Fatal("expected current instance to remain in-flight after stale ack")
	}
	_ = current
}

func TestClear_DoesNotInterruptCurrent(t *testing.T) {
	hub := &fakeHub{clients: 1}
	q := alertqueue.New(hub, nil)
	q.Enqueue(alertqueue.Request{Type: models.AlertTypeFollow, Username: "alice", Config: models.AlertSpec{DurationMs: 60_000}})
	waitFor(t, time.Second, func() bool { return hub.count() == 1 })

	q.Enqueue(alertqueue.Request{Type: models.AlertTypeFollow, Username: "bob", Config: models.AlertSpec{DurationMs: 60_000}})
	if got := q.Clear(); got != 1 {
		t.Fatalf("expected Clear to report 1 cleared, got %d", got)
	}
	if q.Length() != 0 {
		t.Fatalf("expected pending queue empty after Clear, got %d", q.Length())
	}

	current, ok := q.Current()
	if !ok || current.Username != "alice" {
		t.Fatalf("expected Clear to leave current instance untouched, got %+v ok=%v", current, ok)
	}
}

func TestFallbackTimer_AdvancesWithoutAck(t *testing.T) {
	hub := &fakeHub{clients: 1}
	q := alertqueue.New(hub, nil)

	q.Enqueue(alertqueue.Request{Type: models.AlertTypeFollow, Username: "alice", Config: models.AlertSpec{DurationMs: 10}})
	waitFor(t, time.Second, func() bool { return hub.count() == 1 })

	q.Enqueue(alertqueue.Request{Type: models.AlertTypeFollow, Username: "bob", Config: models.AlertSpec{DurationMs: 10}})

	waitFor(t, 3*time.Second, func() bool { return hub.count() == 2 })
	current, ok := q.Current()
	if !ok || current.Username != "bob" {
		t.Fatalf("expected fallback timeout to advance to bob, got %+v ok=%v", current, ok)
	}
}

func TestEnqueue_EmptyMessage_FillsTypeSpecificDefault(t *testing.T) {
	hub := &fakeHub{clients: 1}
	q := alertqueue.New(hub, nil)

	q.Enqueue(alertqueue.Request{Type: models.AlertTypeCheer, Username: "alice"})
	waitFor(t, time.Second, func() bool { return hub.count() == 1 })

	b := hub.last(t)
	inst := b.payload.(models.AlertInstance)
	if inst.Message == "" {
		t.Fatal("expected a non-empty default message template")
	}
}

func TestEnqueue_ZeroClients_StillAdvances(t *testing.T) {
	hub := &fakeHub{clients: 0}
	q := alertqueue.New(hub, nil)

	_, ok := q.Enqueue(alertqueue.Request{Type: models.AlertTypeFollow, Username: "alice", Config: models.AlertSpec{DurationMs: 10}})
	if !ok {
		t.Fatal("expected enqueue to succeed")
	}
	waitFor(t, time.Second, func() bool { return hub.count() == 1 })
}
