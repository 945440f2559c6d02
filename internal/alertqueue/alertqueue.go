// Package alertqueue implements the Alert Queue: a single-consumer FIFO
// scheduler enforcing an at-most-one-concurrent-playback invariant, with a
// fallback timer guaranteeing every enqueued AlertInstance eventually
// advances even if no overlay client ever acknowledges it.
//
// Unlike a SQLite-backed, at-least-once delivery queue, the Alert Queue is
// transient and in-memory: its state is
// scoped to the current process and is lost on restart, matching the Alert
// Queue's role as the exclusive owner of in-flight playback state rather
// than a durable event log.
package alertqueue

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/streamforge/sidecar/internal/models"
)

// fallbackBuffer is added to an instance's configured duration to compute
// how long the fallback timer waits before treating playback as complete.
const fallbackBuffer = 1000 * time.Millisecond

// AlertsNamespace is the Hub namespace the queue emits alert:trigger on.
const AlertsNamespace = "/alerts"

// Hub is the subset of the Hub the Alert Queue needs: a way to broadcast a
// trigger payload and a way to ask how many clients are listening.
type Hub interface {
	Broadcast(namespace, event string, payload any)
	ClientCount(namespace string) int
}

// Request is the caller-supplied payload for Enqueue, before defaults are
// filled in and before it becomes a models.AlertInstance.
type Request struct {
	InstanceID  string
	Type        models.AlertType
	Username    string
	DisplayName string
	Amount      *float64
	Message     string
	Config      models.AlertSpec
}

// Queue is the Alert Queue: (queue, current, processing, fallback timer,
// hub), guarded by a single mutex.
type Queue struct {
	hub    Hub
	logger *slog.Logger

	mu            sync.Mutex
	pending       []models.AlertInstance
	current       *models.AlertInstance
	processing    bool
	fallbackTimer *time.Timer
}

// New builds a Queue that emits on hub. hub may be nil and set later with
// SetHub, to break the construction cycle where the Hub's /alerts dispatch
// table needs a reference to the Queue as its AlertCompleter.
func New(hub Hub, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{hub: hub, logger: logger}
}

// SetHub assigns the Hub the Queue emits alert:trigger on.
func (q *Queue) SetHub(hub Hub) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.hub = hub
}

// Enqueue validates req, fills in defaults, appends an AlertInstance to the
// pending queue, and returns its instance id. If the consumer is idle it
// advances immediately. Enqueue returns ("", false) without enqueueing
// anything when required fields are missing.
func (q *Queue) Enqueue(req Request) (string, bool) {
	if req.Type == "" || req.Username == "" {
		q.logger.Warn("alert queue: rejected enqueue with missing required fields", "type", req.Type, "username", req.Username)
		return "", false
	}

	instanceID := req.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}

	message := req.Message
	if message == "" {
		message = defaultMessageTemplate(req.Type)
	}

	instance := models.AlertInstance{
		ID:            instanceID,
		AlertConfigID: req.Config.AlertConfigID,
		Type:          req.Type,
		Username:      req.Username,
		DisplayName:   req.DisplayName,
		Amount:        req.Amount,
		Message:       message,
		Config:        req.Config,
		Timestamp:     time.Now().UTC(),
	}

	q.mu.Lock()
	q.pending = append(q.pending, instance)
	idle := !q.processing
	q.mu.Unlock()

	if idle {
		q.advance()
	}
	return instanceID, true
}

// Complete is the consumer ack for instanceID. If there is no current
// instance, or instanceID is non-empty and mismatches current, it logs and
// is ignored — stale-ack protection. Otherwise it clears current, cancels
// the fallback timer, and advances.
func (q *Queue) Complete(instanceID string) {
	q.mu.Lock()
	if q.current == nil {
		q.mu.Unlock()
		q.logger.Warn("alert queue: complete called with no current instance", "instanceId", instanceID)
		return
	}
	if instanceID != "" && instanceID != q.current.ID {
		q.mu.Unlock()
		q.logger.Warn("alert queue: stale ack ignored", "got", instanceID, "current", q.current.ID)
		return
	}

	if q.fallbackTimer != nil {
		q.fallbackTimer.Stop()
		q.fallbackTimer = nil
	}
	q.current = nil
	q.processing = false
	q.mu.Unlock()

	q.advance()
}

// Length returns the count of pending instances, excluding any in-flight
// current instance.
func (q *Queue) Length() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Clear empties the pending queue without interrupting current, returning
// the count cleared.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.pending)
	q.pending = nil
	return n
}

// Current returns a copy of the in-flight instance, or (zero, false) if idle.
func (q *Queue) Current() (models.AlertInstance, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current == nil {
		return models.AlertInstance{}, false
	}
	return *q.current, true
}

// advance implements the advance protocol: if already processing or the
// pending queue is empty, it is a no-op. Otherwise it pops the front
// instance, marks processing, emits alert:trigger, and arms the fallback
// timer.
func (q *Queue) advance() {
	q.mu.Lock()
	if q.processing || len(q.pending) == 0 {
		q.mu.Unlock()
		return
	}

	next := q.pending[0]
	q.pending = q.pending[1:]
	q.processing = true
	q.current = &next
	q.mu.Unlock()

	if q.hub != nil && q.hub.ClientCount(AlertsNamespace) == 0 {
		q.logger.Warn("alert queue: emitting with zero connected clients", "instanceId", next.ID)
	}
	if q.hub != nil {
		q.hub.Broadcast(AlertsNamespace, "alert:trigger", next)
	}

	wait := time.Duration(next.Config.DurationMs)*time.Millisecond + fallbackBuffer
	timer := time.AfterFunc(wait, func() { q.onFallback(next.ID) })

	q.mu.Lock()
	q.fallbackTimer = timer
	q.mu.Unlock()
}

// onFallback fires when an instance's playback deadline elapses without an
// ack. It is idempotent with Complete: whichever of the two runs first wins.
func (q *Queue) onFallback(instanceID string) {
	q.mu.Lock()
	if q.current == nil || q.current.ID != instanceID {
		q.mu.Unlock()
		return
	}
	q.logger.Warn("alert queue: fallback timeout, treating instance as complete", "instanceId", instanceID)
	q.current = nil
	q.processing = false
	q.fallbackTimer = nil
	q.mu.Unlock()

	q.advance()
}

// defaultMessageTemplate returns the built-in per-type fallback message used
// when a caller submits an event without an explicit message.
func defaultMessageTemplate(t models.AlertType) string {
	switch t {
	case models.AlertTypeFollow:
		return "{username} just followed!"
	case models.AlertTypeSubscribe:
		return "{username} just subscribed!"
	case models.AlertTypeCheer:
		return "{username} cheered {amount} bits!"
	case models.AlertTypeRaid:
		return "{username} raided with {amount} viewers!"
	case models.AlertTypeDonation:
		return "{username} donated {amount}!"
	default:
		return "{username} triggered an alert!"
	}
}
