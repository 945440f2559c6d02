package repository

import (
	"context"
	"log/slog"
	"time"
)

// DefaultRetention is the default EventLog prune cutoff: rows older than this
// are eligible for deletion. Hard-coded per spec, not a Setting key.
const DefaultRetention = 7 * 24 * time.Hour

// pruneInterval is how often the Pruner wakes up to check for prunable rows.
const pruneInterval = 1 * time.Hour

// Pruner periodically deletes EventLog rows older than retention. It
// generalizes the host's flush-loop pattern (ticker plus a stop channel) to
// a delete-on-schedule worker instead of a batch-insert flush.
type Pruner struct {
	repo      *Repository
	retention time.Duration
	logger    *slog.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewPruner builds a Pruner that removes EventLog rows older than retention.
func NewPruner(repo *Repository, retention time.Duration, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		repo:      repo,
		retention: retention,
		logger:    logger,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start launches the background prune loop. It must be called at most once.
func (p *Pruner) Start() {
	go p.loop()
}

// Close stops the prune loop and waits for it to exit. It is safe to call
// more than once; subsequent calls are no-ops.
func (p *Pruner) Close() error {
	select {
	case <-p.stopCh:
	default:
		close(p.stopCh)
		<-p.doneCh
	}
	return nil
}

func (p *Pruner) loop() {
	defer close(p.doneCh)
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.pruneOnce()
		}
	}
}

func (p *Pruner) pruneOnce() {
	cutoff := time.Now().UTC().Add(-p.retention)
	n, err := p.repo.DeleteBefore(context.Background(), cutoff)
	if err != nil {
		p.logger.Warn("pruner: failed to delete expired event logs", "error", err)
		return
	}
	if n > 0 {
		p.logger.Info("pruner: deleted expired event logs", "count", n, "cutoff", cutoff)
	}
}
