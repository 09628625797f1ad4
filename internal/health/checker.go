// Package health runs the background integrity watch over the ledger: a
// periodic full verification plus optional automatic snapshots.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/tarlanskakov/patenr-ali-sh/internal/snapshot"
	"go.uber.org/zap"
)

// Verifier is the ledger view the checker needs. *chain.Ledger satisfies it.
type Verifier interface {
	snapshot.Source
	Verify() error
	Len() int
	TipHash() string
}

// Config holds integrity watch configuration.
type Config struct {
	CheckInterval time.Duration
	// SnapshotEvery takes a snapshot every Nth check when the tip has moved
	// since the last one. 0 disables automatic snapshots.
	SnapshotEvery int
	// FailThreshold is the number of consecutive failed checks before the
	// ledger is reported unhealthy. 0 means 1.
	FailThreshold int
}

// AlertFunc is an optional callback fired on health transitions.
type AlertFunc func(healthy bool, err error)

// MetricsRecordFunc is an optional callback for recording check results.
type MetricsRecordFunc func(valid bool, blocks int)

// Status is the last observed integrity state.
type Status struct {
	Healthy      bool      `json:"healthy"`
	LastCheck    time.Time `json:"last_check"`
	LastError    string    `json:"last_error,omitempty"`
	FailCount    int       `json:"fail_count"`
	LastSnapshot string    `json:"last_snapshot,omitempty"`
}

// Checker periodically verifies the ledger.
type Checker struct {
	ledger Verifier
	store  snapshot.Store // nil = no automatic snapshots
	cfg    Config

	mu        sync.Mutex
	status    Status
	checks    int
	lastTip   string
	onAlert   AlertFunc
	onMetrics MetricsRecordFunc
	logger    *zap.Logger
}

// New creates a new Checker. store may be nil.
func New(ledger Verifier, store snapshot.Store, cfg Config, logger *zap.Logger) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 5 * time.Minute
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 1
	}
	return &Checker{
		ledger: ledger,
		store:  store,
		cfg:    cfg,
		status: Status{Healthy: true},
		logger: logger,
	}
}

// SetAlert configures the transition callback.
func (h *Checker) SetAlert(fn AlertFunc) {
	h.onAlert = fn
}

// SetMetricsRecord configures the metrics recording callback.
func (h *Checker) SetMetricsRecord(fn MetricsRecordFunc) {
	h.onMetrics = fn
}

// Start runs the check loop until ctx ends.
func (h *Checker) Start(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cctx, cancel := context.WithTimeout(ctx, h.cfg.CheckInterval)
			h.Check(cctx)
			cancel()
		case <-ctx.Done():
			return
		}
	}
}

// Check verifies the ledger once and, when due, saves a snapshot.
func (h *Checker) Check(ctx context.Context) Status {
	err := h.ledger.Verify()
	blocks := h.ledger.Len()
	if h.onMetrics != nil {
		h.onMetrics(err == nil, blocks)
	}

	h.mu.Lock()
	h.checks++
	wasHealthy := h.status.Healthy
	h.status.LastCheck = time.Now().UTC()
	if err == nil {
		h.status.FailCount = 0
		h.status.Healthy = true
		h.status.LastError = ""
	} else {
		h.status.FailCount++
		h.status.LastError = err.Error()
		if h.status.FailCount >= h.cfg.FailThreshold {
			h.status.Healthy = false
		}
	}
	healthy := h.status.Healthy
	failCount := h.status.FailCount
	snapDue := err == nil && h.store != nil && h.cfg.SnapshotEvery > 0 &&
		h.checks%h.cfg.SnapshotEvery == 0 && h.ledger.TipHash() != h.lastTip
	h.mu.Unlock()

	switch {
	case wasHealthy && !healthy:
		h.logger.Error("health: ledger integrity lost",
			zap.Int("fail_count", failCount),
			zap.Error(err),
		)
		if h.onAlert != nil {
			h.onAlert(false, err)
		}
	case !wasHealthy && healthy:
		h.logger.Info("health: ledger integrity recovered", zap.Int("blocks", blocks))
		if h.onAlert != nil {
			h.onAlert(true, nil)
		}
	}

	if snapDue {
		h.snapshot(ctx)
	}
	return h.Status()
}

func (h *Checker) snapshot(ctx context.Context) {
	snap := snapshot.Take(h.ledger, time.Now())
	if err := h.store.Save(ctx, snap); err != nil {
		h.logger.Warn("health: automatic snapshot failed", zap.Error(err))
		return
	}
	h.mu.Lock()
	h.lastTip = snap.TipHash
	h.status.LastSnapshot = snap.ID
	h.mu.Unlock()
}

// Status returns the last observed state.
func (h *Checker) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}
