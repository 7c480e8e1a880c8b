// Package health runs periodic liveness probes of the service's two
// external dependencies: the ledger node and the PostgreSQL store.
package health

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/xanchor-io/xanchor/internal/xrpl"
	"go.uber.org/zap"
)

// Config holds health check configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
}

// DBPinger is the database liveness probe. *pgxpool.Pool satisfies this.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// MetricsRecordFunc is an optional callback for recording ledger probe results.
type MetricsRecordFunc func(success bool)

// Status is the last observed dependency state.
type Status struct {
	LedgerOK       bool      `json:"ledger_ok"`
	DatabaseOK     bool      `json:"database_ok"`
	ServerState    string    `json:"server_state,omitempty"`
	ValidatedIndex uint64    `json:"validated_index,omitempty"`
	CheckedAt      time.Time `json:"checked_at"`
}

// Checker runs the periodic probes and caches the latest Status.
type Checker struct {
	dialer    xrpl.Dialer
	db        DBPinger
	cfg       Config
	onMetrics MetricsRecordFunc
	logger    *zap.Logger

	mu     sync.RWMutex
	status Status
}

// New creates a Checker. db may be nil when the service runs without
// durable storage.
func New(dialer xrpl.Dialer, db DBPinger, cfg Config, logger *zap.Logger) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = time.Minute
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	return &Checker{dialer: dialer, db: db, cfg: cfg, logger: logger}
}

// SetMetricsRecord configures the metrics recording callback.
func (c *Checker) SetMetricsRecord(fn MetricsRecordFunc) {
	c.onMetrics = fn
}

// Status returns the most recent probe result.
func (c *Checker) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Start runs the probe loop until quit is signalled. The first probe runs
// immediately so /healthz is meaningful right after startup.
func (c *Checker) Start(quit <-chan os.Signal) {
	c.probe()

	ticker := time.NewTicker(c.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.probe()
		case <-quit:
			return
		}
	}
}

func (c *Checker) probe() {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ProbeTimeout)
	defer cancel()

	status := Status{CheckedAt: time.Now().UTC()}

	if conn, err := c.dialer.Dial(ctx); err != nil {
		c.logger.Warn("ledger node probe: dial failed", zap.Error(err))
	} else {
		info, err := conn.ServerInfo(ctx)
		if closeErr := conn.Close(); closeErr != nil {
			c.logger.Warn("ledger node probe: close failed", zap.Error(closeErr))
		}
		if err != nil {
			c.logger.Warn("ledger node probe: server_info failed", zap.Error(err))
		} else {
			status.LedgerOK = true
			status.ServerState = info.ServerState
			status.ValidatedIndex = info.ValidatedIndex
		}
	}
	if c.onMetrics != nil {
		c.onMetrics(status.LedgerOK)
	}

	if c.db == nil {
		status.DatabaseOK = true
	} else if err := c.db.Ping(ctx); err != nil {
		c.logger.Warn("database probe failed", zap.Error(err))
	} else {
		status.DatabaseOK = true
	}

	c.mu.Lock()
	c.status = status
	c.mu.Unlock()
}
