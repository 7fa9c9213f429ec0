package scanner

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"bridgewatch/internal/metrics"
	"bridgewatch/internal/model"
	"bridgewatch/internal/store"
)

// Dialer opens a chain connection for a scan pass. The returned func
// releases the connection when the pass ends.
type Dialer func(ctx context.Context, rpcURL string) (ChainReader, func(), error)

// Manager runs at most one dashboard scan at a time. Starting a new scan
// cancels the active one and bumps the store generation, so writes from the
// superseded pass are dropped rather than interleaved.
type Manager struct {
	dial   Dialer
	store  *store.MemoryStore
	logger *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager builds a Manager writing into the given store.
func NewManager(dial Dialer, st *store.MemoryStore, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		dial:   dial,
		store:  st,
		logger: logger,
	}
}

// Start launches a scan pass in the background, superseding any active one.
// Returns the new store generation.
func (m *Manager) Start(ctx context.Context, rpcURL string, cfg Config) uint64 {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
		if m.store.Status().State == model.ScanRunning {
			metrics.ScansSuperseded.Inc()
		}
	}

	generation := m.store.Begin()
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.wg.Add(1)
	m.mu.Unlock()

	metrics.ScansStarted.Inc()
	go m.run(runCtx, generation, rpcURL, cfg)

	return generation
}

// Wait blocks until all launched scan passes have returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context, generation uint64, rpcURL string, cfg Config) {
	defer m.wg.Done()

	logger := m.logger.With(zap.Uint64("generation", generation))

	chainReader, closeConn, err := m.dial(ctx, rpcURL)
	if err != nil {
		logger.Error("scan failed", zap.Error(err))
		m.store.Finish(generation, model.ScanSummary{}, fmt.Errorf("connect rpc: %w", err))
		return
	}
	defer closeConn()

	scan, err := New(cfg, chainReader, logger)
	if err != nil {
		logger.Error("scan failed", zap.Error(err))
		m.store.Finish(generation, model.ScanSummary{}, err)
		return
	}

	summary, err := scan.Run(ctx, m.store.Bind(generation))
	m.store.Finish(generation, summary, err)

	if err != nil {
		logger.Error("scan failed", zap.Error(err))
		return
	}
	logger.Info("scan complete",
		zap.Uint64("head", summary.Head),
		zap.Int("windows", summary.Windows),
		zap.Int("failed_windows", len(summary.FailedWindows)),
		zap.Int("deposits", summary.Deposits),
		zap.Int("withdrawals", summary.Withdrawals),
		zap.Int("fillers", summary.Fillers),
		zap.Int("skipped", summary.Skipped),
	)
}
