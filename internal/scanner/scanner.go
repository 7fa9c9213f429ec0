package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"bridgewatch/internal/bridge"
	"bridgewatch/internal/metrics"
	"bridgewatch/internal/model"
	"bridgewatch/internal/store"
)

// ChainReader is the read-only slice of the chain client the scanner needs.
type ChainReader interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, address common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// Config holds runtime settings for a scan pass.
type Config struct {
	Contract     common.Address
	FromBlock    uint64
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
	Checkpoint   *CheckpointStore
}

// Scanner pages the bridge contract's historical logs in fixed-size block
// windows, classifies each entry, and publishes one update per window to a
// sink. A failed window is recorded and skipped; the scan keeps going. Only
// the head query, a sink failure, or cancellation abort the pass.
type Scanner struct {
	cfg     Config
	chain   ChainReader
	decoder *bridge.Decoder
	logger  *zap.Logger
	seen    map[string]struct{}
}

// New builds a Scanner with its dependencies.
func New(cfg Config, chain ChainReader, logger *zap.Logger) (*Scanner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	decoder, err := bridge.NewDecoder()
	if err != nil {
		return nil, err
	}
	return &Scanner{
		cfg:     cfg,
		chain:   chain,
		decoder: decoder,
		logger:  logger,
		seen:    make(map[string]struct{}),
	}, nil
}

// Run executes one scan pass from the configured start block to the chain
// head. The returned summary lists the windows whose query failed, so the
// caller can tell a finished scan apart from a complete one.
func (s *Scanner) Run(ctx context.Context, sink store.Sink) (model.ScanSummary, error) {
	if s.chain == nil {
		return model.ScanSummary{}, fmt.Errorf("chain reader is nil")
	}
	if sink == nil {
		return model.ScanSummary{}, fmt.Errorf("sink is nil")
	}
	if s.cfg.BatchSize == 0 {
		return model.ScanSummary{}, fmt.Errorf("batch size must be greater than zero")
	}

	head, err := s.chain.LatestBlockNumber(ctx)
	if err != nil {
		return model.ScanSummary{}, fmt.Errorf("get chain head: %w", err)
	}
	metrics.ChainHead.Set(float64(head))

	from := s.cfg.FromBlock
	if s.cfg.Checkpoint != nil {
		cp, ok, err := s.cfg.Checkpoint.Load()
		if err != nil {
			return model.ScanSummary{}, err
		}
		if ok && cp.LastScannedBlock >= from {
			from = cp.LastScannedBlock + 1
			s.logger.Info("resume from checkpoint", zap.Uint64("last_scanned", cp.LastScannedBlock), zap.Uint64("from", from))
		}
	}

	summary := model.ScanSummary{Head: head}
	if from > head {
		s.logger.Info("nothing to scan", zap.Uint64("from", from), zap.Uint64("head", head))
		return summary, nil
	}

	windows, err := Windows(from, head, s.cfg.BatchSize)
	if err != nil {
		return summary, err
	}
	summary.Windows = len(windows)

	span := head - from + 1
	var done uint64

	for _, window := range windows {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		s.logger.Debug("fetch logs", zap.Uint64("from", window.From), zap.Uint64("to", window.To))

		done += window.To - window.From + 1
		progress := float64(done) / float64(span) * 100

		logs, err := s.filterLogsWithRetry(ctx, window)
		if err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			s.logger.Warn("window failed",
				zap.Error(err),
				zap.Uint64("from", window.From),
				zap.Uint64("to", window.To),
			)
			summary.FailedWindows = append(summary.FailedWindows, window)
			metrics.FailedWindows.Inc()

			if err := sink.ApplyWindow(ctx, model.WindowUpdate{
				Range:    window,
				Progress: progress,
				Failed:   true,
			}); err != nil {
				return summary, fmt.Errorf("apply window: %w", err)
			}
			metrics.ScanProgress.Set(progress)
			continue
		}

		update := s.classify(window, logs, &summary)
		update.Progress = progress

		if err := sink.ApplyWindow(ctx, update); err != nil {
			return summary, fmt.Errorf("apply window: %w", err)
		}
		metrics.ScanProgress.Set(progress)

		if s.cfg.Checkpoint != nil {
			if err := s.cfg.Checkpoint.Save(window.To, head); err != nil {
				return summary, err
			}
		}

		s.logger.Info("window complete",
			zap.Uint64("from", window.From),
			zap.Uint64("to", window.To),
			zap.Int("deposits", len(update.Deposits)),
			zap.Int("withdrawals", len(update.Withdrawals)),
			zap.Int("fillers", len(update.Fillers)),
		)
	}

	return summary, nil
}

func (s *Scanner) classify(window model.BlockRange, logs []types.Log, summary *model.ScanSummary) model.WindowUpdate {
	update := model.WindowUpdate{Range: window}

	for _, lg := range logs {
		if s.isDuplicate(lg) {
			continue
		}

		event, err := s.decoder.Decode(lg)
		if err != nil {
			summary.Skipped++
			metrics.SkippedLogs.Inc()
			s.logger.Warn("skip undecodable log",
				zap.Error(err),
				zap.Uint64("block_number", lg.BlockNumber),
				zap.String("tx_hash", lg.TxHash.Hex()),
				zap.Uint("log_index", lg.Index),
			)
			continue
		}

		metrics.EventsClassified.WithLabelValues(event.Kind).Inc()
		switch event.Kind {
		case model.KindDeposit:
			update.Deposits = append(update.Deposits, *event.Deposit)
			summary.Deposits++
		case model.KindWithdrawal:
			update.Withdrawals = append(update.Withdrawals, *event.Withdrawal)
			summary.Withdrawals++
		case model.KindFillerDeclared:
			update.Fillers = append(update.Fillers, *event.Filler)
			summary.Fillers++
		}
	}

	return update
}

func (s *Scanner) filterLogsWithRetry(ctx context.Context, window model.BlockRange) ([]types.Log, error) {
	policy := retryPolicy{MaxRetries: s.cfg.MaxRetries, Backoff: s.cfg.RetryBackoff}

	notify := func(attempt int, delay time.Duration, err error) {
		s.logger.Warn("retry window",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Uint64("from", window.From),
			zap.Uint64("to", window.To),
		)
	}

	var logs []types.Log
	err := policy.do(ctx, notify, func(ctx context.Context) error {
		var err error
		logs, err = s.chain.FilterLogs(ctx, window.From, window.To, s.cfg.Contract, s.decoder.Topics())
		return err
	})
	return logs, err
}

func (s *Scanner) isDuplicate(lg types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", lg.BlockNumber, lg.TxHash.Hex(), lg.Index)
	if _, ok := s.seen[id]; ok {
		return true
	}
	s.seen[id] = struct{}{}
	return false
}
