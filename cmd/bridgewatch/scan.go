package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bridgewatch/internal/chain"
	"bridgewatch/internal/config"
	"bridgewatch/internal/scanner"
	"bridgewatch/internal/store"
	pgstore "bridgewatch/internal/store/postgres"
)

func runScan(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(cfg.Contract) {
		return fmt.Errorf("invalid contract address: %s", cfg.Contract)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	sinks := store.Fanout{store.NewJSONLStore(cfg.Out)}
	if cfg.PGDSN != "" {
		pg, err := pgstore.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		sinks = append(sinks, pg)
	}

	scanCfg := scanner.Config{
		Contract:     common.HexToAddress(cfg.Contract),
		FromBlock:    cfg.FromBlock,
		BatchSize:    cfg.BatchSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}
	if cfg.CheckpointEnabled {
		scanCfg.Checkpoint = scanner.NewCheckpointStore(cfg.Checkpoint)
	}

	scan, err := scanner.New(scanCfg, chainClient, logger)
	if err != nil {
		return err
	}

	logger.Info("scan start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("contract", cfg.Contract),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("out", cfg.Out),
		zap.Bool("postgres", cfg.PGDSN != ""),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
	)

	summary, err := scan.Run(ctx, sinks)
	if err != nil {
		return err
	}

	logger.Info("scan complete",
		zap.Uint64("head", summary.Head),
		zap.Int("windows", summary.Windows),
		zap.Int("deposits", summary.Deposits),
		zap.Int("withdrawals", summary.Withdrawals),
		zap.Int("fillers", summary.Fillers),
		zap.Int("skipped", summary.Skipped),
	)
	if len(summary.FailedWindows) > 0 {
		logger.Warn("scan finished with missing windows",
			zap.Int("failed_windows", len(summary.FailedWindows)),
			zap.Any("ranges", summary.FailedWindows),
		)
	}

	return nil
}
