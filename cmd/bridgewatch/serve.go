package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bridgewatch/internal/chain"
	"bridgewatch/internal/config"
	"bridgewatch/internal/scanner"
	"bridgewatch/internal/server"
	"bridgewatch/internal/store"
)

func runServe(cmd *cobra.Command, _ []string) error {
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dial := func(ctx context.Context, rpcURL string) (scanner.ChainReader, func(), error) {
		client, err := chain.NewClient(ctx, rpcURL)
		if err != nil {
			return nil, nil, err
		}
		return client, client.Close, nil
	}

	memStore := store.NewMemoryStore()
	manager := scanner.NewManager(dial, memStore, logger)

	settings := server.Settings{
		RPCURL:      cfg.RPCURL,
		ExplorerURL: cfg.ExplorerURL,
		Contract:    cfg.Contract,
		Operators:   cfg.Operators,
	}
	opts := server.ScanOptions{
		FromBlock:    cfg.FromBlock,
		BatchSize:    cfg.BatchSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}

	srv := server.New(ctx, settings, opts, memStore, manager, logger)

	if cfg.RPCURL != "" && cfg.Contract != "" {
		if _, err := srv.StartScan(); err != nil {
			return err
		}
	} else {
		logger.Warn("no rpc/contract configured, waiting for settings save")
	}

	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: srv.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", zap.String("addr", cfg.Listen))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}

	manager.Wait()
	logger.Info("shutdown complete")
	return nil
}
