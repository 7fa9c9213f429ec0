package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "bridgewatch",
		Short:        "Bridge event scanner and dashboard API",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a one-shot historical scan to file or Postgres",
		RunE:  runScan,
	}

	scanCmd.Flags().String("rpc", "", "node RPC URL")
	scanCmd.Flags().String("contract", "", "bridge contract address")
	scanCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	scanCmd.Flags().Uint64("batch-size", 1000, "blocks per window")
	scanCmd.Flags().String("out", "./data/events.jsonl", "output JSONL path")
	scanCmd.Flags().String("pg-dsn", "", "Postgres DSN (optional)")
	scanCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	scanCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	scanCmd.Flags().Int("max-retries", 0, "retry attempts per window")
	scanCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	scanCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(scanCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard API",
		RunE:  runServe,
	}

	serveCmd.Flags().String("rpc", "", "node RPC URL")
	serveCmd.Flags().String("contract", "", "bridge contract address")
	serveCmd.Flags().String("explorer", "", "block explorer base URL")
	serveCmd.Flags().StringSlice("operator", nil, "operator public keys (comma-separated)")
	serveCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	serveCmd.Flags().Uint64("batch-size", 1000, "blocks per window")
	serveCmd.Flags().String("listen", ":8080", "listen address")
	serveCmd.Flags().Int("max-retries", 0, "retry attempts per window")
	serveCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(serveCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
