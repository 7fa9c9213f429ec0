package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"bridgewatch/internal/scanner"
	"bridgewatch/internal/store"
)

// Settings are the dashboard's mutable configuration strings. Saving them
// triggers a fresh scan that supersedes the active one.
type Settings struct {
	RPCURL      string   `json:"rpc_url"`
	ExplorerURL string   `json:"explorer_url"`
	Contract    string   `json:"contract"`
	Operators   []string `json:"operators"`
}

// ScanOptions are the fixed scan parameters that settings saves do not
// change.
type ScanOptions struct {
	FromBlock    uint64
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
}

// Server exposes the accumulated bridge events and scan control over HTTP.
type Server struct {
	ctx     context.Context
	opts    ScanOptions
	store   *store.MemoryStore
	manager *scanner.Manager
	logger  *zap.Logger

	mu       sync.RWMutex
	settings Settings
}

// New builds a Server. ctx bounds the lifetime of scans started from
// handlers.
func New(ctx context.Context, settings Settings, opts ScanOptions, st *store.MemoryStore, manager *scanner.Manager, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		ctx:      ctx,
		opts:     opts,
		store:    st,
		manager:  manager,
		logger:   logger,
		settings: settings,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.getHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/deposits", s.getDeposits)
		api.GET("/withdrawals", s.getWithdrawals)
		api.GET("/fillers", s.getFillers)
		api.GET("/status", s.getStatus)
		api.GET("/settings", s.getSettings)
		api.PUT("/settings", s.putSettings)
	}

	return r
}

// StartScan validates the current settings and launches a superseding scan.
func (s *Server) StartScan() (uint64, error) {
	s.mu.RLock()
	settings := s.settings
	s.mu.RUnlock()

	if settings.RPCURL == "" {
		return 0, fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(settings.Contract) {
		return 0, fmt.Errorf("invalid contract address: %s", settings.Contract)
	}

	cfg := scanner.Config{
		Contract:     common.HexToAddress(settings.Contract),
		FromBlock:    s.opts.FromBlock,
		BatchSize:    s.opts.BatchSize,
		MaxRetries:   s.opts.MaxRetries,
		RetryBackoff: s.opts.RetryBackoff,
	}

	generation := s.manager.Start(s.ctx, settings.RPCURL, cfg)
	s.logger.Info("scan started",
		zap.Uint64("generation", generation),
		zap.String("contract", settings.Contract),
	)
	return generation, nil
}

func (s *Server) currentSettings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}
