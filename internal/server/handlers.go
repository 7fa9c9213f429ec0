package server

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bridgewatch/internal/explorer"
	"bridgewatch/internal/model"
)

type listResponse struct {
	Data  interface{} `json:"data"`
	Total int         `json:"total"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// depositView decorates a deposit with explorer hyperlinks for its two
// ledger transaction ids.
type depositView struct {
	model.DepositEvent
	WithdrawTxURL string `json:"withdraw_tx_url,omitempty"`
	DepositTxURL  string `json:"deposit_tx_url,omitempty"`
}

type withdrawalView struct {
	model.WithdrawalEvent
	UTXOTxURL string `json:"utxo_tx_url,omitempty"`
}

func (s *Server) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) getDeposits(c *gin.Context) {
	explorerURL := s.currentSettings().ExplorerURL

	deposits := s.store.Deposits()
	views := make([]depositView, 0, len(deposits))
	for _, deposit := range deposits {
		view := depositView{DepositEvent: deposit}
		if explorerURL != "" {
			view.WithdrawTxURL = s.txURL(explorerURL, deposit.WithdrawTxid)
			view.DepositTxURL = s.txURL(explorerURL, deposit.DepositTxid)
		}
		views = append(views, view)
	}

	c.JSON(http.StatusOK, listResponse{Data: views, Total: len(views)})
}

func (s *Server) getWithdrawals(c *gin.Context) {
	explorerURL := s.currentSettings().ExplorerURL

	withdrawals := s.store.Withdrawals()
	views := make([]withdrawalView, 0, len(withdrawals))
	for _, withdrawal := range withdrawals {
		view := withdrawalView{WithdrawalEvent: withdrawal}
		if explorerURL != "" {
			view.UTXOTxURL = s.txURL(explorerURL, withdrawal.UTXO.Txid)
		}
		views = append(views, view)
	}

	c.JSON(http.StatusOK, listResponse{Data: views, Total: len(views)})
}

func (s *Server) getFillers(c *gin.Context) {
	fillers := s.store.Fillers()
	c.JSON(http.StatusOK, listResponse{Data: fillers, Total: len(fillers)})
}

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Status())
}

func (s *Server) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, s.currentSettings())
}

// putSettings replaces the dashboard configuration and starts a superseding
// scan. Prior results are cleared, not appended to.
func (s *Server) putSettings(c *gin.Context) {
	var incoming Settings
	if err := c.ShouldBindJSON(&incoming); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if incoming.RPCURL == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "rpc_url is required"})
		return
	}
	if !common.IsHexAddress(incoming.Contract) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "contract is not a valid address"})
		return
	}

	s.mu.Lock()
	s.settings = incoming
	s.mu.Unlock()

	generation, err := s.StartScan()
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"settings":   incoming,
		"generation": generation,
	})
}

func (s *Server) txURL(baseURL, txid string) string {
	url, err := explorer.TxURL(baseURL, txid)
	if err != nil {
		s.logger.Warn("explorer link", zap.Error(err), zap.String("txid", txid))
		return ""
	}
	return url
}
