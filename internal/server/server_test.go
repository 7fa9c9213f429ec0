package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bridgewatch/internal/bridge"
	"bridgewatch/internal/model"
	"bridgewatch/internal/scanner"
	"bridgewatch/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubChain struct {
	head uint64
	logs []types.Log
	err  error
}

func (s *stubChain) LatestBlockNumber(_ context.Context) (uint64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.head, nil
}

func (s *stubChain) FilterLogs(_ context.Context, fromBlock, toBlock uint64, _ common.Address, _ []common.Hash) ([]types.Log, error) {
	var out []types.Log
	for _, lg := range s.logs {
		if lg.BlockNumber >= fromBlock && lg.BlockNumber <= toBlock {
			out = append(out, lg)
		}
	}
	return out, nil
}

func testDepositLog(t *testing.T, block uint64, depositID int64) types.Log {
	t.Helper()

	bridgeABI, err := bridge.BridgeABI()
	require.NoError(t, err)

	data, err := bridgeABI.Events["Deposited"].Inputs.NonIndexed().Pack(
		[32]byte{0xaa},
		[32]byte{0xbb},
		big.NewInt(1700000000),
	)
	require.NoError(t, err)

	return types.Log{
		Address: common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Topics: []common.Hash{
			bridgeABI.Events["Deposited"].ID,
			common.BigToHash(big.NewInt(depositID)),
			common.BytesToHash(common.LeftPadBytes(common.HexToAddress("0x22").Bytes(), 32)),
		},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.BigToHash(big.NewInt(depositID)),
	}
}

func newTestServer(chain scanner.ChainReader) (*Server, *store.MemoryStore) {
	memStore := store.NewMemoryStore()
	dial := func(_ context.Context, _ string) (scanner.ChainReader, func(), error) {
		if chain == nil {
			return nil, nil, fmt.Errorf("no chain")
		}
		return chain, func() {}, nil
	}
	manager := scanner.NewManager(dial, memStore, zap.NewNop())

	settings := Settings{
		RPCURL:      "http://node.example",
		ExplorerURL: "https://explorer.example",
		Contract:    "0x1111111111111111111111111111111111111111",
		Operators:   []string{"key1", "key2"},
	}

	srv := New(context.Background(), settings, ScanOptions{BatchSize: 1000}, memStore, manager, zap.NewNop())
	return srv, memStore
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetDepositsWithExplorerLinks(t *testing.T) {
	srv, memStore := newTestServer(nil)
	router := srv.Router()

	gen := memStore.Begin()
	sink := memStore.Bind(gen)
	err := sink.ApplyWindow(context.Background(), model.WindowUpdate{
		Deposits: []model.DepositEvent{{
			DepositID:    "1",
			WithdrawTxid: "0x0000000000000000000000000000000000000000000000000000000000000001",
			DepositTxid:  "0x0200000000000000000000000000000000000000000000000000000000000000",
		}},
	})
	require.NoError(t, err)

	w := doJSON(t, router, http.MethodGet, "/api/deposits", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data  []depositView `json:"data"`
		Total int           `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)

	deposit := resp.Data[0]
	assert.Equal(t, "1", deposit.DepositID)
	assert.Equal(t,
		"https://explorer.example/tx/0100000000000000000000000000000000000000000000000000000000000000",
		deposit.WithdrawTxURL,
	)
	assert.Equal(t,
		"https://explorer.example/tx/0000000000000000000000000000000000000000000000000000000000000002",
		deposit.DepositTxURL,
	)
}

func TestGetStatusAndSettings(t *testing.T) {
	srv, memStore := newTestServer(nil)
	router := srv.Router()

	w := doJSON(t, router, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var status store.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, model.ScanIdle, status.State)

	memStore.Begin()

	w = doJSON(t, router, http.MethodGet, "/api/status", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, model.ScanRunning, status.State)

	w = doJSON(t, router, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var settings Settings
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &settings))
	assert.Equal(t, []string{"key1", "key2"}, settings.Operators)
}

func TestPutSettingsValidation(t *testing.T) {
	srv, _ := newTestServer(nil)
	router := srv.Router()

	w := doJSON(t, router, http.MethodPut, "/api/settings", Settings{
		Contract: "0x1111111111111111111111111111111111111111",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPut, "/api/settings", Settings{
		RPCURL:   "http://node.example",
		Contract: "not-an-address",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPutSettingsTriggersScan(t *testing.T) {
	chain := &stubChain{
		head: 999,
		logs: []types.Log{testDepositLog(t, 10, 7)},
	}
	srv, memStore := newTestServer(chain)
	router := srv.Router()

	w := doJSON(t, router, http.MethodPut, "/api/settings", Settings{
		RPCURL:      "http://node.example",
		ExplorerURL: "https://explorer.example",
		Contract:    "0x1111111111111111111111111111111111111111",
	})
	require.Equal(t, http.StatusOK, w.Code)

	deadline := time.After(5 * time.Second)
	for memStore.Status().State != model.ScanCompleted {
		select {
		case <-deadline:
			t.Fatalf("scan did not complete: %+v", memStore.Status())
		case <-time.After(5 * time.Millisecond):
		}
	}

	status := memStore.Status()
	assert.Equal(t, float64(100), status.Progress)
	assert.Equal(t, 1, status.Deposits)

	deposits := memStore.Deposits()
	require.Len(t, deposits, 1)
	assert.Equal(t, "7", deposits[0].DepositID)
}
