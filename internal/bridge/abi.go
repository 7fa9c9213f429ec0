package bridge

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const bridgeABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "depositId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "recipient", "type": "address"},
      {"indexed": false, "internalType": "bytes32", "name": "withdrawTxid", "type": "bytes32"},
      {"indexed": false, "internalType": "bytes32", "name": "depositTxid", "type": "bytes32"},
      {"indexed": false, "internalType": "uint256", "name": "timestamp", "type": "uint256"}
    ],
    "name": "Deposited",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "index", "type": "uint256"},
      {"indexed": false, "internalType": "bytes32", "name": "utxoTxid", "type": "bytes32"},
      {"indexed": false, "internalType": "uint32", "name": "utxoVout", "type": "uint32"},
      {"indexed": false, "internalType": "uint256", "name": "timestamp", "type": "uint256"}
    ],
    "name": "Withdrawn",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "withdrawId", "type": "uint256"},
      {"indexed": true, "internalType": "uint256", "name": "fillerId", "type": "uint256"}
    ],
    "name": "WithdrawFillerDeclared",
    "type": "event"
  }
]`

var (
	bridgeABI     abi.ABI
	bridgeABIOnce sync.Once
	bridgeABIErr  error
)

// BridgeABI returns the parsed bridge contract ABI.
func BridgeABI() (abi.ABI, error) {
	bridgeABIOnce.Do(func() {
		bridgeABI, bridgeABIErr = abi.JSON(strings.NewReader(bridgeABIJSON))
	})
	return bridgeABI, bridgeABIErr
}
