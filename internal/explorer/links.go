package explorer

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// TxURL builds a block explorer link for a ledger transaction id. Txids come
// off the wire little-endian; explorers display them big-endian, so the hash
// bytes are reversed before templating.
func TxURL(baseURL, txid string) (string, error) {
	if baseURL == "" {
		return "", fmt.Errorf("explorer base url is empty")
	}

	reversed, err := ReverseTxid(txid)
	if err != nil {
		return "", err
	}

	return strings.TrimRight(baseURL, "/") + "/tx/" + reversed, nil
}

// ReverseTxid byte-reverses a 32-byte hex transaction id and returns it as
// bare hex without the 0x prefix.
func ReverseTxid(txid string) (string, error) {
	data, err := hexutil.Decode(txid)
	if err != nil {
		// Accept bare hex as well.
		data, err = hex.DecodeString(txid)
		if err != nil {
			return "", fmt.Errorf("invalid txid: %s", txid)
		}
	}
	if len(data) != 32 {
		return "", fmt.Errorf("invalid txid length: %d", len(data))
	}

	for i, j := 0, len(data)-1; i < j; i, j = i+1, j-1 {
		data[i], data[j] = data[j], data[i]
	}

	return hex.EncodeToString(data), nil
}
