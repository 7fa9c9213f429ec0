package model

import "fmt"

// UTXO identifies a spent output on the bridged ledger.
type UTXO struct {
	Txid string `json:"txid"`
	Vout uint32 `json:"vout"`
}

// Key returns the stable identity of the output.
func (u UTXO) Key() string {
	return fmt.Sprintf("%s:%d", u.Txid, u.Vout)
}

// DepositEvent is a decoded Deposited log entry.
type DepositEvent struct {
	DepositID    string `json:"deposit_id"`
	WithdrawTxid string `json:"withdraw_txid"`
	DepositTxid  string `json:"deposit_txid"`
	Recipient    string `json:"recipient"`
	Timestamp    uint64 `json:"timestamp"`
	BlockNumber  uint64 `json:"block_number"`
	TxHash       string `json:"tx_hash"`
	LogIndex     uint64 `json:"log_index"`
}

// Key returns the stable identity used for de-duplication.
func (d DepositEvent) Key() string {
	return d.DepositID
}

// WithdrawalEvent is a decoded Withdrawn log entry.
type WithdrawalEvent struct {
	UTXO        UTXO   `json:"utxo"`
	Index       string `json:"index"`
	Timestamp   uint64 `json:"timestamp"`
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
}

// Key returns the stable identity used for de-duplication.
func (w WithdrawalEvent) Key() string {
	return w.UTXO.Key()
}

// FillerAssignment maps a withdrawal id to the filler that declared it.
// The mapping is keyed by withdraw id; a later declaration overwrites an
// earlier one.
type FillerAssignment struct {
	WithdrawID  string `json:"withdraw_id"`
	FillerID    string `json:"filler_id"`
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
}

// Event kinds as routed by the scanner.
const (
	KindDeposit        = "Deposited"
	KindWithdrawal     = "Withdrawn"
	KindFillerDeclared = "WithdrawFillerDeclared"
)

// BridgeEvent is the classification result for a single log entry. Exactly
// one of the payload fields is set, matching Kind.
type BridgeEvent struct {
	Kind       string
	Deposit    *DepositEvent
	Withdrawal *WithdrawalEvent
	Filler     *FillerAssignment
}
