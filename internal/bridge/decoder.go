package bridge

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"bridgewatch/internal/model"
)

// Decoder classifies bridge contract logs by topic0 and unpacks them into
// typed events.
type Decoder struct {
	bridgeABI   abi.ABI
	topicToName map[common.Hash]string
}

// NewDecoder builds a decoder for the three bridge events.
func NewDecoder() (*Decoder, error) {
	bridgeABI, err := BridgeABI()
	if err != nil {
		return nil, err
	}

	topicToName := map[common.Hash]string{
		bridgeABI.Events["Deposited"].ID:              model.KindDeposit,
		bridgeABI.Events["Withdrawn"].ID:              model.KindWithdrawal,
		bridgeABI.Events["WithdrawFillerDeclared"].ID: model.KindFillerDeclared,
	}

	return &Decoder{
		bridgeABI:   bridgeABI,
		topicToName: topicToName,
	}, nil
}

// Topics returns the topic0 hashes of the three bridge events, for use in a
// log filter query.
func (d *Decoder) Topics() []common.Hash {
	return []common.Hash{
		d.bridgeABI.Events["Deposited"].ID,
		d.bridgeABI.Events["Withdrawn"].ID,
		d.bridgeABI.Events["WithdrawFillerDeclared"].ID,
	}
}

// CanDecode checks if the topic0 belongs to a bridge event.
func (d *Decoder) CanDecode(topic0 common.Hash) bool {
	_, ok := d.topicToName[topic0]
	return ok
}

// Decode converts a raw log into its classified bridge event. Exactly one
// payload field of the result is populated.
func (d *Decoder) Decode(lg types.Log) (*model.BridgeEvent, error) {
	if len(lg.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[lg.Topics[0]]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", lg.Topics[0].Hex())
	}

	switch name {
	case model.KindDeposit:
		deposit, err := d.decodeDeposited(lg)
		if err != nil {
			return nil, err
		}
		return &model.BridgeEvent{Kind: name, Deposit: &deposit}, nil
	case model.KindWithdrawal:
		withdrawal, err := d.decodeWithdrawn(lg)
		if err != nil {
			return nil, err
		}
		return &model.BridgeEvent{Kind: name, Withdrawal: &withdrawal}, nil
	case model.KindFillerDeclared:
		filler, err := d.decodeFillerDeclared(lg)
		if err != nil {
			return nil, err
		}
		return &model.BridgeEvent{Kind: name, Filler: &filler}, nil
	default:
		return nil, fmt.Errorf("unsupported event: %s", name)
	}
}

func (d *Decoder) decodeDeposited(lg types.Log) (model.DepositEvent, error) {
	event := d.bridgeABI.Events["Deposited"]

	var indexed struct {
		DepositId *big.Int
		Recipient common.Address
	}
	if err := parseIndexed(event, lg.Topics, &indexed); err != nil {
		return model.DepositEvent{}, err
	}

	values, err := unpackNonIndexed(event, lg.Data)
	if err != nil {
		return model.DepositEvent{}, err
	}
	if len(values) != 3 {
		return model.DepositEvent{}, fmt.Errorf("unexpected deposited values: %d", len(values))
	}

	withdrawTxid, err := asBytes32(values[0])
	if err != nil {
		return model.DepositEvent{}, err
	}
	depositTxid, err := asBytes32(values[1])
	if err != nil {
		return model.DepositEvent{}, err
	}
	timestamp, err := asTimestamp(values[2])
	if err != nil {
		return model.DepositEvent{}, err
	}

	return model.DepositEvent{
		DepositID:    indexed.DepositId.String(),
		WithdrawTxid: hexutil.Encode(withdrawTxid[:]),
		DepositTxid:  hexutil.Encode(depositTxid[:]),
		Recipient:    indexed.Recipient.Hex(),
		Timestamp:    timestamp,
		BlockNumber:  lg.BlockNumber,
		TxHash:       lg.TxHash.Hex(),
		LogIndex:     uint64(lg.Index),
	}, nil
}

func (d *Decoder) decodeWithdrawn(lg types.Log) (model.WithdrawalEvent, error) {
	event := d.bridgeABI.Events["Withdrawn"]

	var indexed struct {
		Index *big.Int
	}
	if err := parseIndexed(event, lg.Topics, &indexed); err != nil {
		return model.WithdrawalEvent{}, err
	}

	values, err := unpackNonIndexed(event, lg.Data)
	if err != nil {
		return model.WithdrawalEvent{}, err
	}
	if len(values) != 3 {
		return model.WithdrawalEvent{}, fmt.Errorf("unexpected withdrawn values: %d", len(values))
	}

	utxoTxid, err := asBytes32(values[0])
	if err != nil {
		return model.WithdrawalEvent{}, err
	}
	utxoVout, err := asUint32(values[1])
	if err != nil {
		return model.WithdrawalEvent{}, err
	}
	timestamp, err := asTimestamp(values[2])
	if err != nil {
		return model.WithdrawalEvent{}, err
	}

	return model.WithdrawalEvent{
		UTXO: model.UTXO{
			Txid: hexutil.Encode(utxoTxid[:]),
			Vout: utxoVout,
		},
		Index:       indexed.Index.String(),
		Timestamp:   timestamp,
		BlockNumber: lg.BlockNumber,
		TxHash:      lg.TxHash.Hex(),
		LogIndex:    uint64(lg.Index),
	}, nil
}

func (d *Decoder) decodeFillerDeclared(lg types.Log) (model.FillerAssignment, error) {
	event := d.bridgeABI.Events["WithdrawFillerDeclared"]

	var indexed struct {
		WithdrawId *big.Int
		FillerId   *big.Int
	}
	if err := parseIndexed(event, lg.Topics, &indexed); err != nil {
		return model.FillerAssignment{}, err
	}

	return model.FillerAssignment{
		WithdrawID:  indexed.WithdrawId.String(),
		FillerID:    indexed.FillerId.String(),
		BlockNumber: lg.BlockNumber,
		TxHash:      lg.TxHash.Hex(),
	}, nil
}

func parseIndexed(event abi.Event, topics []common.Hash, out interface{}) error {
	indexed := indexedArguments(event.Inputs)
	if len(topics) != len(indexed)+1 {
		return fmt.Errorf("expected %d topics, got %d", len(indexed)+1, len(topics))
	}
	if err := abi.ParseTopics(out, indexed, topics[1:]); err != nil {
		return fmt.Errorf("parse topics: %w", err)
	}
	return nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, data []byte) ([]interface{}, error) {
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func asBytes32(value interface{}) ([32]byte, error) {
	typed, ok := value.([32]byte)
	if !ok {
		return [32]byte{}, fmt.Errorf("expected bytes32, got %T", value)
	}
	return typed, nil
}

func asUint32(value interface{}) (uint32, error) {
	typed, ok := value.(uint32)
	if !ok {
		return 0, fmt.Errorf("expected uint32, got %T", value)
	}
	return typed, nil
}

// asTimestamp narrows a uint256 timestamp to uint64. Timestamps are epoch
// seconds and fit with room to spare; a value that does not is rejected as
// undecodable rather than silently truncated.
func asTimestamp(value interface{}) (uint64, error) {
	typed, ok := value.(*big.Int)
	if !ok {
		return 0, fmt.Errorf("expected uint256, got %T", value)
	}
	if !typed.IsUint64() {
		return 0, fmt.Errorf("timestamp does not fit in uint64: %s", typed)
	}
	return typed.Uint64(), nil
}
