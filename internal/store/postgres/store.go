package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bridgewatch/internal/model"
)

// Store provides Postgres persistence for classified bridge events. Rows are
// upserted by their stable keys, so replaying a scan is idempotent.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// ApplyWindow upserts the window's events in one batch round trip.
func (s *Store) ApplyWindow(ctx context.Context, update model.WindowUpdate) error {
	total := len(update.Deposits) + len(update.Withdrawals) + len(update.Fillers)
	if total == 0 {
		return nil
	}

	batch := &pgx.Batch{}

	for _, deposit := range update.Deposits {
		batch.Queue(`
			INSERT INTO bridge_deposits (
				deposit_id, withdraw_txid, deposit_txid, recipient, event_ts,
				block_number, tx_hash, log_index, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
			ON CONFLICT (deposit_id)
			DO UPDATE SET
				withdraw_txid = EXCLUDED.withdraw_txid,
				deposit_txid = EXCLUDED.deposit_txid,
				recipient = EXCLUDED.recipient,
				event_ts = EXCLUDED.event_ts,
				block_number = EXCLUDED.block_number,
				tx_hash = EXCLUDED.tx_hash,
				log_index = EXCLUDED.log_index,
				updated_at = now()
		`,
			deposit.DepositID,
			deposit.WithdrawTxid,
			deposit.DepositTxid,
			deposit.Recipient,
			int64(deposit.Timestamp),
			int64(deposit.BlockNumber),
			deposit.TxHash,
			int64(deposit.LogIndex),
		)
	}

	for _, withdrawal := range update.Withdrawals {
		batch.Queue(`
			INSERT INTO bridge_withdrawals (
				utxo_txid, utxo_vout, withdraw_index, event_ts,
				block_number, tx_hash, log_index, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
			ON CONFLICT (utxo_txid, utxo_vout)
			DO UPDATE SET
				withdraw_index = EXCLUDED.withdraw_index,
				event_ts = EXCLUDED.event_ts,
				block_number = EXCLUDED.block_number,
				tx_hash = EXCLUDED.tx_hash,
				log_index = EXCLUDED.log_index,
				updated_at = now()
		`,
			withdrawal.UTXO.Txid,
			int64(withdrawal.UTXO.Vout),
			withdrawal.Index,
			int64(withdrawal.Timestamp),
			int64(withdrawal.BlockNumber),
			withdrawal.TxHash,
			int64(withdrawal.LogIndex),
		)
	}

	for _, filler := range update.Fillers {
		batch.Queue(`
			INSERT INTO bridge_fillers (
				withdraw_id, filler_id, block_number, tx_hash, created_at, updated_at
			) VALUES ($1, $2, $3, $4, now(), now())
			ON CONFLICT (withdraw_id)
			DO UPDATE SET
				filler_id = EXCLUDED.filler_id,
				block_number = EXCLUDED.block_number,
				tx_hash = EXCLUDED.tx_hash,
				updated_at = now()
		`,
			filler.WithdrawID,
			filler.FillerID,
			int64(filler.BlockNumber),
			filler.TxHash,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < total; i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert window [%d, %d]: %w", update.Range.From, update.Range.To, err)
		}
	}
	return nil
}
