package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"bridgewatch/internal/model"
)

// JSONLStore appends classified events to a JSONL file, one tagged line per
// event.
type JSONLStore struct {
	path string
	mu   sync.Mutex
}

type jsonlLine struct {
	Kind       string                  `json:"kind"`
	Deposit    *model.DepositEvent     `json:"deposit,omitempty"`
	Withdrawal *model.WithdrawalEvent  `json:"withdrawal,omitempty"`
	Filler     *model.FillerAssignment `json:"filler,omitempty"`
}

func NewJSONLStore(path string) *JSONLStore {
	return &JSONLStore{path: path}
}

// ApplyWindow appends the window's events as JSON lines. Failed windows
// carry no entries and produce no output.
func (s *JSONLStore) ApplyWindow(_ context.Context, update model.WindowUpdate) error {
	total := len(update.Deposits) + len(update.Withdrawals) + len(update.Fillers)
	if total == 0 {
		return nil
	}

	lines := make([]jsonlLine, 0, total)
	for i := range update.Deposits {
		lines = append(lines, jsonlLine{Kind: model.KindDeposit, Deposit: &update.Deposits[i]})
	}
	for i := range update.Withdrawals {
		lines = append(lines, jsonlLine{Kind: model.KindWithdrawal, Withdrawal: &update.Withdrawals[i]})
	}
	for i := range update.Fillers {
		lines = append(lines, jsonlLine{Kind: model.KindFillerDeclared, Filler: &update.Fillers[i]})
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, line := range lines {
		data, err := json.Marshal(line)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		if _, err := writer.Write(data); err != nil {
			return fmt.Errorf("write event: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}
