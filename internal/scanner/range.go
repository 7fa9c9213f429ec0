package scanner

import (
	"fmt"

	"bridgewatch/internal/model"
)

// Windows splits [from, to] into contiguous inclusive windows of at most
// batchSize blocks.
func Windows(from, to, batchSize uint64) ([]model.BlockRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to block must be >= from block")
	}

	windows := make([]model.BlockRange, 0)
	start := from
	for start <= to {
		remaining := to - start + 1
		var end uint64
		if remaining <= batchSize {
			end = to
		} else {
			end = start + batchSize - 1
		}
		windows = append(windows, model.BlockRange{From: start, To: end})
		if end == to {
			break
		}
		start = end + 1
	}

	return windows, nil
}
