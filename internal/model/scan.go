package model

// BlockRange is an inclusive range of block numbers.
type BlockRange struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
}

// WindowUpdate carries the outcome of one scanned window. Failed windows
// have Failed set and no entries; progress still advances so callers can
// tell a stalled scan from a lossy one.
type WindowUpdate struct {
	Range       BlockRange         `json:"range"`
	Deposits    []DepositEvent     `json:"deposits,omitempty"`
	Withdrawals []WithdrawalEvent  `json:"withdrawals,omitempty"`
	Fillers     []FillerAssignment `json:"fillers,omitempty"`
	Progress    float64            `json:"progress"`
	Failed      bool               `json:"failed,omitempty"`
}

// ScanSummary is the terminal report of one scan pass. FailedWindows lists
// the ranges whose log query failed, so a completed scan can still be told
// apart from a complete one.
type ScanSummary struct {
	Head          uint64       `json:"head"`
	Windows       int          `json:"windows"`
	FailedWindows []BlockRange `json:"failed_windows,omitempty"`
	Deposits      int          `json:"deposits"`
	Withdrawals   int          `json:"withdrawals"`
	Fillers       int          `json:"fillers"`
	Skipped       int          `json:"skipped"`
}

// ScanState is the lifecycle of a single scan pass.
type ScanState string

const (
	ScanIdle      ScanState = "idle"
	ScanRunning   ScanState = "running"
	ScanCompleted ScanState = "completed"
	ScanFailed    ScanState = "failed"
)
