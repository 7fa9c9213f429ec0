package store

import (
	"context"
	"sync"
	"time"

	"bridgewatch/internal/model"
)

// Status is a point-in-time view of the store and its active scan.
type Status struct {
	State         model.ScanState    `json:"state"`
	Generation    uint64             `json:"generation"`
	Progress      float64            `json:"progress"`
	Head          uint64             `json:"head"`
	Deposits      int                `json:"deposits"`
	Withdrawals   int                `json:"withdrawals"`
	Fillers       int                `json:"fillers"`
	FailedWindows []model.BlockRange `json:"failed_windows,omitempty"`
	LastError     string             `json:"last_error,omitempty"`
	StartedAt     *time.Time         `json:"started_at,omitempty"`
	FinishedAt    *time.Time         `json:"finished_at,omitempty"`
}

// MemoryStore accumulates classified events for the dashboard API. Each scan
// pass runs under a generation; starting a new generation clears the
// collections, and writes from superseded generations are dropped. Entries
// are de-duplicated by their stable keys, so replaying a window is
// idempotent.
type MemoryStore struct {
	mu sync.RWMutex

	generation uint64
	state      model.ScanState
	progress   float64
	head       uint64
	lastError  string
	startedAt  time.Time
	finishedAt time.Time

	deposits       []model.DepositEvent
	depositKeys    map[string]struct{}
	withdrawals    []model.WithdrawalEvent
	withdrawalKeys map[string]struct{}
	fillers        map[string]model.FillerAssignment
	fillerOrder    []string
	failed         []model.BlockRange
}

// NewMemoryStore builds an empty store in the idle state.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state:          model.ScanIdle,
		depositKeys:    make(map[string]struct{}),
		withdrawalKeys: make(map[string]struct{}),
		fillers:        make(map[string]model.FillerAssignment),
	}
}

// Begin starts a new scan generation: prior results are cleared and the
// store transitions to running. Returns the new generation.
func (s *MemoryStore) Begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.state = model.ScanRunning
	s.progress = 0
	s.head = 0
	s.lastError = ""
	s.startedAt = time.Now().UTC()
	s.finishedAt = time.Time{}

	s.deposits = nil
	s.depositKeys = make(map[string]struct{})
	s.withdrawals = nil
	s.withdrawalKeys = make(map[string]struct{})
	s.fillers = make(map[string]model.FillerAssignment)
	s.fillerOrder = nil
	s.failed = nil

	return s.generation
}

// Bind returns a Sink whose writes are tagged with the given generation.
// Writes from generations other than the current one are silently dropped.
func (s *MemoryStore) Bind(generation uint64) Sink {
	return &boundSink{store: s, generation: generation}
}

type boundSink struct {
	store      *MemoryStore
	generation uint64
}

func (b *boundSink) ApplyWindow(_ context.Context, update model.WindowUpdate) error {
	b.store.applyWindow(b.generation, update)
	return nil
}

func (s *MemoryStore) applyWindow(generation uint64, update model.WindowUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation {
		return
	}

	if update.Failed {
		s.failed = append(s.failed, update.Range)
	}

	for _, deposit := range update.Deposits {
		key := deposit.Key()
		if _, ok := s.depositKeys[key]; ok {
			continue
		}
		s.depositKeys[key] = struct{}{}
		s.deposits = append(s.deposits, deposit)
	}

	for _, withdrawal := range update.Withdrawals {
		key := withdrawal.Key()
		if _, ok := s.withdrawalKeys[key]; ok {
			continue
		}
		s.withdrawalKeys[key] = struct{}{}
		s.withdrawals = append(s.withdrawals, withdrawal)
	}

	for _, filler := range update.Fillers {
		if _, ok := s.fillers[filler.WithdrawID]; !ok {
			s.fillerOrder = append(s.fillerOrder, filler.WithdrawID)
		}
		s.fillers[filler.WithdrawID] = filler
	}

	if update.Progress > s.progress {
		s.progress = update.Progress
	}
}

// Finish records the terminal state of a scan generation. A nil error marks
// the scan completed; otherwise failed with the error retained for the API.
func (s *MemoryStore) Finish(generation uint64, summary model.ScanSummary, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation {
		return
	}

	s.head = summary.Head
	s.finishedAt = time.Now().UTC()
	if err != nil {
		s.state = model.ScanFailed
		s.lastError = err.Error()
		return
	}
	s.state = model.ScanCompleted
	s.progress = 100
}

// Deposits returns a copy of the accumulated deposits in chain order.
func (s *MemoryStore) Deposits() []model.DepositEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.DepositEvent, len(s.deposits))
	copy(out, s.deposits)
	return out
}

// Withdrawals returns a copy of the accumulated withdrawals in chain order.
func (s *MemoryStore) Withdrawals() []model.WithdrawalEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.WithdrawalEvent, len(s.withdrawals))
	copy(out, s.withdrawals)
	return out
}

// Fillers returns the filler assignments in first-seen order, with later
// declarations for the same withdraw id already folded in.
func (s *MemoryStore) Fillers() []model.FillerAssignment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.FillerAssignment, 0, len(s.fillerOrder))
	for _, id := range s.fillerOrder {
		out = append(out, s.fillers[id])
	}
	return out
}

// Status reports the current scan lifecycle and collection sizes.
func (s *MemoryStore) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := Status{
		State:       s.state,
		Generation:  s.generation,
		Progress:    s.progress,
		Head:        s.head,
		Deposits:    len(s.deposits),
		Withdrawals: len(s.withdrawals),
		Fillers:     len(s.fillers),
		LastError:   s.lastError,
	}
	if len(s.failed) > 0 {
		status.FailedWindows = make([]model.BlockRange, len(s.failed))
		copy(status.FailedWindows, s.failed)
	}
	if !s.startedAt.IsZero() {
		startedAt := s.startedAt
		status.StartedAt = &startedAt
	}
	if !s.finishedAt.IsZero() {
		finishedAt := s.finishedAt
		status.FinishedAt = &finishedAt
	}
	return status
}
