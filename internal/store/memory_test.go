package store

import (
	"context"
	"testing"

	"bridgewatch/internal/model"
)

func depositUpdate(from, to uint64, ids ...string) model.WindowUpdate {
	update := model.WindowUpdate{Range: model.BlockRange{From: from, To: to}}
	for _, id := range ids {
		update.Deposits = append(update.Deposits, model.DepositEvent{DepositID: id})
	}
	return update
}

func TestMemoryStoreDeduplicates(t *testing.T) {
	s := NewMemoryStore()
	gen := s.Begin()
	sink := s.Bind(gen)

	ctx := context.Background()
	if err := sink.ApplyWindow(ctx, depositUpdate(0, 999, "1", "2")); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := sink.ApplyWindow(ctx, depositUpdate(0, 999, "2", "3")); err != nil {
		t.Fatalf("apply: %v", err)
	}

	deposits := s.Deposits()
	if len(deposits) != 3 {
		t.Fatalf("expected 3 deposits, got %d", len(deposits))
	}
	if deposits[0].DepositID != "1" || deposits[2].DepositID != "3" {
		t.Fatalf("order mismatch: %+v", deposits)
	}
}

func TestMemoryStoreGenerationSupersedes(t *testing.T) {
	s := NewMemoryStore()
	stale := s.Bind(s.Begin())

	ctx := context.Background()
	if err := stale.ApplyWindow(ctx, depositUpdate(0, 999, "1")); err != nil {
		t.Fatalf("apply: %v", err)
	}

	gen := s.Begin()
	if len(s.Deposits()) != 0 {
		t.Fatalf("begin did not clear deposits")
	}

	// Writes from the superseded scan must be dropped.
	if err := stale.ApplyWindow(ctx, depositUpdate(1000, 1999, "9")); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(s.Deposits()) != 0 {
		t.Fatalf("stale write was applied")
	}

	fresh := s.Bind(gen)
	if err := fresh.ApplyWindow(ctx, depositUpdate(0, 999, "5")); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := s.Deposits(); len(got) != 1 || got[0].DepositID != "5" {
		t.Fatalf("fresh write missing: %+v", got)
	}

	s.Finish(gen-1, model.ScanSummary{}, nil)
	if s.Status().State != model.ScanRunning {
		t.Fatalf("stale finish changed state")
	}
}

func TestMemoryStoreFillerUpsert(t *testing.T) {
	s := NewMemoryStore()
	sink := s.Bind(s.Begin())

	ctx := context.Background()
	err := sink.ApplyWindow(ctx, model.WindowUpdate{
		Fillers: []model.FillerAssignment{
			{WithdrawID: "7", FillerID: "1"},
			{WithdrawID: "8", FillerID: "2"},
		},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	err = sink.ApplyWindow(ctx, model.WindowUpdate{
		Fillers: []model.FillerAssignment{
			{WithdrawID: "7", FillerID: "3"},
		},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	fillers := s.Fillers()
	if len(fillers) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(fillers))
	}
	if fillers[0].WithdrawID != "7" || fillers[0].FillerID != "3" {
		t.Fatalf("later declaration did not win: %+v", fillers[0])
	}
}

func TestMemoryStoreStatusLifecycle(t *testing.T) {
	s := NewMemoryStore()
	if s.Status().State != model.ScanIdle {
		t.Fatalf("expected idle state")
	}

	gen := s.Begin()
	sink := s.Bind(gen)
	ctx := context.Background()

	if err := sink.ApplyWindow(ctx, model.WindowUpdate{
		Range:    model.BlockRange{From: 0, To: 999},
		Progress: 40,
		Failed:   true,
	}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	status := s.Status()
	if status.State != model.ScanRunning || status.Progress != 40 {
		t.Fatalf("status mismatch: %+v", status)
	}
	if len(status.FailedWindows) != 1 || status.FailedWindows[0].To != 999 {
		t.Fatalf("failed window not recorded: %+v", status.FailedWindows)
	}

	s.Finish(gen, model.ScanSummary{Head: 2500}, nil)
	status = s.Status()
	if status.State != model.ScanCompleted || status.Progress != 100 || status.Head != 2500 {
		t.Fatalf("completed status mismatch: %+v", status)
	}
	if status.FinishedAt == nil {
		t.Fatalf("finished time missing")
	}
}
