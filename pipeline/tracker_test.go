package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kbukum/pipekit/store"
)

func trackedRecord(id string, status RunStatus, start time.Time) *RunRecord {
	return &RunRecord{
		RunID:    id,
		Pipeline: "sensors",
		Start:    start,
		End:      start.Add(time.Minute),
		Status:   status,
		Stages: map[string]StageOutcome{
			"harvest": {Stage: "harvest", Status: StageSuccess, Duration: time.Second},
		},
	}
}

func TestRunTracker_RecordAndHistory(t *testing.T) {
	ctx := context.Background()
	tr := NewRunTracker("sensors", store.NewMemory())
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	for i, status := range []RunStatus{RunSuccess, RunFailure, RunPartialFailure} {
		rec := trackedRecord(string(rune('a'+i)), status, base.Add(time.Duration(i)*time.Hour))
		if err := tr.Record(ctx, rec); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	history, err := tr.History(ctx, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 tracked runs, got %d", len(history))
	}
	if history[0].RunID != "c" {
		t.Fatalf("expected most recent run first, got %s", history[0].RunID)
	}

	limited, err := tr.History(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("expected limited history of 1, got %d (err=%v)", len(limited), err)
	}
}

func TestRunTracker_LastSuccessful(t *testing.T) {
	ctx := context.Background()
	tr := NewRunTracker("sensors", store.NewMemory())
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	_ = tr.Record(ctx, trackedRecord("ok", RunSuccess, base))
	_ = tr.Record(ctx, trackedRecord("bad", RunFailure, base.Add(time.Hour)))

	last, ok, err := tr.LastSuccessful(ctx)
	if err != nil || !ok {
		t.Fatalf("expected a successful run (ok=%v err=%v)", ok, err)
	}
	if last.RunID != "ok" {
		t.Fatalf("expected run 'ok', got %s", last.RunID)
	}
}

func TestRunTracker_LastSuccessfulAbsent(t *testing.T) {
	tr := NewRunTracker("sensors", store.NewMemory())
	_, ok, err := tr.LastSuccessful(context.Background())
	if err != nil || ok {
		t.Fatalf("expected no successful run (ok=%v err=%v)", ok, err)
	}
}

func TestRunTracker_RejectsNonTerminalRun(t *testing.T) {
	tr := NewRunTracker("sensors", store.NewMemory())
	rec := &RunRecord{RunID: "live", Pipeline: "sensors", Start: time.Now()}
	if err := tr.Record(context.Background(), rec); err == nil {
		t.Fatal("expected error for non-terminal run")
	}
}

func TestRunTracker_BoundsHistory(t *testing.T) {
	ctx := context.Background()
	tr := NewRunTracker("sensors", store.NewMemory())
	tr.MaxHistory = 2
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		rec := trackedRecord(string(rune('a'+i)), RunSuccess, base.Add(time.Duration(i)*time.Hour))
		if err := tr.Record(ctx, rec); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	history, err := tr.History(ctx, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected bounded history of 2, got %d", len(history))
	}
	if history[0].RunID != "e" || history[1].RunID != "d" {
		t.Fatalf("expected most recent runs kept, got %s, %s", history[0].RunID, history[1].RunID)
	}
}

func TestRunTracker_ErrorsAreTracked(t *testing.T) {
	ctx := context.Background()
	tr := NewRunTracker("sensors", store.NewMemory())

	rec := trackedRecord("x", RunFailure, time.Now())
	rec.Stages["catalog"] = StageOutcome{
		Stage:  "catalog",
		Status: StageFailed,
		Err:    Permanent(errors.New("ckan rejected dataset")),
	}
	if err := tr.Record(ctx, rec); err != nil {
		t.Fatalf("record: %v", err)
	}

	history, _ := tr.History(ctx, 1)
	ts := history[0].Stages["catalog"]
	if ts.Status != StageFailed || ts.Error == "" {
		t.Fatalf("expected failed stage with error detail, got %+v", ts)
	}
}
