package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kbukum/pipekit/store"
)

// trackerStage is the pseudo stage identity run history lives under in the
// store; it can never collide with a real stage because Build rejects empty
// names and the engine only writes stage outputs for graph nodes.
const trackerStage = "pipeline:run_history"

// TrackedRun is the persisted, output-elided form of a RunRecord.
type TrackedRun struct {
	RunID    string                  `json:"run_id"`
	Pipeline string                  `json:"pipeline"`
	Start    time.Time               `json:"start"`
	End      time.Time               `json:"end"`
	Status   RunStatus               `json:"status"`
	Stages   map[string]TrackedStage `json:"stages"`
}

// TrackedStage is the persisted form of a StageOutcome. Outputs are elided;
// only the store holds stage outputs.
type TrackedStage struct {
	Status   StageStatus   `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// RunTracker persists finalized run records for observability across
// scheduled runs. It shares the Store keyspace under a reserved stage id.
type RunTracker struct {
	pipelineID string
	store      store.Store
	// MaxHistory bounds stored records (0 keeps the default of 100).
	MaxHistory int
}

// NewRunTracker creates a tracker for one pipeline.
func NewRunTracker(pipelineID string, s store.Store) *RunTracker {
	return &RunTracker{pipelineID: pipelineID, store: s}
}

// Record appends a finalized run to the persisted history.
func (t *RunTracker) Record(ctx context.Context, rec *RunRecord) error {
	if !rec.Terminal() {
		return fmt.Errorf("pipeline: refusing to track non-terminal run %s", rec.RunID)
	}

	history, err := t.load(ctx)
	if err != nil {
		return err
	}

	history = append(history, trackRun(rec))
	if max := t.maxHistory(); len(history) > max {
		history = history[len(history)-max:]
	}
	return t.store.Put(ctx, t.pipelineID, trackerStage, history, time.Now())
}

// load returns history in stored (append) order.
func (t *RunTracker) load(ctx context.Context) ([]TrackedRun, error) {
	st, ok, err := t.store.Get(ctx, t.pipelineID, trackerStage)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return store.Decode[[]TrackedRun](st)
}

// History returns tracked runs, most recent first. A limit of 0 returns all.
func (t *RunTracker) History(ctx context.Context, limit int) ([]TrackedRun, error) {
	history, err := t.load(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(history, func(i, j int) bool {
		return history[i].Start.After(history[j].Start)
	})
	if limit > 0 && len(history) > limit {
		history = history[:limit]
	}
	return history, nil
}

// LastSuccessful returns the most recent fully successful run, if any.
func (t *RunTracker) LastSuccessful(ctx context.Context) (*TrackedRun, bool, error) {
	history, err := t.History(ctx, 0)
	if err != nil {
		return nil, false, err
	}
	for i := range history {
		if history[i].Status == RunSuccess {
			return &history[i], true, nil
		}
	}
	return nil, false, nil
}

func (t *RunTracker) maxHistory() int {
	if t.MaxHistory <= 0 {
		return 100
	}
	return t.MaxHistory
}

func trackRun(rec *RunRecord) TrackedRun {
	tr := TrackedRun{
		RunID:    rec.RunID,
		Pipeline: rec.Pipeline,
		Start:    rec.Start,
		End:      rec.End,
		Status:   rec.Status,
		Stages:   make(map[string]TrackedStage, len(rec.Stages)),
	}
	for name, oc := range rec.Stages {
		ts := TrackedStage{Status: oc.Status, Duration: oc.Duration}
		if oc.Err != nil {
			ts.Error = oc.Err.Error()
		}
		tr.Stages[name] = ts
	}
	return tr
}
