package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/pipekit/logger"
	"github.com/kbukum/pipekit/store"
)

// CommitPolicy controls when successful stage outputs reach the store.
type CommitPolicy string

const (
	// CommitEachStage writes each stage's output immediately after the stage
	// succeeds, even if a later stage fails the run.
	CommitEachStage CommitPolicy = "each_stage"
	// CommitOnSuccess stages writes in memory and flushes them only when the
	// whole run succeeds; partial and failed runs leave the store untouched.
	CommitOnSuccess CommitPolicy = "on_success"
)

// Engine executes a validated Graph in dependency order.
//
// Stages with no ancestor-descendant relation run concurrently, bounded by
// MaxParallel. A stage never starts before every predecessor it listens to
// has completed successfully. The zero Engine is usable: stateless,
// unbounded parallelism within a level, no logging.
type Engine struct {
	// MaxParallel limits concurrent stages per dependency level (0 = unlimited).
	MaxParallel int
	// Store receives successful stage outputs; nil runs purely stateless.
	Store store.Store
	// Commit selects the store write policy. Empty means CommitEachStage.
	Commit CommitPolicy
	// Logger, when set, logs per-stage and per-run outcomes.
	Logger *logger.Logger
}

// RunOption configures a single run.
type RunOption func(*runOptions)

type runOptions struct {
	input any
}

// WithInput supplies the initial external input handed to root stages.
func WithInput(in any) RunOption {
	return func(o *runOptions) { o.input = in }
}

type stagedWrite struct {
	stage string
	value any
	ts    time.Time
}

// Run executes the graph and returns a finalized RunRecord containing one
// outcome per stage. Failures are expressed in the record, not the error;
// the returned error is non-nil only for context cancellation or a failed
// commit flush.
func (e *Engine) Run(ctx context.Context, g *Graph, opts ...RunOption) (*RunRecord, error) {
	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}

	log := e.Logger
	if log != nil {
		log = log.WithComponent("engine")
	}

	rec := &RunRecord{
		RunID:    uuid.NewString(),
		Pipeline: g.ID(),
		Start:    time.Now(),
		Stages:   make(map[string]StageOutcome, len(g.nodes)),
	}
	if log != nil {
		log.Info("pipeline run starting", map[string]interface{}{
			logger.FieldPipeline: g.ID(),
			logger.FieldRunID:    rec.RunID,
		})
	}

	var (
		mu      sync.Mutex
		outputs = make(map[string]any, len(g.nodes))
		staged  []stagedWrite
		aborted bool
		ctxErr  error
	)

	for _, level := range g.levels {
		if ctxErr == nil && ctx.Err() != nil {
			ctxErr = ctx.Err()
			aborted = true
		}

		var toRun []string
		for _, name := range level {
			switch {
			case aborted:
				rec.Stages[name] = StageOutcome{Stage: name, Role: g.nodes[name].stage.Role(), Status: StageSkipped}
			case !e.predecessorsSucceeded(g, rec, name):
				rec.Stages[name] = StageOutcome{Stage: name, Role: g.nodes[name].stage.Role(), Status: StageSkipped}
			default:
				toRun = append(toRun, name)
			}
		}
		if len(toRun) == 0 {
			continue
		}

		var wg sync.WaitGroup
		sem := make(chan struct{}, e.concurrency(len(toRun)))
		for _, name := range toRun {
			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()

				n := g.nodes[name]
				outcome := e.runStage(ctx, g, n, &o, outputs, &mu)

				mu.Lock()
				if outcome.Status == StageSuccess {
					outputs[name] = outcome.Output
					if e.Store != nil && e.commitPolicy() == CommitOnSuccess {
						staged = append(staged, stagedWrite{stage: name, value: outcome.Output, ts: time.Now()})
					}
				}
				rec.Stages[name] = outcome
				mu.Unlock()

				if log != nil {
					e.logOutcome(log, rec, outcome)
				}
			}(name)
		}
		wg.Wait()

		for _, name := range toRun {
			oc := rec.Stages[name]
			if oc.Status == StageFailed && KindOf(oc.Err) == FailurePermanent {
				aborted = true
			}
		}
	}

	rec.End = time.Now()
	rec.Status = overallStatus(rec, aborted)

	var flushErr error
	if rec.Status == RunSuccess && e.Store != nil && e.commitPolicy() == CommitOnSuccess {
		flushErr = e.flush(ctx, g.ID(), staged)
	}

	if log != nil {
		log.Info("pipeline run finished", map[string]interface{}{
			logger.FieldPipeline: g.ID(),
			logger.FieldRunID:    rec.RunID,
			logger.FieldStatus:   string(rec.Status),
			logger.FieldDuration: rec.End.Sub(rec.Start).String(),
		})
	}

	if ctxErr != nil {
		return rec, ctxErr
	}
	return rec, flushErr
}

// runStage gathers predecessor outputs in slot order and invokes the stage.
func (e *Engine) runStage(ctx context.Context, g *Graph, n *node, o *runOptions, outputs map[string]any, mu *sync.Mutex) StageOutcome {
	name := n.stage.Name()

	inputs := make([]any, len(n.ins))
	mu.Lock()
	for i, producer := range n.slots {
		if producer == "" {
			inputs[i] = o.input
			continue
		}
		inputs[i] = outputs[producer]
	}
	mu.Unlock()

	start := time.Now()
	out, err := n.stage.Run(ctx, inputs)
	duration := time.Since(start)

	if err != nil {
		return StageOutcome{Stage: name, Role: n.stage.Role(), Status: StageFailed, Err: err, Duration: duration}
	}

	if e.Store != nil && e.commitPolicy() == CommitEachStage {
		if serr := e.Store.Put(ctx, g.ID(), name, out, time.Now()); serr != nil {
			// Incremental correctness cannot be guaranteed when state does
			// not persist, so a store failure is a permanent stage failure.
			return StageOutcome{Stage: name, Role: n.stage.Role(), Status: StageFailed, Err: Permanent(serr), Duration: duration}
		}
	}

	return StageOutcome{Stage: name, Role: n.stage.Role(), Status: StageSuccess, Output: out, Duration: duration}
}

func (e *Engine) predecessorsSucceeded(g *Graph, rec *RunRecord, name string) bool {
	for _, producer := range g.nodes[name].slots {
		if producer == "" {
			continue
		}
		if rec.Stages[producer].Status != StageSuccess {
			return false
		}
	}
	return true
}

func (e *Engine) flush(ctx context.Context, pipelineID string, staged []stagedWrite) error {
	for _, w := range staged {
		if err := e.Store.Put(ctx, pipelineID, w.stage, w.value, w.ts); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) commitPolicy() CommitPolicy {
	if e.Commit == "" {
		return CommitEachStage
	}
	return e.Commit
}

func (e *Engine) concurrency(levelSize int) int {
	if e.MaxParallel <= 0 || e.MaxParallel > levelSize {
		return levelSize
	}
	return e.MaxParallel
}

func (e *Engine) logOutcome(log *logger.Logger, rec *RunRecord, oc StageOutcome) {
	fields := map[string]interface{}{
		logger.FieldRunID:    rec.RunID,
		logger.FieldStage:    oc.Stage,
		logger.FieldStatus:   string(oc.Status),
		logger.FieldDuration: oc.Duration.String(),
	}
	if oc.Err != nil {
		fields[logger.FieldError] = oc.Err.Error()
		log.Error("stage failed", fields)
		return
	}
	log.Debug("stage completed", fields)
}

func overallStatus(rec *RunRecord, aborted bool) RunStatus {
	if aborted {
		return RunFailure
	}
	for _, oc := range rec.Stages {
		if oc.Status != StageSuccess {
			return RunPartialFailure
		}
	}
	return RunSuccess
}
