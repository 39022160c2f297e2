package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kbukum/pipekit/logger"
	"github.com/kbukum/pipekit/pipeline"
)

// RunFunc executes one pipeline run and returns its finalized record.
type RunFunc func(ctx context.Context) (*pipeline.RunRecord, error)

// Bind packages an engine, a graph, and an optional initial-input supplier
// into a RunFunc, the execution target a Job fires against.
func Bind(e *pipeline.Engine, g *pipeline.Graph, input func() any) RunFunc {
	return func(ctx context.Context) (*pipeline.RunRecord, error) {
		if input != nil {
			return e.Run(ctx, g, pipeline.WithInput(input()))
		}
		return e.Run(ctx, g)
	}
}

type jobState int

const (
	jobIdle jobState = iota
	jobRunning
	jobStopped
)

// Job binds a schedule Rule to one execution target and owns the trigger
// queue for it. Runs of the same job never overlap.
type Job struct {
	name     string
	rule     *Rule
	run      RunFunc
	onRecord func(*pipeline.RunRecord)
	log      *logger.Logger

	queueSize    int
	drainPending bool

	mu         sync.Mutex
	state      jobState
	fires      chan time.Time
	stop       chan struct{}
	timerDone  chan struct{}
	workerDone chan struct{}
}

// JobOption configures a Job at construction.
type JobOption func(*Job)

// WithQueueSize sets how many pending fires are kept while a run executes.
// The default of 1 collapses catch-up fires to the most recent one; larger
// sizes execute missed fires FIFO.
func WithQueueSize(n int) JobOption {
	return func(j *Job) { j.queueSize = n }
}

// WithDrainPending makes Shutdown execute queued fires before returning
// instead of discarding them.
func WithDrainPending() JobOption {
	return func(j *Job) { j.drainPending = true }
}

// WithRecordCallback invokes fn with the RunRecord of every completed fire.
func WithRecordCallback(fn func(*pipeline.RunRecord)) JobOption {
	return func(j *Job) { j.onRecord = fn }
}

// WithLogger attaches a logger to the job.
func WithLogger(log *logger.Logger) JobOption {
	return func(j *Job) { j.log = log.WithComponent("scheduler") }
}

// NewJob creates a scheduled job. The rule must come from NewRule, so every
// configuration error is caught before Start is callable.
func NewJob(name string, rule *Rule, run RunFunc, opts ...JobOption) (*Job, error) {
	if rule == nil {
		return nil, &ConfigError{Reason: "job requires a rule"}
	}
	if run == nil {
		return nil, &ConfigError{Reason: "job requires a run target"}
	}

	j := &Job{
		name:      name,
		rule:      rule,
		run:       run,
		queueSize: 1,
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.queueSize < 1 {
		return nil, &ConfigError{Reason: fmt.Sprintf("queue size must be at least 1 (got %d)", j.queueSize)}
	}
	return j, nil
}

// Start begins the timer loop. It returns an error if the job has already
// been started or shut down.
func (j *Job) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	switch j.state {
	case jobRunning:
		return fmt.Errorf("scheduler: job %q already started", j.name)
	case jobStopped:
		return fmt.Errorf("scheduler: job %q already shut down", j.name)
	}
	j.state = jobRunning

	j.fires = make(chan time.Time, j.queueSize)
	j.stop = make(chan struct{})
	j.timerDone = make(chan struct{})
	j.workerDone = make(chan struct{})

	go j.timerLoop()
	go j.workerLoop()

	if j.log != nil {
		j.log.Info("job started", map[string]interface{}{
			logger.FieldPipeline: j.name,
			logger.FieldSchedule: j.rule.String(),
		})
	}
	return nil
}

// Shutdown stops accepting new fires, lets the active run finish, and
// drains or discards queued fires per configuration. It returns once the
// in-flight run has reached a terminal state, or earlier only if ctx
// expires; the run itself is never interrupted.
func (j *Job) Shutdown(ctx context.Context) error {
	j.mu.Lock()
	if j.state != jobRunning {
		workerDone := j.workerDone
		j.state = jobStopped
		j.mu.Unlock()
		if workerDone == nil {
			return nil
		}
		// Another caller owns the teardown; wait for the same terminal
		// state it is waiting for.
		select {
		case <-workerDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	j.state = jobStopped
	j.mu.Unlock()

	close(j.stop)
	<-j.timerDone

	if !j.drainPending {
		for {
			select {
			case <-j.fires:
				continue
			default:
			}
			break
		}
	}
	close(j.fires)

	select {
	case <-j.workerDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	if j.log != nil {
		j.log.Info("job shut down", map[string]interface{}{logger.FieldPipeline: j.name})
	}
	return nil
}

// timerLoop generates fire events until stopped. One loop per job.
func (j *Job) timerLoop() {
	defer close(j.timerDone)

	if j.rule.Immediate() {
		j.enqueue(time.Now())
	}

	for {
		next := j.rule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-j.stop:
			timer.Stop()
			return
		case t := <-timer.C:
			j.enqueue(t)
		}
	}
}

// enqueue adds a fire event without ever blocking the timer. When the
// pending queue is full the oldest fire is dropped, keeping the most recent.
func (j *Job) enqueue(t time.Time) {
	select {
	case j.fires <- t:
		return
	default:
	}

	select {
	case <-j.fires:
		if j.log != nil {
			j.log.Debug("collapsed pending fire", map[string]interface{}{logger.FieldPipeline: j.name})
		}
	default:
	}
	select {
	case j.fires <- t:
	default:
	}
}

// workerLoop is the single consumer of fire events; it guarantees at most
// one execution of this job at a time.
func (j *Job) workerLoop() {
	defer close(j.workerDone)

	for range j.fires {
		rec, err := j.run(context.Background())
		if j.log != nil {
			fields := map[string]interface{}{
				logger.FieldPipeline: j.name,
				logger.FieldQueued:   len(j.fires),
			}
			if rec != nil {
				fields[logger.FieldRunID] = rec.RunID
				fields[logger.FieldStatus] = string(rec.Status)
				fields[logger.FieldDuration] = rec.End.Sub(rec.Start).String()
			}
			if err != nil {
				fields[logger.FieldError] = err.Error()
				j.log.Error("scheduled run failed", fields)
			} else {
				j.log.Info("scheduled run finished", fields)
			}
		}
		if j.onRecord != nil && rec != nil {
			j.onRecord(rec)
		}
	}
}
