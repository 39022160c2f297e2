package pipeline

import "time"

// RunStatus is the overall outcome of a pipeline run.
type RunStatus string

const (
	// RunSuccess means every stage completed.
	RunSuccess RunStatus = "success"
	// RunPartialFailure means a transient failure aborted one branch while
	// the rest of the pipeline completed.
	RunPartialFailure RunStatus = "partial_failure"
	// RunFailure means a permanent failure aborted the run.
	RunFailure RunStatus = "failure"
)

// StageStatus is the per-stage outcome within a run.
type StageStatus string

const (
	StageSuccess StageStatus = "success"
	StageFailed  StageStatus = "failed"
	// StageSkipped marks stages never reached because a predecessor failed
	// or the run aborted. Skipped stages are recorded, never omitted.
	StageSkipped StageStatus = "skipped"
)

// StageOutcome records one stage's result within a run.
type StageOutcome struct {
	Stage    string
	Role     Role
	Status   StageStatus
	Output   any
	Err      error
	Duration time.Duration
}

// RunRecord is the complete, structured outcome of one pipeline run.
// It contains exactly one outcome per stage in the graph and is immutable
// once Run returns. The engine does not persist it; see RunTracker.
type RunRecord struct {
	RunID    string
	Pipeline string
	Start    time.Time
	End      time.Time
	Status   RunStatus
	Stages   map[string]StageOutcome
}

// Outcome returns the recorded outcome for a stage.
func (r *RunRecord) Outcome(stage string) (StageOutcome, bool) {
	o, ok := r.Stages[stage]
	return o, ok
}

// Terminal reports whether the run reached a terminal status.
func (r *RunRecord) Terminal() bool {
	return !r.End.IsZero()
}
