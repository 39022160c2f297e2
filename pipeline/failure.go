package pipeline

import (
	"errors"
	"fmt"
)

// FailureKind classifies a stage failure for the engine's failure policy.
type FailureKind string

const (
	// FailureTransient aborts only the failed stage's dependent subtree;
	// unrelated branches keep running.
	FailureTransient FailureKind = "transient"
	// FailurePermanent aborts the whole run.
	FailurePermanent FailureKind = "permanent"
)

// Failure is a classified stage error.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s failure: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Transient wraps err as a transient stage failure.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &Failure{Kind: FailureTransient, Err: err}
}

// Permanent wraps err as a permanent stage failure.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &Failure{Kind: FailurePermanent, Err: err}
}

// KindOf returns the failure kind of err. Errors that carry no
// classification are permanent: incremental state cannot be trusted after an
// unknown fault.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return FailurePermanent
}

func errInputSlot(stage string, i int) error {
	return fmt.Errorf("pipeline: stage %q: no value for input slot %d", stage, i)
}

func errInputType(stage string, i int, want, got any) error {
	return fmt.Errorf("pipeline: stage %q: input slot %d: expected %T, got %T", stage, i, want, got)
}
