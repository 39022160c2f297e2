package pipeline

import (
	"context"
	"errors"
	"testing"
)

func TestFromFunc_Signature(t *testing.T) {
	s := FromFunc("group", RoleGrouper, func(_ context.Context, devs []device) ([]group, error) {
		return nil, nil
	})
	if s.Name() != "group" || s.Role() != RoleGrouper {
		t.Fatalf("unexpected identity: %s/%s", s.Name(), s.Role())
	}
	ins := s.InputTypes()
	if len(ins) != 1 || ins[0] != typeFor[[]device]() {
		t.Fatalf("unexpected input signature: %v", ins)
	}
	if s.OutputType() != typeFor[[]group]() {
		t.Fatalf("unexpected output signature: %v", s.OutputType())
	}
}

func TestFromFunc2_DeclaresTwoSlots(t *testing.T) {
	s := FromFunc2("enrich", RoleEnricher, func(_ context.Context, a []device, b []group) (string, error) {
		return "", nil
	})
	ins := s.InputTypes()
	if len(ins) != 2 {
		t.Fatalf("expected two declared inputs, got %d", len(ins))
	}
}

func TestFromFunc_NilInputYieldsZeroValue(t *testing.T) {
	s := FromFunc("src", RoleSource, func(_ context.Context, in string) (string, error) {
		return "got:" + in, nil
	})
	out, err := s.Run(context.Background(), []any{nil})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "got:" {
		t.Fatalf("expected zero-value input, got %v", out)
	}
}

func TestFromFunc_WrongInputType(t *testing.T) {
	s := FromFunc("src", RoleSource, func(_ context.Context, in int) (int, error) { return in, nil })
	_, err := s.Run(context.Background(), []any{"not-an-int"})
	if err == nil {
		t.Fatal("expected error for mistyped input")
	}
	if KindOf(err) != FailurePermanent {
		t.Fatalf("expected permanent failure, got %s", KindOf(err))
	}
}

func TestFailure_Classification(t *testing.T) {
	base := errors.New("boom")

	if KindOf(Transient(base)) != FailureTransient {
		t.Fatal("expected transient classification")
	}
	if KindOf(Permanent(base)) != FailurePermanent {
		t.Fatal("expected permanent classification")
	}
	if KindOf(base) != FailurePermanent {
		t.Fatal("expected unclassified errors to default to permanent")
	}
}

func TestFailure_Unwrap(t *testing.T) {
	base := errors.New("boom")
	if !errors.Is(Transient(base), base) {
		t.Fatal("expected wrapped error to satisfy errors.Is")
	}
	if Transient(nil) != nil || Permanent(nil) != nil {
		t.Fatal("expected nil passthrough")
	}
}

func TestFailure_WrappedDeep(t *testing.T) {
	// classification survives additional wrapping
	err := errors.Join(errors.New("context"), Transient(errors.New("inner")))
	if KindOf(err) != FailureTransient {
		t.Fatalf("expected transient through wrapping, got %s", KindOf(err))
	}
}
