package pipeline

import (
	"context"
	"reflect"
)

// Role tags a stage with its position in a registration pipeline. The graph
// and engine are role-agnostic; the tag exists for configuration, logging,
// and run records.
type Role string

const (
	// RoleSource harvests items from an external system.
	RoleSource Role = "source"
	// RoleGrouper groups harvested items.
	RoleGrouper Role = "grouper"
	// RoleEnricher derives additional metadata from items and groups.
	RoleEnricher Role = "enricher"
	// RoleCataloger registers results with a metadata catalog.
	RoleCataloger Role = "cataloger"
)

// Stage is the unit of work in a pipeline.
//
// InputTypes declares the stage's input signature, one entry per input slot;
// OutputType declares what Run produces. Validation only ever inspects these
// signatures, never calls Run. Side effects are permitted only inside Run.
//
// Run receives one value per declared input slot, in slot order. Errors
// returned from Run should be classified with Transient or Permanent;
// unclassified errors are treated as permanent.
type Stage interface {
	Name() string
	Role() Role
	InputTypes() []reflect.Type
	OutputType() reflect.Type
	Run(ctx context.Context, inputs []any) (any, error)
}

// FromFunc adapts a typed single-input function into a Stage.
//
// Root stages (no inbound edge) receive the run's initial input in their
// single slot; declare I as `any` when no input is expected.
func FromFunc[I, O any](name string, role Role, fn func(ctx context.Context, in I) (O, error)) Stage {
	return &funcStage[I, O]{name: name, role: role, fn: fn}
}

type funcStage[I, O any] struct {
	name string
	role Role
	fn   func(ctx context.Context, in I) (O, error)
}

func (s *funcStage[I, O]) Name() string { return s.name }
func (s *funcStage[I, O]) Role() Role   { return s.role }

func (s *funcStage[I, O]) InputTypes() []reflect.Type {
	return []reflect.Type{typeFor[I]()}
}

func (s *funcStage[I, O]) OutputType() reflect.Type {
	return typeFor[O]()
}

func (s *funcStage[I, O]) Run(ctx context.Context, inputs []any) (any, error) {
	in, err := slot[I](s.name, inputs, 0)
	if err != nil {
		return nil, err
	}
	return s.fn(ctx, in)
}

// FromFunc2 adapts a typed two-input function into a Stage. The two declared
// slots are the stage's explicit multi-input support: a node backed by a
// single-input stage can never accept a second inbound edge.
func FromFunc2[A, B, O any](name string, role Role, fn func(ctx context.Context, a A, b B) (O, error)) Stage {
	return &funcStage2[A, B, O]{name: name, role: role, fn: fn}
}

type funcStage2[A, B, O any] struct {
	name string
	role Role
	fn   func(ctx context.Context, a A, b B) (O, error)
}

func (s *funcStage2[A, B, O]) Name() string { return s.name }
func (s *funcStage2[A, B, O]) Role() Role   { return s.role }

func (s *funcStage2[A, B, O]) InputTypes() []reflect.Type {
	return []reflect.Type{typeFor[A](), typeFor[B]()}
}

func (s *funcStage2[A, B, O]) OutputType() reflect.Type {
	return typeFor[O]()
}

func (s *funcStage2[A, B, O]) Run(ctx context.Context, inputs []any) (any, error) {
	a, err := slot[A](s.name, inputs, 0)
	if err != nil {
		return nil, err
	}
	b, err := slot[B](s.name, inputs, 1)
	if err != nil {
		return nil, err
	}
	return s.fn(ctx, a, b)
}

// Renamed returns a stage identical to s but reporting the given name.
// Useful when one component instance appears under several names in a graph.
func Renamed(s Stage, name string) Stage {
	return &renamedStage{Stage: s, name: name}
}

type renamedStage struct {
	Stage
	name string
}

func (s *renamedStage) Name() string { return s.name }

// typeFor is reflect.TypeFor, inlined because the build toolchain predates
// its addition in Go 1.22.
func typeFor[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// slot extracts a typed value from the engine-supplied inputs. A nil entry
// yields the zero value, which lets root stages with an `any` input run
// without an initial input.
func slot[T any](stage string, inputs []any, i int) (T, error) {
	var zero T
	if i >= len(inputs) {
		return zero, Permanent(errInputSlot(stage, i))
	}
	if inputs[i] == nil {
		return zero, nil
	}
	v, ok := inputs[i].(T)
	if !ok {
		return zero, Permanent(errInputType(stage, i, zero, inputs[i]))
	}
	return v, nil
}
