package pipeline

import (
	"context"
	"reflect"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/kbukum/pipekit/logger"
)

// WithLogging wraps a Stage with execution logging.
// Logs: stage name, duration, and success/error status.
func WithLogging(s Stage, log *logger.Logger) Stage {
	return &loggingStage{inner: s, log: log.WithComponent("stage")}
}

type loggingStage struct {
	inner Stage
	log   *logger.Logger
}

func (s *loggingStage) Name() string               { return s.inner.Name() }
func (s *loggingStage) Role() Role                 { return s.inner.Role() }
func (s *loggingStage) InputTypes() []reflect.Type { return s.inner.InputTypes() }
func (s *loggingStage) OutputType() reflect.Type   { return s.inner.OutputType() }

func (s *loggingStage) Run(ctx context.Context, inputs []any) (any, error) {
	start := time.Now()
	out, err := s.inner.Run(ctx, inputs)
	duration := time.Since(start)

	fields := map[string]interface{}{
		logger.FieldStage:    s.inner.Name(),
		logger.FieldDuration: duration.String(),
	}
	if err != nil {
		fields[logger.FieldError] = err.Error()
		s.log.Error("stage run failed", fields)
	} else {
		s.log.Debug("stage run completed", fields)
	}
	return out, err
}

// WithTracing wraps a Stage with OpenTelemetry span creation.
// Each execution creates a span named "{prefix}.{stageName}".
func WithTracing(s Stage, prefix string) Stage {
	return &tracingStage{inner: s, prefix: prefix}
}

type tracingStage struct {
	inner  Stage
	prefix string
}

func (s *tracingStage) Name() string               { return s.inner.Name() }
func (s *tracingStage) Role() Role                 { return s.inner.Role() }
func (s *tracingStage) InputTypes() []reflect.Type { return s.inner.InputTypes() }
func (s *tracingStage) OutputType() reflect.Type   { return s.inner.OutputType() }

func (s *tracingStage) Run(ctx context.Context, inputs []any) (any, error) {
	tracer := otel.Tracer("pipekit/pipeline")
	ctx, span := tracer.Start(ctx, s.prefix+"."+s.inner.Name())
	defer span.End()

	span.SetAttributes(
		attribute.String("pipeline.stage", s.inner.Name()),
		attribute.String("pipeline.role", string(s.inner.Role())),
	)

	out, err := s.inner.Run(ctx, inputs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}
