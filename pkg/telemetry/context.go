package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry bundles logging, tracing, metrics and events.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		Config:  cfg,
	}, nil
}

// NewNop returns telemetry that records nothing.
func NewNop() *Telemetry {
	metrics, _ := NewMetrics(MetricsConfig{})
	events, _ := NewEventPublisher(EventsConfig{})
	return &Telemetry{
		Logger:  NewNopLogger(),
		Tracer:  NewNopTracer(),
		Metrics: metrics,
		Events:  events,
		Config:  DefaultConfig(),
	}
}

// WithContext adds the telemetry instance and its logger to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	return t.Logger.WithContext(ctx)
}

// FromTelemetryContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown stops the event publisher and the tracer, in that order.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(
		t.Events.Shutdown(ctx),
		t.Tracer.Shutdown(ctx),
	)
}

// Operation is one instrumented unit of work: a span, a timer and a logger
// carrying the span's trace id.
type Operation struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger

	name    string
	timer   *Timer
	metrics *Metrics
}

// StartOperation begins an instrumented operation.
func (t *Telemetry) StartOperation(ctx context.Context, name string, attrs ...attribute.KeyValue) *Operation {
	spanCtx, span := t.Tracer.StartSpan(ctx, name, attrs...)

	logger := t.Logger.WithField("operation", name)
	if traceID := TraceID(spanCtx); traceID != "" {
		logger = logger.WithField("trace_id", traceID)
	}

	return &Operation{
		Ctx:     spanCtx,
		Span:    span,
		Logger:  logger,
		name:    name,
		timer:   NewTimer(),
		metrics: t.Metrics,
	}
}

// End finishes the operation, recording its outcome on the span and in metrics.
func (op *Operation) End(err error) {
	if err != nil {
		RecordError(op.Span, err)
	} else {
		RecordSuccess(op.Span)
	}
	op.Span.End()
	op.metrics.RecordStoreOperation(op.name, err, op.timer.Duration())
}
