// Package tracing records reactivity engine activity as OpenTelemetry spans.
//
// Every effect run and every flush becomes a span. Spans are created after
// the fact, with their start time back-dated by the measured duration, so
// tracing never sits on the engine's hot path.
//
//	rs := reactivity.CreateReactiveSystem(
//	    reactivity.WithInstrument(tracing.New(tracing.WithTracerName("ui"))),
//	)
package tracing

import (
	"context"
	"time"

	"github.com/delaneyj/reactivity/reactivity"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultTracerName = "github.com/delaneyj/reactivity"

// Config configures the OpenTelemetry instrument.
type Config struct {
	// TracerName is used to resolve a tracer from the global provider when
	// Tracer is nil.
	TracerName string

	// Tracer overrides the global provider.
	Tracer trace.Tracer

	// Context is the parent of every span (default: context.Background()).
	Context context.Context

	// Filter decides which effect runs get a span. Nil traces all of them.
	Filter func(ev reactivity.EffectRunEvent) bool

	// Attributes are added to every span.
	Attributes []attribute.KeyValue
}

type Option func(*Config)

func WithTracerName(name string) Option {
	return func(c *Config) {
		c.TracerName = name
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Config) {
		c.Tracer = tracer
	}
}

// WithContext sets the parent context spans are started from.
func WithContext(ctx context.Context) Option {
	return func(c *Config) {
		c.Context = ctx
	}
}

func WithEffectFilter(filter func(ev reactivity.EffectRunEvent) bool) Option {
	return func(c *Config) {
		c.Filter = filter
	}
}

func WithAttributes(attrs ...attribute.KeyValue) Option {
	return func(c *Config) {
		c.Attributes = append(c.Attributes, attrs...)
	}
}

// Instrument implements reactivity.Instrument. Trigger and computed
// evaluation counts are accumulated and attached to the next flush span, so
// one Instrument should serve one ReactiveSystem.
type Instrument struct {
	config Config
	tracer trace.Tracer

	triggers      map[reactivity.TriggerOp]int
	computedEvals int
	computedHits  int
}

var _ reactivity.Instrument = (*Instrument)(nil)

func New(opts ...Option) *Instrument {
	config := Config{
		TracerName: defaultTracerName,
		Context:    context.Background(),
	}
	for _, opt := range opts {
		opt(&config)
	}
	tracer := config.Tracer
	if tracer == nil {
		tracer = otel.Tracer(config.TracerName)
	}
	return &Instrument{
		config:   config,
		tracer:   tracer,
		triggers: map[reactivity.TriggerOp]int{},
	}
}

func (in *Instrument) span(name string, d time.Duration, attrs ...attribute.KeyValue) trace.Span {
	end := time.Now()
	_, span := in.tracer.Start(in.config.Context, name,
		trace.WithTimestamp(end.Add(-d)),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(in.config.Attributes...),
		trace.WithAttributes(attrs...),
	)
	return span
}

func (in *Instrument) EffectRun(ev reactivity.EffectRunEvent) {
	if in.config.Filter != nil && !in.config.Filter(ev) {
		return
	}
	end := time.Now()
	span := in.span("reactivity."+ev.Kind, ev.Duration,
		attribute.String("reactivity.effect.name", ev.Name),
		attribute.String("reactivity.effect.kind", ev.Kind),
	)
	switch {
	case ev.Panicked:
		span.SetAttributes(attribute.Bool("reactivity.effect.panicked", true))
		span.SetStatus(codes.Error, "panic")
	case ev.Err != nil:
		span.RecordError(ev.Err)
		span.SetStatus(codes.Error, ev.Err.Error())
	default:
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(end))
}

func (in *Instrument) Flush(ev reactivity.FlushEvent) {
	end := time.Now()
	attrs := []attribute.KeyValue{
		attribute.Int("reactivity.flush.effects", ev.Effects),
		attribute.Int("reactivity.flush.errors", ev.Errors),
		attribute.Int("reactivity.computed.evaluations", in.computedEvals),
		attribute.Int("reactivity.computed.changed", in.computedHits),
	}
	for op, n := range in.triggers {
		attrs = append(attrs, attribute.Int("reactivity.triggers."+op.String(), n))
	}
	clear(in.triggers)
	in.computedEvals, in.computedHits = 0, 0

	span := in.span("reactivity.flush", ev.Duration, attrs...)
	if ev.Errors > 0 {
		span.SetStatus(codes.Error, "effects failed")
	}
	span.End(trace.WithTimestamp(end))
}

func (in *Instrument) Trigger(op reactivity.TriggerOp) {
	in.triggers[op]++
}

func (in *Instrument) ComputedEval(changed bool) {
	in.computedEvals++
	if changed {
		in.computedHits++
	}
}
