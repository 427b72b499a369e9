package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/delaneyj/reactivity/reactivity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"
	"go.opentelemetry.io/otel/trace/noop"
)

type recordedSpan struct {
	noop.Span
	name   string
	start  time.Time
	attrs  []attribute.KeyValue
	status codes.Code
	errs   []error
	ended  bool
}

func (s *recordedSpan) SetAttributes(kv ...attribute.KeyValue) { s.attrs = append(s.attrs, kv...) }
func (s *recordedSpan) SetStatus(code codes.Code, _ string)    { s.status = code }
func (s *recordedSpan) RecordError(err error, _ ...trace.EventOption) {
	s.errs = append(s.errs, err)
}
func (s *recordedSpan) End(...trace.SpanEndOption) { s.ended = true }

func (s *recordedSpan) attr(key string) (attribute.Value, bool) {
	for _, kv := range s.attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

type recordingTracer struct {
	embedded.Tracer
	spans []*recordedSpan
}

func (r *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	s := &recordedSpan{name: name, start: cfg.Timestamp(), attrs: cfg.Attributes()}
	r.spans = append(r.spans, s)
	return trace.ContextWithSpan(ctx, s), s
}

func (r *recordingTracer) named(name string) []*recordedSpan {
	var out []*recordedSpan
	for _, s := range r.spans {
		if s.name == name {
			out = append(out, s)
		}
	}
	return out
}

func TestInstrument_EffectSpans(t *testing.T) {
	tracer := &recordingTracer{}
	rs := reactivity.CreateReactiveSystem(
		reactivity.WithInstrument(New(
			WithTracer(tracer),
			WithAttributes(attribute.String("app", "test")),
		)),
		reactivity.WithOnError(func(*reactivity.Effect, error) {}),
	)

	fail := reactivity.NewRef(rs, false)
	_, err := reactivity.NewEffect(rs, func() error {
		if fail.Value() {
			return errors.New("bad state")
		}
		return nil
	}, reactivity.WithName("render"))
	require.NoError(t, err)

	fail.Set(true)

	spans := tracer.named("reactivity.effect")
	require.Len(t, spans, 2)
	for _, s := range spans {
		assert.True(t, s.ended)
		assert.False(t, s.start.IsZero())
		name, ok := s.attr("reactivity.effect.name")
		require.True(t, ok)
		assert.Equal(t, "render", name.AsString())
		app, ok := s.attr("app")
		require.True(t, ok)
		assert.Equal(t, "test", app.AsString())
	}
	assert.Equal(t, codes.Ok, spans[0].status)
	assert.Equal(t, codes.Error, spans[1].status)
	require.Len(t, spans[1].errs, 1)
	assert.EqualError(t, spans[1].errs[0], "bad state")

	flushes := tracer.named("reactivity.flush")
	require.Len(t, flushes, 1)
	errs, ok := flushes[0].attr("reactivity.flush.errors")
	require.True(t, ok)
	assert.Equal(t, int64(1), errs.AsInt64())
	assert.Equal(t, codes.Error, flushes[0].status)
}

func TestInstrument_FlushCarriesTriggerCounts(t *testing.T) {
	tracer := &recordingTracer{}
	rs := reactivity.CreateReactiveSystem(reactivity.WithInstrument(New(WithTracer(tracer))))

	obj := reactivity.ReactiveObject(rs, map[string]any{"a": 1})
	double := reactivity.NewComputed(rs, func(int) int {
		v, _ := obj.Get("a").(int)
		return v * 2
	})
	_, err := reactivity.NewEffect(rs, func() error {
		double.Value()
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, rs.Batch(func() error {
		obj.Set("a", 2)
		obj.Set("b", 1)
		return nil
	}))

	flushes := tracer.named("reactivity.flush")
	require.Len(t, flushes, 1)
	set, ok := flushes[0].attr("reactivity.triggers.set")
	require.True(t, ok)
	assert.Equal(t, int64(1), set.AsInt64())
	add, ok := flushes[0].attr("reactivity.triggers.add")
	require.True(t, ok)
	assert.Equal(t, int64(1), add.AsInt64())

	// the first evaluation happened before the flush and is counted too
	evals, ok := flushes[0].attr("reactivity.computed.evaluations")
	require.True(t, ok)
	assert.Equal(t, int64(2), evals.AsInt64())
}

func TestInstrument_Filter(t *testing.T) {
	tracer := &recordingTracer{}
	rs := reactivity.CreateReactiveSystem(reactivity.WithInstrument(New(
		WithTracer(tracer),
		WithEffectFilter(func(ev reactivity.EffectRunEvent) bool { return ev.Name != "noisy" }),
	)))

	_, err := reactivity.NewEffect(rs, func() error { return nil }, reactivity.WithName("noisy"))
	require.NoError(t, err)
	_, err = reactivity.NewEffect(rs, func() error { return nil }, reactivity.WithName("quiet"))
	require.NoError(t, err)

	spans := tracer.named("reactivity.effect")
	require.Len(t, spans, 1)
	name, _ := spans[0].attr("reactivity.effect.name")
	assert.Equal(t, "quiet", name.AsString())
}
