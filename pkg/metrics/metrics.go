// Package metrics exports reactivity engine activity as Prometheus metrics.
package metrics

import (
	"github.com/delaneyj/reactivity/reactivity"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the Prometheus instrument.
type Config struct {
	// Namespace is the metrics namespace (default: "reactivity").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for effect and flush durations.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

type Option func(*Config)

func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the registerer the collectors are created against.
// Each Instrument needs its own registry unless the namespace or const
// labels differ.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "reactivity",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Instrument implements reactivity.Instrument on top of Prometheus
// collectors. It is safe to share between systems running on different
// goroutines.
type Instrument struct {
	effectRuns     *prometheus.CounterVec
	effectDuration *prometheus.HistogramVec
	effectErrors   *prometheus.CounterVec
	flushes        prometheus.Counter
	flushSize      prometheus.Histogram
	flushDuration  prometheus.Histogram
	triggers       *prometheus.CounterVec
	computedEvals  *prometheus.CounterVec
}

var _ reactivity.Instrument = (*Instrument)(nil)

// New registers the collectors and returns the instrument. Pass it to
// reactivity.WithInstrument.
//
// Metrics collected:
//   - reactivity_effect_runs_total: effect runs by kind
//   - reactivity_effect_duration_seconds: effect run duration by kind
//   - reactivity_effect_errors_total: failed effect runs by kind and reason
//   - reactivity_flushes_total: completed flushes
//   - reactivity_flush_effects: effects run per flush
//   - reactivity_flush_duration_seconds: flush duration
//   - reactivity_triggers_total: container mutations by op, including unobserved ones
//   - reactivity_computed_evaluations_total: computed re-evaluations by outcome
func New(opts ...Option) *Instrument {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Instrument{
		effectRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "effect_runs_total",
			Help:        "Total number of effect runs",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		effectDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "effect_duration_seconds",
			Help:        "Effect run duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"kind"}),

		effectErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "effect_errors_total",
			Help:        "Total number of effect runs that returned an error or panicked",
			ConstLabels: config.ConstLabels,
		}, []string{"kind", "reason"}),

		flushes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flushes_total",
			Help:        "Total number of batch flushes",
			ConstLabels: config.ConstLabels,
		}),

		flushSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flush_effects",
			Help:        "Number of effects run per flush",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{1, 2, 5, 10, 25, 50, 100, 250, 1000},
		}),

		flushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flush_duration_seconds",
			Help:        "Flush duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		triggers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "triggers_total",
			Help:        "Total number of reactive container mutations, observed or not",
			ConstLabels: config.ConstLabels,
		}, []string{"op"}),

		computedEvals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "computed_evaluations_total",
			Help:        "Total number of computed re-evaluations",
			ConstLabels: config.ConstLabels,
		}, []string{"result"}),
	}
}

func (m *Instrument) EffectRun(ev reactivity.EffectRunEvent) {
	m.effectRuns.WithLabelValues(ev.Kind).Inc()
	m.effectDuration.WithLabelValues(ev.Kind).Observe(ev.Duration.Seconds())
	switch {
	case ev.Panicked:
		m.effectErrors.WithLabelValues(ev.Kind, "panic").Inc()
	case ev.Err != nil:
		m.effectErrors.WithLabelValues(ev.Kind, "error").Inc()
	}
}

func (m *Instrument) Flush(ev reactivity.FlushEvent) {
	m.flushes.Inc()
	m.flushSize.Observe(float64(ev.Effects))
	m.flushDuration.Observe(ev.Duration.Seconds())
}

func (m *Instrument) Trigger(op reactivity.TriggerOp) {
	m.triggers.WithLabelValues(op.String()).Inc()
}

func (m *Instrument) ComputedEval(changed bool) {
	result := "unchanged"
	if changed {
		result = "changed"
	}
	m.computedEvals.WithLabelValues(result).Inc()
}
