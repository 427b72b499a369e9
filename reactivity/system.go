package reactivity

import (
	"log/slog"
)

// OnErrorFunc receives errors that have no caller to return to, such as an
// effect failing during the flush triggered by a plain Ref.Set. from is nil
// when the error is a joined flush error.
type OnErrorFunc func(from *Effect, err error)

const defaultRecursionLimit = 100

type ReactiveSystem struct {
	activeSub   subscriber
	shouldTrack bool
	trackStack  []bool
	activeScope *Scope

	batchDepth      int
	batchedComputed subscriber
	queue           effectQueue
	postQueue       effectQueue
	flushing        bool
	flushCounts     map[*Effect]int

	globalVersion uint64

	targets map[uintptr]*targetDeps
	proxies map[proxyKey]proxied
	skipped map[uintptr]any

	onError        OnErrorFunc
	logger         *slog.Logger
	instrument     Instrument
	recursionLimit int
}

type Option func(*ReactiveSystem)

// WithOnError installs the handler for errors that have no caller.
func WithOnError(fn OnErrorFunc) Option {
	return func(rs *ReactiveSystem) {
		rs.onError = fn
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(rs *ReactiveSystem) {
		if logger != nil {
			rs.logger = logger
		}
	}
}

// WithInstrument attaches observers for effect runs, flushes, triggers and
// computed evaluations. Multiple instruments can be combined with
// MultiInstrument.
func WithInstrument(in Instrument) Option {
	return func(rs *ReactiveSystem) {
		rs.instrument = in
	}
}

// WithRecursionLimit bounds how often a single effect may run within one
// flush.
func WithRecursionLimit(n int) Option {
	return func(rs *ReactiveSystem) {
		if n > 0 {
			rs.recursionLimit = n
		}
	}
}

func CreateReactiveSystem(opts ...Option) *ReactiveSystem {
	rs := &ReactiveSystem{
		shouldTrack:    true,
		targets:        map[uintptr]*targetDeps{},
		proxies:        map[proxyKey]proxied{},
		skipped:        map[uintptr]any{},
		logger:         slog.Default(),
		recursionLimit: defaultRecursionLimit,
	}
	for _, opt := range opts {
		opt(rs)
	}
	return rs
}

// PauseTracking stops reads from creating links until the matching
// ResetTracking.
func (rs *ReactiveSystem) PauseTracking() {
	rs.trackStack = append(rs.trackStack, rs.shouldTrack)
	rs.shouldTrack = false
}

// EnableTracking re-enables tracking inside a paused region until the
// matching ResetTracking.
func (rs *ReactiveSystem) EnableTracking() {
	rs.trackStack = append(rs.trackStack, rs.shouldTrack)
	rs.shouldTrack = true
}

func (rs *ReactiveSystem) ResetTracking() {
	last := len(rs.trackStack) - 1
	if last < 0 {
		rs.shouldTrack = true
		return
	}
	rs.shouldTrack = rs.trackStack[last]
	rs.trackStack = rs.trackStack[:last]
}

// Untracked runs fn without recording any dependency for the current
// subscriber.
func (rs *ReactiveSystem) Untracked(fn func()) {
	rs.PauseTracking()
	defer rs.ResetTracking()
	fn()
}

// ActiveEffect returns the effect whose body is currently running, if any.
func (rs *ReactiveSystem) ActiveEffect() *Effect {
	e, _ := rs.activeSub.(*Effect)
	return e
}

func (rs *ReactiveSystem) CurrentScope() *Scope {
	return rs.activeScope
}

// OnEffectCleanup registers fn to run before the active effect's next run
// and when it stops.
func (rs *ReactiveSystem) OnEffectCleanup(fn func()) error {
	e, ok := rs.activeSub.(*Effect)
	if !ok {
		rs.logger.Warn("OnEffectCleanup called without an active effect")
		return ErrNoActiveEffect
	}
	e.cleanups = append(e.cleanups, fn)
	return nil
}

// OnScopeDispose registers fn on the currently running scope.
func (rs *ReactiveSystem) OnScopeDispose(fn func()) error {
	if rs.activeScope == nil {
		rs.logger.Warn("OnScopeDispose called without an active effect scope")
		return ErrNoActiveScope
	}
	rs.activeScope.cleanups = append(rs.activeScope.cleanups, fn)
	return nil
}

func (rs *ReactiveSystem) handleError(from *Effect, err error) {
	if rs.onError != nil {
		rs.onError(from, err)
		return
	}
	if from != nil {
		rs.logger.Error("unhandled effect error", "effect", from.name, "err", err)
		return
	}
	rs.logger.Error("unhandled effect error", "err", err)
}
