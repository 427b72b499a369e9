package reactivity

import (
	"fmt"
	"time"
)

// EffectFunc is the body of an effect. Reads made while it runs become the
// effect's dependencies.
type EffectFunc func() error

// Scheduler replaces the default re-run when an effect is triggered.
type Scheduler func(e *Effect) error

// FlushMode selects the queue a triggered effect is flushed from.
type FlushMode uint8

const (
	// FlushPre effects run in notification order as soon as the outermost
	// batch ends.
	FlushPre FlushMode = iota
	// FlushPost effects run after every pre effect of the flush has settled.
	FlushPost
)

func (m FlushMode) String() string {
	switch m {
	case FlushPre:
		return "pre"
	case FlushPost:
		return "post"
	default:
		return fmt.Sprintf("FlushMode(%d)", uint8(m))
	}
}

type Effect struct {
	subscriberNode

	rs        *ReactiveSystem
	fn        EffectFunc
	name      string
	kind      string
	scope     *Scope
	scheduler Scheduler
	onStop    func()
	cleanups  []func()
	lazy      bool
	once      bool
}

func (e *Effect) notify() bool {
	n := &e.subscriberNode
	if n.flags&fRunning != 0 && n.flags&fAllowRecurse == 0 {
		return false
	}
	if n.flags&fPaused != 0 {
		n.flags |= fPausedTrigger
		return false
	}
	if n.flags&fNotified == 0 {
		e.rs.enqueue(e, false)
	}
	return false
}

type EffectOption func(*Effect)

// WithScheduler makes triggers call fn instead of re-running the effect.
func WithScheduler(fn Scheduler) EffectOption {
	return func(e *Effect) {
		e.scheduler = fn
	}
}

// WithOnStop registers a callback invoked once when the effect stops.
func WithOnStop(fn func()) EffectOption {
	return func(e *Effect) {
		e.onStop = fn
	}
}

// WithLazy skips the initial run; the effect tracks nothing until Run is
// called.
func WithLazy() EffectOption {
	return func(e *Effect) {
		e.lazy = true
	}
}

// WithOnce stops the effect after the first run caused by a trigger.
func WithOnce() EffectOption {
	return func(e *Effect) {
		e.once = true
	}
}

// WithAllowRecurse lets writes made by the effect's own body re-queue it.
func WithAllowRecurse() EffectOption {
	return func(e *Effect) {
		e.flags |= fAllowRecurse
	}
}

func WithFlush(mode FlushMode) EffectOption {
	return func(e *Effect) {
		if mode == FlushPost {
			e.flags |= fPost
		} else {
			e.flags &^= fPost
		}
	}
}

func WithName(name string) EffectOption {
	return func(e *Effect) {
		e.name = name
	}
}

// NewEffect creates an effect, registers it with the current scope and,
// unless lazy, runs it once. An effect whose first run fails is stopped.
func NewEffect(rs *ReactiveSystem, fn EffectFunc, opts ...EffectOption) (*Effect, error) {
	e := &Effect{
		rs:   rs,
		fn:   fn,
		name: "effect",
		kind: "effect",
	}
	e.flags = fActive | fTracking
	for _, opt := range opts {
		opt(e)
	}
	if s := rs.activeScope; s != nil && s.active {
		e.scope = s
		s.effects = append(s.effects, e)
	}
	if e.lazy {
		return e, nil
	}

	ok := false
	defer func() {
		if !ok {
			e.Stop()
		}
	}()
	if err := e.Run(); err != nil {
		return nil, fmt.Errorf("initial run of %q: %w", e.name, err)
	}
	ok = true
	return e, nil
}

func (e *Effect) Name() string {
	return e.name
}

func (e *Effect) Active() bool {
	return e.flags&fActive != 0
}

func (e *Effect) Paused() bool {
	return e.flags&fPaused != 0
}

// Dirty reports whether any dependency changed since the last run.
// Computed dependencies are refreshed to answer.
func (e *Effect) Dirty() bool {
	return isDirty(&e.subscriberNode)
}

// Run executes the body, recording its reads as the new dependency set.
// A stopped effect runs its body untracked.
func (e *Effect) Run() (err error) {
	rs := e.rs
	n := &e.subscriberNode
	if n.flags&fActive == 0 {
		rs.PauseTracking()
		defer rs.ResetTracking()
		return e.fn()
	}

	n.flags |= fRunning
	e.runCleanups()
	prepareDeps(n)
	prevSub, prevTrack := rs.activeSub, rs.shouldTrack
	rs.activeSub, rs.shouldTrack = e, true

	var start time.Time
	if rs.instrument != nil {
		start = time.Now()
	}
	panicked := true
	defer func() {
		rs.activeSub, rs.shouldTrack = prevSub, prevTrack
		cleanupDeps(n)
		n.flags &^= fRunning
		if n.flags&fActive == 0 {
			// stopped by its own body
			e.unlinkAll()
		}
		if rs.instrument != nil {
			rs.instrument.EffectRun(EffectRunEvent{
				Name:     e.name,
				Kind:     e.kind,
				Duration: time.Since(start),
				Err:      err,
				Panicked: panicked,
			})
		}
	}()
	err = e.fn()
	panicked = false
	return err
}

// Trigger reacts to a notification: a paused effect records it, a
// scheduled effect hands it to its scheduler, anything else re-runs when
// dirty.
func (e *Effect) Trigger() error {
	if e.flags&fPaused != 0 {
		e.flags |= fPausedTrigger
		return nil
	}
	if e.once {
		defer e.Stop()
	}
	if e.scheduler != nil {
		return e.scheduler(e)
	}
	return e.RunIfDirty()
}

func (e *Effect) RunIfDirty() error {
	if e.Dirty() {
		return e.Run()
	}
	return nil
}

// Stop unlinks the effect from every dependency, leaves its scope, runs its
// cleanups and the onStop callback. Stopping twice is a no-op.
func (e *Effect) Stop() {
	n := &e.subscriberNode
	if n.flags&fActive == 0 {
		return
	}
	n.flags &^= fActive
	if e.scope != nil {
		e.scope.removeEffect(e)
		e.scope = nil
	}
	e.unlinkAll()
	e.runCleanups()
	if e.onStop != nil {
		e.onStop()
	}
}

// Pause holds triggers back until Resume.
func (e *Effect) Pause() {
	e.flags |= fPaused
}

// Resume re-enables the effect and delivers at most one trigger recorded
// while it was paused.
func (e *Effect) Resume() error {
	if e.flags&fPaused == 0 {
		return nil
	}
	e.flags &^= fPaused
	if e.flags&fPausedTrigger == 0 {
		return nil
	}
	e.flags &^= fPausedTrigger
	return e.Trigger()
}

func (e *Effect) unlinkAll() {
	n := &e.subscriberNode
	for l := n.deps; l != nil; l = l.nextDep {
		removeSub(l, false)
	}
	n.deps, n.depsTail = nil, nil
}

func (e *Effect) runCleanups() {
	if len(e.cleanups) == 0 {
		return
	}
	cleanups := e.cleanups
	e.cleanups = nil
	rs := e.rs
	prev := rs.activeSub
	rs.activeSub = nil
	defer func() { rs.activeSub = prev }()
	for _, fn := range cleanups {
		fn()
	}
}
