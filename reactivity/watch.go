package reactivity

import (
	"fmt"
	"math"
)

// WatchCallback receives the new and previous source values. On the first
// call of an immediate watcher old is the zero value. Functions passed to
// onCleanup run before the next call and when the watcher stops.
type WatchCallback[T any] func(value, old T, onCleanup func(func())) error

type watchOptions struct {
	immediate bool
	deep      bool
	deepSet   bool
	depth     int
	once      bool
	flush     FlushMode
	name      string
	// traversed is set when the getter already walks the source.
	traversed bool
}

type WatchOption func(*watchOptions)

// WithImmediate calls the callback once right away.
func WithImmediate() WatchOption {
	return func(o *watchOptions) {
		o.immediate = true
	}
}

// WithDeep toggles traversal of nested aggregates and forces the callback
// on every trigger.
func WithDeep(deep bool) WatchOption {
	return func(o *watchOptions) {
		o.deep, o.deepSet = deep, true
	}
}

// WithDepth limits deep traversal to n levels.
func WithDepth(n int) WatchOption {
	return func(o *watchOptions) {
		o.deep, o.deepSet, o.depth = true, true, n
	}
}

// WithWatchOnce stops the watcher after its first callback.
func WithWatchOnce() WatchOption {
	return func(o *watchOptions) {
		o.once = true
	}
}

func WithWatchFlush(mode FlushMode) WatchOption {
	return func(o *watchOptions) {
		o.flush = mode
	}
}

func WithWatchName(name string) WatchOption {
	return func(o *watchOptions) {
		o.name = name
	}
}

// WatchHandle controls a running watcher.
type WatchHandle struct {
	effect *Effect
}

// Stop stops the watcher and removes it from the scope it was created in.
func (h *WatchHandle) Stop() {
	h.effect.Stop()
}

func (h *WatchHandle) Pause() {
	h.effect.Pause()
}

func (h *WatchHandle) Resume() error {
	return h.effect.Resume()
}

func (h *WatchHandle) Active() bool {
	return h.effect.Active()
}

type watcher[T any] struct {
	rs       *ReactiveSystem
	effect   *Effect
	getter   func() T
	cb       WatchCallback[T]
	opts     watchOptions
	current  T
	old      T
	hasOld   bool
	cleanups []func()
}

// Watch runs cb whenever the value produced by getter changes. getter runs
// tracked; cb does not.
func Watch[T any](rs *ReactiveSystem, getter func() T, cb WatchCallback[T], opts ...WatchOption) (*WatchHandle, error) {
	o := watchOptions{name: "watch"}
	for _, opt := range opts {
		opt(&o)
	}
	return watch(rs, getter, cb, o)
}

// WatchRef watches a ref or computed.
func WatchRef[T any](rs *ReactiveSystem, src interface{ Value() T }, cb WatchCallback[T], opts ...WatchOption) (*WatchHandle, error) {
	return Watch(rs, src.Value, cb, opts...)
}

// WatchReactive watches a reactive wrapper deeply unless WithDeep(false) is
// given, in which case only its top level is traversed. Ref sources are
// watched through their value.
func WatchReactive(rs *ReactiveSystem, src any, cb WatchCallback[any], opts ...WatchOption) (*WatchHandle, error) {
	o := watchOptions{name: "watch"}
	for _, opt := range opts {
		opt(&o)
	}
	var getter func() any
	switch {
	case IsRef(src):
		r := src.(AnyRef)
		getter = r.AnyValue
	case IsProxy(src):
		depth := o.depth
		switch {
		case o.deepSet && !o.deep:
			depth = 1
		case depth <= 0:
			depth = math.MaxInt
		}
		o.deep, o.traversed = true, true
		getter = func() any {
			traverse(src, depth, map[uintptr]struct{}{})
			return src
		}
	default:
		rs.logger.Warn("invalid watch source", "type", fmt.Sprintf("%T", src))
		return nil, fmt.Errorf("%w: %T", ErrInvalidWatchSource, src)
	}
	return watch(rs, getter, cb, o)
}

func watch[T any](rs *ReactiveSystem, getter func() T, cb WatchCallback[T], o watchOptions) (*WatchHandle, error) {
	w := &watcher[T]{rs: rs, getter: getter, cb: cb, opts: o}
	if o.deep && !o.traversed {
		depth := o.depth
		if depth <= 0 {
			depth = math.MaxInt
		}
		w.getter = func() T {
			v := getter()
			traverse(any(v), depth, map[uintptr]struct{}{})
			return v
		}
	}

	e, err := NewEffect(rs, w.run,
		WithLazy(),
		WithName(o.name),
		WithFlush(o.flush),
		WithScheduler(func(*Effect) error { return w.job(false) }),
		WithOnStop(w.runCleanups),
	)
	if err != nil {
		return nil, err
	}
	e.kind = "watch"
	w.effect = e

	if o.immediate {
		if err := w.job(true); err != nil {
			return &WatchHandle{effect: e}, err
		}
		return &WatchHandle{effect: e}, nil
	}
	if err := e.Run(); err != nil {
		e.Stop()
		return nil, fmt.Errorf("initial run of %q: %w", o.name, err)
	}
	w.old, w.hasOld = w.current, true
	return &WatchHandle{effect: e}, nil
}

func (w *watcher[T]) run() error {
	w.current = w.getter()
	return nil
}

func (w *watcher[T]) job(initial bool) error {
	e := w.effect
	if !e.Active() || (!initial && !e.Dirty()) {
		return nil
	}
	if err := e.Run(); err != nil {
		return err
	}
	value := w.current
	if !w.opts.deep && w.hasOld && !hasChanged(any(value), any(w.old)) {
		return nil
	}
	w.runCleanups()
	if err := w.cb(value, w.old, w.onCleanup); err != nil {
		return err
	}
	w.old, w.hasOld = value, true
	if w.opts.once {
		e.Stop()
	}
	return nil
}

func (w *watcher[T]) onCleanup(fn func()) {
	w.cleanups = append(w.cleanups, fn)
}

func (w *watcher[T]) runCleanups() {
	cleanups := w.cleanups
	w.cleanups = nil
	for _, fn := range cleanups {
		fn()
	}
}

// WatchEffect runs fn now and again whenever anything it read changes.
func WatchEffect(rs *ReactiveSystem, fn func(onCleanup func(func())) error, opts ...WatchOption) (*WatchHandle, error) {
	o := watchOptions{name: "watchEffect"}
	for _, opt := range opts {
		opt(&o)
	}
	var e *Effect
	body := func() error {
		return fn(func(cleanup func()) {
			e.cleanups = append(e.cleanups, cleanup)
		})
	}
	e, err := NewEffect(rs, body, WithName(o.name), WithFlush(o.flush), WithLazy())
	if err != nil {
		return nil, err
	}
	e.kind = "watch"
	if o.once {
		e.once = true
	}
	if err := e.Run(); err != nil {
		e.Stop()
		return nil, fmt.Errorf("initial run of %q: %w", o.name, err)
	}
	return &WatchHandle{effect: e}, nil
}

// traverse reads every nested value of v so the running subscriber tracks
// them all.
func traverse(v any, depth int, seen map[uintptr]struct{}) {
	if depth <= 0 {
		return
	}
	if r, ok := v.(AnyRef); ok {
		traverse(r.AnyValue(), depth-1, seen)
		return
	}
	p, ok := v.(proxied)
	if !ok {
		return
	}
	id := p.base().id
	if _, ok := seen[id]; ok {
		return
	}
	seen[id] = struct{}{}
	depth--
	switch x := v.(type) {
	case *Object:
		x.ForEach(func(_ string, value any) {
			traverse(value, depth, seen)
		})
	case *Array:
		x.ForEach(func(_ int, value any) {
			traverse(value, depth, seen)
		})
	case *Map:
		x.ForEach(func(_, value any) {
			traverse(value, depth, seen)
		})
	case *Set:
		x.ForEach(func(value any) {
			traverse(value, depth, seen)
		})
	}
}
