package reactivity

import "fmt"

// Computed is a lazily evaluated, memoized derivation. It only re-runs its
// getter when read after one of its dependencies changed.
type Computed[T any] struct {
	subscriberNode

	rs            *ReactiveSystem
	dep           *Dep
	value         T
	getter        func(oldValue T) T
	equals        func(a, b T) bool
	globalVersion uint64
}

func NewComputed[T any](rs *ReactiveSystem, getter func(oldValue T) T) *Computed[T] {
	c := &Computed[T]{
		rs:            rs,
		getter:        getter,
		globalVersion: rs.globalVersion - 1,
	}
	c.flags = fDirty
	c.dep = newDep(rs)
	c.dep.computed = c
	return c
}

// WithEquals replaces the change check deciding whether dependents of c are
// notified after re-evaluation.
func (c *Computed[T]) WithEquals(equals func(a, b T) bool) *Computed[T] {
	c.equals = equals
	return c
}

func (c *Computed[T]) dependency() *Dep {
	return c.dep
}

func (c *Computed[T]) notify() bool {
	c.flags |= fDirty
	if c.flags&fNotified == 0 && c.rs.activeSub != subscriber(c) {
		c.rs.enqueue(c, true)
		return true
	}
	return false
}

// Value returns the current value, re-evaluating if needed, and tracks c
// for the running subscriber.
func (c *Computed[T]) Value() T {
	l := c.dep.track()
	c.refresh()
	if l != nil {
		l.version = c.dep.version
	}
	return c.value
}

// Peek returns the current value without tracking.
func (c *Computed[T]) Peek() T {
	c.refresh()
	return c.value
}

func (c *Computed[T]) AnyValue() any {
	return c.Value()
}

func (c *Computed[T]) SetAny(any) error {
	c.rs.logger.Warn("write operation failed: computed value is readonly")
	return fmt.Errorf("computed: %w", ErrReadonly)
}

func (c *Computed[T]) isRef() {}

func (c *Computed[T]) changed(a, b T) bool {
	if c.equals != nil {
		return !c.equals(a, b)
	}
	return hasChanged(any(a), any(b))
}

func (c *Computed[T]) refresh() {
	n := &c.subscriberNode
	if n.flags&fTracking != 0 && n.flags&fDirty == 0 {
		return
	}
	n.flags &^= fDirty

	rs := c.rs
	if c.globalVersion == rs.globalVersion {
		return
	}
	c.globalVersion = rs.globalVersion
	if n.flags&fEvaluated != 0 && (n.deps == nil || !isDirty(n)) {
		return
	}

	n.flags |= fRunning
	prevSub, prevTrack := rs.activeSub, rs.shouldTrack
	rs.activeSub, rs.shouldTrack = c, true
	prepareDeps(n)
	panicked := true
	defer func() {
		if panicked {
			c.dep.version++
		}
		rs.activeSub, rs.shouldTrack = prevSub, prevTrack
		cleanupDeps(n)
		n.flags &^= fRunning
	}()

	v := c.getter(c.value)
	panicked = false
	changed := n.flags&fEvaluated == 0 || c.changed(c.value, v)
	if changed {
		n.flags |= fEvaluated
		c.value = v
		c.dep.version++
	}
	if rs.instrument != nil {
		rs.instrument.ComputedEval(changed)
	}
}

// WritableComputed is a computed whose Set forwards to a setter.
type WritableComputed[T any] struct {
	*Computed[T]
	setter func(v T)
}

func NewWritableComputed[T any](rs *ReactiveSystem, getter func(oldValue T) T, setter func(v T)) *WritableComputed[T] {
	return &WritableComputed[T]{
		Computed: NewComputed(rs, getter),
		setter:   setter,
	}
}

func (c *WritableComputed[T]) Set(v T) {
	c.setter(v)
}

func (c *WritableComputed[T]) SetAny(v any) error {
	x, ok := v.(T)
	if !ok && v != nil {
		return fmt.Errorf("computed: %w: %T", ErrTypeMismatch, v)
	}
	c.setter(x)
	return nil
}
