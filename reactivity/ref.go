package reactivity

import "fmt"

// AnyRef is implemented by refs and computeds. Objects unwrap values
// implementing it on read and write through them on assignment.
type AnyRef interface {
	AnyValue() any
	SetAny(v any) error
	isRef()
}

// Ref is a single observed value. Aggregates stored in a deep ref are
// exposed through their reactive wrapper.
type Ref[T any] struct {
	rs      *ReactiveSystem
	dep     *Dep
	raw     T
	value   T
	shallow bool
	equals  func(a, b T) bool
}

func NewRef[T any](rs *ReactiveSystem, initial T) *Ref[T] {
	r := &Ref[T]{
		rs:  rs,
		dep: newDep(rs),
	}
	r.raw = toRawT(initial)
	r.value = toReactiveT(rs, r.raw)
	return r
}

// ShallowRef only tracks replacement of its value, never reads inside it.
func ShallowRef[T any](rs *ReactiveSystem, initial T) *Ref[T] {
	return &Ref[T]{
		rs:      rs,
		dep:     newDep(rs),
		raw:     initial,
		value:   initial,
		shallow: true,
	}
}

func (r *Ref[T]) WithEquals(equals func(a, b T) bool) *Ref[T] {
	r.equals = equals
	return r
}

func (r *Ref[T]) Value() T {
	r.dep.track()
	return r.value
}

func (r *Ref[T]) Peek() T {
	return r.value
}

// Set stores v and triggers dependents when it differs from the current
// value.
func (r *Ref[T]) Set(v T) {
	direct := r.shallow || IsShallow(any(v)) || IsReadonly(any(v))
	next := v
	if !direct {
		next = toRawT(v)
	}
	if !r.changed(r.raw, next) {
		return
	}
	r.raw = next
	if direct {
		r.value = v
	} else {
		r.value = toReactiveT(r.rs, next)
	}
	r.Trigger()
}

func (r *Ref[T]) Update(fn func(T) T) {
	r.Set(fn(r.Peek()))
}

// Trigger notifies dependents without changing the value, used after
// mutating the inside of a shallow ref.
func (r *Ref[T]) Trigger() {
	r.rs.StartBatch()
	defer r.rs.settle()
	r.dep.trigger()
}

func (r *Ref[T]) AnyValue() any {
	return r.Value()
}

func (r *Ref[T]) SetAny(v any) error {
	x, ok := v.(T)
	if !ok && v != nil {
		return fmt.Errorf("ref: %w: cannot assign %T", ErrTypeMismatch, v)
	}
	r.Set(x)
	return nil
}

func (r *Ref[T]) isRef() {}

func (r *Ref[T]) changed(a, b T) bool {
	if r.equals != nil {
		return !r.equals(a, b)
	}
	return hasChanged(any(a), any(b))
}

// TriggerRef forces dependents of r to run.
func TriggerRef(r AnyRef) {
	switch x := r.(type) {
	case interface{ Trigger() }:
		x.Trigger()
	}
}

func IsRef(v any) bool {
	_, ok := v.(AnyRef)
	return ok
}

// Unref returns the value held by v when it is a ref, v otherwise.
func Unref(v any) any {
	if r, ok := v.(AnyRef); ok {
		return r.AnyValue()
	}
	return v
}

func toRawT[T any](v T) T {
	if x, ok := ToRaw(any(v)).(T); ok {
		return x
	}
	return v
}

func toReactiveT[T any](rs *ReactiveSystem, v T) T {
	if x, ok := rs.wrap(any(v), proxyReactive).(T); ok {
		return x
	}
	return v
}
