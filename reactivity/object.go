package reactivity

import (
	"maps"
	"slices"
)

// Object is the observed view of a map[string]any. Refs stored as values
// are unwrapped on read and written through on assignment.
type Object struct {
	proxy
	target map[string]any
}

func (o *Object) raw() any { return o.target }

// Raw returns the underlying map. Writes made to it directly are not
// observed.
func (o *Object) Raw() map[string]any {
	return o.target
}

func (o *Object) Get(key string) any {
	o.trackKey(key)
	v := o.target[key]
	if o.kind&proxyShallow != 0 {
		return v
	}
	if r, ok := v.(AnyRef); ok {
		return r.AnyValue()
	}
	return o.wrapNested(v)
}

func (o *Object) Has(key string) bool {
	o.trackKey(key)
	_, ok := o.target[key]
	return ok
}

// Keys returns the keys in sorted order and tracks key additions and
// removals.
func (o *Object) Keys() []string {
	o.trackKey(iterateKey{})
	return slices.Sorted(maps.Keys(o.target))
}

func (o *Object) Len() int {
	o.trackKey(iterateKey{})
	return len(o.target)
}

func (o *Object) ForEach(fn func(key string, value any)) {
	for _, k := range o.Keys() {
		fn(k, o.Get(k))
	}
}

func (o *Object) Set(key string, value any) {
	if o.denyWrite("set", key) {
		return
	}
	old, had := o.target[key]
	value = o.storable(value)
	if o.kind&proxyShallow == 0 {
		if r, ok := old.(AnyRef); ok && !IsRef(value) {
			if err := r.SetAny(value); err != nil {
				o.rs.logger.Warn("write through ref failed", "key", key, "err", err)
			}
			return
		}
	}
	o.target[key] = value
	switch {
	case !had:
		o.rs.trigger(o.id, kindObject, TriggerAdd, key, 0)
	case hasChanged(value, old):
		o.rs.trigger(o.id, kindObject, TriggerSet, key, 0)
	}
}

// Delete removes key and reports whether it was present.
func (o *Object) Delete(key string) bool {
	if o.denyWrite("delete", key) {
		return false
	}
	if _, had := o.target[key]; !had {
		return false
	}
	delete(o.target, key)
	o.rs.trigger(o.id, kindObject, TriggerDelete, key, 0)
	return true
}
