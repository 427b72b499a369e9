package reactivity

import (
	"reflect"

	mapset "github.com/deckarep/golang-set/v2"
)

// rawKey unwraps wrapper keys when the raw value can serve as a map key.
func rawKey(k any) any {
	raw := ToRaw(k)
	if t := reflect.TypeOf(raw); t != nil && t.Comparable() {
		return raw
	}
	return k
}

// Map is the observed view of a map[any]any. Keys must be comparable.
type Map struct {
	proxy
	target map[any]any
}

func (m *Map) raw() any { return m.target }

func (m *Map) Raw() map[any]any {
	return m.target
}

func (m *Map) trackLookup(key any) any {
	rk := rawKey(key)
	if hasChanged(key, rk) {
		m.trackKey(key)
	}
	m.trackKey(rk)
	return rk
}

func (m *Map) Get(key any) (any, bool) {
	rk := m.trackLookup(key)
	v, ok := m.target[key]
	if !ok {
		v, ok = m.target[rk]
	}
	return m.wrapNested(v), ok
}

func (m *Map) Has(key any) bool {
	rk := m.trackLookup(key)
	if _, ok := m.target[key]; ok {
		return true
	}
	_, ok := m.target[rk]
	return ok
}

func (m *Map) Len() int {
	m.trackKey(iterateKey{})
	return len(m.target)
}

// Keys tracks only key additions and removals, not value changes.
func (m *Map) Keys() []any {
	m.trackKey(mapKeyIterateKey{})
	out := make([]any, 0, len(m.target))
	for k := range m.target {
		out = append(out, m.wrapNested(k))
	}
	return out
}

func (m *Map) Values() []any {
	m.trackKey(iterateKey{})
	out := make([]any, 0, len(m.target))
	for _, v := range m.target {
		out = append(out, m.wrapNested(v))
	}
	return out
}

func (m *Map) ForEach(fn func(key, value any)) {
	m.trackKey(iterateKey{})
	for k, v := range m.target {
		fn(m.wrapNested(k), m.wrapNested(v))
	}
}

func (m *Map) Set(key, value any) {
	if m.denyWrite("set", key) {
		return
	}
	value = m.storable(value)
	old, had := m.target[key]
	if !had {
		key = rawKey(key)
		old, had = m.target[key]
	}
	m.target[key] = value
	switch {
	case !had:
		m.rs.trigger(m.id, kindMap, TriggerAdd, key, 0)
	case hasChanged(value, old):
		m.rs.trigger(m.id, kindMap, TriggerSet, key, 0)
	}
}

func (m *Map) Delete(key any) bool {
	if m.denyWrite("delete", key) {
		return false
	}
	if _, had := m.target[key]; !had {
		key = rawKey(key)
		if _, had = m.target[key]; !had {
			return false
		}
	}
	delete(m.target, key)
	m.rs.trigger(m.id, kindMap, TriggerDelete, key, 0)
	return true
}

func (m *Map) Clear() {
	if m.denyWrite("clear", nil) {
		return
	}
	if len(m.target) == 0 {
		return
	}
	clear(m.target)
	m.rs.trigger(m.id, kindMap, TriggerClear, nil, 0)
}

// Set is the observed view of a mapset.Set[any].
type Set struct {
	proxy
	target mapset.Set[any]
}

func (s *Set) raw() any { return s.target }

func (s *Set) Raw() mapset.Set[any] {
	return s.target
}

func (s *Set) Has(v any) bool {
	rk := rawKey(v)
	if hasChanged(v, rk) {
		s.trackKey(v)
	}
	s.trackKey(rk)
	return s.target.Contains(v) || s.target.Contains(rk)
}

func (s *Set) Len() int {
	s.trackKey(iterateKey{})
	return s.target.Cardinality()
}

func (s *Set) Values() []any {
	s.trackKey(iterateKey{})
	out := s.target.ToSlice()
	for i, v := range out {
		out[i] = s.wrapNested(v)
	}
	return out
}

func (s *Set) ForEach(fn func(v any)) {
	for _, v := range s.Values() {
		fn(v)
	}
}

// Add inserts v and reports whether it was missing.
func (s *Set) Add(v any) bool {
	if s.denyWrite("add", v) {
		return false
	}
	v = rawKey(v)
	if !s.target.Add(v) {
		return false
	}
	s.rs.trigger(s.id, kindSet, TriggerAdd, v, 0)
	return true
}

func (s *Set) Delete(v any) bool {
	if s.denyWrite("delete", v) {
		return false
	}
	if !s.target.Contains(v) {
		v = rawKey(v)
		if !s.target.Contains(v) {
			return false
		}
	}
	s.target.Remove(v)
	s.rs.trigger(s.id, kindSet, TriggerDelete, v, 0)
	return true
}

func (s *Set) Clear() {
	if s.denyWrite("clear", nil) {
		return
	}
	if s.target.Cardinality() == 0 {
		return
	}
	s.target.Clear()
	s.rs.trigger(s.id, kindSet, TriggerClear, nil, 0)
}
