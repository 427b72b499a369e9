package reactivity

import (
	mapset "github.com/deckarep/golang-set/v2"
)

type proxyKind uint8

const (
	proxyReadonly proxyKind = 1 << iota
	proxyShallow
	proxyTracked

	proxyReactive        = proxyTracked
	proxyShallowReactive = proxyTracked | proxyShallow
	proxyShallowReadonly = proxyReadonly | proxyShallow
)

var allProxyKinds = []proxyKind{
	proxyReactive,
	proxyShallowReactive,
	proxyReadonly,
	proxyShallowReadonly,
	proxyReadonly | proxyTracked,
	proxyShallowReadonly | proxyTracked,
}

type proxyKey struct {
	id   uintptr
	kind proxyKind
}

// proxied is implemented by every wrapper returned from Reactive and
// friends.
type proxied interface {
	base() *proxy
	raw() any
}

type proxy struct {
	rs   *ReactiveSystem
	id   uintptr
	kind proxyKind
}

func (p *proxy) base() *proxy { return p }

func (p *proxy) trackKey(key any) {
	if p.kind&proxyTracked != 0 {
		p.rs.track(p.id, key)
	}
}

func (p *proxy) wrapNested(v any) any {
	switch {
	case p.kind&proxyShallow != 0:
		return v
	case p.kind&proxyReadonly != 0:
		return p.rs.wrap(v, proxyReadonly|p.kind&proxyTracked)
	default:
		return p.rs.wrap(v, proxyReactive)
	}
}

// storable converts a value written through a deep proxy to what is kept in
// the raw target.
func (p *proxy) storable(v any) any {
	if p.kind&proxyShallow != 0 || IsShallow(v) || IsReadonly(v) {
		return v
	}
	return ToRaw(v)
}

func (p *proxy) denyWrite(op string, key any) bool {
	if p.kind&proxyReadonly == 0 {
		return false
	}
	p.rs.logger.Warn("write operation failed: target is readonly", "op", op, "key", key)
	return true
}

// Reactive returns the deep reactive wrapper of v. Supported aggregates
// are map[string]any, *[]any, map[any]any and mapset.Set[any]; any other
// value is returned unchanged.
func Reactive(rs *ReactiveSystem, v any) any {
	return rs.wrap(v, proxyReactive)
}

// ShallowReactive tracks only the top level of v.
func ShallowReactive(rs *ReactiveSystem, v any) any {
	return rs.wrap(v, proxyShallowReactive)
}

// Readonly returns a view of v that refuses writes. Over a reactive wrapper
// the view still tracks reads.
func Readonly(rs *ReactiveSystem, v any) any {
	return rs.wrap(v, proxyReadonly)
}

func ShallowReadonly(rs *ReactiveSystem, v any) any {
	return rs.wrap(v, proxyShallowReadonly)
}

func ReactiveObject(rs *ReactiveSystem, m map[string]any) *Object {
	o, _ := rs.wrap(m, proxyReactive).(*Object)
	return o
}

func ReactiveArray(rs *ReactiveSystem, s *[]any) *Array {
	a, _ := rs.wrap(s, proxyReactive).(*Array)
	return a
}

func ReactiveMap(rs *ReactiveSystem, m map[any]any) *Map {
	x, _ := rs.wrap(m, proxyReactive).(*Map)
	return x
}

func ReactiveSet(rs *ReactiveSystem, s mapset.Set[any]) *Set {
	x, _ := rs.wrap(s, proxyReactive).(*Set)
	return x
}

func (rs *ReactiveSystem) wrap(v any, kind proxyKind) any {
	if p, ok := v.(proxied); ok {
		b := p.base()
		if kind&proxyReadonly != 0 && b.kind&proxyReadonly == 0 {
			return rs.wrapRaw(p.raw(), kind|proxyTracked)
		}
		return v
	}
	switch v.(type) {
	case map[string]any, *[]any, map[any]any, mapset.Set[any]:
	default:
		return v
	}
	id, ok := identity(v)
	if !ok {
		return v
	}
	if _, skip := rs.skipped[id]; skip {
		return v
	}
	return rs.wrapRaw(v, kind)
}

func (rs *ReactiveSystem) wrapRaw(v any, kind proxyKind) any {
	id, ok := identity(v)
	if !ok {
		return v
	}
	key := proxyKey{id: id, kind: kind}
	if p, ok := rs.proxies[key]; ok {
		return p
	}
	base := proxy{rs: rs, id: id, kind: kind}
	var p proxied
	switch raw := v.(type) {
	case map[string]any:
		p = &Object{proxy: base, target: raw}
	case *[]any:
		p = &Array{proxy: base, target: raw}
	case map[any]any:
		p = &Map{proxy: base, target: raw}
	case mapset.Set[any]:
		p = &Set{proxy: base, target: raw}
	default:
		return v
	}
	rs.proxies[key] = p
	return p
}

// MarkRaw excludes v from ever being wrapped. The system keeps v alive until
// Release so its address cannot be reused by another aggregate.
func (rs *ReactiveSystem) MarkRaw(v any) error {
	if _, ok := v.(proxied); ok {
		return ErrAlreadyProxied
	}
	id, ok := identity(v)
	if !ok {
		return ErrNotAggregate
	}
	rs.skipped[id] = v
	return nil
}

// ToRaw returns the aggregate behind a wrapper, or v itself.
func ToRaw(v any) any {
	if p, ok := v.(proxied); ok {
		return p.raw()
	}
	return v
}

func IsProxy(v any) bool {
	_, ok := v.(proxied)
	return ok
}

func IsReactive(v any) bool {
	p, ok := v.(proxied)
	return ok && p.base().kind&proxyTracked != 0
}

func IsReadonly(v any) bool {
	p, ok := v.(proxied)
	return ok && p.base().kind&proxyReadonly != 0
}

func IsShallow(v any) bool {
	p, ok := v.(proxied)
	return ok && p.base().kind&proxyShallow != 0
}
