package reactivity

import "fmt"

type TrackOp uint8

const (
	TrackGet TrackOp = iota
	TrackHas
	TrackIterate
)

func (op TrackOp) String() string {
	switch op {
	case TrackGet:
		return "get"
	case TrackHas:
		return "has"
	case TrackIterate:
		return "iterate"
	default:
		return fmt.Sprintf("TrackOp(%d)", uint8(op))
	}
}

type TriggerOp uint8

const (
	TriggerSet TriggerOp = iota
	TriggerAdd
	TriggerDelete
	TriggerClear
)

func (op TriggerOp) String() string {
	switch op {
	case TriggerSet:
		return "set"
	case TriggerAdd:
		return "add"
	case TriggerDelete:
		return "delete"
	case TriggerClear:
		return "clear"
	default:
		return fmt.Sprintf("TriggerOp(%d)", uint8(op))
	}
}

// Reserved keys that can never collide with user keys.
type (
	iterateKey       struct{}
	mapKeyIterateKey struct{}
	arrayIterateKey  struct{}
	lengthKey        struct{}
)

type targetKind uint8

const (
	kindObject targetKind = iota
	kindArray
	kindMap
	kindSet
)

// targetDeps holds the deps of one observed aggregate, keyed by property.
type targetDeps struct {
	rs   *ReactiveSystem
	id   uintptr
	deps map[any]*Dep
}

func (t *targetDeps) drop(d *Dep) {
	if t.deps[d.key] != d {
		return
	}
	delete(t.deps, d.key)
	if len(t.deps) == 0 && t.rs.targets[t.id] == t {
		delete(t.rs.targets, t.id)
	}
}

func (rs *ReactiveSystem) track(id uintptr, key any) {
	if !rs.shouldTrack || rs.activeSub == nil {
		return
	}
	t := rs.targets[id]
	if t == nil {
		t = &targetDeps{rs: rs, id: id, deps: map[any]*Dep{}}
		rs.targets[id] = t
	}
	d := t.deps[key]
	if d == nil {
		d = newDep(rs)
		d.owner, d.key = t, key
		t.deps[key] = d
	}
	d.track()
}

// trigger notifies every dep affected by a write to key of the target.
// newLength is only read for array length writes.
func (rs *ReactiveSystem) trigger(id uintptr, kind targetKind, op TriggerOp, key any, newLength int) {
	if rs.instrument != nil {
		rs.instrument.Trigger(op)
	}
	t := rs.targets[id]
	if t == nil {
		rs.globalVersion++
		return
	}

	rs.StartBatch()
	defer rs.settle()
	run := func(d *Dep) {
		if d != nil {
			d.trigger()
		}
	}

	if op == TriggerClear {
		for _, d := range depsOf(t) {
			run(d)
		}
		return
	}

	_, isLength := key.(lengthKey)
	if kind == kindArray && isLength {
		for _, d := range depsOf(t) {
			switch k := d.key.(type) {
			case lengthKey, arrayIterateKey:
				run(d)
			case int:
				if k >= newLength {
					run(d)
				}
			}
		}
		return
	}

	run(t.deps[key])
	_, isIndex := key.(int)
	if kind == kindArray && isIndex {
		run(t.deps[arrayIterateKey{}])
	}

	switch op {
	case TriggerAdd:
		if kind != kindArray {
			run(t.deps[iterateKey{}])
			if kind == kindMap {
				run(t.deps[mapKeyIterateKey{}])
			}
		} else if isIndex {
			run(t.deps[lengthKey{}])
		}
	case TriggerDelete:
		if kind != kindArray {
			run(t.deps[iterateKey{}])
			if kind == kindMap {
				run(t.deps[mapKeyIterateKey{}])
			}
		}
	case TriggerSet:
		if kind == kindMap {
			run(t.deps[iterateKey{}])
		}
	}
}

// depsOf snapshots the deps of t so triggering cannot observe map changes.
func depsOf(t *targetDeps) []*Dep {
	out := make([]*Dep, 0, len(t.deps))
	for _, d := range t.deps {
		out = append(out, d)
	}
	return out
}

// Release drops every dep and proxy registered for the aggregate behind v.
// Effects still linked to those deps keep their links but will no longer be
// notified through new proxies.
func (rs *ReactiveSystem) Release(v any) {
	id, ok := identity(ToRaw(v))
	if !ok {
		return
	}
	delete(rs.targets, id)
	for _, kind := range allProxyKinds {
		delete(rs.proxies, proxyKey{id: id, kind: kind})
	}
	delete(rs.skipped, id)
}
