package reactivity

import "slices"

// Array is the observed view of a *[]any. Element reads track the index,
// whole-array reads track iteration, and length reads track the length.
type Array struct {
	proxy
	target *[]any
}

func (a *Array) raw() any { return a.target }

func (a *Array) Raw() []any {
	return *a.target
}

func (a *Array) Get(i int) any {
	a.trackKey(i)
	s := *a.target
	if i < 0 || i >= len(s) {
		return nil
	}
	return a.wrapNested(s[i])
}

func (a *Array) Len() int {
	a.trackKey(lengthKey{})
	return len(*a.target)
}

// Set assigns index i, growing the array with nil elements when i is past
// the end.
func (a *Array) Set(i int, v any) {
	if a.denyWrite("set", i) {
		return
	}
	if i < 0 {
		a.rs.logger.Warn("array index out of range", "index", i)
		return
	}
	a.setIndex(i, a.storable(v))
}

func (a *Array) setIndex(i int, v any) {
	s := *a.target
	if i >= len(s) {
		s = append(s, make([]any, i-len(s)+1)...)
		s[i] = v
		*a.target = s
		a.rs.trigger(a.id, kindArray, TriggerAdd, i, 0)
		return
	}
	old := s[i]
	s[i] = v
	if hasChanged(v, old) {
		a.rs.trigger(a.id, kindArray, TriggerSet, i, 0)
	}
}

// SetLen truncates or extends the array. Truncation notifies readers of
// every removed index.
func (a *Array) SetLen(n int) {
	if a.denyWrite("set", "length") {
		return
	}
	if n < 0 {
		a.rs.logger.Warn("invalid array length", "length", n)
		return
	}
	a.setLen(n)
}

func (a *Array) setLen(n int) {
	s := *a.target
	switch {
	case n == len(s):
		return
	case n < len(s):
		clear(s[n:])
		*a.target = s[:n]
	default:
		*a.target = append(s, make([]any, n-len(s))...)
	}
	a.rs.trigger(a.id, kindArray, TriggerSet, lengthKey{}, n)
}

// Values returns a copy of the elements, wrapping nested aggregates.
func (a *Array) Values() []any {
	a.trackKey(arrayIterateKey{})
	s := *a.target
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = a.wrapNested(v)
	}
	return out
}

func (a *Array) ForEach(fn func(i int, v any)) {
	for i, v := range a.Values() {
		fn(i, v)
	}
}

// IndexOf searches by identity, retrying with the raw value when v is a
// wrapper.
func (a *Array) IndexOf(v any) int {
	a.trackKey(arrayIterateKey{})
	s := *a.target
	i := slices.IndexFunc(s, func(x any) bool { return same(x, v) })
	if i < 0 && IsProxy(v) {
		raw := ToRaw(v)
		i = slices.IndexFunc(s, func(x any) bool { return same(x, raw) })
	}
	return i
}

func (a *Array) Includes(v any) bool {
	return a.IndexOf(v) >= 0
}

// mutate runs a length-changing operation untracked inside one batch so it
// neither subscribes the caller to length nor flushes midway.
func (a *Array) mutate(op string, fn func()) {
	if a.denyWrite(op, nil) {
		return
	}
	a.rs.PauseTracking()
	defer a.rs.ResetTracking()
	a.rs.StartBatch()
	defer a.rs.settle()
	fn()
}

func (a *Array) Push(vals ...any) int {
	a.mutate("push", func() {
		for _, v := range vals {
			a.setIndex(len(*a.target), a.storable(v))
		}
	})
	return len(*a.target)
}

func (a *Array) Pop() any {
	var out any
	a.mutate("pop", func() {
		s := *a.target
		if len(s) == 0 {
			return
		}
		out = s[len(s)-1]
		a.setLen(len(s) - 1)
	})
	return a.wrapNested(out)
}

func (a *Array) Shift() any {
	var out any
	a.mutate("shift", func() {
		s := *a.target
		if len(s) == 0 {
			return
		}
		out = s[0]
		for i := 1; i < len(s); i++ {
			a.setIndex(i-1, s[i])
		}
		a.setLen(len(s) - 1)
	})
	return a.wrapNested(out)
}

func (a *Array) Unshift(vals ...any) int {
	a.mutate("unshift", func() {
		m := len(vals)
		if m == 0 {
			return
		}
		for i := len(*a.target) - 1; i >= 0; i-- {
			a.setIndex(i+m, (*a.target)[i])
		}
		for j, v := range vals {
			a.setIndex(j, a.storable(v))
		}
	})
	return len(*a.target)
}

// Splice removes deleteCount elements at start, inserts items there and
// returns the removed elements. A negative start counts from the end.
func (a *Array) Splice(start, deleteCount int, items ...any) []any {
	var removed []any
	a.mutate("splice", func() {
		s := *a.target
		n := len(s)
		if start < 0 {
			start = max(n+start, 0)
		}
		start = min(start, n)
		deleteCount = min(max(deleteCount, 0), n-start)

		removed = slices.Clone(s[start : start+deleteCount])
		next := make([]any, 0, n-deleteCount+len(items))
		next = append(next, s[:start]...)
		for _, it := range items {
			next = append(next, a.storable(it))
		}
		next = append(next, s[start+deleteCount:]...)

		for i := start; i < len(next); i++ {
			a.setIndex(i, next[i])
		}
		if len(next) < n {
			a.setLen(len(next))
		}
	})
	for i, v := range removed {
		removed[i] = a.wrapNested(v)
	}
	return removed
}
