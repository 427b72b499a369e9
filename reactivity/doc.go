// Package reactivity is a fine-grained, synchronous reactivity engine.
//
// Effects re-run when the dependencies they read change. Dependencies are
// Deps: the cell inside a Ref or Computed, or one key of an aggregate
// observed through Reactive. Writes are batched; the outermost EndBatch
// flushes every notified effect once, in notification order. Computeds are
// lazy and memoized and only subscribe to their sources while something
// subscribes to them.
//
// All state lives on a *ReactiveSystem. A system must only be used from one
// goroutine at a time.
//
//	rs := reactivity.CreateReactiveSystem()
//	count := reactivity.NewRef(rs, 1)
//	double := reactivity.NewComputed(rs, func(int) int { return count.Value() * 2 })
//	reactivity.NewEffect(rs, func() error {
//		fmt.Println(double.Value())
//		return nil
//	})
//	count.Set(2) // prints 4
package reactivity
