package reactivity

import (
	"errors"
	"fmt"
)

var (
	// ErrInactiveScope is returned by Scope.Run once the scope was stopped.
	ErrInactiveScope = errors.New("reactivity: cannot run an inactive effect scope")

	// ErrNoActiveScope is returned by OnScopeDispose outside of Scope.Run.
	ErrNoActiveScope = errors.New("reactivity: no active effect scope")

	// ErrNoActiveEffect is returned by OnEffectCleanup outside of an effect body.
	ErrNoActiveEffect = errors.New("reactivity: no active effect")

	// ErrRecursionLimit is reported when one effect re-queues itself more
	// often than the system recursion limit within a single flush.
	ErrRecursionLimit = errors.New("reactivity: maximum recursive updates exceeded")

	// ErrTypeMismatch is returned when a type-erased write does not fit the
	// ref it targets.
	ErrTypeMismatch = errors.New("reactivity: value type mismatch")

	// ErrReadonly is returned when writing through a readonly ref.
	ErrReadonly = errors.New("reactivity: target is readonly")

	// ErrNotAggregate is returned when a value cannot be observed.
	ErrNotAggregate = errors.New("reactivity: value is not an observable aggregate")

	// ErrAlreadyProxied is returned by MarkRaw for values that already have
	// a proxy.
	ErrAlreadyProxied = errors.New("reactivity: value is already proxied")

	// ErrInvalidWatchSource is returned by WatchReactive for sources that are
	// neither refs nor proxies.
	ErrInvalidWatchSource = errors.New("reactivity: invalid watch source")
)

// PanicError carries a panic recovered while flushing a batch when an
// earlier panic already claimed the re-raise.
type PanicError struct {
	Effect string
	Value  any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("reactivity: effect %q panicked: %v", e.Effect, e.Value)
}
