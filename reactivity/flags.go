package reactivity

import "math"

type subscriberFlags uint16

const (
	fActive subscriberFlags = 1 << iota
	fRunning
	fTracking
	fNotified
	fDirty
	fAllowRecurse
	fPaused
	fEvaluated
	fPausedTrigger
	fPost
)

// staleVersion marks a link that has not been read yet in the current run.
const staleVersion uint64 = math.MaxUint64

// subscriber is anything that can sit at the sub end of a link: effects and
// computeds.
type subscriber interface {
	node() *subscriberNode
	// notify reports true when the subscriber is a computed whose own
	// dependency must be notified in turn.
	notify() bool
}

type subscriberNode struct {
	flags          subscriberFlags
	deps, depsTail *link
	next           subscriber
}

func (n *subscriberNode) node() *subscriberNode { return n }

// computedNode is a subscriber that also owns a Dep.
type computedNode interface {
	subscriber
	dependency() *Dep
	refresh()
}
