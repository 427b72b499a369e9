package reactivity

// Dep is a dependency cell: one observed storage location. Effects and
// computeds that read it are linked to it and notified when it triggers.
type Dep struct {
	rs      *ReactiveSystem
	version uint64

	// activeLink is the link between this dep and the subscriber currently
	// running, used to reuse links across runs.
	activeLink *link

	// subs is the tail of the subscriber list, subsHead its head.
	subs, subsHead *link
	sc             uint32

	computed computedNode

	owner *targetDeps
	key   any
}

func newDep(rs *ReactiveSystem) *Dep {
	return &Dep{rs: rs}
}

// Version increments on every trigger.
func (d *Dep) Version() uint64 {
	return d.version
}

// Subscribers returns how many links reference this dep.
func (d *Dep) Subscribers() int {
	return int(d.sc)
}

// link is the edge between a subscriber and a dep. It sits in the
// subscriber's dep list and, while the subscriber is tracking, in the dep's
// subscriber list.
type link struct {
	version uint64
	sub     subscriber
	dep     *Dep

	prevDep, nextDep *link
	prevSub, nextSub *link

	prevActiveLink *link
}

func (d *Dep) track() *link {
	rs := d.rs
	sub := rs.activeSub
	if sub == nil || !rs.shouldTrack {
		return nil
	}
	n := sub.node()
	if d.computed != nil && d.computed.node() == n {
		return nil
	}

	l := d.activeLink
	if l == nil || l.sub.node() != n {
		l = &link{
			version:        d.version,
			sub:            sub,
			dep:            d,
			prevActiveLink: d.activeLink,
		}
		d.activeLink = l
		if n.deps == nil {
			n.deps, n.depsTail = l, l
		} else {
			l.prevDep = n.depsTail
			n.depsTail.nextDep = l
			n.depsTail = l
		}
		addSub(l, false)
		return l
	}

	if l.version == staleVersion {
		l.version = d.version
		// keep the dep list in access order
		if next := l.nextDep; next != nil {
			next.prevDep = l.prevDep
			if l.prevDep != nil {
				l.prevDep.nextDep = next
			}
			l.prevDep = n.depsTail
			l.nextDep = nil
			n.depsTail.nextDep = l
			n.depsTail = l
			if n.deps == l {
				n.deps = next
			}
		}
	}
	return l
}

// trigger bumps the versions and notifies subscribers. The caller must hold
// a batch open.
func (d *Dep) trigger() {
	d.version++
	d.rs.globalVersion++
	d.notify()
}

func (d *Dep) notify() {
	for l := d.subs; l != nil; l = l.prevSub {
		if l.sub.notify() {
			l.sub.(computedNode).dependency().notify()
		}
	}
}

// addSub counts the link on its dep and, when the subscriber is tracking,
// appends it to the dep's subscriber list. A computed receiving its first
// subscriber starts tracking and lazily subscribes to its own deps.
func addSub(l *link, soft bool) {
	d := l.dep
	if !soft {
		d.sc++
	}
	if l.sub.node().flags&fTracking == 0 {
		return
	}
	if c := d.computed; c != nil && d.subs == nil {
		cn := c.node()
		cn.flags |= fTracking | fDirty
		for x := cn.deps; x != nil; x = x.nextDep {
			addSub(x, true)
		}
	}
	if tail := d.subs; tail != l {
		l.prevSub = tail
		if tail != nil {
			tail.nextSub = l
		}
	}
	if d.subsHead == nil {
		d.subsHead = l
	}
	d.subs = l
}

// removeSub unlinks l from its dep's subscriber list. A computed losing its
// last subscriber stops tracking and softly unsubscribes from its deps; a
// soft removal keeps the subscriber count since the computed still
// references them.
func removeSub(l *link, soft bool) {
	d := l.dep
	prev, next := l.prevSub, l.nextSub
	if prev != nil {
		prev.nextSub = next
		l.prevSub = nil
	}
	if next != nil {
		next.prevSub = prev
		l.nextSub = nil
	}
	if d.subsHead == l {
		d.subsHead = next
	}
	if d.subs == l {
		d.subs = prev
		if prev == nil && d.computed != nil {
			cn := d.computed.node()
			cn.flags &^= fTracking
			for x := cn.deps; x != nil; x = x.nextDep {
				removeSub(x, true)
			}
		}
	}
	if soft {
		return
	}
	d.sc--
	if d.sc == 0 && d.owner != nil {
		d.owner.drop(d)
	}
}

func removeDep(l *link) {
	prev, next := l.prevDep, l.nextDep
	if prev != nil {
		prev.nextDep = next
		l.prevDep = nil
	}
	if next != nil {
		next.prevDep = prev
		l.nextDep = nil
	}
}

// prepareDeps marks every link of n as unseen and makes it the active link
// of its dep for the coming run.
func prepareDeps(n *subscriberNode) {
	for l := n.deps; l != nil; l = l.nextDep {
		l.version = staleVersion
		l.prevActiveLink = l.dep.activeLink
		l.dep.activeLink = l
	}
}

// cleanupDeps prunes links not read during the run and restores the active
// links saved by prepareDeps.
func cleanupDeps(n *subscriberNode) {
	var head *link
	tail := n.depsTail
	for l := tail; l != nil; {
		prev := l.prevDep
		if l.version == staleVersion {
			if l == tail {
				tail = prev
			}
			removeSub(l, false)
			removeDep(l)
		} else {
			head = l
		}
		l.dep.activeLink = l.prevActiveLink
		l.prevActiveLink = nil
		l = prev
	}
	n.deps, n.depsTail = head, tail
}

// isDirty reports whether any dep of n changed since n last read it,
// refreshing computed deps on the way.
func isDirty(n *subscriberNode) bool {
	for l := n.deps; l != nil; l = l.nextDep {
		if l.dep.version != l.version {
			return true
		}
		if c := l.dep.computed; c != nil {
			c.refresh()
			if l.dep.version != l.version {
				return true
			}
		}
	}
	return false
}
