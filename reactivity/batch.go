package reactivity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// effectQueue is a FIFO of notified effects threaded through their next
// field.
type effectQueue struct {
	head, tail *Effect
}

func (q *effectQueue) push(e *Effect) {
	e.node().next = nil
	if q.tail == nil {
		q.head, q.tail = e, e
		return
	}
	q.tail.node().next = e
	q.tail = e
}

func (q *effectQueue) pop() *Effect {
	e := q.head
	if e == nil {
		return nil
	}
	if next := e.node().next; next != nil {
		q.head = next.(*Effect)
	} else {
		q.head, q.tail = nil, nil
	}
	e.node().next = nil
	return e
}

func (q *effectQueue) empty() bool {
	return q.head == nil
}

// enqueue marks sub notified and schedules it. Computeds only go on a list
// that is walked to clear the flag.
func (rs *ReactiveSystem) enqueue(sub subscriber, isComputed bool) {
	n := sub.node()
	n.flags |= fNotified
	if isComputed {
		n.next = rs.batchedComputed
		rs.batchedComputed = sub
		return
	}
	e := sub.(*Effect)
	if n.flags&fPost != 0 {
		rs.postQueue.push(e)
		return
	}
	rs.queue.push(e)
}

func (rs *ReactiveSystem) StartBatch() {
	rs.batchDepth++
}

// EndBatch closes a batch. Closing the outermost batch flushes every queued
// effect and returns the joined errors they returned.
func (rs *ReactiveSystem) EndBatch() error {
	if rs.batchDepth == 0 {
		rs.logger.Warn("EndBatch called without a matching StartBatch")
		return nil
	}
	rs.batchDepth--
	if rs.batchDepth > 0 {
		return nil
	}
	return rs.flush()
}

// Batch runs fn inside a batch; effects run once when it returns.
func (rs *ReactiveSystem) Batch(fn func() error) (err error) {
	rs.StartBatch()
	defer func() {
		if endErr := rs.EndBatch(); endErr != nil {
			err = errors.Join(err, endErr)
		}
	}()
	return fn()
}

// settle closes a batch opened on behalf of a write that has no caller to
// return errors to.
func (rs *ReactiveSystem) settle() {
	if err := rs.EndBatch(); err != nil {
		rs.handleError(nil, err)
	}
}

func (rs *ReactiveSystem) clearNotifiedComputeds() {
	for c := rs.batchedComputed; c != nil; {
		n := c.node()
		next := n.next
		n.next = nil
		n.flags &^= fNotified
		c = next
	}
	rs.batchedComputed = nil
}

func (rs *ReactiveSystem) flush() error {
	rs.clearNotifiedComputeds()
	if rs.flushing || (rs.queue.empty() && rs.postQueue.empty()) {
		return nil
	}
	rs.flushing = true
	defer func() { rs.flushing = false }()

	// effects writing state during the flush enqueue here instead of
	// starting a nested flush
	rs.batchDepth++
	rs.flushCounts = map[*Effect]int{}

	var (
		start    time.Time
		ran      int
		errs     []error
		panicked bool
		first    any
	)
	if rs.instrument != nil {
		start = time.Now()
	}

	for {
		e := rs.queue.pop()
		if e == nil {
			e = rs.postQueue.pop()
		}
		if e == nil {
			break
		}
		rs.clearNotifiedComputeds()
		n := e.node()
		n.flags &^= fNotified
		if n.flags&fActive == 0 {
			continue
		}

		rs.flushCounts[e]++
		if rs.flushCounts[e] > rs.recursionLimit {
			errs = append(errs, fmt.Errorf("effect %q: %w", e.name, ErrRecursionLimit))
			continue
		}

		ran++
		p, didPanic, err := runQueued(e)
		switch {
		case didPanic && !panicked:
			panicked, first = true, p
		case didPanic:
			errs = append(errs, &PanicError{Effect: e.name, Value: p})
		case err != nil:
			errs = append(errs, fmt.Errorf("effect %q: %w", e.name, err))
		}
	}

	rs.clearNotifiedComputeds()
	if rs.batchDepth > 0 {
		rs.batchDepth--
	}
	rs.flushCounts = nil

	err := errors.Join(errs...)
	if rs.instrument != nil {
		rs.instrument.Flush(FlushEvent{
			Effects:  ran,
			Errors:   len(errs),
			Duration: time.Since(start),
		})
	}
	if rs.logger.Enabled(context.Background(), slog.LevelDebug) {
		rs.logger.Debug("flushed effects", "ran", ran, "errors", len(errs))
	}

	if panicked {
		if err != nil {
			rs.handleError(nil, err)
		}
		panic(first)
	}
	return err
}

func runQueued(e *Effect) (recovered any, didPanic bool, err error) {
	didPanic = true
	defer func() {
		if didPanic {
			recovered = recover()
		}
	}()
	err = e.Trigger()
	didPanic = false
	return nil, false, err
}
