package reactivity_test

import (
	"fmt"
	"testing"

	"github.com/delaneyj/reactivity/reactivity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopologyDropAbaUpdates(t *testing.T) {
	rs := newSystem(t)

	//     A
	//   / |
	//  B  | <- Looks like a flag doesn't it? :D
	//   \ |
	//     C
	//     |
	//     D
	a := reactivity.NewRef(rs, 2)
	b := reactivity.NewComputed(rs, func(oldValue int) int {
		return a.Value() - 1
	})
	c := reactivity.NewComputed(rs, func(oldValue int) int {
		return a.Value() + b.Value()
	})
	callCount := 0
	d := reactivity.NewComputed(rs, func(oldValue string) string {
		callCount++
		return fmt.Sprintf("d: %d", c.Value())
	})

	assert.Equal(t, "d: 3", d.Value())
	assert.Equal(t, 1, callCount)

	a.Set(4)
	d.Value()
	assert.Equal(t, 2, callCount)
}

func TestShouldOnlyUpdateEverySignalOnceDiamond(t *testing.T) {
	rs := newSystem(t)

	// In this scenario "D" should only update once when "A" receives
	// an update. This is sometimes referred to as the "diamond" scenario.
	//     A
	//   /   \
	//  B     C
	//   \   /
	//     D
	a := reactivity.NewRef(rs, "a")
	b := reactivity.NewComputed(rs, func(oldValue string) string {
		return a.Value()
	})
	c := reactivity.NewComputed(rs, func(oldValue string) string {
		return a.Value()
	})

	callCount := 0
	d := reactivity.NewComputed(rs, func(oldValue string) string {
		callCount++
		return b.Value() + " " + c.Value()
	})

	assert.Equal(t, "a a", d.Value())
	assert.Equal(t, 1, callCount)
	callCount = 0

	a.Set("aa")
	assert.Equal(t, "aa aa", d.Value())
	assert.Equal(t, 1, callCount)
}

func TestShouldOnlyRunEffectOnceDiamond(t *testing.T) {
	rs := newSystem(t)

	a := reactivity.NewRef(rs, "a")
	b := reactivity.NewComputed(rs, func(oldValue string) string {
		return a.Value()
	})
	c := reactivity.NewComputed(rs, func(oldValue string) string {
		return a.Value()
	})

	var seen []string
	mustEffect(t, rs, func() error {
		seen = append(seen, b.Value()+" "+c.Value())
		return nil
	})

	a.Set("aa")
	assert.Equal(t, []string{"a a", "aa aa"}, seen)
}

func TestShouldOnlyUpdateEverySignalOnceDiamondTail(t *testing.T) {
	rs := newSystem(t)

	// "E" will be likely updated twice if our mark+sweep logic is buggy.
	//     A
	//   /   \
	//  B     C
	//   \   /
	//     D
	//     |
	//     E
	a := reactivity.NewRef(rs, "a")
	b := reactivity.NewComputed(rs, func(oldValue string) string {
		return a.Value()
	})
	c := reactivity.NewComputed(rs, func(oldValue string) string {
		return a.Value()
	})
	d := reactivity.NewComputed(rs, func(oldValue string) string {
		return b.Value() + " " + c.Value()
	})

	eCallCount := 0
	e := reactivity.NewComputed(rs, func(oldValue string) string {
		eCallCount++
		return d.Value()
	})

	assert.Equal(t, "a a", e.Value())
	assert.Equal(t, 1, eCallCount)

	a.Set("aa")
	assert.Equal(t, "aa aa", e.Value())
	assert.Equal(t, 2, eCallCount)
}

func TestBailOutIfResultIsTheSame(t *testing.T) {
	rs := newSystem(t)

	// Bail out if value of "B" never changes
	// A->B->C
	a := reactivity.NewRef(rs, "a")
	b := reactivity.NewComputed(rs, func(oldValue string) string {
		a.Value()
		return "foo"
	})

	callCount := 0
	c := reactivity.NewComputed(rs, func(oldValue string) string {
		callCount++
		return b.Value()
	})

	assert.Equal(t, "foo", c.Value())
	assert.Equal(t, 1, callCount)

	a.Set("aa")
	assert.Equal(t, "foo", c.Value())
	assert.Equal(t, 1, callCount)
}

func TestEffectBailsOutIfComputedIsTheSame(t *testing.T) {
	rs := newSystem(t)

	a := reactivity.NewRef(rs, 1)
	parity := reactivity.NewComputed(rs, func(oldValue bool) bool {
		return a.Value()%2 == 0
	})
	runs := 0
	mustEffect(t, rs, func() error {
		runs++
		parity.Value()
		return nil
	})

	a.Set(3)
	assert.Equal(t, 1, runs)
	a.Set(4)
	assert.Equal(t, 2, runs)
}

func TestShouldOnlyUpdateEverySignalOnceJaggedDiamondTails(t *testing.T) {
	rs := newSystem(t)

	// "F" and "G" will be likely updated twice if our mark+sweep logic is buggy.
	//     A
	//   /   \
	//  B     C
	//  |     |
	//  |     D
	//   \   /
	//     E
	//   /   \
	//  F     G
	a := reactivity.NewRef(rs, "a")
	b := reactivity.NewComputed(rs, func(oldValue string) string {
		return a.Value()
	})
	c := reactivity.NewComputed(rs, func(oldValue string) string {
		return a.Value()
	})
	d := reactivity.NewComputed(rs, func(oldValue string) string {
		return c.Value()
	})

	var order []string
	eCallCount := 0
	e := reactivity.NewComputed(rs, func(oldValue string) string {
		eV := b.Value() + " " + d.Value()
		eCallCount++
		order = append(order, "e")
		return eV
	})

	fCallCount := 0
	f := reactivity.NewComputed(rs, func(oldValue string) string {
		ev := e.Value()
		fCallCount++
		order = append(order, "f")
		return ev
	})

	gCallCount := 0
	g := reactivity.NewComputed(rs, func(oldValue string) string {
		ev := e.Value()
		gCallCount++
		order = append(order, "g")
		return ev
	})

	require.Equal(t, "a a", f.Value())
	require.Equal(t, 1, fCallCount)
	require.Equal(t, "a a", g.Value())
	require.Equal(t, 1, gCallCount)
	eCallCount, fCallCount, gCallCount = 0, 0, 0

	a.Set("b")
	require.Equal(t, "b b", e.Value())
	require.Equal(t, 1, eCallCount)
	require.Equal(t, "b b", f.Value())
	require.Equal(t, 1, fCallCount)
	require.Equal(t, "b b", g.Value())
	require.Equal(t, 1, gCallCount)
	eCallCount, fCallCount, gCallCount = 0, 0, 0

	order = order[:0]
	a.Set("c")
	require.Equal(t, "c c", e.Value())
	require.Equal(t, 1, eCallCount)
	require.Equal(t, "c c", f.Value())
	require.Equal(t, 1, fCallCount)
	require.Equal(t, "c c", g.Value())
	require.Equal(t, 1, gCallCount)

	// top to bottom, left to right
	assert.Equal(t, []string{"e", "f", "g"}, order)
}

func TestShouldOnlySubscribeToSignalsListenedTo(t *testing.T) {
	rs := newSystem(t)

	//    *A
	//   /   \
	// *B     C <- we don't listen to C
	a := reactivity.NewRef(rs, "a")
	b := reactivity.NewComputed(rs, func(oldValue string) string {
		return a.Value()
	})
	callCount := 0
	reactivity.NewComputed(rs, func(oldValue string) string {
		callCount++
		return a.Value()
	})

	assert.Equal(t, "a", b.Value())
	assert.Equal(t, 0, callCount)

	a.Set("aa")
	assert.Equal(t, "aa", b.Value())
	assert.Equal(t, 0, callCount)
}

func TestShouldOnlySubscribeToSignalsListenedToII(t *testing.T) {
	rs := newSystem(t)

	// Here both "B" and "C" are active in the beginning, but
	// "B" becomes inactive later. At that point it should
	// not receive any updates anymore.
	//    *A
	//   /   \
	// *B     D <- we don't listen to C
	//  |
	// *C
	a := reactivity.NewRef(rs, "a")
	bCallCount := 0
	b := reactivity.NewComputed(rs, func(oldValue string) string {
		bCallCount++
		return a.Value()
	})
	cCallCount := 0
	c := reactivity.NewComputed(rs, func(oldValue string) string {
		cCallCount++
		return b.Value()
	})
	d := reactivity.NewComputed(rs, func(oldValue string) string {
		return a.Value()
	})

	result := ""
	e := mustEffect(t, rs, func() error {
		result = c.Value()
		return nil
	})

	assert.Equal(t, "a", result)
	assert.Equal(t, "a", d.Value())

	bCallCount, cCallCount = 0, 0
	e.Stop()

	a.Set("aa")
	assert.Equal(t, 0, bCallCount)
	assert.Equal(t, 0, cCallCount)
	assert.Equal(t, "aa", d.Value())
}

func TestShouldEnsureSubsUpdate(t *testing.T) {
	// In this scenario "C" always returns the same value. When "A"
	// changes, "B" will update, then "C" at which point its update
	// to "D" will be unmarked. But "D" must still update because
	// "B" marked it. If "D" isn't updated, then we have a bug.
	//     A
	//   /   \
	//  B     *C <- returns same value every time
	//   \   /
	//     D
	rs := newSystem(t)
	a := reactivity.NewRef(rs, "a")
	b := reactivity.NewComputed(rs, func(oldValue string) string {
		return a.Value()
	})
	c := reactivity.NewComputed(rs, func(oldValue string) string {
		a.Value()
		return "c"
	})
	dCallCount := 0
	d := reactivity.NewComputed(rs, func(oldValue string) string {
		dCallCount++
		return b.Value() + " " + c.Value()
	})

	assert.Equal(t, "a c", d.Value())
	assert.Equal(t, 1, dCallCount)

	a.Set("aa")
	assert.Equal(t, "aa c", d.Value())
}

func TestShouldEnsureSubsUpdateEvenIfTwoDepsUnmarkIt(t *testing.T) {
	// In this scenario both "C" and "D" always return the same
	// value. But "E" must still update because "A" marked it.
	// If "E" isn't updated, then we have a bug.
	//     A
	//   / | \
	//  B *C *D
	//   \ | /
	//     E
	rs := newSystem(t)
	a := reactivity.NewRef(rs, "a")
	b := reactivity.NewComputed(rs, func(oldValue string) string {
		return a.Value()
	})
	c := reactivity.NewComputed(rs, func(oldValue string) string {
		a.Value()
		return "c"
	})
	d := reactivity.NewComputed(rs, func(oldValue string) string {
		a.Value()
		return "d"
	})
	eCallCount := 0
	e := reactivity.NewComputed(rs, func(oldValue string) string {
		eCallCount++
		return b.Value() + " " + c.Value() + " " + d.Value()
	})

	assert.Equal(t, "a c d", e.Value())
	assert.Equal(t, 1, eCallCount)

	a.Set("aa")
	assert.Equal(t, "aa c d", e.Value())
	assert.Equal(t, 2, eCallCount)
}

func TestShouldEnsureSubsUpdateEvenIfAllDepsUnmarkIt(t *testing.T) {
	// In this scenario "B" and "C" always return the same value. When "A"
	// changes, "D" should not update.
	//     A
	//   /   \
	// *B     *C
	//   \   /
	//     D
	rs := newSystem(t)
	a := reactivity.NewRef(rs, "a")
	b := reactivity.NewComputed(rs, func(oldValue string) string {
		a.Value()
		return "b"
	})
	c := reactivity.NewComputed(rs, func(oldValue string) string {
		a.Value()
		return "c"
	})
	dCallCount := 0
	d := reactivity.NewComputed(rs, func(oldValue string) string {
		dCallCount++
		return b.Value() + " " + c.Value()
	})

	assert.Equal(t, "b c", d.Value())
	assert.Equal(t, 1, dCallCount)
	dCallCount = 0

	a.Set("aa")
	d.Value()
	assert.Equal(t, 0, dCallCount)
}

func TestShouldKeepGraphConsistentOnActivationErrors(t *testing.T) {
	rs := newSystem(t)

	a := reactivity.NewRef(rs, 0)
	b := reactivity.NewComputed(rs, func(oldValue int) int {
		panic("fail")
	})

	assert.Panics(t, func() {
		b.Value()
	})

	a.Set(1)
	assert.Equal(t, 1, a.Value())
}

func TestShouldKeepGraphConsistentOnComputedErrors(t *testing.T) {
	rs := newSystem(t)

	a := reactivity.NewRef(rs, 0)
	b := reactivity.NewComputed(rs, func(oldValue int) int {
		panic("fail")
	})
	c := reactivity.NewComputed(rs, func(oldValue int) int {
		return a.Value()
	})

	assert.Panics(t, func() {
		b.Value()
	})

	a.Set(1)
	assert.Equal(t, 1, c.Value())
}

func TestShouldRecoverAfterComputedPanic(t *testing.T) {
	rs := newSystem(t)

	a := reactivity.NewRef(rs, 0)
	b := reactivity.NewComputed(rs, func(oldValue int) int {
		if a.Value() == 0 {
			panic("zero")
		}
		return a.Value() * 10
	})

	assert.Panics(t, func() {
		b.Value()
	})
	assert.Nil(t, rs.ActiveEffect())

	a.Set(2)
	assert.Equal(t, 20, b.Value())
}
