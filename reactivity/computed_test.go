package reactivity_test

import (
	"testing"

	"github.com/delaneyj/reactivity/reactivity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// should evaluate the getter once for repeated reads
func TestComputedMemoization(t *testing.T) {
	rs := newSystem(t)

	a := reactivity.NewRef(rs, 1)
	b := reactivity.NewRef(rs, 2)
	calls := 0
	sum := reactivity.NewComputed(rs, func(int) int {
		calls++
		return a.Value() + b.Value()
	})

	assert.Equal(t, 3, sum.Value())
	assert.Equal(t, 3, sum.Value())
	assert.Equal(t, 1, calls)

	b.Set(5)
	assert.Equal(t, 6, sum.Value())
	assert.Equal(t, 2, calls)
}

// should not notify readers when a source is written with the same value
func TestComputedIdenticalWrite(t *testing.T) {
	rs := newSystem(t)

	x := reactivity.NewRef(rs, 2)
	calls := 0
	c := reactivity.NewComputed(rs, func(int) int {
		calls++
		return x.Value() * 2
	})
	runs := 0
	mustEffect(t, rs, func() error {
		runs++
		c.Value()
		return nil
	})

	assert.Equal(t, 4, c.Value())
	x.Set(x.Peek())
	assert.Equal(t, 4, c.Value())
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, runs)
}

// should pass the previous value to the getter
func TestComputedOldValue(t *testing.T) {
	rs := newSystem(t)

	a := reactivity.NewRef(rs, 1)
	var olds []int
	c := reactivity.NewComputed(rs, func(old int) int {
		olds = append(olds, old)
		return a.Value() * 10
	})

	c.Value()
	a.Set(2)
	c.Value()
	assert.Equal(t, []int{0, 10}, olds)
}

// should use the custom equality to decide whether readers rerun
func TestComputedWithEquals(t *testing.T) {
	rs := newSystem(t)

	a := reactivity.NewRef(rs, []int{1, 2})
	c := reactivity.NewComputed(rs, func([]int) []int {
		return append([]int(nil), a.Value()...)
	}).WithEquals(func(x, y []int) bool {
		return len(x) == len(y)
	})
	runs := 0
	mustEffect(t, rs, func() error {
		runs++
		c.Value()
		return nil
	})

	a.Set([]int{3, 4})
	assert.Equal(t, 1, runs)
	a.Set([]int{3, 4, 5})
	assert.Equal(t, 2, runs)
}

// should forward writes to the setter
func TestWritableComputed(t *testing.T) {
	rs := newSystem(t)

	first := reactivity.NewRef(rs, "Ada")
	last := reactivity.NewRef(rs, "Lovelace")
	full := reactivity.NewWritableComputed(rs,
		func(string) string { return first.Value() + " " + last.Value() },
		func(v string) {
			var f, l string
			for i := range v {
				if v[i] == ' ' {
					f, l = v[:i], v[i+1:]
					break
				}
			}
			rs.Batch(func() error {
				first.Set(f)
				last.Set(l)
				return nil
			})
		},
	)

	assert.Equal(t, "Ada Lovelace", full.Value())
	full.Set("Grace Hopper")
	assert.Equal(t, "Grace", first.Value())
	assert.Equal(t, "Grace Hopper", full.Value())

	require.NoError(t, full.SetAny("Alan Turing"))
	assert.Equal(t, "Turing", last.Value())
	assert.ErrorIs(t, full.SetAny(42), reactivity.ErrTypeMismatch)
}

// should refuse writes to a plain computed
func TestComputedSetAnyIsReadonly(t *testing.T) {
	rs := newSystem(t)

	c := reactivity.NewComputed(rs, func(int) int { return 1 })
	assert.ErrorIs(t, c.SetAny(2), reactivity.ErrReadonly)
	assert.Equal(t, 1, c.Value())
}

// should read without tracking through Peek
func TestComputedPeek(t *testing.T) {
	rs := newSystem(t)

	a := reactivity.NewRef(rs, 1)
	c := reactivity.NewComputed(rs, func(int) int { return a.Value() })
	runs := 0
	mustEffect(t, rs, func() error {
		runs++
		c.Peek()
		return nil
	})

	a.Set(2)
	assert.Equal(t, 1, runs)
	assert.Equal(t, 2, c.Peek())
}

// should chain computeds lazily
func TestComputedChain(t *testing.T) {
	rs := newSystem(t)

	a := reactivity.NewRef(rs, 1)
	var calls []string
	b := reactivity.NewComputed(rs, func(int) int {
		calls = append(calls, "b")
		return a.Value() + 1
	})
	c := reactivity.NewComputed(rs, func(int) int {
		calls = append(calls, "c")
		return b.Value() + 1
	})

	a.Set(2)
	assert.Empty(t, calls)
	assert.Equal(t, 4, c.Value())
	assert.Equal(t, []string{"c", "b"}, calls)
}
