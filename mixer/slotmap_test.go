// SPDX-License-Identifier: EPL-2.0

package mixer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotMapStaleHandles(t *testing.T) {
	t.Parallel()

	m := newSlotMap[string]()
	a := m.insert("a")
	b := m.insert("b")

	require.True(t, m.remove(a))
	_, ok := m.get(a)
	assert.False(t, ok)
	assert.False(t, m.remove(a))

	c := m.insert("c")
	assert.Equal(t, a.index, c.index, "freed slot is reused")
	assert.NotEqual(t, a, c)
	_, ok = m.get(a)
	assert.False(t, ok, "old handle must not see the new occupant")

	v, ok := m.get(c)
	require.True(t, ok)
	assert.Equal(t, "c", v)
	assert.Equal(t, []string{"b", "c"}, m.appendValues(nil))
	assert.Equal(t, 2, m.len())

	var zero Handle
	assert.True(t, zero.IsZero())
	_, ok = m.get(zero)
	assert.False(t, ok)
	_, ok = m.get(b)
	assert.True(t, ok)
}

func TestSlotMapInsertionOrder(t *testing.T) {
	t.Parallel()

	m := newSlotMap[int]()
	hs := make([]Handle, 6)
	for i := range hs {
		hs[i] = m.insert(i)
	}
	m.remove(hs[0])
	m.remove(hs[3])
	m.remove(hs[5])
	m.insert(10)

	var got []int
	m.each(func(_ Handle, v int) bool {
		got = append(got, v)
		return true
	})
	assert.Equal(t, []int{1, 2, 4, 10}, got)

	got = got[:0]
	m.each(func(_ Handle, v int) bool {
		got = append(got, v)
		return len(got) < 2
	})
	assert.Equal(t, []int{1, 2}, got)
}
