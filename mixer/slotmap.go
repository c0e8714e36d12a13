// SPDX-License-Identifier: EPL-2.0

package mixer

// Handle is a generation-checked reference into a slotMap. The zero Handle
// never resolves.
type Handle struct {
	index      uint32
	generation uint32
}

// IsZero reports whether h was never assigned.
func (h Handle) IsZero() bool { return h.generation == 0 }

type slot[T any] struct {
	val        T
	generation uint32
	used       bool
	prev, next int32
}

// slotMap is an arena with stable handles, O(1) insert/remove/lookup and
// iteration in insertion order.
type slotMap[T any] struct {
	slots      []slot[T]
	free       []uint32
	head, tail int32
	n          int
}

func newSlotMap[T any]() *slotMap[T] {
	return &slotMap[T]{head: -1, tail: -1}
}

func (m *slotMap[T]) insert(v T) Handle {
	var idx uint32
	if n := len(m.free); n > 0 {
		idx = m.free[n-1]
		m.free = m.free[:n-1]
	} else {
		idx = uint32(len(m.slots))
		m.slots = append(m.slots, slot[T]{})
	}

	s := &m.slots[idx]
	s.generation++
	s.val = v
	s.used = true
	s.prev = m.tail
	s.next = -1
	if m.tail >= 0 {
		m.slots[m.tail].next = int32(idx)
	} else {
		m.head = int32(idx)
	}
	m.tail = int32(idx)
	m.n++

	return Handle{index: idx, generation: s.generation}
}

func (m *slotMap[T]) get(h Handle) (T, bool) {
	if h.IsZero() || int(h.index) >= len(m.slots) {
		var zero T
		return zero, false
	}
	s := &m.slots[h.index]
	if !s.used || s.generation != h.generation {
		var zero T
		return zero, false
	}
	return s.val, true
}

func (m *slotMap[T]) remove(h Handle) bool {
	if _, ok := m.get(h); !ok {
		return false
	}
	s := &m.slots[h.index]
	if s.prev >= 0 {
		m.slots[s.prev].next = s.next
	} else {
		m.head = s.next
	}
	if s.next >= 0 {
		m.slots[s.next].prev = s.prev
	} else {
		m.tail = s.prev
	}

	var zero T
	s.val = zero
	s.used = false
	s.generation++
	s.prev, s.next = -1, -1
	m.free = append(m.free, h.index)
	m.n--
	return true
}

func (m *slotMap[T]) len() int { return m.n }

// each visits live entries in insertion order until fn returns false.
// fn must not insert or remove.
func (m *slotMap[T]) each(fn func(Handle, T) bool) {
	for i := m.head; i >= 0; i = m.slots[i].next {
		s := &m.slots[i]
		if !fn(Handle{index: uint32(i), generation: s.generation}, s.val) {
			return
		}
	}
}

// appendValues appends live values in insertion order.
func (m *slotMap[T]) appendValues(dst []T) []T {
	for i := m.head; i >= 0; i = m.slots[i].next {
		dst = append(dst, m.slots[i].val)
	}
	return dst
}
