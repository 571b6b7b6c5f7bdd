package partition

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Table maps the inclusive upper bound of each partition's slot range to
// the partition serving it. Reads are lock-free against an immutable
// snapshot; mutations are single-writer copy-on-write, so a resolver never
// observes a gap or a duplicate key. The last key is always the sentinel
// hashslot.SlotMax, guaranteeing total coverage of the slot space.
type Table struct {
	mu   sync.Mutex
	snap atomic.Pointer[tableSnapshot]
}

type tableSnapshot struct {
	keys  []int
	parts map[int]Partition
}

// NewTable creates an empty table.
func NewTable() *Table {
	t := &Table{}
	t.snap.Store(&tableSnapshot{parts: make(map[int]Partition)})
	return t
}

// Put installs or replaces the partition owning the range ending at
// upperBound.
func (t *Table) Put(upperBound int, p Partition) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.snap.Load()
	next := &tableSnapshot{
		keys:  make([]int, len(cur.keys)),
		parts: make(map[int]Partition, len(cur.parts)+1),
	}
	copy(next.keys, cur.keys)
	for k, v := range cur.parts {
		next.parts[k] = v
	}

	if _, exists := next.parts[upperBound]; !exists {
		idx := sort.SearchInts(next.keys, upperBound)
		next.keys = append(next.keys, 0)
		copy(next.keys[idx+1:], next.keys[idx:])
		next.keys[idx] = upperBound
	}
	next.parts[upperBound] = p
	t.snap.Store(next)
}

// Remove deletes the partition keyed by upperBound and returns it, or nil
// if no such key exists.
func (t *Table) Remove(upperBound int) Partition {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.snap.Load()
	p, exists := cur.parts[upperBound]
	if !exists {
		return nil
	}

	next := &tableSnapshot{
		keys:  make([]int, 0, len(cur.keys)-1),
		parts: make(map[int]Partition, len(cur.parts)-1),
	}
	for _, k := range cur.keys {
		if k != upperBound {
			next.keys = append(next.keys, k)
		}
	}
	for k, v := range cur.parts {
		if k != upperBound {
			next.parts[k] = v
		}
	}
	t.snap.Store(next)
	return p
}

// Resolve returns the partition whose range covers slot: the entry with
// the smallest upper bound >= slot. A single-partition table short-circuits
// regardless of slot, and slot -1 routes to the first partition. Returns
// nil only for an empty table.
func (t *Table) Resolve(slot int) Partition {
	s := t.snap.Load()
	switch len(s.keys) {
	case 0:
		return nil
	case 1:
		return s.parts[s.keys[0]]
	}

	if slot < 0 {
		slot = 0
	}
	idx := sort.SearchInts(s.keys, slot)
	if idx == len(s.keys) {
		// slot beyond the sentinel; cannot happen for valid slots
		return nil
	}
	return s.parts[s.keys[idx]]
}

// Len returns the number of partitions.
func (t *Table) Len() int {
	return len(t.snap.Load().keys)
}

// Partitions returns all partitions in slot-range order.
func (t *Table) Partitions() []Partition {
	s := t.snap.Load()
	out := make([]Partition, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, s.parts[k])
	}
	return out
}

// UpperBounds returns the ordered range upper bounds.
func (t *Table) UpperBounds() []int {
	s := t.snap.Load()
	out := make([]int, len(s.keys))
	copy(out, s.keys)
	return out
}
