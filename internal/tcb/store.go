// Package tcb implements the task control block arena: a fixed number of
// slots, a singly linked free list, and a doubly linked dispatch list that is
// kept sorted by expiration tick.
//
// Nodes are addressed by index, and every slot is always owned by exactly one
// of the free list, a holder (between Alloc and Enqueue or Free, or after
// Dequeue), or the dispatch list. Operations that would violate that
// ownership are refused, rather than corrupting either list.
//
// A Store is not safe for concurrent use.
package tcb

import (
	"github.com/joeycumines/go-utask/tick"
)

const (
	stateFree state = iota
	stateHeld
	stateQueued
)

const nilRef = -1

type (
	// Ref identifies a slot, and is only meaningful for the Store that
	// returned it.
	Ref int

	// Store is a fixed capacity arena of values of type E, each paired with
	// an expiration tick. Instances must be initialized using the New
	// factory.
	Store[E any] struct {
		nodes   []node[E]
		width   tick.Width
		free    int
		head    int
		tail    int
		length  int
		freeLen int
	}

	node[E any] struct {
		value  E
		expire tick.Tick
		next   int
		prev   int
		state  state
	}

	state uint8
)

// New initializes a Store with the given number of slots, all of which start
// on the free list. The width determines how expiration ticks are compared.
func New[E any](slots int, width tick.Width) *Store[E] {
	if slots < 0 {
		slots = 0
	}
	x := Store[E]{
		nodes: make([]node[E], slots),
		width: width,
		free:  nilRef,
		head:  nilRef,
		tail:  nilRef,
	}
	// pushed in reverse, so that slot 0 is allocated first
	for i := slots - 1; i >= 0; i-- {
		x.push(i)
	}
	return &x
}

// Alloc pops a slot off the free list. The slot's value is reset to the zero
// value, and it is held by the caller until it is either passed to Enqueue
// or Free. False is returned if there are no free slots.
func (x *Store[E]) Alloc() (Ref, bool) {
	i := x.free
	if i == nilRef {
		return 0, false
	}
	n := &x.nodes[i]
	x.free = n.next
	x.freeLen--
	var zero E
	n.value = zero
	n.expire = 0
	n.next = nilRef
	n.prev = nilRef
	n.state = stateHeld
	return Ref(i), true
}

// Free returns a held slot to the free list. Slots that are free, or in the
// dispatch list, are refused (false is returned).
func (x *Store[E]) Free(ref Ref) bool {
	if !x.is(ref, stateHeld) {
		return false
	}
	var zero E
	x.nodes[ref].value = zero
	x.push(int(ref))
	return true
}

// Value returns a pointer to the value of a held or queued slot, or nil.
// The pointer must not be retained past the slot being freed.
func (x *Store[E]) Value(ref Ref) *E {
	if !x.is(ref, stateHeld) && !x.is(ref, stateQueued) {
		return nil
	}
	return &x.nodes[ref].value
}

// Expire returns the expiration tick of a held or queued slot.
func (x *Store[E]) Expire(ref Ref) tick.Tick {
	if !x.is(ref, stateHeld) && !x.is(ref, stateQueued) {
		return 0
	}
	return x.nodes[ref].expire
}

// SetExpire sets the expiration tick of a held slot. The expiration of a
// queued slot cannot be changed, as that would break the ordering.
func (x *Store[E]) SetExpire(ref Ref, expire tick.Tick) bool {
	if !x.is(ref, stateHeld) {
		return false
	}
	x.nodes[ref].expire = x.width.Mask(expire)
	return true
}

// Enqueue inserts a held slot into the dispatch list, immediately before the
// first entry that expires strictly after it. Entries with equal expiration
// are therefore dispatched in insertion order.
func (x *Store[E]) Enqueue(ref Ref) bool {
	if !x.is(ref, stateHeld) {
		return false
	}

	i := int(ref)
	n := &x.nodes[i]

	at := x.head
	for at != nilRef && !x.width.After(x.nodes[at].expire, n.expire) {
		at = x.nodes[at].next
	}

	n.state = stateQueued
	x.length++

	if at == nilRef {
		// tail (or empty)
		n.prev = x.tail
		n.next = nilRef
		if x.tail != nilRef {
			x.nodes[x.tail].next = i
		} else {
			x.head = i
		}
		x.tail = i
		return true
	}

	// before at (head or middle)
	n.next = at
	n.prev = x.nodes[at].prev
	if n.prev != nilRef {
		x.nodes[n.prev].next = i
	} else {
		x.head = i
	}
	x.nodes[at].prev = i
	return true
}

// Front returns the head of the dispatch list, without removing it.
func (x *Store[E]) Front() (Ref, bool) {
	if x.head == nilRef {
		return 0, false
	}
	return Ref(x.head), true
}

// Dequeue removes the head of the dispatch list, which is then held by the
// caller, who must Free it.
func (x *Store[E]) Dequeue() (Ref, bool) {
	if x.head == nilRef {
		return 0, false
	}
	i := x.head
	x.unlink(i)
	return Ref(i), true
}

// Cancel removes every entry in the dispatch list for which match returns
// true, calling release (if non-nil) with each, before returning the slot to
// the free list. The number of removed entries is returned.
//
// Neither callback may modify the Store.
func (x *Store[E]) Cancel(match func(v *E) bool, release func(v *E)) (count int) {
	for i := x.head; i != nilRef; {
		n := &x.nodes[i]
		next := n.next
		if match(&n.value) {
			x.unlink(i)
			if release != nil {
				release(&n.value)
			}
			x.Free(Ref(i))
			count++
		}
		i = next
	}
	return count
}

// Each calls fn for each entry in the dispatch list, in order, until it
// returns false. fn must not modify the Store.
func (x *Store[E]) Each(fn func(expire tick.Tick, v *E) bool) {
	for i := x.head; i != nilRef; i = x.nodes[i].next {
		if !fn(x.nodes[i].expire, &x.nodes[i].value) {
			return
		}
	}
}

// Len returns the number of entries in the dispatch list.
func (x *Store[E]) Len() int { return x.length }

// FreeLen returns the number of slots on the free list.
func (x *Store[E]) FreeLen() int { return x.freeLen }

// Cap returns the total number of slots.
func (x *Store[E]) Cap() int { return len(x.nodes) }

// Width returns the width used to compare expiration ticks.
func (x *Store[E]) Width() tick.Width { return x.width }

func (x *Store[E]) is(ref Ref, s state) bool {
	return ref >= 0 && int(ref) < len(x.nodes) && x.nodes[ref].state == s
}

func (x *Store[E]) push(i int) {
	n := &x.nodes[i]
	n.state = stateFree
	n.prev = nilRef
	n.next = x.free
	x.free = i
	x.freeLen++
}

// unlink removes a queued node from the dispatch list, leaving it held.
func (x *Store[E]) unlink(i int) {
	n := &x.nodes[i]
	if n.prev != nilRef {
		x.nodes[n.prev].next = n.next
	} else {
		x.head = n.next
	}
	if n.next != nilRef {
		x.nodes[n.next].prev = n.prev
	} else {
		x.tail = n.prev
	}
	n.next = nilRef
	n.prev = nilRef
	n.state = stateHeld
	x.length--
}
