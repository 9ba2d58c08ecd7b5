// Package pool implements a fixed-block memory allocator, with several
// independently sized classes, smallest-fit allocation, and optional
// overwrite detection.
//
// All blocks live in a single backing array, allocated once by New. Each
// size class owns a contiguous range of that array, divided into equally
// sized slots, threaded onto a per-class free list (by index). Bookkeeping
// that would traditionally be stored in-band (the requested size, whether
// the slot is allocated) is kept in a side table, so that a misbehaving
// caller cannot corrupt the allocator itself.
//
// A Pool is not safe for concurrent use. See the utask package for a
// wrapper that brackets every call in a critical section.
package pool

import (
	"cmp"
	"fmt"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	"golang.org/x/exp/slices"
)

type (
	// Pool is a fixed-block allocator. Instances must be initialized using
	// the New factory.
	Pool struct {
		logger       *logiface.Logger[logiface.Event]
		limiter      *catrate.Limiter
		onCorruption func(Corruption)
		mem          []byte
		classes      []class
		slots        []slot
		debug        bool
	}

	// Block is a handle to an allocated block. The handle is cleared when
	// the block is released, after which Bytes returns nil.
	Block struct {
		pool      *Pool
		data      []byte
		off       int
		classSize int
		gen       uint32
	}

	// ClassStats is a point in time snapshot of one size class.
	ClassStats struct {
		// Size is the largest request served by the class.
		Size int
		// Count is the total number of blocks.
		Count int
		// Free is the number of blocks on the free list.
		Free int
		// Stride is the number of backing bytes used per block.
		Stride int
	}

	class struct {
		size   int
		count  int
		stride int
		beg    int // offset into mem, of the first slot
		end    int // offset into mem, one past the last slot
		first  int // index into slots
		head   int // free list head, relative to first, or -1
		free   int
	}

	slot struct {
		next int // free list link, relative to the class
		size int    // requested size, valid while used
		gen  uint32 // incremented on every allocation
		used bool
	}
)

// New initializes a Pool, sorting the size classes ascending by size, and
// building every class's free list. A nil config uses DefaultClasses.
func New(config *Config) (*Pool, error) {
	var (
		sizes []SizeClass
		x     Pool
	)

	if config == nil {
		sizes = DefaultClasses()
	} else {
		x.logger = config.Logger
		x.limiter = config.Limiter
		x.onCorruption = config.OnCorruption
		x.debug = config.Debug
		if config.Classes == nil {
			sizes = DefaultClasses()
		} else {
			sizes = slices.Clone(config.Classes)
		}
		if config.Disabled {
			sizes = nil
		}
	}

	for _, c := range sizes {
		if c.Size <= 0 || c.Count < 0 {
			return nil, fmt.Errorf(`%w: %+v`, ErrInvalidConfig, c)
		}
	}

	sizes = slices.DeleteFunc(sizes, func(c SizeClass) bool { return c.Count == 0 })

	slices.SortStableFunc(sizes, func(a, b SizeClass) int {
		return cmp.Compare(a.Size, b.Size)
	})

	var total, slotCount int
	x.classes = make([]class, len(sizes))
	for i, c := range sizes {
		stride := x.stride(c.Size)
		x.classes[i] = class{
			size:   c.Size,
			count:  c.Count,
			stride: stride,
			beg:    total,
			end:    total + stride*c.Count,
			first:  slotCount,
			head:   -1,
		}
		total += stride * c.Count
		slotCount += c.Count
	}

	x.mem = make([]byte, total)
	x.slots = make([]slot, slotCount)

	for i := range x.classes {
		c := &x.classes[i]
		for j := 0; j < c.count; j++ {
			x.slots[c.first+j].next = c.head
			c.head = j
			c.free++
		}
	}

	return &x, nil
}

// Alloc returns a block of at least size bytes, from the smallest size class
// that can hold it. If that class has no free blocks, Alloc fails, even if a
// larger class does.
func (x *Pool) Alloc(size int) (*Block, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	if x.Disabled() {
		return nil, ErrDisabled
	}

	for i := range x.classes {
		c := &x.classes[i]
		if size > c.size {
			continue
		}

		if c.head < 0 {
			return nil, ErrClassExhausted
		}

		index := c.head
		s := &x.slots[c.first+index]
		c.head = s.next
		c.free--
		s.next = -1
		s.used = true
		s.size = size
		s.gen++

		off := c.beg + index*c.stride
		if x.debug {
			off += guardSize
		}

		b := Block{
			pool:      x,
			data:      x.mem[off : off+size : off+c.size],
			off:       off,
			classSize: c.size,
			gen:       s.gen,
		}

		if x.debug {
			x.stamp(off, size)
		} else {
			clear(b.data)
		}

		return &b, nil
	}

	return nil, ErrNoSizeClass
}

// Free releases a block back to its size class. Blocks not allocated by this
// pool (including nil) are ignored, in which case false is returned.
//
// If debug is enabled, the block's guard signatures and recorded size are
// checked, and any mismatch is reported, but the block is still released.
// Releasing a block that is already free, or via a stale handle to a slot
// that has since been allocated again, is reported, and has no effect.
func (x *Pool) Free(b *Block) bool {
	if x == nil || b == nil || b.pool != x {
		return false
	}

	ci, index, ok := x.locate(b.off)
	if !ok {
		return false
	}

	c := &x.classes[ci]
	s := &x.slots[c.first+index]

	if !s.used || s.gen != b.gen {
		x.report(Corruption{Kind: CorruptionDoubleFree, ClassSize: c.size, Slot: index})
		return false
	}

	if x.debug {
		x.check(c, index, b.off, s.size)
	}

	s.used = false
	s.size = 0
	s.next = c.head
	c.head = index
	c.free++

	*b = Block{}

	return true
}

// Disabled reports whether the pool can never satisfy an allocation.
func (x *Pool) Disabled() bool {
	return x == nil || len(x.classes) == 0
}

// Debug reports whether guard signatures are enabled.
func (x *Pool) Debug() bool {
	return x != nil && x.debug
}

// Stats returns a snapshot of every size class, in ascending size order.
func (x *Pool) Stats() []ClassStats {
	if x == nil {
		return nil
	}
	stats := make([]ClassStats, len(x.classes))
	for i, c := range x.classes {
		stats[i] = ClassStats{
			Size:   c.size,
			Count:  c.count,
			Free:   c.free,
			Stride: c.stride,
		}
	}
	return stats
}

// Bytes returns the usable region of the block, which has a length equal to
// the requested size. Writing beyond the length (e.g. via append) is a bug,
// detected on release if the pool has debug enabled.
func (x *Block) Bytes() []byte {
	if x == nil {
		return nil
	}
	return x.data
}

// Len returns the requested size of the block, or 0 if released.
func (x *Block) Len() int {
	if x == nil {
		return 0
	}
	return len(x.data)
}

// ClassSize returns the size of the class that the block was allocated from,
// or 0 if released.
func (x *Block) ClassSize() int {
	if x == nil {
		return 0
	}
	return x.classSize
}

// Valid reports whether the handle still refers to an allocated block.
func (x *Block) Valid() bool {
	return x != nil && x.pool != nil
}

func (x *Pool) stride(size int) int {
	n := size
	if x.debug {
		n += guardSize * 2
	}
	return (n + Align - 1) &^ (Align - 1)
}

// locate finds the class and slot index for the usable region at off.
func (x *Pool) locate(off int) (ci, index int, ok bool) {
	for i, c := range x.classes {
		if off < c.beg || off >= c.end {
			continue
		}
		rel := off - c.beg
		if x.debug {
			rel -= guardSize
		}
		if rel < 0 || rel%c.stride != 0 {
			return 0, 0, false
		}
		return i, rel / c.stride, true
	}
	return 0, 0, false
}
