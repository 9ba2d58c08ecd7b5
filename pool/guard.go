package pool

import (
	"encoding/binary"
)

const (
	// SigBegin is written immediately before the usable region of each
	// block, when debug is enabled.
	SigBegin uint16 = 0xDEAD

	// SigEnd is written immediately after the requested size of each block,
	// when debug is enabled.
	SigEnd uint16 = 0xFFED

	// Fill is the byte that the usable region is initialized to, when debug
	// is enabled.
	Fill byte = 0xEE

	guardSize = 2
)

const (
	// CorruptionSize indicates the recorded size exceeded the class size.
	CorruptionSize CorruptionKind = iota + 1
	// CorruptionBegin indicates the begin signature was overwritten.
	CorruptionBegin
	// CorruptionEnd indicates the end signature was overwritten, e.g. by
	// appending past the requested size.
	CorruptionEnd
	// CorruptionDoubleFree indicates a block was released while free.
	CorruptionDoubleFree
)

type (
	// CorruptionKind identifies what was detected.
	CorruptionKind uint8

	// Corruption describes a problem detected on release of a block.
	Corruption struct {
		// ClassSize identifies the size class.
		ClassSize int
		// Slot is the index of the block within its size class.
		Slot int
		// Size is the requested size that was recorded for the block.
		Size int
		Kind CorruptionKind
	}

	limitKey struct {
		classSize int
		kind      CorruptionKind
	}
)

func (k CorruptionKind) String() string {
	switch k {
	case CorruptionSize:
		return `size out of range`
	case CorruptionBegin:
		return `begin signature overwrite`
	case CorruptionEnd:
		return `end signature overwrite`
	case CorruptionDoubleFree:
		return `double free`
	default:
		return `unknown`
	}
}

func (c Corruption) String() string {
	return c.Kind.String()
}

// stamp writes the guard signatures and fill bytes, for a usable region at
// off, of the requested size.
func (x *Pool) stamp(off, size int) {
	binary.LittleEndian.PutUint16(x.mem[off-guardSize:], SigBegin)
	region := x.mem[off : off+size]
	for i := range region {
		region[i] = Fill
	}
	binary.LittleEndian.PutUint16(x.mem[off+size:], SigEnd)
}

// check validates a block that is being released, reporting (but not
// correcting) anything that doesn't match.
func (x *Pool) check(c *class, index, off, size int) {
	if size > c.size {
		x.report(Corruption{Kind: CorruptionSize, ClassSize: c.size, Slot: index, Size: size})
		// the end signature position is unknown
		size = c.size
	}

	if binary.LittleEndian.Uint16(x.mem[off-guardSize:]) != SigBegin {
		x.report(Corruption{Kind: CorruptionBegin, ClassSize: c.size, Slot: index, Size: size})
	}

	if binary.LittleEndian.Uint16(x.mem[off+size:]) != SigEnd {
		x.report(Corruption{Kind: CorruptionEnd, ClassSize: c.size, Slot: index, Size: size})
	}
}

func (x *Pool) report(c Corruption) {
	if x.onCorruption != nil {
		x.onCorruption(c)
	}

	b := x.logger.Warning()
	if !b.Enabled() {
		return
	}

	if _, ok := x.limiter.Allow(limitKey{classSize: c.ClassSize, kind: c.Kind}); !ok {
		b.Release()
		return
	}

	b.Str(`kind`, c.Kind.String()).
		Int(`class`, c.ClassSize).
		Int(`slot`, c.Slot).
		Int(`size`, c.Size).
		Log(`pool block corruption detected`)
}
