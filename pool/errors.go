package pool

import (
	"errors"
	"fmt"
)

var (
	// ErrExhausted is matched (via errors.Is) by every allocation failure
	// that is caused by a lack of free blocks, as opposed to bad input.
	ErrExhausted = errors.New("pool: exhausted")

	// ErrNoSizeClass is returned by Pool.Alloc when the request is larger
	// than the largest configured size class.
	ErrNoSizeClass = fmt.Errorf("%w: no size class fits", ErrExhausted)

	// ErrClassExhausted is returned by Pool.Alloc when the smallest fitting
	// size class has no free blocks. Larger classes are never used instead.
	ErrClassExhausted = fmt.Errorf("%w: size class has no free blocks", ErrExhausted)

	// ErrDisabled is returned by Pool.Alloc when the pool has no blocks at
	// all, either explicitly disabled, or because every count is zero.
	ErrDisabled = fmt.Errorf("%w: pool disabled", ErrExhausted)

	// ErrInvalidSize is returned by Pool.Alloc for a size <= 0.
	ErrInvalidSize = errors.New("pool: invalid size")

	// ErrInvalidConfig is returned by New for a size class with a
	// non-positive size, or a negative count.
	ErrInvalidConfig = errors.New("pool: invalid size class")
)
