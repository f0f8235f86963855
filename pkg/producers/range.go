package producers

import (
	"fmt"
	"sync/atomic"
)

// Range enumerates the decimal renderings of an inclusive integer interval
// in ascending order. Workers claim indexes from an atomic counter.
type Range struct {
	lower  uint64
	count  uint64
	width  int
	maxLen int

	next atomic.Uint64
	done atomic.Bool
}

// NewRange returns a producer for lower..=upper. With pad set every candidate
// is left-padded with zeros to the digit width of upper.
func NewRange(lower, upper uint64, pad bool) (*Range, error) {
	if lower > upper {
		return nil, fmt.Errorf("%w: lower bound %d exceeds upper bound %d", ErrInvalidRange, lower, upper)
	}
	count := upper - lower + 1
	if count == 0 {
		return nil, fmt.Errorf("%w: %d..%d holds more than 2^64-1 values", ErrInvalidRange, lower, upper)
	}
	r := &Range{lower: lower, count: count, maxLen: digitWidth(upper)}
	if pad {
		r.width = r.maxLen
	}
	return r, nil
}

func (r *Range) Next() ([]byte, bool) {
	if r.done.Load() {
		return nil, false
	}
	i := r.next.Add(1) - 1
	if i >= r.count {
		r.done.Store(true)
		return nil, false
	}
	return appendPadded(make([]byte, 0, r.maxLen), r.lower+i, r.width), true
}

func (r *Range) Size() uint64 { return r.count }
