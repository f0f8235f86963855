package producers

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// lengths beyond this many are enumerated in odometer mode
const maxIndexedLengths = 1 << 12

// PrintableASCII is the alphabet used when none is configured: 0x20 through 0x7E.
var PrintableASCII = func() []byte {
	b := make([]byte, 0, 0x7f-0x20)
	for c := byte(0x20); c < 0x7f; c++ {
		b = append(b, c)
	}
	return b
}()

// Default enumerates every string over an alphabet with a length in
// [minLen, maxLen], shortest first and lexicographic (in alphabet order)
// within a length.
//
// When the whole space fits a uint64 workers claim global indexes from an
// atomic counter and decode them independently; larger spaces fall back to a
// locked odometer.
type Default struct {
	alphabet []byte
	minLen   int
	maxLen   int

	// indexed mode
	offsets []uint64 // first global index of each length, plus the total
	next    atomic.Uint64

	// odometer mode
	wide   bool
	mu     sync.Mutex
	odo    *odometer
	length int

	done atomic.Bool
}

// NewDefault returns a brute-force producer. A nil alphabet means PrintableASCII;
// repeated alphabet bytes are dropped, keeping the first occurrence.
func NewDefault(minLen, maxLen int, alphabet []byte) (*Default, error) {
	if alphabet == nil {
		alphabet = PrintableASCII
	}
	if minLen < 0 {
		return nil, fmt.Errorf("%w: negative minimum length %d", ErrInvalidRange, minLen)
	}
	if minLen > maxLen {
		return nil, fmt.Errorf("%w: minimum length %d exceeds maximum length %d", ErrInvalidRange, minLen, maxLen)
	}
	var seen [256]bool
	set := make([]byte, 0, len(alphabet))
	for _, c := range alphabet {
		if !seen[c] {
			seen[c] = true
			set = append(set, c)
		}
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("%w: empty alphabet", ErrInvalidRange)
	}

	d := &Default{alphabet: set, minLen: minLen, maxLen: maxLen}
	var offsets []uint64
	total := uint64(0)
	for l := minLen; l <= maxLen; l++ {
		offsets = append(offsets, total)
		n, ok := power(uint64(len(set)), l)
		if !ok || total+n < total || len(offsets) > maxIndexedLengths {
			d.wide = true
			break
		}
		total += n
	}
	if d.wide {
		d.length = minLen
		d.odo = newOdometer(d.radix(minLen))
		return d, nil
	}
	d.offsets = append(offsets, total)
	return d, nil
}

func (d *Default) radix(length int) []uint64 {
	r := make([]uint64, length)
	for i := range r {
		r[i] = uint64(len(d.alphabet))
	}
	return r
}

func (d *Default) Next() ([]byte, bool) {
	if d.done.Load() {
		return nil, false
	}
	if d.wide {
		return d.nextWide()
	}
	i := d.next.Add(1) - 1
	total := d.offsets[len(d.offsets)-1]
	if i >= total {
		d.done.Store(true)
		return nil, false
	}
	k := 0
	for i >= d.offsets[k+1] {
		k++
	}
	idx := i - d.offsets[k]
	base := uint64(len(d.alphabet))
	buf := make([]byte, d.minLen+k)
	for p := len(buf) - 1; p >= 0; p-- {
		buf[p] = d.alphabet[idx%base]
		idx /= base
	}
	return buf, true
}

func (d *Default) nextWide() ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done.Load() {
		return nil, false
	}
	buf := make([]byte, d.length)
	for p, digit := range d.odo.digits {
		buf[p] = d.alphabet[digit]
	}
	if !d.odo.advance() {
		d.length++
		if d.length > d.maxLen {
			d.done.Store(true)
		} else {
			d.odo = newOdometer(d.radix(d.length))
		}
	}
	return buf, true
}

// Size is 0 when the space does not fit a uint64.
func (d *Default) Size() uint64 {
	if d.wide {
		return 0
	}
	return d.offsets[len(d.offsets)-1]
}
