package producers

import "math/bits"

// odometer is a mixed-radix counter over a fixed number of positions,
// the last position advancing fastest.
type odometer struct {
	radix  []uint64
	digits []uint64
}

func newOdometer(radix []uint64) *odometer {
	return &odometer{radix: radix, digits: make([]uint64, len(radix))}
}

// advance adds one and reports false when the counter wrapped back to all
// zeros. An odometer without positions has exactly one state.
func (o *odometer) advance() bool {
	for i := len(o.digits) - 1; i >= 0; i-- {
		o.digits[i]++
		if o.digits[i] < o.radix[i] {
			return true
		}
		o.digits[i] = 0
	}
	return false
}

// states is the number of distinct readings of an odometer with the given
// radixes, ok is false if it overflows a uint64.
func states(radix []uint64) (uint64, bool) {
	total := uint64(1)
	for _, r := range radix {
		hi, lo := bits.Mul64(total, r)
		if hi != 0 {
			return 0, false
		}
		total = lo
	}
	return total, true
}

// power returns base^exp, ok is false on overflow.
func power(base uint64, exp int) (uint64, bool) {
	if base == 1 || exp == 0 {
		return 1, true
	}
	r := uint64(1)
	for i := 0; i < exp; i++ {
		hi, lo := bits.Mul64(r, base)
		if hi != 0 {
			return 0, false
		}
		r = lo
	}
	return r, true
}
