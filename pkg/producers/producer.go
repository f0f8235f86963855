// Package producers generates password candidates for the cracker.
//
// Every producer is safe for concurrent use: many workers call Next on the
// same value and each candidate of the configured space is handed out exactly
// once, in the producer's fixed order.
package producers

import (
	"errors"
	"io"
	"strconv"
)

// Producer is a lazy source of candidates shared by all workers of a session.
type Producer interface {
	// Next returns the next candidate. Once it reports false the producer is
	// exhausted and every later call reports false too.
	Next() ([]byte, bool)
	// Size is the number of candidates in the space, 0 when it is unknown
	// or does not fit a uint64.
	Size() uint64
}

var (
	ErrInvalidRange    = errors.New("invalid range")
	ErrInvalidTemplate = errors.New("invalid template")
)

// Err reports the error recorded by p while producing, for producers that
// can fail mid-stream.
func Err(p Producer) error {
	if e, ok := p.(interface{ Err() error }); ok {
		return e.Err()
	}
	return nil
}

// Close releases whatever p holds open. Producers without resources are left alone.
func Close(p Producer) error {
	if c, ok := p.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// digitWidth is the number of decimal digits of v; zero has width 1.
func digitWidth(v uint64) int {
	w := 1
	for v >= 10 {
		v /= 10
		w++
	}
	return w
}

// appendPadded appends v in decimal, left-padded with '0' to width.
func appendPadded(dst []byte, v uint64, width int) []byte {
	var tmp [20]byte
	s := strconv.AppendUint(tmp[:0], v, 10)
	for i := len(s); i < width; i++ {
		dst = append(dst, '0')
	}
	return append(dst, s...)
}
