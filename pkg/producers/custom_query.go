package producers

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"
)

// Wildcard classes: ?l lower, ?u upper, ?d digits, ?s symbols, ?a all of
// them, ?h and ?H hex digits.
var (
	lower   = []byte("abcdefghijklmnopqrstuvwxyz")
	upper   = []byte("ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	digits  = []byte("0123456789")
	symbols = []byte(" !\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~")
	hexLow  = []byte("0123456789abcdef")
	hexUp   = []byte("0123456789ABCDEF")
	all     = concat(lower, upper, digits, symbols)
)

func concat(sets ...[]byte) []byte {
	var out []byte
	for _, s := range sets {
		out = append(out, s...)
	}
	return out
}

// part is one piece of a template: a literal run, a character class or a
// numeric run {lo-hi}.
type part struct {
	lit     []byte
	set     []byte
	numeric bool
	lo, hi  uint64
	width   int
}

func (p *part) variable() bool { return p.set != nil || p.numeric }

func (p *part) size() uint64 {
	if p.numeric {
		return p.hi - p.lo + 1
	}
	return uint64(len(p.set))
}

func (p *part) appendTo(dst []byte, i uint64) []byte {
	switch {
	case p.numeric:
		return appendPadded(dst, p.lo+i, p.width)
	case p.set != nil:
		return append(dst, p.set[i])
	}
	return append(dst, p.lit...)
}

// CustomQuery expands a wildcard template into every matching string. The
// leftmost wildcard varies slowest.
type CustomQuery struct {
	parts  []part
	maxLen int
	size   uint64

	mu   sync.Mutex
	odo  *odometer
	done bool
}

// NewCustomQuery parses template. Besides the ?x classes it understands ??
// for a literal '?', backslash escapes and numeric runs such as {0-9999},
// which pad to the width of their upper bound when pad is set.
func NewCustomQuery(template string, pad bool) (*CustomQuery, error) {
	parts, err := parseTemplate(template, pad)
	if err != nil {
		return nil, err
	}
	q := &CustomQuery{parts: parts}
	var radix []uint64
	for i := range parts {
		p := &parts[i]
		if !p.variable() {
			q.maxLen += len(p.lit)
			continue
		}
		radix = append(radix, p.size())
		if p.numeric {
			q.maxLen += max(p.width, digitWidth(p.hi))
		} else {
			q.maxLen++
		}
	}
	if n, ok := states(radix); ok {
		q.size = n
	}
	q.odo = newOdometer(radix)
	return q, nil
}

func parseTemplate(template string, pad bool) ([]part, error) {
	if template == "" {
		return nil, fmt.Errorf("%w: empty template", ErrInvalidTemplate)
	}
	var parts []part
	literal := func(b ...byte) {
		if n := len(parts); n > 0 && !parts[n-1].variable() {
			parts[n-1].lit = append(parts[n-1].lit, b...)
			return
		}
		parts = append(parts, part{lit: append([]byte(nil), b...)})
	}
	for i := 0; i < len(template); {
		switch c := template[i]; c {
		case '?':
			if i+1 >= len(template) {
				return nil, fmt.Errorf("%w: dangling ? at offset %d", ErrInvalidTemplate, i)
			}
			var set []byte
			switch template[i+1] {
			case 'l':
				set = lower
			case 'u':
				set = upper
			case 'd':
				set = digits
			case 's':
				set = symbols
			case 'a':
				set = all
			case 'h':
				set = hexLow
			case 'H':
				set = hexUp
			case '?':
				literal('?')
				i += 2
				continue
			default:
				return nil, fmt.Errorf("%w: unknown wildcard ?%c at offset %d", ErrInvalidTemplate, template[i+1], i)
			}
			parts = append(parts, part{set: set})
			i += 2
		case '\\':
			if i+1 >= len(template) {
				return nil, fmt.Errorf("%w: trailing escape", ErrInvalidTemplate)
			}
			_, n := utf8.DecodeRuneInString(template[i+1:])
			literal([]byte(template[i+1 : i+1+n])...)
			i += 1 + n
		case '{':
			end := strings.IndexByte(template[i:], '}')
			if end < 0 {
				return nil, fmt.Errorf("%w: unclosed { at offset %d", ErrInvalidTemplate, i)
			}
			p, err := parseRun(template[i+1:i+end], pad)
			if err != nil {
				return nil, fmt.Errorf("%w: run at offset %d: %v", ErrInvalidTemplate, i, err)
			}
			parts = append(parts, p)
			i += end + 1
		case '}':
			return nil, fmt.Errorf("%w: unmatched } at offset %d", ErrInvalidTemplate, i)
		default:
			literal(c)
			i++
		}
	}
	return parts, nil
}

func parseRun(body string, pad bool) (part, error) {
	l, h, ok := strings.Cut(body, "-")
	if !ok {
		return part{}, fmt.Errorf("want {lo-hi}, got {%s}", body)
	}
	lo, err := strconv.ParseUint(l, 10, 64)
	if err != nil {
		return part{}, err
	}
	hi, err := strconv.ParseUint(h, 10, 64)
	if err != nil {
		return part{}, err
	}
	if lo > hi {
		return part{}, fmt.Errorf("lower bound %d exceeds upper bound %d", lo, hi)
	}
	if hi-lo+1 == 0 {
		return part{}, fmt.Errorf("run %d-%d is too large", lo, hi)
	}
	p := part{numeric: true, lo: lo, hi: hi}
	if pad {
		p.width = digitWidth(hi)
	}
	return p, nil
}

func (q *CustomQuery) Next() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.done {
		return nil, false
	}
	buf := make([]byte, 0, q.maxLen)
	pos := 0
	for i := range q.parts {
		p := &q.parts[i]
		if !p.variable() {
			buf = append(buf, p.lit...)
			continue
		}
		buf = p.appendTo(buf, q.odo.digits[pos])
		pos++
	}
	if !q.odo.advance() {
		q.done = true
	}
	return buf, true
}

// Size is 0 when the expansion does not fit a uint64.
func (q *CustomQuery) Size() uint64 { return q.size }
