package pdf

import (
	"bufio"
	"errors"
	"io"
	"math"
	"strconv"
)

// Object is a PDF object as read from the file: nil, bool, int64, float64,
// Name, String, Array, Dict, Reference or *Stream.
type Object any

type (
	Name   string
	String []byte
	Array  []Object
	Dict   map[Name]Object
)

type Reference struct {
	Number     uint32
	Generation uint16
}

// Stream is a stream dictionary together with the file offset of its data.
type Stream struct {
	Dict   Dict
	Offset int64
}

// keyword is any bare token that is not a number, such as obj or R.
type keyword string

const (
	maxTokenLen = 1 << 16
	maxDepth    = 64
)

type lexer struct {
	r     *bufio.Reader
	pos   int64
	stack []any
	depth int
}

func newLexer(r io.ReaderAt, offset, size int64) *lexer {
	return &lexer{
		r:   bufio.NewReaderSize(io.NewSectionReader(r, offset, size-offset), 4096),
		pos: offset,
	}
}

func (l *lexer) readByte() (byte, error) {
	c, err := l.r.ReadByte()
	if err == nil {
		l.pos++
	}
	return c, err
}

func (l *lexer) unreadByte() {
	if l.r.UnreadByte() == nil {
		l.pos--
	}
}

func (l *lexer) push(tok any) { l.stack = append(l.stack, tok) }

func isSpace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (l *lexer) skipSpace() error {
	for {
		c, err := l.readByte()
		if err != nil {
			return err
		}
		switch {
		case isSpace(c):
		case c == '%':
			for c != '\n' && c != '\r' {
				if c, err = l.readByte(); err != nil {
					return err
				}
			}
		default:
			l.unreadByte()
			return nil
		}
	}
}

// token returns the next token: int64, float64, Name, String or keyword.
// It returns io.EOF at the end of the input.
func (l *lexer) token() (any, error) {
	if n := len(l.stack); n > 0 {
		tok := l.stack[n-1]
		l.stack = l.stack[:n-1]
		return tok, nil
	}
	if err := l.skipSpace(); err != nil {
		return nil, err
	}
	start := l.pos
	c, err := l.readByte()
	if err != nil {
		return nil, err
	}
	switch c {
	case '/':
		return l.name()
	case '(':
		return l.literal(start)
	case '<':
		c, err = l.readByte()
		if err != nil {
			return nil, parseErrorf(start, "unterminated hex string")
		}
		if c == '<' {
			return keyword("<<"), nil
		}
		l.unreadByte()
		return l.hexString(start)
	case '>':
		if c, err = l.readByte(); err != nil || c != '>' {
			return nil, parseErrorf(start, "unexpected >")
		}
		return keyword(">>"), nil
	case '[', ']', '{', '}':
		return keyword(c), nil
	case ')':
		return nil, parseErrorf(start, "unexpected )")
	}

	buf := []byte{c}
	for {
		c, err := l.readByte()
		if err != nil {
			break
		}
		if isSpace(c) || isDelim(c) {
			l.unreadByte()
			break
		}
		if len(buf) >= maxTokenLen {
			return nil, parseErrorf(start, "token too long")
		}
		buf = append(buf, c)
	}
	if tok, ok := parseNumber(buf); ok {
		return tok, nil
	}
	return keyword(buf), nil
}

func parseNumber(buf []byte) (any, bool) {
	switch buf[0] {
	case '+', '-', '.', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
	default:
		return nil, false
	}
	s := string(buf)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	if x, err := strconv.ParseFloat(s, 64); err == nil {
		return x, true
	}
	return nil, false
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func (l *lexer) name() (Name, error) {
	var buf []byte
	for {
		c, err := l.readByte()
		if err != nil {
			break
		}
		if isSpace(c) || isDelim(c) {
			l.unreadByte()
			break
		}
		if c == '#' {
			h, err1 := l.readByte()
			lo, err2 := l.readByte()
			x, ok1 := unhex(h)
			y, ok2 := unhex(lo)
			if err1 != nil || err2 != nil || !ok1 || !ok2 {
				return "", parseErrorf(l.pos, "malformed name escape")
			}
			c = x<<4 | y
		}
		if len(buf) >= maxTokenLen {
			return "", parseErrorf(l.pos, "name too long")
		}
		buf = append(buf, c)
	}
	return Name(buf), nil
}

func (l *lexer) literal(start int64) (String, error) {
	var buf []byte
	depth := 1
	for {
		c, err := l.readByte()
		if err != nil {
			return nil, parseErrorf(start, "unterminated string")
		}
		switch c {
		case '(':
			depth++
		case ')':
			if depth--; depth == 0 {
				return String(buf), nil
			}
		case '\r':
			if c, err = l.readByte(); err == nil && c != '\n' {
				l.unreadByte()
			}
			c = '\n'
		case '\\':
			if c, err = l.readByte(); err != nil {
				return nil, parseErrorf(start, "unterminated string")
			}
			switch c {
			case 'n':
				c = '\n'
			case 'r':
				c = '\r'
			case 't':
				c = '\t'
			case 'b':
				c = '\b'
			case 'f':
				c = '\f'
			case '\r':
				if c, err = l.readByte(); err == nil && c != '\n' {
					l.unreadByte()
				}
				continue
			case '\n':
				continue
			case '0', '1', '2', '3', '4', '5', '6', '7':
				x := int(c - '0')
				for i := 0; i < 2; i++ {
					d, err := l.readByte()
					if err != nil {
						break
					}
					if d < '0' || d > '7' {
						l.unreadByte()
						break
					}
					x = x<<3 | int(d-'0')
				}
				c = byte(x)
			}
		}
		buf = append(buf, c)
	}
}

func (l *lexer) hexString(start int64) (String, error) {
	var buf []byte
	var hi byte
	odd := false
	for {
		c, err := l.readByte()
		if err != nil {
			return nil, parseErrorf(start, "unterminated hex string")
		}
		if c == '>' {
			break
		}
		if isSpace(c) {
			continue
		}
		x, ok := unhex(c)
		if !ok {
			return nil, parseErrorf(l.pos-1, "invalid character in hex string")
		}
		if odd {
			buf = append(buf, hi<<4|x)
		} else {
			hi = x
		}
		odd = !odd
	}
	if odd {
		buf = append(buf, hi<<4)
	}
	return String(buf), nil
}

// object reads one complete object. A dictionary directly followed by the
// stream keyword is returned as a *Stream.
func (l *lexer) object() (Object, error) {
	tok, err := l.token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case keyword:
		switch t {
		case "<<":
			return l.dict()
		case "[":
			return l.array()
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "null":
			return nil, nil
		}
		return t, nil
	case int64:
		return l.maybeReference(t), nil
	}
	return tok, nil
}

func (l *lexer) maybeReference(n int64) Object {
	t2, err := l.token()
	if err != nil {
		return n
	}
	if g, ok := t2.(int64); ok {
		t3, err := l.token()
		if err == nil {
			if t3 == keyword("R") && n >= 0 && n <= math.MaxUint32 && g >= 0 && g <= math.MaxUint16 {
				return Reference{Number: uint32(n), Generation: uint16(g)}
			}
			l.push(t3)
		}
	}
	l.push(t2)
	return n
}

func (l *lexer) enter() error {
	if l.depth++; l.depth > maxDepth {
		return parseErrorf(l.pos, "objects nested too deeply")
	}
	return nil
}

func (l *lexer) array() (Array, error) {
	if err := l.enter(); err != nil {
		return nil, err
	}
	defer func() { l.depth-- }()
	var a Array
	for {
		tok, err := l.token()
		if err != nil {
			return nil, l.eofError(err)
		}
		if tok == keyword("]") {
			return a, nil
		}
		l.push(tok)
		obj, err := l.object()
		if err != nil {
			return nil, l.eofError(err)
		}
		if _, bad := obj.(keyword); bad {
			return nil, parseErrorf(l.pos, "unexpected keyword in array")
		}
		a = append(a, obj)
	}
}

func (l *lexer) dict() (Object, error) {
	if err := l.enter(); err != nil {
		return nil, err
	}
	defer func() { l.depth-- }()
	d := Dict{}
	for {
		tok, err := l.token()
		if err != nil {
			return nil, l.eofError(err)
		}
		if tok == keyword(">>") {
			break
		}
		key, ok := tok.(Name)
		if !ok {
			return nil, parseErrorf(l.pos, "dictionary key is not a name")
		}
		val, err := l.object()
		if err != nil {
			return nil, l.eofError(err)
		}
		if _, bad := val.(keyword); bad {
			return nil, parseErrorf(l.pos, "unexpected keyword in dictionary")
		}
		if val != nil {
			d[key] = val
		}
	}

	tok, err := l.token()
	if err != nil {
		return d, nil
	}
	if tok != keyword("stream") {
		l.push(tok)
		return d, nil
	}
	c, err := l.readByte()
	if err == nil {
		if c == '\r' {
			if c, err = l.readByte(); err == nil && c != '\n' {
				l.unreadByte()
			}
		} else if c != '\n' {
			l.unreadByte()
		}
	}
	return &Stream{Dict: d, Offset: l.pos}, nil
}

func (l *lexer) eofError(err error) error {
	if errors.Is(err, io.EOF) {
		return parseErrorf(l.pos, "unexpected end of file")
	}
	return err
}
