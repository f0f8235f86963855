package pdf

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
)

// Only the trailer and the objects it points to are read, so the whole
// document is never parsed.

const (
	maxChainLength = 1024
	maxRebuildSize = 256 << 20
	maxStreamSize  = 64 << 20
)

type xrefEntry struct {
	offset   int64
	gen      uint16
	inStream bool
}

type file struct {
	r       io.ReaderAt
	size    int64
	version string
	xref    map[uint32]xrefEntry
	trailer Dict
}

func readFile(r io.ReaderAt, size int64) (*file, error) {
	f := &file{r: r, size: size, xref: map[uint32]xrefEntry{}}

	head := make([]byte, min(size, 1024))
	if _, err := r.ReadAt(head, 0); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read header: %w", err)
	}
	i := bytes.Index(head, []byte("%PDF-"))
	if i < 0 {
		return nil, parseErrorf(0, "PDF header not found")
	}
	if v := head[i+5:]; len(v) >= 3 {
		f.version = string(v[:3])
	}

	start, err := f.findStartXref()
	if err == nil {
		err = f.readXrefChain(start)
	}
	if err != nil {
		var pe *ParseError
		if !errors.As(err, &pe) {
			return nil, err
		}
		if rerr := f.rebuild(); rerr != nil {
			return nil, err
		}
	}
	return f, nil
}

func (f *file) findStartXref() (int64, error) {
	n := min(f.size, 1024)
	tail := make([]byte, n)
	if _, err := f.r.ReadAt(tail, f.size-n); err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("read trailer: %w", err)
	}
	i := bytes.LastIndex(tail, []byte("startxref"))
	if i < 0 {
		return 0, parseErrorf(f.size, "startxref not found")
	}
	lx := newLexer(bytes.NewReader(tail), int64(i+len("startxref")), n)
	tok, err := lx.token()
	off, ok := tok.(int64)
	if err != nil || !ok || off <= 0 || off >= f.size {
		return 0, parseErrorf(f.size-n+int64(i), "invalid startxref")
	}
	return off, nil
}

// readXrefChain follows /Prev links from the newest section backwards.
// Entries of newer sections shadow older ones; trailer keys missing from
// newer trailers are filled in from older ones.
func (f *file) readXrefChain(off int64) error {
	seen := map[int64]bool{}
	for k := 0; ; k++ {
		if seen[off] || k >= maxChainLength {
			return parseErrorf(off, "cross-reference chain loops")
		}
		seen[off] = true

		lx := newLexer(f.r, off, f.size)
		tok, err := lx.token()
		if err != nil {
			return &ParseError{Pos: off, Err: lx.eofError(err)}
		}
		var trailer Dict
		if tok == keyword("xref") {
			trailer, err = f.readXrefTable(lx)
			if err == nil {
				if stm, ok := trailer["XRefStm"].(int64); ok {
					_, err = f.readXrefStreamAt(stm)
				}
			}
		} else {
			trailer, err = f.readXrefStreamAt(off)
		}
		if err != nil {
			return err
		}

		if f.trailer == nil {
			f.trailer = Dict{}
		}
		for key, val := range trailer {
			if _, ok := f.trailer[key]; !ok {
				f.trailer[key] = val
			}
		}

		prev, ok := trailer["Prev"].(int64)
		if !ok {
			return nil
		}
		if prev <= 0 || prev >= f.size {
			return parseErrorf(off, "invalid /Prev offset")
		}
		off = prev
	}
}

func (f *file) readXrefTable(lx *lexer) (Dict, error) {
	for {
		tok, err := lx.token()
		if err != nil {
			return nil, &ParseError{Pos: lx.pos, Err: lx.eofError(err)}
		}
		if tok == keyword("trailer") {
			obj, err := lx.object()
			if err != nil {
				return nil, wrapParse(lx.pos, err)
			}
			d, ok := obj.(Dict)
			if !ok {
				return nil, parseErrorf(lx.pos, "trailer is not a dictionary")
			}
			return d, nil
		}
		start, ok1 := tok.(int64)
		tok, err = lx.token()
		count, ok2 := tok.(int64)
		if err != nil || !ok1 || !ok2 || start < 0 || count < 0 || count > f.size/3 {
			return nil, parseErrorf(lx.pos, "malformed xref subsection header")
		}
		for i := int64(0); i < count; i++ {
			t1, _ := lx.token()
			t2, _ := lx.token()
			t3, err := lx.token()
			off, ok1 := t1.(int64)
			gen, ok2 := t2.(int64)
			kind, ok3 := t3.(keyword)
			if err != nil || !ok1 || !ok2 || !ok3 || (kind != "n" && kind != "f") {
				return nil, parseErrorf(lx.pos, "malformed xref entry")
			}
			num := uint32(start + i)
			if _, dup := f.xref[num]; dup || kind == "f" {
				continue
			}
			f.xref[num] = xrefEntry{offset: off, gen: uint16(gen)}
		}
	}
}

func (f *file) readXrefStreamAt(off int64) (Dict, error) {
	lx := newLexer(f.r, off, f.size)
	if _, err := lx.objectHeader(); err != nil {
		return nil, err
	}
	obj, err := lx.object()
	if err != nil {
		return nil, wrapParse(lx.pos, err)
	}
	s, ok := obj.(*Stream)
	if !ok || s.Dict["Type"] != Name("XRef") {
		return nil, parseErrorf(off, "cross-reference stream not found")
	}
	data, err := f.streamData(s)
	if err != nil {
		return nil, err
	}
	if err := f.decodeXrefStream(s.Dict, data); err != nil {
		return nil, &ParseError{Pos: off, Err: err}
	}
	return s.Dict, nil
}

func (f *file) decodeXrefStream(d Dict, data []byte) error {
	size, ok := d["Size"].(int64)
	if !ok || size < 0 {
		return errors.New("xref stream without /Size")
	}
	ww, _ := d["W"].(Array)
	if len(ww) < 3 {
		return errors.New("xref stream without /W")
	}
	var w [3]int
	total := 0
	for i := range w {
		x, ok := ww[i].(int64)
		if !ok || x < 0 || x > 8 {
			return errors.New("invalid /W array")
		}
		w[i] = int(x)
		total += int(x)
	}
	if total == 0 {
		return errors.New("invalid /W array")
	}
	index, _ := d["Index"].(Array)
	if index == nil {
		index = Array{int64(0), size}
	}
	if len(index)%2 != 0 {
		return errors.New("invalid /Index array")
	}
	for ; len(index) > 0; index = index[2:] {
		start, ok1 := index[0].(int64)
		n, ok2 := index[1].(int64)
		if !ok1 || !ok2 || start < 0 || n < 0 {
			return errors.New("invalid /Index array")
		}
		for i := int64(0); i < n; i++ {
			if len(data) < total {
				return errors.New("xref stream data too short")
			}
			row := data[:total]
			data = data[total:]
			typ := uint64(1)
			if w[0] > 0 {
				typ = decodeInt(row[:w[0]])
			}
			f2 := decodeInt(row[w[0] : w[0]+w[1]])
			f3 := decodeInt(row[w[0]+w[1]:])
			num := uint32(start + i)
			if _, dup := f.xref[num]; dup {
				continue
			}
			switch typ {
			case 1:
				f.xref[num] = xrefEntry{offset: int64(f2), gen: uint16(f3)}
			case 2:
				f.xref[num] = xrefEntry{inStream: true}
			}
		}
	}
	return nil
}

func decodeInt(b []byte) uint64 {
	var x uint64
	for _, c := range b {
		x = x<<8 | uint64(c)
	}
	return x
}

var objHeader = regexp.MustCompile(`(?m)(?:^|[\s>])(\d{1,10})[ \t\r\n\f\x00]+(\d{1,5})[ \t\r\n\f\x00]+obj\b`)

// rebuild scans the whole file for "N G obj" headers and recovers the last
// trailer, for documents whose cross-reference data is damaged.
func (f *file) rebuild() error {
	if f.size > maxRebuildSize {
		return parseErrorf(0, "file too large to rebuild cross-reference table")
	}
	data := make([]byte, f.size)
	if _, err := f.r.ReadAt(data, 0); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	f.xref = map[uint32]xrefEntry{}
	var xrefStreams []int64
	for _, m := range objHeader.FindAllSubmatchIndex(data, -1) {
		num, err1 := strconv.ParseUint(string(data[m[2]:m[3]]), 10, 32)
		gen, err2 := strconv.ParseUint(string(data[m[4]:m[5]]), 10, 16)
		if err1 != nil || err2 != nil {
			continue
		}
		f.xref[uint32(num)] = xrefEntry{offset: int64(m[2]), gen: uint16(gen)}
		if window := data[m[1]:min(len(data), m[1]+512)]; bytes.Contains(window, []byte("/XRef")) {
			xrefStreams = append(xrefStreams, int64(m[2]))
		}
	}

	f.trailer = nil
	if i := bytes.LastIndex(data, []byte("trailer")); i >= 0 {
		lx := newLexer(bytes.NewReader(data), int64(i+len("trailer")), f.size)
		if obj, err := lx.object(); err == nil {
			f.trailer, _ = obj.(Dict)
		}
	}
	for k := len(xrefStreams) - 1; f.trailer == nil && k >= 0; k-- {
		lx := newLexer(f.r, xrefStreams[k], f.size)
		if _, err := lx.objectHeader(); err != nil {
			continue
		}
		if obj, err := lx.object(); err == nil {
			if s, ok := obj.(*Stream); ok && s.Dict["Type"] == Name("XRef") {
				f.trailer = s.Dict
			}
		}
	}
	if f.trailer == nil {
		return parseErrorf(0, "no trailer found")
	}
	return nil
}

// objectHeader reads "N G obj".
func (l *lexer) objectHeader() (Reference, error) {
	start := l.pos
	t1, err1 := l.token()
	t2, err2 := l.token()
	t3, err3 := l.token()
	num, ok1 := t1.(int64)
	gen, ok2 := t2.(int64)
	if err1 != nil || err2 != nil || err3 != nil || !ok1 || !ok2 || t3 != keyword("obj") ||
		num < 0 || num > 1<<32-1 || gen < 0 || gen > 1<<16-1 {
		return Reference{}, parseErrorf(start, "object header not found")
	}
	return Reference{Number: uint32(num), Generation: uint16(gen)}, nil
}

// resolve follows references until it reaches a direct object. Missing
// objects resolve to nil, as the file format prescribes.
func (f *file) resolve(obj Object) (Object, error) {
	for depth := 0; ; depth++ {
		ref, ok := obj.(Reference)
		if !ok {
			return obj, nil
		}
		if depth > 16 {
			return nil, parseErrorf(0, "reference chain too long")
		}
		e, ok := f.xref[ref.Number]
		if !ok {
			return nil, nil
		}
		if e.inStream {
			return nil, &ParseError{Err: fmt.Errorf("object %d is stored in an object stream", ref.Number)}
		}
		lx := newLexer(f.r, e.offset, f.size)
		hdr, err := lx.objectHeader()
		if err != nil {
			return nil, err
		}
		if hdr.Number != ref.Number {
			return nil, parseErrorf(e.offset, "cross-reference entry points at the wrong object")
		}
		if obj, err = lx.object(); err != nil {
			return nil, wrapParse(lx.pos, err)
		}
	}
}

func (f *file) streamData(s *Stream) ([]byte, error) {
	lenObj, err := f.resolve(s.Dict["Length"])
	if err != nil {
		return nil, err
	}
	n, ok := lenObj.(int64)
	if !ok || n < 0 || n > maxStreamSize || s.Offset+n > f.size {
		return nil, parseErrorf(s.Offset, "invalid stream /Length")
	}
	raw := make([]byte, n)
	if _, err := f.r.ReadAt(raw, s.Offset); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return decodeStream(s.Dict, raw)
}

func decodeStream(d Dict, data []byte) ([]byte, error) {
	var filters []Object
	switch x := d["Filter"].(type) {
	case nil:
	case Name:
		filters = Array{x}
	case Array:
		filters = x
	default:
		return nil, errors.New("invalid /Filter")
	}
	var parms []Object
	switch x := d["DecodeParms"].(type) {
	case Dict:
		parms = Array{x}
	case Array:
		parms = x
	}
	for i, fl := range filters {
		if fl != Name("FlateDecode") {
			return nil, fmt.Errorf("unsupported stream filter %v", fl)
		}
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		out, err := io.ReadAll(io.LimitReader(zr, maxStreamSize))
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, err
		}
		data = out
		if i < len(parms) {
			if p, ok := parms[i].(Dict); ok {
				if data, err = unpredict(p, data); err != nil {
					return nil, err
				}
			}
		}
	}
	return data, nil
}

func intOr(d Dict, key Name, def int64) int64 {
	if v, ok := d[key].(int64); ok {
		return v
	}
	return def
}

// unpredict undoes a PNG predictor, the only kind used for xref streams.
func unpredict(p Dict, data []byte) ([]byte, error) {
	predictor := intOr(p, "Predictor", 1)
	if predictor == 1 {
		return data, nil
	}
	if predictor < 10 {
		return nil, fmt.Errorf("unsupported predictor %d", predictor)
	}
	colors := intOr(p, "Colors", 1)
	bpc := intOr(p, "BitsPerComponent", 8)
	columns := intOr(p, "Columns", 1)
	if colors < 1 || bpc < 1 || columns < 1 || colors*bpc*columns > 1<<20 {
		return nil, errors.New("invalid predictor parameters")
	}
	bpp := int(max(1, colors*bpc/8))
	rowLen := int((colors*bpc*columns + 7) / 8)

	out := make([]byte, 0, len(data))
	prev := make([]byte, rowLen)
	for len(data) > rowLen {
		tag, row := data[0], data[1:1+rowLen]
		data = data[1+rowLen:]
		for i := range row {
			var left, upLeft byte
			if i >= bpp {
				left, upLeft = row[i-bpp], prev[i-bpp]
			}
			up := prev[i]
			switch tag {
			case 0:
			case 1:
				row[i] += left
			case 2:
				row[i] += up
			case 3:
				row[i] += byte((int(left) + int(up)) / 2)
			case 4:
				row[i] += paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("invalid PNG filter type %d", tag)
			}
		}
		out = append(out, row...)
		copy(prev, row)
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func wrapParse(pos int64, err error) error {
	var pe *ParseError
	if errors.As(err, &pe) {
		return err
	}
	if errors.Is(err, io.EOF) {
		return parseErrorf(pos, "unexpected end of file")
	}
	return err
}
