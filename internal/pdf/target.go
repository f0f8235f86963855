// Package pdf reads the encryption dictionary of a PDF document and tests
// candidate passwords against its standard security handler.
//
// A password test only runs the key derivation and the comparison against
// the stored /U or /O entry; no document content is ever decrypted.
package pdf

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
)

// Mode selects which password a Target accepts.
type Mode int

const (
	Both Mode = iota
	UserOnly
	OwnerOnly
)

func (m Mode) String() string {
	switch m {
	case UserOnly:
		return "user"
	case OwnerOnly:
		return "owner"
	}
	return "both"
}

// ParseMode accepts "user", "owner" and "both".
func ParseMode(s string) (Mode, error) {
	for _, m := range []Mode{Both, UserOnly, OwnerOnly} {
		if s == m.String() {
			return m, nil
		}
	}
	return Both, fmt.Errorf("unknown password mode %q", s)
}

// Info describes the encryption of a document.
type Info struct {
	Version         string
	Filter          string
	V, R            int
	KeyBits         int
	P               int32
	Cipher          string
	EncryptMetadata bool
	O, U, ID        []byte
}

// handler implements one revision of the standard security handler.
type handler interface {
	user(pw []byte) bool
	owner(pw []byte) bool
	// forms returns the byte strings to try for a candidate; alt is nil
	// when there is only one.
	forms(c []byte) (primary, alt []byte)
}

type newHandlerFunc func(e *encryptDict) (handler, error)

var revisions = map[int]newHandlerFunc{}

func registerRevision(r int, fn newHandlerFunc) { revisions[r] = fn }

// SupportedRevisions lists the security handler revisions a Target can test.
func SupportedRevisions() []int {
	out := make([]int, 0, len(revisions))
	for r := range revisions {
		out = append(out, r)
	}
	sort.Ints(out)
	return out
}

// Target is the password check of one document. It is immutable and safe
// for concurrent use.
type Target struct {
	info Info
	mode Mode
	h    handler
}

// Load reads the encryption dictionary of the document at path.
func Load(path string) (*Target, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat document: %w", err)
	}
	return NewTarget(f, st.Size())
}

// NewTarget reads the encryption dictionary of the document in r.
func NewTarget(r io.ReaderAt, size int64) (*Target, error) {
	f, err := readFile(r, size)
	if err != nil {
		return nil, err
	}
	e, err := readEncryptDict(f)
	if err != nil {
		return nil, err
	}
	newHandler, ok := revisions[e.R]
	if !ok {
		return nil, fmt.Errorf("%w: security handler revision %d", ErrUnsupportedFormat, e.R)
	}
	h, err := newHandler(e)
	if err != nil {
		return nil, err
	}
	t := &Target{h: h, info: e.info()}
	t.info.Version = f.version
	return t, nil
}

// WithMode returns a copy of t that accepts only the given kind of password.
func (t *Target) WithMode(m Mode) *Target {
	c := *t
	c.mode = m
	return &c
}

func (t *Target) Mode() Mode { return t.mode }

func (t *Target) Info() Info {
	info := t.info
	info.O = bytes.Clone(info.O)
	info.U = bytes.Clone(info.U)
	info.ID = bytes.Clone(info.ID)
	return info
}

// Test reports whether candidate opens the document.
func (t *Target) Test(candidate []byte) bool {
	primary, alt := t.h.forms(candidate)
	if t.check(primary) {
		return true
	}
	return alt != nil && t.check(alt)
}

func (t *Target) check(pw []byte) bool {
	if t.mode != OwnerOnly && t.h.user(pw) {
		return true
	}
	return t.mode != UserOnly && t.h.owner(pw)
}
