package pdf

import (
	"crypto/md5"
	"encoding/binary"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"
)

// Revisions 2 to 4 derive an RC4 key from the padded password with MD5.

var passwordPad = [32]byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

var rc4Identity [256]byte

func init() {
	for i := range rc4Identity {
		rc4Identity[i] = byte(i)
	}
	for r := 2; r <= 4; r++ {
		registerRevision(r, newRC4Handler)
	}
}

type rc4Handler struct {
	r      int
	keyLen int
	o      [32]byte
	u      [32]byte
	tail   []byte   // O | P | ID[0] [| FF FF FF FF], hashed after the padded password
	uSeed  [16]byte // MD5(pad | ID[0]), the plaintext of U for R >= 3
}

func newRC4Handler(e *encryptDict) (handler, error) {
	h := &rc4Handler{r: e.R, keyLen: e.keyBytes}
	if h.keyLen < 5 || h.keyLen > 16 {
		return nil, unsupported("key length of %d bytes for revision %d", h.keyLen, e.R)
	}
	copy(h.o[:], e.O)
	copy(h.u[:], e.U)

	h.tail = append(h.tail, e.O...)
	h.tail = binary.LittleEndian.AppendUint32(h.tail, e.P)
	h.tail = append(h.tail, e.id0...)
	if e.R >= 4 && !e.encryptMetadata {
		h.tail = append(h.tail, 0xFF, 0xFF, 0xFF, 0xFF)
	}

	seed := append(passwordPad[:], e.id0...)
	h.uSeed = md5.Sum(seed)
	return h, nil
}

func padPassword(dst *[32]byte, pw []byte) {
	n := copy(dst[:], pw)
	copy(dst[n:], passwordPad[:])
}

// forms tries the raw bytes first. Passwords of these revisions are in
// PDFDocEncoding, so a non-ASCII UTF-8 candidate is also tried in Latin-1.
func (h *rc4Handler) forms(c []byte) ([]byte, []byte) {
	return c, latin1(c)
}

func latin1(c []byte) []byte {
	ascii := true
	for _, b := range c {
		if b >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii || !utf8.Valid(c) {
		return nil
	}
	out, err := charmap.ISO8859_1.NewEncoder().Bytes(norm.NFC.Bytes(c))
	if err != nil {
		return nil
	}
	return out
}

func (h *rc4Handler) user(pw []byte) bool {
	var padded [32]byte
	padPassword(&padded, pw)
	return h.userPadded(&padded)
}

// userPadded is Algorithm 6: derive the file key and compare the
// recomputed U.
func (h *rc4Handler) userPadded(padded *[32]byte) bool {
	var arr [128]byte
	buf := arr[:0]
	if n := 32 + len(h.tail); n > len(arr) {
		buf = make([]byte, 0, n)
	}
	buf = append(buf, padded[:]...)
	buf = append(buf, h.tail...)
	sum := md5.Sum(buf)

	var keyArr [16]byte
	key := keyArr[:h.keyLen]
	copy(key, sum[:])
	if h.r >= 3 {
		for i := 0; i < 50; i++ {
			sum = md5.Sum(key)
			copy(key, sum[:])
		}
	}

	if h.r == 2 {
		out := passwordPad
		rc4XOR(key, 0, out[:])
		return out == h.u
	}
	out := h.uSeed
	for i := 0; i < 20; i++ {
		rc4XOR(key, byte(i), out[:])
	}
	return out == [16]byte(h.u[:16])
}

// owner is Algorithm 7: the owner password decrypts O into the padded user
// password, which must then pass the user check.
func (h *rc4Handler) owner(pw []byte) bool {
	var padded [32]byte
	padPassword(&padded, pw)
	sum := md5.Sum(padded[:])

	var keyArr [16]byte
	key := keyArr[:h.keyLen]
	copy(key, sum[:])
	if h.r >= 3 {
		for i := 0; i < 50; i++ {
			sum = md5.Sum(key)
			copy(key, sum[:])
		}
	}

	user := h.o
	if h.r == 2 {
		rc4XOR(key, 0, user[:])
	} else {
		for i := 19; i >= 0; i-- {
			rc4XOR(key, byte(i), user[:])
		}
	}
	return h.userPadded(&user)
}

// rc4XOR encrypts data in place with RC4 under key, every key byte XORed
// with x first. The state lives on the stack.
func rc4XOR(key []byte, x byte, data []byte) {
	s := rc4Identity
	var j uint8
	k := 0
	for i := 0; i < 256; i++ {
		j += s[i] + (key[k] ^ x)
		s[i], s[j] = s[j], s[i]
		if k++; k == len(key) {
			k = 0
		}
	}
	var i, m uint8
	for n := range data {
		i++
		m += s[i]
		s[i], s[m] = s[m], s[i]
		data[n] ^= s[s[i]+s[m]]
	}
}
