package pdf

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha512"
	"hash"
	"sync"
	"unicode/utf8"

	sha256simd "github.com/minio/sha256-simd"
	"github.com/xdg-go/stringprep"
)

// Revisions 5 and 6 store salted SHA-2 hashes of the UTF-8 password in U
// and O. Revision 6 hardens the hash with Algorithm 2.B.

func init() {
	registerRevision(5, newAESHandler)
	registerRevision(6, newAESHandler)
}

type hashScratch struct {
	in []byte
	k  []byte
	k1 []byte
}

type aesHandler struct {
	r    int
	o, u [48]byte
	pool sync.Pool
}

func newAESHandler(e *encryptDict) (handler, error) {
	h := &aesHandler{r: e.R}
	copy(h.o[:], e.O)
	copy(h.u[:], e.U)
	h.pool.New = func() any {
		return &hashScratch{k: make([]byte, 0, 64)}
	}
	return h, nil
}

// forms prepares the candidate with SASLprep and keeps the raw bytes as a
// fallback when that changes them.
func (h *aesHandler) forms(c []byte) ([]byte, []byte) {
	raw := truncate127(c)
	if !utf8.Valid(c) {
		return raw, nil
	}
	prepped, err := stringprep.SASLprep.Prepare(string(c))
	if err != nil {
		return raw, nil
	}
	p := truncate127([]byte(prepped))
	if string(p) == string(raw) {
		return raw, nil
	}
	return p, raw
}

func truncate127(b []byte) []byte {
	if len(b) > 127 {
		return b[:127]
	}
	return b
}

func (h *aesHandler) user(pw []byte) bool {
	return h.hash(pw, h.u[32:40], nil) == [32]byte(h.u[:32])
}

func (h *aesHandler) owner(pw []byte) bool {
	return h.hash(pw, h.o[32:40], h.u[:]) == [32]byte(h.o[:32])
}

func (h *aesHandler) hash(pw, salt, u []byte) [32]byte {
	s := h.pool.Get().(*hashScratch)
	defer h.pool.Put(s)
	if h.r == 5 {
		s.in = append(s.in[:0], pw...)
		s.in = append(s.in, salt...)
		s.in = append(s.in, u...)
		return sha256simd.Sum256(s.in)
	}
	return hardenedHash(s, pw, salt, u)
}

// hardenedHash is Algorithm 2.B of ISO 32000-2.
func hardenedHash(s *hashScratch, pw, salt, u []byte) [32]byte {
	h := sha256simd.New()
	h.Write(pw)
	h.Write(salt)
	h.Write(u)
	K := h.Sum(s.k[:0])

	if n := 64 * (len(pw) + 64 + len(u)); cap(s.k1) < n {
		s.k1 = make([]byte, 0, n)
	}
	K1 := s.k1[:0]
	for i := 0; i < 64 || int(K1[len(K1)-1]) > i-32; i++ {
		K1 = K1[:0]
		for j := 0; j < 64; j++ {
			K1 = append(K1, pw...)
			K1 = append(K1, K...)
			K1 = append(K1, u...)
		}
		block, _ := aes.NewCipher(K[:16])
		cipher.NewCBCEncrypter(block, K[16:32]).CryptBlocks(K1, K1)

		// the first 16 bytes of E as a big-endian number mod 3 equal
		// their byte sum mod 3, since 256 = 1 (mod 3)
		rem := 0
		for _, b := range K1[:16] {
			rem += int(b)
		}
		var next hash.Hash
		switch rem % 3 {
		case 0:
			next = sha256simd.New()
		case 1:
			next = sha512.New384()
		default:
			next = sha512.New()
		}
		next.Write(K1)
		K = next.Sum(K[:0])
	}
	return [32]byte(K[:32])
}
