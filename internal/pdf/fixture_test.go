package pdf

import (
	"bytes"
	"compress/zlib"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	sha256simd "github.com/minio/sha256-simd"
)

// TestDocument describes an encrypted document built by BuildTestDocument.
type TestDocument struct {
	R             int
	User, Owner   []byte
	P             int32
	Unencrypted   bool // no /Encrypt entry at all
	Filter        string
	XRefStream    bool
	PlainMetadata bool // /EncryptMetadata false, R4 only
	BrokenXref    bool // startxref points nowhere
}

var testID = []byte{0xF6, 0xC6, 0xAF, 0x17, 0xF3, 0x72, 0x52, 0x8D, 0x52, 0x4D, 0x9A, 0x80, 0xD1, 0xEF, 0xDF, 0x18}

// WriteTestDocument writes doc into a temporary directory and returns its path.
func WriteTestDocument(t testing.TB, doc TestDocument) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.pdf")
	if err := os.WriteFile(path, BuildTestDocument(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func BuildTestDocument(doc TestDocument) []byte {
	if doc.P == 0 {
		doc.P = -1028
	}
	if doc.Filter == "" {
		doc.Filter = "Standard"
	}
	var b bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, b.Len())
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	b.WriteString("%PDF-1.7\n%\xE2\xE3\xCF\xD3\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj("<< /Type /Pages /Kids [] /Count 0 >>")
	trailer := "/Root 1 0 R"
	if !doc.Unencrypted {
		obj(encryptDictBody(doc))
		trailer += " /Encrypt 3 0 R"
	}
	trailer += fmt.Sprintf(" /ID [<%x> <%x>]", testID, testID)

	xrefOffset := b.Len()
	if doc.XRefStream {
		offsets = append(offsets, xrefOffset)
		n := len(offsets) + 1
		rows := make([]byte, 0, n*7)
		rows = append(rows, 0, 0, 0, 0, 0, 0xFF, 0xFF)
		for _, off := range offsets {
			rows = append(rows, 1)
			rows = binary.BigEndian.AppendUint32(rows, uint32(off))
			rows = append(rows, 0, 0)
		}
		data := pngUp(rows, 7)
		fmt.Fprintf(&b, "%d 0 obj\n<< /Type /XRef /Size %d /W [1 4 2] %s /Filter /FlateDecode /DecodeParms << /Predictor 12 /Columns 7 >> /Length %d >>\nstream\n",
			len(offsets), n, trailer, len(data))
		b.Write(data)
		b.WriteString("\nendstream\nendobj\n")
	} else {
		fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f\r\n", len(offsets)+1)
		for _, off := range offsets {
			fmt.Fprintf(&b, "%010d 00000 n\r\n", off)
		}
		fmt.Fprintf(&b, "trailer\n<< /Size %d %s >>\n", len(offsets)+1, trailer)
	}
	if doc.BrokenXref {
		xrefOffset = b.Len() + 1000
	}
	fmt.Fprintf(&b, "startxref\n%d\n%%%%EOF\n", xrefOffset)
	return b.Bytes()
}

func pngUp(rows []byte, columns int) []byte {
	var raw []byte
	prev := make([]byte, columns)
	for len(rows) > 0 {
		row := rows[:columns]
		rows = rows[columns:]
		raw = append(raw, 2)
		for i, c := range row {
			raw = append(raw, c-prev[i])
		}
		copy(prev, row)
	}
	var z bytes.Buffer
	w := zlib.NewWriter(&z)
	w.Write(raw)
	w.Close()
	return z.Bytes()
}

func encryptDictBody(doc TestDocument) string {
	switch doc.R {
	case 2, 3, 4:
		keyLen := 16
		if doc.R == 2 {
			keyLen = 5
		}
		O := testComputeO(doc.R, keyLen, doc.User, doc.Owner)
		U := testComputeU(doc.R, keyLen, doc.User, O[:], uint32(doc.P), !doc.PlainMetadata)
		switch doc.R {
		case 2:
			return fmt.Sprintf("<< /Filter /%s /V 1 /R 2 /O <%x> /U <%x> /P %d >>", doc.Filter, O, U, doc.P)
		case 3:
			return fmt.Sprintf("<< /Filter /%s /V 2 /R 3 /Length 128 /O <%x> /U <%x> /P %d >>", doc.Filter, O, U, doc.P)
		}
		meta := ""
		if doc.PlainMetadata {
			meta = " /EncryptMetadata false"
		}
		return fmt.Sprintf("<< /Filter /%s /V 4 /R 4 /Length 128 /CF << /StdCF << /CFM /AESV2 /AuthEvent /DocOpen /Length 16 >> >> /StmF /StdCF /StrF /StdCF /O <%x> /U <%x> /P %d%s >>",
			doc.Filter, O, U, doc.P, meta)
	default:
		U := testHash6(doc.R, doc.User, nil)
		owner := doc.Owner
		if owner == nil {
			owner = doc.User
		}
		O := testHash6(doc.R, owner, U)
		junk := make([]byte, 32+32+16)
		rand.Read(junk)
		// the literal string form exercises escapes in the reader
		return fmt.Sprintf("<< /Filter /%s /V 5 /R %d /Length 256 /CF << /StdCF << /CFM /AESV3 /Length 32 >> >> /StmF /StdCF /StrF /StdCF /O %s /U <%x> /OE <%x> /UE <%x> /Perms <%x> /P %d >>",
			doc.Filter, doc.R, literalString(O), U, junk[:32], junk[32:64], junk[64:], doc.P)
	}
}

func literalString(b []byte) string {
	var s bytes.Buffer
	s.WriteByte('(')
	for _, c := range b {
		switch {
		case c == '(' || c == ')' || c == '\\':
			s.WriteByte('\\')
			s.WriteByte(c)
		case c < 0x20 || c >= 0x7F:
			fmt.Fprintf(&s, "\\%03o", c)
		default:
			s.WriteByte(c)
		}
	}
	s.WriteByte(')')
	return s.String()
}

func testPad(pw []byte) []byte {
	out := make([]byte, 32)
	n := copy(out, pw)
	copy(out[n:], passwordPad[:])
	return out
}

func testRC4(key, data []byte) {
	c, err := rc4.NewCipher(key)
	if err != nil {
		panic(err)
	}
	c.XORKeyStream(data, data)
}

func testMD5Rounds(in []byte, keyLen, rounds int) []byte {
	sum := md5.Sum(in)
	return fileKeyFromDigest(sum[:], keyLen, rounds)
}

// testComputeO is Algorithm 3.
func testComputeO(r, keyLen int, user, owner []byte) []byte {
	if owner == nil {
		owner = user
	}
	rounds := 0
	if r >= 3 {
		rounds = 50
	}
	key := testMD5Rounds(testPad(owner), keyLen, rounds)
	O := testPad(user)
	testRC4(key, O)
	if r >= 3 {
		tmp := make([]byte, len(key))
		for i := 1; i <= 19; i++ {
			for j := range key {
				tmp[j] = key[j] ^ byte(i)
			}
			testRC4(tmp, O)
		}
	}
	return O
}

// testComputeU is Algorithms 2, 4 and 5.
func testComputeU(r, keyLen int, user, O []byte, P uint32, encryptMetadata bool) []byte {
	h := md5.New()
	h.Write(testPad(user))
	h.Write(O)
	binary.Write(h, binary.LittleEndian, P)
	h.Write(testID)
	if r >= 4 && !encryptMetadata {
		h.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	}
	rounds := 0
	if r >= 3 {
		rounds = 50
	}
	key := fileKeyFromDigest(h.Sum(nil), keyLen, rounds)

	if r == 2 {
		U := append([]byte(nil), passwordPad[:]...)
		testRC4(key, U)
		return U
	}
	seed := md5.Sum(append(testPad(nil), testID...))
	U := seed[:]
	testRC4(key, U)
	tmp := make([]byte, len(key))
	for i := 1; i <= 19; i++ {
		for j := range key {
			tmp[j] = key[j] ^ byte(i)
		}
		testRC4(tmp, U)
	}
	return append(U, make([]byte, 16)...)
}

func fileKeyFromDigest(digest []byte, keyLen, rounds int) []byte {
	key := append([]byte(nil), digest[:keyLen]...)
	for i := 0; i < rounds; i++ {
		sum := md5.Sum(key)
		key = append(key[:0], sum[:keyLen]...)
	}
	return key
}

// testHash6 builds the 48 byte U (when u is nil) or O entry for revision 5 or 6.
func testHash6(r int, pw, u []byte) []byte {
	salts := make([]byte, 16)
	rand.Read(salts)
	var hash [32]byte
	if r == 5 {
		hash = sha256simd.Sum256(append(append(append([]byte(nil), pw...), salts[:8]...), u...))
	} else {
		hash = hardenedHash(&hashScratch{k: make([]byte, 0, 64)}, pw, salts[:8], u)
	}
	return append(hash[:], salts...)
}
