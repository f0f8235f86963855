package pdf

import (
	"fmt"
)

// encryptDict holds the fields of the encryption dictionary the password
// check depends on.
type encryptDict struct {
	filter          Name
	V, R            int
	keyBytes        int
	P               uint32
	O, U            []byte
	encryptMetadata bool
	cipher          string
	id0             []byte
}

func unsupported(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrUnsupportedFormat}, args...)...)
}

func readEncryptDict(f *file) (*encryptDict, error) {
	encObj, ok := f.trailer["Encrypt"]
	if !ok {
		return nil, unsupported("document is not encrypted")
	}
	obj, err := f.resolve(encObj)
	if err != nil {
		return nil, err
	}
	d, ok := obj.(Dict)
	if !ok {
		return nil, unsupported("encryption dictionary is %T, not a dictionary", obj)
	}

	e := &encryptDict{encryptMetadata: true}
	e.filter, _ = d["Filter"].(Name)
	if e.filter != "Standard" {
		return nil, unsupported("security handler %q", string(e.filter))
	}
	V, _ := d["V"].(int64)
	R, ok := d["R"].(int64)
	if !ok {
		return nil, unsupported("encryption dictionary without /R")
	}
	e.V, e.R = int(V), int(R)
	P, ok := d["P"].(int64)
	if !ok {
		return nil, unsupported("encryption dictionary without /P")
	}
	e.P = uint32(P)
	if b, ok := d["EncryptMetadata"].(bool); ok {
		e.encryptMetadata = b
	}

	hashLen := 32
	if e.R >= 5 {
		hashLen = 48
	}
	O, _ := d["O"].(String)
	U, _ := d["U"].(String)
	if len(O) < hashLen || len(U) < hashLen {
		return nil, unsupported("/O and /U must hold at least %d bytes, got %d and %d", hashLen, len(O), len(U))
	}
	e.O, e.U = []byte(O[:hashLen]), []byte(U[:hashLen])

	length := int64(40)
	if l, ok := d["Length"].(int64); ok {
		length = l
	}
	switch e.V {
	case 1:
		e.keyBytes, e.cipher = 5, "RC4-40"
	case 2, 3:
		if length < 40 || length > 128 || length%8 != 0 {
			return nil, unsupported("invalid key length %d", length)
		}
		e.keyBytes, e.cipher = int(length/8), fmt.Sprintf("RC4-%d", length)
	case 4:
		e.keyBytes, e.cipher = 16, cryptFilterCipher(f, d)
	case 5:
		e.keyBytes, e.cipher = 32, "AES-256"
	default:
		return nil, unsupported("encryption algorithm /V %d", e.V)
	}
	if e.R == 2 {
		e.keyBytes = 5
	}

	if ids, ok := f.trailer["ID"]; ok {
		obj, err := f.resolve(ids)
		if err != nil {
			return nil, err
		}
		if a, ok := obj.(Array); ok && len(a) > 0 {
			if id, err := f.resolve(a[0]); err == nil {
				s, _ := id.(String)
				e.id0 = []byte(s)
			}
		}
	}
	return e, nil
}

// cryptFilterCipher names the cipher of the default stream filter of a V4
// encryption dictionary.
func cryptFilterCipher(f *file, d Dict) string {
	stmf, _ := d["StmF"].(Name)
	if stmf == "" || stmf == "Identity" {
		return "none"
	}
	cfObj, _ := f.resolve(d["CF"])
	cf, _ := cfObj.(Dict)
	filterObj, _ := f.resolve(cf[stmf])
	filter, _ := filterObj.(Dict)
	switch filter["CFM"] {
	case Name("AESV2"):
		return "AES-128"
	case Name("V2"):
		return "RC4-128"
	case Name("AESV3"):
		return "AES-256"
	}
	return "none"
}

func (e *encryptDict) info() Info {
	return Info{
		Filter:          string(e.filter),
		V:               e.V,
		R:               e.R,
		KeyBits:         e.keyBytes * 8,
		P:               int32(e.P),
		Cipher:          e.cipher,
		EncryptMetadata: e.encryptMetadata,
		O:               e.O,
		U:               e.U,
		ID:              e.id0,
	}
}
