package pdf_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"edu/pdfcrack/internal/cracker"
	"edu/pdfcrack/internal/pdf"
	"edu/pdfcrack/pkg/producers"
)

func load(t *testing.T, doc pdf.TestDocument) *pdf.Target {
	t.Helper()
	tg, err := pdf.Load(pdf.WriteTestDocument(t, doc))
	if err != nil {
		t.Fatal(err)
	}
	return tg
}

func wordlist(t *testing.T, words ...string) *producers.Dictionary {
	t.Helper()
	path := filepath.Join(t.TempDir(), "words.txt")
	if err := os.WriteFile(path, []byte(strings.Join(words, "\n")+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	p, err := producers.NewDictionary(path)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestCrackRange(t *testing.T) {
	tg := load(t, pdf.TestDocument{R: 3, User: []byte("1234"), Owner: []byte("owner-secret")})
	p, err := producers.NewRange(1000, 9999, false)
	if err != nil {
		t.Fatal(err)
	}
	pw, err := cracker.Crack(4, tg, p)
	if err != nil {
		t.Fatal(err)
	}
	if string(pw) != "1234" {
		t.Fatalf("got %q, want 1234", pw)
	}
}

func TestCrackWordlistWithoutPassword(t *testing.T) {
	tg := load(t, pdf.TestDocument{R: 4, User: []byte("1234")})
	pw, err := cracker.Crack(4, tg, wordlist(t, "password", "letmein", "12345", "123"))
	if err != nil {
		t.Fatal(err)
	}
	if pw != nil {
		t.Fatalf("got %q from a wordlist without the password", pw)
	}
}

func TestCrackOwnerPasswordR6(t *testing.T) {
	tg := load(t, pdf.TestDocument{R: 6, User: []byte("reader"), Owner: []byte("hunter2")}).WithMode(pdf.OwnerOnly)
	pw, err := cracker.Crack(2, tg, wordlist(t, "reader", "qwerty", "hunter2", "dragon"))
	if err != nil {
		t.Fatal(err)
	}
	if string(pw) != "hunter2" {
		t.Fatalf("got %q, want hunter2", pw)
	}
}

func TestCrackCustomQueryR2(t *testing.T) {
	tg := load(t, pdf.TestDocument{R: 2, User: []byte("ab07")})
	p, err := producers.NewCustomQuery("?l?l{0-9}?d", false)
	if err != nil {
		t.Fatal(err)
	}
	pw, err := cracker.Crack(4, tg, p)
	if err != nil {
		t.Fatal(err)
	}
	if string(pw) != "ab07" {
		t.Fatalf("got %q, want ab07", pw)
	}
}
