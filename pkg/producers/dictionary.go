package producers

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// Dictionary streams the lines of a wordlist, one candidate per line, without
// loading the file into memory. Only the line terminator (\n or \r\n, or a
// lone \r ending the last line) is stripped; empty lines are passed on as the
// empty password.
type Dictionary struct {
	path string

	mu   sync.Mutex
	f    *os.File
	r    *bufio.Reader
	done bool
	err  error

	sizeOnce sync.Once
	size     uint64
}

func NewDictionary(path string) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wordlist: %w", err)
	}
	return &Dictionary{path: path, f: f, r: bufio.NewReaderSize(f, 1<<20)}, nil
}

func (d *Dictionary) Next() ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done {
		return nil, false
	}
	line, err := d.r.ReadBytes('\n')
	switch {
	case err == nil:
		return trimCR(line[:len(line)-1]), true
	case errors.Is(err, io.EOF):
		d.finish(nil)
		if len(line) == 0 {
			return nil, false
		}
		return trimCR(line), true
	default:
		// the partial line cannot be trusted
		d.finish(fmt.Errorf("read wordlist: %w", err))
		return nil, false
	}
}

func trimCR(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\r' {
		return line[:n-1]
	}
	return line
}

// finish closes the file and records err. Callers hold d.mu.
func (d *Dictionary) finish(err error) {
	d.done = true
	if d.err == nil {
		d.err = err
	}
	if d.f != nil {
		d.f.Close()
		d.f = nil
	}
}

// Err is the read error that ended the sequence early, nil after a clean EOF.
func (d *Dictionary) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Close releases the wordlist. Next reports exhaustion afterwards.
func (d *Dictionary) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		d.done = true
		return nil
	}
	err := d.f.Close()
	d.f = nil
	d.done = true
	return err
}

// Size counts the lines of the wordlist on first use, with its own handle.
// It reports 0 if the file cannot be read.
func (d *Dictionary) Size() uint64 {
	d.sizeOnce.Do(func() {
		n, err := countLines(d.path)
		if err == nil {
			d.size = n
		}
	})
	return d.size
}

func countLines(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	buf := make([]byte, 1<<20)
	var n uint64
	var last byte = '\n'
	for {
		k, err := f.Read(buf)
		if k > 0 {
			n += uint64(bytes.Count(buf[:k], []byte{'\n'}))
			last = buf[k-1]
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	if last != '\n' {
		n++
	}
	return n, nil
}
