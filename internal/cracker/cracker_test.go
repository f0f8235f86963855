package cracker

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"edu/pdfcrack/pkg/producers"
)

type targetFunc func([]byte) bool

func (f targetFunc) Test(c []byte) bool { return f(c) }

func accept(pw string) Target {
	return targetFunc(func(c []byte) bool { return string(c) == pw })
}

func newRange(t *testing.T, lower, upper uint64) producers.Producer {
	t.Helper()
	p, err := producers.NewRange(lower, upper, false)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestInvalidConfig(t *testing.T) {
	p := newRange(t, 0, 9)
	for _, threads := range []int{0, -1} {
		if _, err := Crack(threads, accept("1"), p); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("threads=%d: got %v, want ErrInvalidConfig", threads, err)
		}
	}
	if _, err := Crack(2, nil, p); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("nil target: got %v, want ErrInvalidConfig", err)
	}
	if _, err := Crack(2, accept("1"), nil); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("nil producer: got %v, want ErrInvalidConfig", err)
	}
	// nothing was consumed by the failed calls
	if c, ok := p.Next(); !ok || string(c) != "0" {
		t.Fatalf("producer advanced to %q before any worker started", c)
	}
}

func TestCrackFindsPassword(t *testing.T) {
	for _, threads := range []int{1, 4, 16} {
		pw, err := Crack(threads, accept("4242"), newRange(t, 1, 10000))
		if err != nil {
			t.Fatal(err)
		}
		if string(pw) != "4242" {
			t.Fatalf("threads=%d: got %q, want 4242", threads, pw)
		}
	}
}

func TestCrackExhausted(t *testing.T) {
	const n = 100000
	var mu sync.Mutex
	seen := make(map[string]int, n)
	target := targetFunc(func(c []byte) bool {
		mu.Lock()
		seen[string(c)]++
		mu.Unlock()
		return false
	})
	c, err := New(Options{Workers: 8})
	if err != nil {
		t.Fatal(err)
	}
	res, err := c.Crack(context.Background(), target, newRange(t, 0, n-1))
	if err != nil {
		t.Fatal(err)
	}
	if res.Found || res.Password != nil {
		t.Fatalf("found %q in a space without the password", res.Password)
	}
	if res.Tried != n || len(seen) != n {
		t.Fatalf("tried %d, saw %d distinct candidates, want %d", res.Tried, len(seen), n)
	}
	for cand, k := range seen {
		if k != 1 {
			t.Fatalf("candidate %q tested %d times", cand, k)
		}
	}
}

// The winning worker waits until every other worker is stuck in a test of a
// later candidate; those tests are the only work allowed after the match.
func TestStopsAfterFirstSuccess(t *testing.T) {
	const workers, k = 4, 500
	release := make(chan struct{})
	var blocked atomic.Int32
	target := targetFunc(func(c []byte) bool {
		n, _ := strconv.Atoi(string(c))
		switch {
		case n < k:
			return false
		case n > k:
			blocked.Add(1)
			<-release
			return false
		}
		for blocked.Load() < workers-1 {
			runtime.Gosched()
		}
		return true
	})
	var founds atomic.Int32
	winner := -1
	c, err := New(Options{Workers: workers, Event: func(event string, kv map[string]any) {
		if event == "found" && founds.Add(1) == 1 {
			winner = kv["worker"].(int)
			close(release)
		}
	}})
	if err != nil {
		t.Fatal(err)
	}
	res, err := c.Crack(context.Background(), target, newRange(t, 1, 1000))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Found || string(res.Password) != "500" {
		t.Fatalf("got %+v, want password 500", res)
	}
	if want := uint64(k + workers - 1); res.Tried != want {
		t.Fatalf("tried %d candidates, want %d", res.Tried, want)
	}
	if founds.Load() != 1 {
		t.Fatalf("%d found events", founds.Load())
	}
	if winner < 0 || winner >= workers {
		t.Fatalf("found event names worker %d of %d", winner, workers)
	}
}

func TestCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var calls atomic.Int64
	target := targetFunc(func(c []byte) bool {
		if calls.Add(1) == 100 {
			cancel()
		}
		return false
	})
	p, err := producers.NewDefault(1, 12, nil)
	if err != nil {
		t.Fatal(err)
	}
	c, err := New(Options{Workers: 4})
	if err != nil {
		t.Fatal(err)
	}
	res, err := c.Crack(ctx, target, p)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if res.Found || res.Tried < 100 {
		t.Fatalf("unexpected result %+v", res)
	}
}

type failingProducer struct {
	left   int
	closed bool
	mu     sync.Mutex
}

var errDisk = errors.New("disk on fire")

func (p *failingProducer) Next() ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.left == 0 {
		return nil, false
	}
	p.left--
	return []byte("x"), true
}

func (p *failingProducer) Size() uint64 { return 0 }
func (p *failingProducer) Err() error   { return errDisk }
func (p *failingProducer) Close() error { p.closed = true; return nil }

func TestProducerWarning(t *testing.T) {
	var warnings []string
	var mu sync.Mutex
	c, err := New(Options{Workers: 3, Event: func(event string, kv map[string]any) {
		if event == "warning" {
			mu.Lock()
			warnings = append(warnings, kv["error"].(string))
			mu.Unlock()
		}
	}})
	if err != nil {
		t.Fatal(err)
	}
	p := &failingProducer{left: 10}
	res, err := c.Crack(context.Background(), accept("nope"), p)
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(res.Warning, errDisk) || res.Tried != 10 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(warnings) != 1 || warnings[0] != errDisk.Error() {
		t.Fatalf("warning events %q", warnings)
	}
	if !p.closed {
		t.Fatal("producer not closed")
	}
}

func TestEventLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	c, err := New(Options{Workers: 1, LogPath: path, ProgressEvery: 100})
	if err != nil {
		t.Fatal(err)
	}
	res, err := c.Crack(context.Background(), accept("4999"), newRange(t, 0, 9999))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if !res.Found {
		t.Fatal("password not found")
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var events []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec map[string]any
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("bad log line %q: %v", sc.Text(), err)
		}
		if _, ok := rec["ts"].(string); !ok {
			t.Fatalf("log line without timestamp: %q", sc.Text())
		}
		events = append(events, rec["event"].(string))
	}
	if err := sc.Err(); err != nil {
		t.Fatal(err)
	}
	counts := map[string]int{}
	for _, e := range events {
		counts[e]++
	}
	if events[0] != "start" || events[len(events)-1] != "done" || counts["found"] != 1 || counts["progress"] == 0 {
		t.Fatalf("unexpected event sequence %v", events)
	}
}

func TestNewBadLogPath(t *testing.T) {
	_, err := New(Options{Workers: 1, LogPath: filepath.Join(t.TempDir(), "missing", "events.jsonl")})
	if err == nil {
		t.Fatal("expected an error for an unwritable log path")
	}
}
