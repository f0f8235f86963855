// Package cracker runs password candidates from a producer against a target
// on a fixed number of workers until one is accepted or the producer runs
// dry.
package cracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"edu/pdfcrack/pkg/producers"
	"edu/pdfcrack/pkg/workerpool"
)

// Target tests one candidate password. Implementations must be safe for
// concurrent use.
type Target interface {
	Test(candidate []byte) bool
}

var ErrInvalidConfig = errors.New("invalid configuration")

// flushEvery is how many attempts a worker counts locally before adding
// them to the shared counter.
const flushEvery = 1024

type Options struct {
	Workers       int
	LogPath       string
	Event         func(event string, kv map[string]any)
	ProgressEvery uint64 // 5000 when zero
}

type Result struct {
	Found    bool          `json:"found"`
	Password []byte        `json:"password"`
	Tried    uint64        `json:"tried"`
	Duration time.Duration `json:"duration_ns"`
	// Warning is a producer failure that ended the session early. The
	// session itself still completed.
	Warning error `json:"-"`
}

type Cracker struct {
	opts    Options
	logMu   sync.Mutex
	logFile *os.File
}

func New(opts Options) (*Cracker, error) {
	c := &Cracker{opts: opts}
	if opts.LogPath != "" {
		f, err := os.Create(opts.LogPath)
		if err != nil {
			return nil, fmt.Errorf("create event log: %w", err)
		}
		c.logFile = f
	}
	return c, nil
}

func (c *Cracker) Close() error {
	if c.logFile != nil {
		return c.logFile.Close()
	}
	return nil
}

func (c *Cracker) logEvent(event string, kv map[string]any) {
	rec := map[string]any{"ts": time.Now().Format(time.RFC3339Nano), "event": event}
	for k, v := range kv {
		rec[k] = v
	}
	if c.logFile != nil {
		b, _ := json.Marshal(rec)
		c.logMu.Lock()
		_, _ = c.logFile.Write(append(b, '\n'))
		c.logMu.Unlock()
	}
	if c.opts.Event != nil {
		c.opts.Event(event, rec)
	}
}

// Crack runs threads workers over p until one of them finds a candidate t
// accepts. It returns the password, or nil when p is exhausted.
func Crack(threads int, t Target, p producers.Producer) ([]byte, error) {
	c, err := New(Options{Workers: threads})
	if err != nil {
		return nil, err
	}
	defer c.Close()
	res, err := c.Crack(context.Background(), t, p)
	if err != nil {
		return nil, err
	}
	return res.Password, nil
}

// Crack drains p on c's workers. Once a worker finds the password the
// others stop before their next attempt, so at most one test per worker
// runs after the winning one.
//
// Cancelling ctx stops the session the same way; if no password was found
// by then, Crack returns ctx.Err().
func (c *Cracker) Crack(ctx context.Context, t Target, p producers.Producer) (Result, error) {
	start := time.Now()
	res := Result{}
	if c.opts.Workers <= 0 {
		return res, fmt.Errorf("%w: need at least one worker, got %d", ErrInvalidConfig, c.opts.Workers)
	}
	if t == nil || p == nil {
		return res, fmt.Errorf("%w: missing target or producer", ErrInvalidConfig)
	}
	every := c.opts.ProgressEvery
	if every == 0 {
		every = 5000
	}
	c.logEvent("start", map[string]any{"workers": c.opts.Workers, "size": p.Size()})

	var tried atomic.Uint64
	var winner atomic.Pointer[[]byte]

	g := workerpool.New(ctx)
	g.Go(c.opts.Workers, func(_ context.Context, id int) {
		var local uint64
		flush := func() {
			if local == 0 {
				return
			}
			n := tried.Add(local)
			if n/every != (n-local)/every {
				c.logEvent("progress", map[string]any{"tried": n})
			}
			local = 0
		}
		defer flush()

		for !g.Stopped() {
			candidate, ok := p.Next()
			if !ok || g.Stopped() {
				return
			}
			local++
			if t.Test(candidate) {
				pw := bytes.Clone(candidate)
				if winner.CompareAndSwap(nil, &pw) {
					g.Cancel()
					flush()
					c.logEvent("found", map[string]any{"tried": tried.Load(), "worker": id})
				}
				return
			}
			if local == flushEvery {
				flush()
			}
		}
	})
	g.Wait()

	if err := producers.Err(p); err != nil {
		res.Warning = err
		c.logEvent("warning", map[string]any{"error": err.Error()})
	}
	if err := producers.Close(p); err != nil && res.Warning == nil {
		res.Warning = err
		c.logEvent("warning", map[string]any{"error": err.Error()})
	}

	res.Duration = time.Since(start)
	res.Tried = tried.Load()
	if pw := winner.Load(); pw != nil {
		res.Found = true
		res.Password = *pw
	}
	c.logEvent("done", map[string]any{
		"found":       res.Found,
		"tried":       res.Tried,
		"duration_ms": res.Duration.Milliseconds(),
	})
	if !res.Found {
		if err := ctx.Err(); err != nil {
			return res, err
		}
	}
	return res, nil
}
