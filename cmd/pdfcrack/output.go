package main

import (
	"encoding/hex"
	"fmt"
	"math"
	"os"
	"strconv"
	"sync"
	"unicode/utf8"

	"github.com/pterm/pterm"
	"golang.org/x/term"

	"edu/pdfcrack/internal/pdf"
)

// reporter turns cracker events into terminal output. The bar or spinner is
// only drawn when stdout is a terminal.
type reporter struct {
	mu      sync.Mutex
	bar     *pterm.ProgressbarPrinter
	spinner *pterm.SpinnerPrinter
	shown   uint64
}

func newReporter(size uint64) *reporter {
	r := &reporter{}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return r
	}
	if size > 0 && size <= math.MaxInt {
		r.bar, _ = pterm.DefaultProgressbar.WithTotal(int(size)).WithTitle("Progress").WithShowCount(true).WithShowElapsedTime(true).WithShowPercentage(true).Start()
	} else {
		r.spinner, _ = pterm.DefaultSpinner.Start("Cracking...")
	}
	return r
}

func (r *reporter) event(event string, kv map[string]any) {
	pterm.Debug.Printf("[%s] %v\n", event, kv)
	if event != "progress" {
		return
	}
	tried, _ := kv["tried"].(uint64)
	r.mu.Lock()
	defer r.mu.Unlock()
	// progress events from different workers may arrive out of order
	if tried <= r.shown {
		return
	}
	switch {
	case r.bar != nil:
		r.bar.Add(int(tried - r.shown))
	case r.spinner != nil:
		r.spinner.UpdateText(fmt.Sprintf("Tried %d candidates", tried))
	}
	r.shown = tried
}

func (r *reporter) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar != nil {
		r.bar.Stop()
	}
	if r.spinner != nil {
		r.spinner.Stop()
	}
}

// describePassword prints passwords that are not valid UTF-8 as hex bytes.
func describePassword(pw []byte) string {
	if utf8.Valid(pw) {
		return fmt.Sprintf("Success! Found password: %s", pw)
	}
	return fmt.Sprintf("Success! Found password, but it contains invalid UTF-8 characters. Displaying as hex: % x", pw)
}

func renderInfo(info pdf.Info) error {
	item := func(text string) pterm.BulletListItem {
		return pterm.BulletListItem{Level: 0, Text: text, BulletStyle: pterm.NewStyle(pterm.FgCyan)}
	}
	items := []pterm.BulletListItem{
		item("PDF version: " + info.Version),
		item("Security handler: " + info.Filter),
		item(fmt.Sprintf("Algorithm: V%d, revision %d", info.V, info.R)),
		item(fmt.Sprintf("Cipher: %s, %d-bit key", info.Cipher, info.KeyBits)),
		item(fmt.Sprintf("Permissions (P): %d", info.P)),
		item("Encrypt metadata: " + strconv.FormatBool(info.EncryptMetadata)),
		item("O: " + hex.EncodeToString(info.O)),
		item("U: " + hex.EncodeToString(info.U)),
		item("ID: " + hex.EncodeToString(info.ID)),
	}
	return pterm.DefaultBulletList.WithItems(items).Render()
}
