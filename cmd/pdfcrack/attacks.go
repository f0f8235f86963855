package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"edu/pdfcrack/internal/cracker"
	"edu/pdfcrack/internal/pdf"
	"edu/pdfcrack/pkg/producers"
)

var wordlistCmd = &cobra.Command{
	Use:   "wordlist PATH",
	Short: "Try every line of a wordlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAttack(func() (producers.Producer, error) {
			pterm.Info.Printf("Starting wordlist attack with: %s\n", args[0])
			return producers.NewDictionary(args[0])
		})
	},
}

var rangeCmd = &cobra.Command{
	Use:   "range LOWER UPPER",
	Short: "Try every number from LOWER to UPPER inclusive",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pad, _ := cmd.Flags().GetBool("add-preceding-zeros")
		lower, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("lower bound: %w", err)
		}
		upper, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("upper bound: %w", err)
		}
		return runAttack(func() (producers.Producer, error) {
			pterm.Info.Printf("Starting range attack: %d to %d\n", lower, upper)
			return producers.NewRange(lower, upper, pad)
		})
	},
}

var customQueryCmd = &cobra.Command{
	Use:   "custom-query TEMPLATE",
	Short: "Expand a template such as DOC{1-500}?d",
	Long: `Expand a template into candidates. Wildcards: ?l lowercase, ?u uppercase, ?d digit,
?s symbol, ?a any of those, ?h and ?H hex digits, ?? a literal ?. {lo-hi} runs through
the numbers lo to hi. A backslash escapes the next character.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pad, _ := cmd.Flags().GetBool("add-preceding-zeros")
		return runAttack(func() (producers.Producer, error) {
			pterm.Info.Printf("Starting custom query attack with template: %s\n", args[0])
			return producers.NewCustomQuery(args[0], pad)
		})
	},
}

var dateCmd = &cobra.Command{
	Use:   "date START END",
	Short: "Try every date from START to END",
	Long: `Try every calendar date from START to END inclusive, rendered in each configured
format. Dates are YYYY-MM-DD; a bare year means January 1 for START and December 31
for END.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := parseDateArg(args[0], false)
		if err != nil {
			return err
		}
		end, err := parseDateArg(args[1], true)
		if err != nil {
			return err
		}
		formats, err := parseDateFormats(viper.GetString("date-formats"))
		if err != nil {
			return err
		}
		return runAttack(func() (producers.Producer, error) {
			pterm.Info.Printf("Starting date attack: %s to %s\n", start.Format(time.DateOnly), end.Format(time.DateOnly))
			return producers.NewDate(start, end, formats...)
		})
	},
}

var defaultQueryCmd = &cobra.Command{
	Use:   "default-query",
	Short: "Brute force every string over the charset",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		minLen, _ := cmd.Flags().GetInt("min-length")
		maxLen, _ := cmd.Flags().GetInt("max-length")
		charset := viper.GetString("charset")
		return runAttack(func() (producers.Producer, error) {
			pterm.Info.Printf("Starting brute force attack (length %d-%d, %d characters)\n", minLen, maxLen, len(charset))
			return producers.NewDefault(minLen, maxLen, []byte(charset))
		})
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the encryption parameters of the document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := pdf.Load(file)
		if err != nil {
			return err
		}
		return renderInfo(t.Info())
	},
}

func init() {
	rangeCmd.Flags().Bool("add-preceding-zeros", false, "Pad every number to the width of UPPER")
	customQueryCmd.Flags().Bool("add-preceding-zeros", false, "Pad {lo-hi} runs to the width of hi")
	dateCmd.Flags().String("formats", "", "Comma-separated date formats: ddmmyyyy, yyyymmdd, mmddyyyy")
	viper.BindPFlag("date-formats", dateCmd.Flags().Lookup("formats"))
	defaultQueryCmd.Flags().Int("min-length", 1, "Minimum password length")
	defaultQueryCmd.Flags().Int("max-length", 6, "Maximum password length")
	defaultQueryCmd.Flags().String("charset", "", "Characters to brute force (default: printable ASCII)")
	viper.BindPFlag("charset", defaultQueryCmd.Flags().Lookup("charset"))
}

// parseDateArg accepts YYYY-MM-DD or a bare year.
func parseDateArg(s string, end bool) (time.Time, error) {
	if len(s) == 4 {
		if year, err := strconv.Atoi(s); err == nil {
			if end {
				return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC), nil
			}
			return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), nil
		}
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD or YYYY", s)
	}
	return t, nil
}

func parseDateFormats(s string) ([]producers.DateFormat, error) {
	var out []producers.DateFormat
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name == "" {
			continue
		}
		f, err := producers.ParseDateFormat(name)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// runAttack loads the document before building the producer, so a bad
// document never leaves a wordlist open.
func runAttack(build func() (producers.Producer, error)) error {
	target, err := pdf.Load(file)
	if err != nil {
		return err
	}
	mode, err := pdf.ParseMode(viper.GetString("mode"))
	if err != nil {
		return err
	}
	target = target.WithMode(mode)
	info := target.Info()
	pterm.Debug.Printf("Security handler %s V%d R%d, %s, %d-bit key\n", info.Filter, info.V, info.R, info.Cipher, info.KeyBits)

	p, err := build()
	if err != nil {
		return err
	}
	defer producers.Close(p)

	rep := newReporter(p.Size())
	c, err := cracker.New(cracker.Options{
		Workers:       viper.GetInt("threads"),
		LogPath:       viper.GetString("log"),
		ProgressEvery: viper.GetUint64("progress-every"),
		Event:         rep.event,
	})
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			pterm.Warning.Println("Interrupted, stopping...")
			cancel()
		case <-ctx.Done():
		}
	}()

	res, err := c.Crack(ctx, target, p)
	rep.stop()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			pterm.Warning.Printf("Gave up after %d candidates\n", res.Tried)
		}
		return err
	}
	if res.Warning != nil {
		pterm.Warning.Printf("Candidate source failed, not every candidate was tried: %v\n", res.Warning)
	}
	pterm.Info.Printf("Tried %d candidates in %v (%.0f/s)\n", res.Tried, res.Duration.Round(time.Millisecond), rate(res.Tried, res.Duration))

	if !res.Found {
		pterm.Warning.Println("Failed to crack file...")
		return errNotCracked
	}
	pterm.Success.Println(describePassword(res.Password))
	return nil
}

func rate(tried uint64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(tried) / d.Seconds()
}
