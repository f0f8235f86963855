package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"edu/pdfcrack/pkg/producers"
)

var (
	file    string
	config  string
	verbose bool
)

// errNotCracked ends a session that ran to completion without a match. It
// exits 1 without an error message.
var errNotCracked = errors.New("password not found")

var rootCmd = &cobra.Command{
	Use:   "pdfcrack",
	Short: "pdfcrack - a concurrent PDF password cracker",
	Long: `pdfcrack recovers the user or owner password of a PDF document protected by the
standard security handler (revisions 2 to 6). Candidates come from a wordlist, a number
range, a query template, a span of dates or an exhaustive brute force.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose || strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug") {
			pterm.EnableDebugMessages()
		}
		if config != "" {
			viper.SetConfigFile(config)
			if err := viper.ReadInConfig(); err != nil {
				pterm.Warning.Printf("Could not read config file: %v\n", err)
			}
		}
		if term.IsTerminal(int(os.Stdout.Fd())) {
			pterm.DefaultHeader.WithFullWidth().Println("pdfcrack")
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&file, "file", "f", "", "Encrypted PDF document (required)")
	pf.IntP("threads", "t", runtime.NumCPU(), "Number of worker threads")
	pf.StringVar(&config, "config", "", "Config file path")
	pf.String("log", "", "Log file path for JSON-lines events")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	pf.String("mode", "both", "Password to look for: user, owner or both")
	pf.Uint64("progress-every", 5000, "Emit a progress event every N candidates")
	rootCmd.MarkPersistentFlagRequired("file")
	for _, name := range []string{"threads", "log", "mode", "progress-every"} {
		viper.BindPFlag(name, pf.Lookup(name))
	}

	rootCmd.AddCommand(wordlistCmd)
	rootCmd.AddCommand(rangeCmd)
	rootCmd.AddCommand(customQueryCmd)
	rootCmd.AddCommand(dateCmd)
	rootCmd.AddCommand(defaultQueryCmd)
	rootCmd.AddCommand(infoCmd)

	viper.SetEnvPrefix("PDFCRACK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	viper.SetDefault("threads", runtime.NumCPU())
	viper.SetDefault("charset", string(producers.PrintableASCII))
	viper.SetDefault("date-formats", "ddmmyyyy,yyyymmdd")
	viper.SetDefault("mode", "both")
	viper.SetDefault("progress-every", 5000)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errNotCracked) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
