package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/barnettlynn/emrtd/cmd/mrtdctl/internal/config"
	"github.com/barnettlynn/emrtd/transport"
)

const version = "0.1.0"

var (
	configPath   string
	readerIndex  int
	docNumber    string
	dateOfBirth  string
	dateOfExpiry string
	rawOutput    bool
)

var rootCmd = &cobra.Command{
	Use:     "mrtdctl",
	Short:   "eMRTD (electronic passport) reader demo",
	Version: version,
	Long: `mrtdctl v` + version + `
A demo shell over the emrtd library: connects to a PC/SC reader, runs
Basic Access Control, selects the eMRTD application and reads one or
more Elementary Files. It never parses a Data Group payload; it only
proves the protocol stack works end to end.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a mrtdctl config.yaml (optional)")
	rootCmd.PersistentFlags().IntVarP(&readerIndex, "reader", "r", -1, "reader index (-1 = auto-select the only reader)")
	rootCmd.PersistentFlags().StringVar(&docNumber, "doc-number", "", "MRZ document number, for BAC")
	rootCmd.PersistentFlags().StringVar(&dateOfBirth, "dob", "", "date of birth YYMMDD, for BAC")
	rootCmd.PersistentFlags().StringVar(&dateOfExpiry, "doe", "", "date of expiry YYMMDD, for BAC")
	rootCmd.PersistentFlags().BoolVar(&rawOutput, "raw", false, "set output.raw in the effective config (no subcommand changes its output for it)")

	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(bacProbeCmd)
	rootCmd.AddCommand(dumpCmd)
}

// Execute runs the root command, exiting the process with a non-zero
// status on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// sessionLogger returns a slog.Logger tagged with a fresh correlation id,
// so concurrent mrtdctl runs against different readers can be told apart
// in the logs.
func sessionLogger() *slog.Logger {
	return slog.Default().With("session", uuid.NewString())
}

// loadEffectiveConfig merges an optional config file with flags, flags
// taking precedence over the file.
func loadEffectiveConfig() (*config.Config, error) {
	cfg := &config.Config{}
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if readerIndex >= 0 {
		idx := readerIndex
		cfg.Reader.Index = &idx
	}
	if docNumber != "" {
		cfg.DBA.DocumentNumber = docNumber
	}
	if dateOfBirth != "" {
		cfg.DBA.DateOfBirth = dateOfBirth
	}
	if dateOfExpiry != "" {
		cfg.DBA.DateOfExpiry = dateOfExpiry
	}
	if rawOutput {
		cfg.Output.Raw = true
	}
	return cfg, nil
}

// pickReader resolves the configured reader index against the live
// reader list, prompting interactively when more than one is present and
// none was specified. Grounded on the teacher's keyswap/permissionsedit
// raw-mode arrow-key menu.
func pickReader(cfg *config.Config) (int, error) {
	idx := cfg.ReaderIndex()
	if idx >= 0 {
		return idx, nil
	}

	names, err := transport.ListPCSCReaders()
	if err != nil {
		return -1, fmt.Errorf("list readers: %w", err)
	}
	if len(names) == 0 {
		return -1, fmt.Errorf("no PC/SC readers found")
	}
	if len(names) == 1 {
		return 0, nil
	}
	return selectMenu("Select a reader:", names)
}

// selectMenu renders an arrow-key picker over items and returns the
// chosen index, or an error if stdin is not a terminal. Grounded on
// keyswap/main.go's selectMenu.
func selectMenu(prompt string, items []string) (int, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return -1, fmt.Errorf("stdin is not a terminal; pass --reader explicitly")
	}

	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return -1, fmt.Errorf("enter raw terminal mode: %w", err)
	}
	defer term.Restore(int(os.Stdin.Fd()), oldState)

	selected := 0
	render := func() {
		for i, item := range items {
			marker := " "
			if i == selected {
				marker = ">"
			}
			fmt.Printf("%s %s\r\n", marker, item)
		}
	}

	fmt.Printf("%s\r\n", prompt)
	render()

	buf := make([]byte, 3)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return -1, err
		}
		if n == 1 {
			switch buf[0] {
			case 0x0D, 0x0A:
				fmt.Print("\r\n")
				return selected, nil
			case 0x03:
				return -1, fmt.Errorf("selection cancelled")
			}
			continue
		}
		if n == 3 && buf[0] == 0x1B && buf[1] == '[' {
			switch buf[2] {
			case 'A':
				if selected > 0 {
					selected--
				}
			case 'B':
				if selected < len(items)-1 {
					selected++
				}
			default:
				continue
			}
			fmt.Printf("\033[%dA", len(items))
			render()
		}
	}
}

// commandContext is a small helper giving every subcommand a bounded
// context for the connect+BAC+read sequence, rather than leaving them to
// run unbounded.
func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
