package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/barnettlynn/emrtd/bac"
	"github.com/barnettlynn/emrtd/mrtd"
	"github.com/barnettlynn/emrtd/passport"
	"github.com/barnettlynn/emrtd/transport"
)

var dumpOutFile string

var dumpCmd = &cobra.Command{
	Use:   "dump <ef>",
	Short: "Read one EF and write its raw bytes as hex (or to a file with --out)",
	Args:  cobra.ExactArgs(1),
	RunE:  runDump,
}

func init() {
	dumpCmd.Flags().StringVar(&dumpOutFile, "out", "", "write raw bytes to this file instead of printing hex")
}

func runDump(cmd *cobra.Command, args []string) error {
	cfg, err := loadEffectiveConfig()
	if err != nil {
		return err
	}

	log := sessionLogger()
	readerIdx, err := pickReader(cfg)
	if err != nil {
		return err
	}

	tr, err := transport.NewPCSC(readerIdx)
	if err != nil {
		return fmt.Errorf("open reader %d: %w", readerIdx, err)
	}

	ctx, cancel := commandContext()
	defer cancel()

	session := mrtd.NewSession(tr)
	if err := session.Connect(ctx, "Insert passport"); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer session.Disconnect("", "")
	log.Info("connected to reader", "reader_index", readerIdx)

	p := passport.New(session)
	ef := args[0]

	var data []byte
	switch ef {
	case "CardAccess", "cardaccess":
		data, err = p.ReadCardAccess(ctx)
	case "CardSecurity", "cardsecurity":
		data, err = p.ReadCardSecurity(ctx)
	default:
		if !cfg.HasDBAKeys() {
			return fmt.Errorf("DBA keys not configured; pass --doc-number/--dob/--doe")
		}
		keys := bac.DeriveKeys(cfg.DBA.DocumentNumber, cfg.DBA.DateOfBirth, cfg.DBA.DateOfExpiry)
		if err := session.StartSession(ctx, keys); err != nil {
			return fmt.Errorf("BAC failed: %w", err)
		}
		switch ef {
		case "COM", "com":
			data, err = p.ReadCOM(ctx)
		case "SOD", "sod":
			data, err = p.ReadSOD(ctx)
		default:
			n, perr := parseDGArg(ef)
			if perr != nil {
				return perr
			}
			data, err = p.ReadDG(ctx, n)
		}
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", ef, err)
	}

	if dumpOutFile != "" {
		if err := os.WriteFile(dumpOutFile, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", dumpOutFile, err)
		}
		fmt.Printf("wrote %d bytes to %s\n", len(data), dumpOutFile)
		return nil
	}
	fmt.Println(hex.EncodeToString(data))
	return nil
}
