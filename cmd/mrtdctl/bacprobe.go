package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/barnettlynn/emrtd/bac"
	"github.com/barnettlynn/emrtd/mrtd"
	"github.com/barnettlynn/emrtd/transport"
)

var bacProbeCmd = &cobra.Command{
	Use:   "bac-probe",
	Short: "Run only the BAC handshake and report the derived session keys",
	Long: `bac-probe connects to a reader and runs Basic Access Control,
then prints the derived Secure Messaging keys and initial SSC without
reading any file. Useful for diagnosing DBA key material against a card
before attempting a full read.`,
	RunE: runBACProbe,
}

func runBACProbe(cmd *cobra.Command, args []string) error {
	cfg, err := loadEffectiveConfig()
	if err != nil {
		return err
	}
	if !cfg.HasDBAKeys() {
		return fmt.Errorf("DBA keys not configured; pass --doc-number/--dob/--doe")
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

	keys := bac.DeriveKeys(cfg.DBA.DocumentNumber, cfg.DBA.DateOfBirth, cfg.DBA.DateOfExpiry)
	result, err := bac.Perform(ctx, session.ICC(), keys)
	if err != nil {
		return fmt.Errorf("BAC failed: %w", err)
	}
	log.Info("BAC succeeded")

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Field", "Value (hex)"})
	t.AppendRow(table.Row{"KSenc", fmt.Sprintf("%X", result.Keys.KSenc)})
	t.AppendRow(table.Row{"KSmac", fmt.Sprintf("%X", result.Keys.KSmac)})
	t.AppendRow(table.Row{"SSC", fmt.Sprintf("%X", result.SSC)})
	fmt.Println(t.Render())
	return nil
}
